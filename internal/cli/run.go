// Package cli implements the docagent command line interface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Run dispatches the given arguments to a subcommand and returns the
// process exit code.
func Run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "login":
		return runLogin(ctx, args[1:])
	case "register":
		return runRegister(ctx, args[1:])
	case "logout":
		return runLogout(ctx, args[1:])
	case "whoami":
		return runWhoami(ctx, args[1:])
	case "watch":
		return runWatch(ctx, args[1:])
	case "forgot-password":
		return runForgotPassword(ctx, args[1:])
	case "reset-password":
		return runResetPassword(ctx, args[1:])
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Println(`docagent - DocAgent API client

Usage:
  docagent login [--server URL] [--email EMAIL] [--password PASSWORD]
  docagent register [--server URL] [--email EMAIL] [--password PASSWORD] [--name NAME]
  docagent logout
  docagent whoami
  docagent watch <job-id>
  docagent forgot-password --email EMAIL
  docagent reset-password --token TOKEN --new-password PASSWORD

Environment:
  DOCAGENT_API_URL    API base URL (default http://localhost:8001)
  DOCAGENT_DB_PATH    credential database path
  DOCAGENT_LOG_LEVEL  debug|info|warn|error`)
}

func isInteractiveInput() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stdout, label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
