package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/docagent/docagent-go/internal/config"
	"github.com/docagent/docagent-go/internal/envelope"
	ilog "github.com/docagent/docagent-go/internal/log"
	"github.com/docagent/docagent-go/internal/realtime"
)

// runWatch follows a generation job's progress events until interrupted.
func runWatch(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("watch", &cfg)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "watch error:", err)
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: docagent watch <job-id>")
		return 2
	}
	jobID := fs.Arg(0)

	logger := ilog.New(cfg.LogLevel)
	client, err := realtime.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "watch error:", err)
		return 1
	}

	unsubscribeAck := client.OnMessage(envelope.TypeSubscribed, func(env envelope.Envelope) {
		fmt.Printf("subscribed to job %s\n", env.JobID)
	})
	defer unsubscribeAck()

	unsubscribe := client.SubscribeToJob(jobID, func(env envelope.Envelope) {
		printProgress(env)
	})
	defer unsubscribe()

	if err := client.Connect(ctx); err != nil {
		// The client keeps retrying in the background; report and wait.
		fmt.Fprintln(os.Stderr, "initial connect failed, retrying:", err)
	}
	defer client.Disconnect()

	<-ctx.Done()
	fmt.Println()
	return 0
}

func printProgress(env envelope.Envelope) {
	line := env.Type
	if status := env.String("status"); status != "" {
		line += " status=" + status
	}
	if progress, ok := env.Fields["progress"]; ok {
		line += fmt.Sprintf(" progress=%v", progress)
	}
	if agent := env.String("agent"); agent != "" {
		line += " agent=" + agent
	}
	if msg := env.String("message"); msg != "" {
		line += "  " + msg
	}
	fmt.Println(line)
}
