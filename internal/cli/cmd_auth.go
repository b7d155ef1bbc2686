package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/docagent/docagent-go/internal/api"
	"github.com/docagent/docagent-go/internal/config"
	"github.com/docagent/docagent-go/internal/credstore"
	ilog "github.com/docagent/docagent-go/internal/log"
	"github.com/docagent/docagent-go/internal/session"
)

// newFlagSet returns a flag set for a subcommand with the shared
// configuration flags already registered.
func newFlagSet(name string, cfg *config.Config) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfg.RegisterFlags(fs)
	return fs
}

// openManager opens the credential store and builds a session manager for a
// parsed configuration. The caller must close the returned store.
func openManager(cfg config.Config) (*credstore.Store, *session.Manager, error) {
	store, err := credstore.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, session.New(cfg, store, ilog.New(cfg.LogLevel)), nil
}

func runLogin(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("login", &cfg)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "login error:", err)
		return 2
	}
	if code := promptCredentials(email, password); code != 0 {
		return code
	}

	store, mgr, err := openManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "login error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	user, err := mgr.Login(ctx, *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "login error:", err)
		return 1
	}
	fmt.Printf("logged in as %s <%s>\n", user.Name, user.Email)
	return 0
}

func runRegister(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("register", &cfg)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	name := fs.String("name", "", "Display name (defaults to email)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "register error:", err)
		return 2
	}
	if code := promptCredentials(email, password); code != 0 {
		return code
	}
	if *name == "" {
		*name = *email
	}

	store, mgr, err := openManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "register error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	user, err := mgr.Register(ctx, *email, *password, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "register error:", err)
		return 1
	}
	fmt.Printf("registered %s <%s>\n", user.Name, user.Email)
	return 0
}

func runLogout(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("logout", &cfg)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "logout error:", err)
		return 2
	}

	store, mgr, err := openManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logout error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	if err := mgr.Logout(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "logout error:", err)
		return 1
	}
	fmt.Println("logged out")
	return 0
}

func runWhoami(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("whoami", &cfg)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "whoami error:", err)
		return 2
	}

	store, mgr, err := openManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "whoami error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	user, err := mgr.Restore(ctx)
	if err != nil {
		if errors.Is(err, api.ErrNotAuthenticated) {
			fmt.Println("not logged in")
			return 0
		}
		fmt.Fprintln(os.Stderr, "whoami error:", err)
		return 1
	}
	fmt.Printf("%s <%s>  tenant=%s role=%s tier=%s\n",
		user.Name, user.Email, user.TenantID, user.Role, user.SubscriptionTier)
	if exp, ok := mgr.TokenExpiry(); ok {
		fmt.Printf("access token expires in %s\n", time.Until(exp).Round(time.Second))
	}
	return 0
}

func runForgotPassword(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("forgot-password", &cfg)
	email := fs.String("email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "forgot-password error:", err)
		return 2
	}
	if *email == "" {
		fmt.Fprintln(os.Stderr, "missing --email")
		return 2
	}

	store, mgr, err := openManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "forgot-password error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	if err := mgr.ForgotPassword(ctx, *email); err != nil {
		fmt.Fprintln(os.Stderr, "forgot-password error:", err)
		return 1
	}
	fmt.Println("if an account with that email exists, a reset link has been sent")
	return 0
}

func runResetPassword(ctx context.Context, args []string) int {
	cfg := config.FromEnv()
	fs := newFlagSet("reset-password", &cfg)
	token := fs.String("token", "", "Reset token from the email link")
	newPassword := fs.String("new-password", "", "New account password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "reset-password error:", err)
		return 2
	}
	if *token == "" || *newPassword == "" {
		fmt.Fprintln(os.Stderr, "missing --token or --new-password")
		return 2
	}

	store, mgr, err := openManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reset-password error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	if err := mgr.ResetPassword(ctx, *token, *newPassword); err != nil {
		fmt.Fprintln(os.Stderr, "reset-password error:", err)
		return 1
	}
	fmt.Println("password reset")
	return 0
}

// promptCredentials fills missing email or password interactively, or fails
// with a usage error when stdin is not a terminal.
func promptCredentials(email, password *string) int {
	reader := bufio.NewReader(os.Stdin)
	var err error
	if *email == "" {
		if !isInteractiveInput() {
			fmt.Fprintln(os.Stderr, "missing --email")
			return 2
		}
		*email, err = prompt(reader, "Email: ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}
	if *password == "" {
		if !isInteractiveInput() {
			fmt.Fprintln(os.Stderr, "missing --password")
			return 2
		}
		*password, err = prompt(reader, "Password: ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}
	return 0
}
