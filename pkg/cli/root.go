package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/config"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/pages"
	"github.com/tutoria/dashboard/pkg/session"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Session is an opened, restored session with its client
type Session struct {
	Client *apiclient.Client
	Store  *session.Store
	Rules  *pages.Rules
	close  func() error
}

// Close releases the session storage
func (s *Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// App carries what the commands share
type App struct {
	Out io.Writer
	Log *logrus.Logger
	// Open builds and restores the session; defaults to OpenSession
	Open func(ctx context.Context) (*Session, error)
}

// NewApp creates an App writing to stdout and logging to stderr
func NewApp() *App {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	app := &App{Out: os.Stdout, Log: log}
	app.Open = func(ctx context.Context) (*Session, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		return OpenSession(ctx, cfg, app.Log)
	}
	return app
}

// OpenSession builds the API client and session store described by cfg
// and restores the persisted session
func OpenSession(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Session, error) {
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		log.SetLevel(level)
	}

	storage, err := session.OpenStorage(ctx, session.StorageConfig{
		Driver:      cfg.Session.Storage,
		Path:        cfg.Session.Path,
		RedisURL:    cfg.Session.RedisURL,
		RedisPrefix: cfg.Session.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	// the library logger stays quiet unless debugging
	libLogger := observability.NewLogger(cfg.Observability.Level(), log.Out)
	client := apiclient.New(apiclient.Config{
		ManagementURL:      cfg.API.ManagementURL,
		AuthURL:            cfg.API.AuthURL,
		AIURL:              cfg.API.AIURL,
		Timeout:            cfg.API.Timeout,
		MaxRefreshFailures: cfg.API.MaxRefreshFailures,
		Logger:             libLogger,
	})
	store := session.New(session.Options{Client: client, Storage: storage, Logger: libLogger})
	if err := store.Restore(ctx); err != nil {
		storage.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"storage": cfg.Session.Storage,
		"state":   store.State().String(),
	}).Debug("session restored")

	var opts []pages.Option
	if cfg.Authz.PageDefaultDeny {
		opts = append(opts, pages.WithDefaultDeny())
	}
	return &Session{Client: client, Store: store, Rules: pages.NewRules(opts...), close: storage.Close}, nil
}

// NewRootCommand creates the root command
func NewRootCommand(app *App) *Command {
	root := &Command{
		Name:        "tutoria",
		Description: "Tutoria - dashboard access CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("tutoria", flag.ContinueOnError),
	}

	root.Subcommands["login"] = app.newLoginCommand()
	root.Subcommands["logout"] = app.newLogoutCommand()
	root.Subcommands["whoami"] = app.newWhoamiCommand()
	root.Subcommands["can"] = app.newCanCommand()
	root.Subcommands["pages"] = app.newPagesCommand()
	root.Subcommands["refresh"] = app.newRefreshCommand()
	root.Subcommands["reset-password"] = app.newResetPasswordCommand()

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// withSession opens the session, runs fn and closes it
func (a *App) withSession(fn func(ctx context.Context, s *Session) error) error {
	ctx := context.Background()
	s, err := a.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.Log.WithError(err).Warn("failed to close session storage")
		}
	}()
	return fn(ctx, s)
}
