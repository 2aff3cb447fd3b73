package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jtuchinsky/finance-planner-cli/internal/cli/config"
	"github.com/jtuchinsky/finance-planner-cli/internal/infra/buildinfo"
	"github.com/jtuchinsky/finance-planner-cli/internal/telemetry/logger"
)

const metaEnv = "env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:        "finance-cli",
		Usage:       "Finance Planner command-line client",
		Version:     buildinfo.String(),
		HideVersion: true,
		Flags:       globalFlags(),
		Commands: []*cli.Command{
			AuthCommand(),
			TenantCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Metadata: map[string]any{},
		Before:   setup,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Config file path (default: ~/.config/finance-cli/config.yaml)",
		},
		&cli.StringFlag{
			Name:    "auth-url",
			Usage:   "Auth service URL",
			EnvVars: []string{"CLI_AUTH_URL"},
		},
		&cli.StringFlag{
			Name:    "session-file",
			Usage:   "Session store path",
			EnvVars: []string{"CLI_SESSION_PATH"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Auth service request timeout",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging on stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile  string
	AuthURL     string
	SessionFile string
	Timeout     time.Duration
	Output      string
	Verbose     bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigFile:  c.String("config"),
		AuthURL:     c.String("auth-url"),
		SessionFile: c.String("session-file"),
		Timeout:     c.Duration("timeout"),
		Output:      c.String("output"),
		Verbose:     c.Bool("verbose"),
	}
}

// overrides returns the config keys set explicitly on the command line.
func (f *GlobalFlags) overrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("auth-url") {
		m["auth.url"] = f.AuthURL
	}
	if c.IsSet("session-file") {
		m["session.path"] = f.SessionFile
	}
	if c.IsSet("timeout") {
		m["auth.timeout"] = f.Timeout
	}
	if c.IsSet("output") {
		m["output.format"] = f.Output
	}
	return m
}

func setup(c *cli.Context) error {
	flags := ParseGlobalFlags(c)

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: flags.ConfigFile,
		Overrides:  flags.overrides(c),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	if flags.Verbose {
		logger.SetLevel("debug")
	}
	logger.SetDefault(log)
	c.Context = logger.WithLogger(c.Context, log)

	env, err := newEnv(c, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	c.App.Metadata[metaEnv] = env

	log.Debug("configuration loaded",
		"auth_url", cfg.Auth.URL,
		"session_path", cfg.Session.Path,
		"output", cfg.Output.Format,
	)
	return nil
}

// GetEnv retrieves the command environment prepared by the Before hook.
func GetEnv(c *cli.Context) *Env {
	if env, ok := c.App.Metadata[metaEnv].(*Env); ok {
		return env
	}
	return nil
}
