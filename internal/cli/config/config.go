package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jtuchinsky/finance-planner-cli/internal/infra/confloader"
)

// Output formats accepted by output.format.
var validFormats = map[string]bool{"table": true, "json": true, "yaml": true}

// Config is the configuration for finance-cli.
type Config struct {
	Auth    AuthConfig    `koanf:"auth"`
	Session SessionConfig `koanf:"session"`
	Output  OutputConfig  `koanf:"output"`
	Log     LogConfig     `koanf:"log"`
	TLS     TLSConfig     `koanf:"tls"`
	Login   LoginConfig   `koanf:"login"`
}

// AuthConfig locates the auth service.
type AuthConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SessionConfig locates the session store file.
type SessionConfig struct {
	Path string `koanf:"path"`
}

// OutputConfig holds output preferences.
type OutputConfig struct {
	Format string `koanf:"format"` // table, json, yaml
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TLSConfig adds trust anchors for the auth service.
type TLSConfig struct {
	CA string `koanf:"ca"` // PEM bundle path
}

// LoginConfig holds development conveniences for auth login.
type LoginConfig struct {
	Email string `koanf:"email"`
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty the default path is
	// used and may be absent.
	ConfigFile string
	// Overrides are applied last, keyed by dotted path (auth.url, ...).
	Overrides map[string]any
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			URL:     "http://127.0.0.1:8001",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{Path: DefaultSessionPath()},
		Output:  OutputConfig{Format: "table"},
		Log:     LogConfig{Level: "warn", Format: "text"},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultSessionPath returns the default session store path.
func DefaultSessionPath() string {
	return filepath.Join(configDir(), "tokens.json")
}

func configDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "finance-cli")
}

// Load builds the configuration from defaults, the config file,
// CLI_* environment variables and overrides, in increasing priority.
func Load(opts LoadOptions) (*Config, error) {
	def := Default()

	fileOpt := confloader.WithOptionalConfigFile(DefaultConfigPath())
	if opts.ConfigFile != "" {
		fileOpt = confloader.WithConfigFile(ExpandHome(opts.ConfigFile))
	}

	loader := confloader.NewLoader(
		confloader.WithDefaults(map[string]any{
			"auth.url":      def.Auth.URL,
			"auth.timeout":  def.Auth.Timeout.String(),
			"session.path":  def.Session.Path,
			"output.format": def.Output.Format,
			"log.level":     def.Log.Level,
			"log.format":    def.Log.Format,
			"tls.ca":        "",
			"login.email":   "",
		}),
		fileOpt,
	)

	cfg := &Config{}
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if len(opts.Overrides) > 0 {
		if err := loader.LoadMap(opts.Overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.Session.Path = ExpandHome(cfg.Session.Path)
	cfg.TLS.CA = ExpandHome(cfg.TLS.CA)
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the CLI cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.URL) == "" {
		errs = append(errs, errors.New("auth.url must not be empty"))
	}
	if c.Auth.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("auth.timeout must be positive, got %s", c.Auth.Timeout))
	}
	if c.Session.Path == "" {
		errs = append(errs, errors.New("session.path must not be empty"))
	}
	if !validFormats[c.Output.Format] {
		errs = append(errs, fmt.Errorf("output.format %q is not one of table, json, yaml", c.Output.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
