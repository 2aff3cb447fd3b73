package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/jtuchinsky/finance-planner-cli/internal/cli/config"
	"github.com/jtuchinsky/finance-planner-cli/internal/cli/connection"
	"github.com/jtuchinsky/finance-planner-cli/internal/cli/output"
	"github.com/jtuchinsky/finance-planner-cli/internal/core/service"
	"github.com/jtuchinsky/finance-planner-cli/internal/infra/tlsroots"
	"github.com/jtuchinsky/finance-planner-cli/internal/storage"
)

// Env holds what a command needs for one invocation.
type Env struct {
	Config *config.Config
	Store  *storage.FileStore
	Cache  *service.SessionCache
	Auth   *connection.AuthService
	Format output.Format

	Out    io.Writer
	ErrOut io.Writer
	in     io.Reader
	reader *bufio.Reader

	httpOpts []connection.HTTPOption
}

func newEnv(c *cli.Context, cfg *config.Config) (*Env, error) {
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	httpOpts := []connection.HTTPOption{connection.WithTimeout(cfg.Auth.Timeout)}
	tlsCfg, err := tlsroots.ClientConfig(cfg.TLS.CA)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		httpOpts = append(httpOpts, connection.WithTLSConfig(tlsCfg))
	}

	store := storage.NewFileStore(cfg.Session.Path)
	auth := connection.NewAuthService(connection.NewHTTPClient(cfg.Auth.URL, httpOpts...))

	return &Env{
		Config:   cfg,
		Store:    store,
		Cache:    service.NewSessionCache(store, auth),
		Auth:     auth,
		Format:   format,
		Out:      c.App.Writer,
		ErrOut:   c.App.ErrWriter,
		in:       c.App.Reader,
		httpOpts: httpOpts,
	}, nil
}

// BearerAuth returns an auth client that sends the cached access token,
// refreshing it first when it has expired.
func (e *Env) BearerAuth(ctx context.Context) *connection.AuthService {
	opts := append([]connection.HTTPOption{}, e.httpOpts...)
	opts = append(opts, connection.WithTokenSource(e.Cache.TokenSource(ctx, true)))
	return connection.NewAuthService(connection.NewHTTPClient(e.Config.Auth.URL, opts...))
}

// Print writes data to stdout in the selected format.
func (e *Env) Print(data any) error {
	return output.NewFormatter(e.Format).Format(e.Out, data)
}

// Structured reports whether output is json or yaml.
func (e *Env) Structured() bool {
	return e.Format != output.FormatTable
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

// Prompt reads one line from stdin, printing label on stderr.
func (e *Env) Prompt(label string) (string, error) {
	fmt.Fprintf(e.ErrOut, "%s: ", label)
	if e.reader == nil {
		e.reader = bufio.NewReader(e.in)
	}
	line, err := e.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptSecret reads a value without echo when stdin is a terminal.
func (e *Env) PromptSecret(label string) (string, error) {
	f, ok := e.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return e.Prompt(label)
	}

	fmt.Fprintf(e.ErrOut, "%s: ", label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(e.ErrOut)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return string(b), nil
}

// Spin runs fn behind a spinner on stderr when stderr is a terminal.
func (e *Env) Spin(message string, fn func() error) error {
	f, ok := e.ErrOut.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fn()
	}

	s := output.NewSpinner(e.ErrOut, message)
	s.Start()
	err := fn()
	s.Stop()
	return err
}
