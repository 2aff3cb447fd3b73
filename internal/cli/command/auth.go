package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/jtuchinsky/finance-planner-cli/internal/cli/connection"
	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
	"github.com/jtuchinsky/finance-planner-cli/internal/infra/filewatch"
	"github.com/jtuchinsky/finance-planner-cli/internal/infra/shutdown"
	"github.com/jtuchinsky/finance-planner-cli/internal/storage"
	"github.com/jtuchinsky/finance-planner-cli/internal/telemetry/logger"
	"github.com/jtuchinsky/finance-planner-cli/pkg/token"
)

// AuthCommand returns the auth subcommand group.
func AuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate against the auth service and manage cached sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a new user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User email"},
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (prompted when omitted)"},
					&cli.Int64Flag{Name: "tenant-id", Aliases: []string{"t"}, Usage: "Tenant to join"},
				},
				Action: authRegister,
			},
			{
				Name:  "login",
				Usage: "Log in and cache the issued tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User email (default: login.email)"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (prompted when omitted)"},
					&cli.BoolFlag{Name: "no-save", Usage: "Print the access token instead of caching it"},
				},
				Action: authLogin,
			},
			{
				Name:  "logout",
				Usage: "Revoke and forget cached tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User to log out (default: current user)"},
					&cli.BoolFlag{Name: "all", Usage: "Forget every cached user"},
				},
				Action: authLogout,
			},
			{
				Name:   "whoami",
				Usage:  "Show the profile of the current user",
				Action: authWhoami,
			},
			{
				Name:      "switch",
				Usage:     "Make another cached user current",
				ArgsUsage: "EMAIL",
				Action:    authSwitch,
			},
			{
				Name:   "list",
				Usage:  "List cached users",
				Action: authList,
			},
			{
				Name:   "status",
				Usage:  "Show the active session",
				Action: authStatus,
			},
			{
				Name:  "token",
				Usage: "Print the current access token",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-refresh", Usage: "Fail instead of refreshing an expired token"},
				},
				Action: authToken,
			},
			{
				Name:   "watch",
				Usage:  "Print the active user and tenant whenever the session changes",
				Action: authWatch,
			},
		},
	}
}

func authRegister(c *cli.Context) error {
	env := GetEnv(c)

	email, err := flagOrPrompt(c, env, "email", "Email")
	if err != nil {
		return env.fail("register", err)
	}
	username, err := flagOrPrompt(c, env, "username", "Username")
	if err != nil {
		return env.fail("register", err)
	}

	password := c.String("password")
	if password == "" {
		if password, err = env.PromptSecret("Password"); err != nil {
			return env.fail("register", err)
		}
		confirm, err := env.PromptSecret("Confirm password")
		if err != nil {
			return env.fail("register", err)
		}
		if password != confirm {
			return cli.Exit("error: passwords do not match", 1)
		}
	}

	req := connection.RegisterRequest{Email: email, Password: password, Username: username}
	if c.IsSet("tenant-id") {
		tenantID := c.Int64("tenant-id")
		req.TenantID = &tenantID
	}

	var profile *connection.UserProfile
	err = env.Spin("Registering", func() error {
		profile, err = env.Auth.Register(c.Context, req)
		return err
	})
	if err != nil {
		return env.fail("registration failed", err)
	}

	if env.Structured() {
		return env.Print(profile)
	}
	env.printf("✓ User registered: %s\n", profile.Email)
	env.printf("  User ID: %d\n", profile.ID)
	if profile.TenantID != nil {
		env.printf("  Tenant ID: %d\n", *profile.TenantID)
	}
	env.printf("\nYou can now login with: %s\n", loginHint)
	return nil
}

func authLogin(c *cli.Context) error {
	env := GetEnv(c)

	email := c.String("email")
	if email == "" {
		email = env.Config.Login.Email
	}
	if email == "" {
		var err error
		if email, err = env.Prompt("Email"); err != nil {
			return env.fail("login", err)
		}
	}
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = env.PromptSecret("Password"); err != nil {
			return env.fail("login", err)
		}
	}

	var tok *oauth2.Token
	err := env.Spin("Logging in", func() error {
		var err error
		tok, err = env.Auth.Login(c.Context, email, password)
		return err
	})
	if err != nil {
		return env.fail("login failed", err)
	}

	if c.Bool("no-save") {
		env.printf("%s\n", tok.AccessToken)
		return nil
	}

	if err := env.Cache.SaveToken(email, tok); err != nil {
		return env.fail("save session", err)
	}
	logger.L(c.Context).Debug("session saved", "user", email, "path", env.Store.Path())

	env.printf("✓ Logged in as %s\n", email)
	if tok.ExpiresIn > 0 {
		env.printf("  Token expires in %d minutes\n", tok.ExpiresIn/60)
	}
	if tenantID, ok := token.TenantID(tok.AccessToken); ok {
		env.printf("  Tenant ID: %d\n", tenantID)
	}
	return nil
}

func authLogout(c *cli.Context) error {
	env := GetEnv(c)

	current, err := env.Cache.ActiveUser()
	if err != nil {
		return env.fail("logout", err)
	}

	if c.Bool("all") {
		revoke(c.Context, env)
		if err := env.Cache.LogoutAll(); err != nil {
			return env.fail("logout", err)
		}
		env.printf("✓ Logged out all users\n")
		return nil
	}

	target := c.String("email")
	if target == "" {
		target = current
	}
	if target == "" {
		fmt.Fprintln(env.ErrOut, "Not logged in")
		return nil
	}

	if target == current {
		revoke(c.Context, env)
	}
	if err := env.Cache.Logout(target); err != nil {
		return env.fail("logout", err)
	}
	env.printf("✓ Logged out %s\n", target)
	return nil
}

// revoke asks the auth service to revoke the current refresh token.
// Local logout proceeds whatever the outcome.
func revoke(ctx context.Context, env *Env) {
	rt, err := env.Cache.RefreshToken()
	if err != nil || rt == "" {
		return
	}
	if err := env.Auth.Logout(ctx, rt); err != nil {
		logger.L(ctx).Debug("remote logout failed", "error", err)
	}
}

func authWhoami(c *cli.Context) error {
	env := GetEnv(c)

	user, err := env.Cache.ActiveUser()
	if err != nil {
		return env.fail("whoami", err)
	}
	if user == "" {
		env.printf("Not logged in\n\nLogin with: %s\n", loginHint)
		return nil
	}

	profile, err := env.BearerAuth(c.Context).Profile(c.Context)
	if err != nil {
		return env.fail("whoami", err)
	}

	if env.Structured() {
		return env.Print(profile)
	}
	env.printf("Current user: %s\n", profile.Email)
	env.printf("  User ID: %d\n", profile.ID)
	if profile.Username != "" {
		env.printf("  Username: %s\n", profile.Username)
	}
	if profile.TenantID != nil {
		env.printf("  Tenant ID: %d\n", *profile.TenantID)
	}
	env.printf("  Active: %t\n", profile.IsActive)
	env.printf("  TOTP Enabled: %t\n", profile.IsTOTPEnabled)
	if !profile.CreatedAt.IsZero() {
		env.printf("  Created: %s\n", profile.CreatedAt.Local().Format(time.RFC3339))
	}
	return nil
}

func authSwitch(c *cli.Context) error {
	env := GetEnv(c)

	if c.NArg() != 1 {
		return cli.Exit("error: usage: finance-cli auth switch EMAIL", 1)
	}
	email := c.Args().First()

	err := env.Cache.SwitchUser(email)
	if errors.Is(err, domain.ErrUserNotFound) {
		msg := fmt.Sprintf("error: user %s is not logged in", email)
		if users, _ := env.Cache.ListUsers(); len(users) > 0 {
			msg += "\n\nAvailable users:"
			for _, u := range users {
				msg += "\n  " + u
			}
		}
		return cli.Exit(msg, 1)
	}
	if err != nil {
		return env.fail("switch", err)
	}

	env.printf("✓ Switched to %s\n", email)
	return nil
}

type userRow struct {
	Email   string `json:"email" yaml:"email"`
	Current bool   `json:"current" yaml:"current"`
}

func authList(c *cli.Context) error {
	env := GetEnv(c)

	users, err := env.Cache.ListUsers()
	if err != nil {
		return env.fail("list", err)
	}
	current, err := env.Cache.ActiveUser()
	if err != nil {
		return env.fail("list", err)
	}

	if len(users) == 0 && !env.Structured() {
		env.printf("No authenticated users\n\nLogin with: %s\n", loginHint)
		return nil
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{Email: u, Current: u == current})
	}
	return env.Print(rows)
}

func authStatus(c *cli.Context) error {
	env := GetEnv(c)

	status, err := env.Cache.Status()
	if err != nil {
		return env.fail("status", err)
	}
	return env.Print(status)
}

func authToken(c *cli.Context) error {
	env := GetEnv(c)

	access, err := env.Cache.AccessToken(c.Context, !c.Bool("no-refresh"))
	if err != nil {
		return env.fail("token", err)
	}
	if access == "" {
		return env.fail("token", domain.ErrNotLoggedIn)
	}
	env.printf("%s\n", access)
	return nil
}

func authWatch(c *cli.Context) error {
	env := GetEnv(c)
	path := env.Store.Path()

	if err := os.MkdirAll(filepath.Dir(path), storage.DirMode); err != nil {
		return env.fail("watch", err)
	}

	w, err := filewatch.New(filewatch.WithLogger(logger.L(c.Context)))
	if err != nil {
		return env.fail("watch", err)
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return env.fail("watch", err)
	}

	ctx, cancel := shutdown.WithSignals(c.Context)
	defer cancel()

	var last string
	report := func() {
		line := describeSession(env)
		if line == last {
			return
		}
		last = line
		env.printf("%s  %s\n", time.Now().Format(time.TimeOnly), line)
	}

	report()
	w.OnChange(func(string) { report() })
	w.StartAsync(ctx)

	h := shutdown.NewHandler(2 * time.Second)
	h.OnShutdown(func(context.Context) error { return w.Stop() })
	return h.Wait(ctx)
}

func describeSession(env *Env) string {
	status, err := env.Cache.Status()
	if err != nil {
		return "error: " + err.Error()
	}
	if status.User == "" {
		return "not logged in"
	}

	tenant := "-"
	if status.TenantID != nil {
		tenant = fmt.Sprint(*status.TenantID)
	}
	state := "active"
	switch {
	case !status.HasCredential:
		state = "login required"
	case status.Expired:
		state = "expired"
	}
	return fmt.Sprintf("user=%s tenant=%s (%s)", status.User, tenant, state)
}

// flagOrPrompt returns the flag value, prompting for it when unset.
func flagOrPrompt(c *cli.Context, env *Env, flag, label string) (string, error) {
	if v := c.String(flag); v != "" {
		return v, nil
	}
	return env.Prompt(label)
}
