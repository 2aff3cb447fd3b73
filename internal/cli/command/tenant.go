package command

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/jtuchinsky/finance-planner-cli/internal/core/domain"
)

// TenantCommand returns the tenant subcommand group.
func TenantCommand() *cli.Command {
	return &cli.Command{
		Name:    "tenant",
		Aliases: []string{"tenants"},
		Usage:   "Select the tenant the next login targets",
		Subcommands: []*cli.Command{
			{
				Name:   "current",
				Usage:  "Show the active tenant",
				Action: tenantCurrent,
			},
			{
				Name:      "switch",
				Usage:     "Switch to another tenant (requires a new login)",
				ArgsUsage: "TENANT_ID",
				Action:    tenantSwitch,
			},
		},
	}
}

type tenantView struct {
	User     string `json:"user" yaml:"user"`
	TenantID *int64 `json:"tenant_id" yaml:"tenant_id"`
}

func tenantCurrent(c *cli.Context) error {
	env := GetEnv(c)

	user, err := env.Cache.ActiveUser()
	if err != nil {
		return env.fail("tenant", err)
	}
	if user == "" {
		return env.fail("tenant", domain.ErrNoActiveUser)
	}

	tenantID, ok, err := env.Cache.ActiveTenantID()
	if err != nil {
		return env.fail("tenant", err)
	}

	view := tenantView{User: user}
	if ok {
		view.TenantID = &tenantID
	}
	if env.Structured() {
		return env.Print(view)
	}

	if !ok {
		env.printf("No tenant selected for %s\n", user)
		return nil
	}
	env.printf("Tenant ID: %d\n", tenantID)
	return nil
}

func tenantSwitch(c *cli.Context) error {
	env := GetEnv(c)

	if c.NArg() != 1 {
		return cli.Exit("error: usage: finance-cli tenant switch TENANT_ID", 1)
	}
	tenantID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("error: TENANT_ID must be an integer", 1)
	}

	user, err := env.Cache.ActiveUser()
	if err != nil {
		return env.fail("tenant switch", err)
	}
	if err := env.Cache.SwitchTenant(tenantID); err != nil {
		return env.fail("tenant switch", err)
	}

	env.printf("✓ Switched to tenant %d\n", tenantID)
	env.printf("\nLog in again to obtain a token for this tenant:\n  %s --email %s\n", loginHint, user)
	return nil
}
