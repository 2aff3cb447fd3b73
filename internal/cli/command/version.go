package command

import (
	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"

	"github.com/jtuchinsky/finance-planner-cli/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "banner", Usage: "Print an ASCII-art banner first"},
		},
		Action: showVersion,
	}
}

func showVersion(c *cli.Context) error {
	env := GetEnv(c)
	info := buildinfo.Get()

	if env.Structured() {
		return env.Print(info)
	}

	if c.Bool("banner") {
		env.printf("%s\n", figure.NewFigure("finance-cli", "", true).String())
	}
	env.printf("finance-cli %s\n", buildinfo.String())
	env.printf("  go: %s\n", info.GoVersion)
	return nil
}
