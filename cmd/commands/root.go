// Package commands wires the CLI surface: the run command executes the
// project's task graph, history lists past runs.
package commands

import (
	"github.com/urfave/cli/v3"
)

// NewRootCommand returns the top-level buildrunner command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "buildrunner",
		Usage: "Run a project's build tasks in dependency order",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Project config path",
				Value: ".buildrunner/buildrunner.json",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewHistoryCommand(),
		},
		DefaultCommand: "run",
	}
}
