// Command harp is the CLI front end for the compiler+VM core: it has
// no lexer or parser of its own (spec.md §1's explicit exclusion), so
// every subcommand operates on the built-in AST scenarios in demo.go
// rather than on source files — the same role cmd/hey/main.go plays
// for the teacher, minus the part this core deliberately doesn't own.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if _, err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "harp.yaml: %v\n", err)
		os.Exit(1)
	}

	app := &cli.Command{
		Name:  "harp",
		Usage: "a Perl-flavored register-machine bytecode compiler and interpreter",
		Commands: []*cli.Command{
			demoCommand,
			disasmCommand,
			stepCommand,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
