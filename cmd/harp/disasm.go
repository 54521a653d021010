package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/wudi/harp/compiler"
)

var disasmCommand = &cli.Command{
	Name:  "disasm",
	Usage: "compile a built-in scenario and print its disassembly",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "scenario", Aliases: []string{"s"}, Usage: "scenario to disassemble (default: all)"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		only := cmd.String("scenario")
		for _, sc := range demoScenarios() {
			if only != "" && only != sc.name {
				continue
			}
			if sc.setup != nil {
				sc.setup()
			}
			chunk, err := compiler.CompileProgram(sc.build(), "demo/"+sc.name)
			if err != nil {
				fmt.Printf("; %s: compile error: %v\n", sc.name, err)
				continue
			}
			fmt.Print(chunk.Disassemble())
		}
		return nil
	},
}
