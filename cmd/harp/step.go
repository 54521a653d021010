package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"
	"github.com/wudi/harp/codeobj"
	"github.com/wudi/harp/compiler"
	"github.com/wudi/harp/runtime"
	"github.com/wudi/harp/values"
	"github.com/wudi/harp/vm"
)

// errStepQuit unwinds Apply immediately when the operator quits the
// stepper mid-run; it is never decorated or eval-caught (vm.run
// returns a Tracer error straight through), so the only place it is
// ever seen again is the errors.Is check below.
var errStepQuit = errors.New("step: user quit")

var stepCommand = &cli.Command{
	Name:  "step",
	Usage: "interactively single-step a compiled scenario's bytecode",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "scenario", Aliases: []string{"s"}, Usage: "scenario to step through", Value: "arithmetic"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		name := cmd.String("scenario")
		var target *scenario
		for _, sc := range demoScenarios() {
			if sc.name == name {
				s := sc
				target = &s
				break
			}
		}
		if target == nil {
			return fmt.Errorf("unknown scenario %q", name)
		}
		if err := runtime.Bootstrap(); err != nil {
			return err
		}
		if target.setup != nil {
			target.setup()
		}
		chunk, err := compiler.CompileProgram(target.build(), "demo/"+target.name)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}

		rl, err := readline.New("harp-step> ")
		if err != nil {
			return err
		}
		defer rl.Close()

		fmt.Printf("stepping %q (%d instructions); [n]ext, [c]ontinue, [r]egisters, [q]uit\n", target.name, len(chunk.Instructions))

		running := false // set once the operator chooses "continue"
		interp := vm.New(runtime.Globals)
		interp.Tracer = func(ev vm.StepEvent) error {
			fmt.Printf("%5d  %s\n", ev.PC, ev.Instruction.String())
			if running {
				return nil
			}
			for {
				line, rerr := rl.Readline()
				if rerr != nil {
					return errStepQuit
				}
				switch strings.TrimSpace(line) {
				case "", "n":
					return nil
				case "c":
					running = true
					return nil
				case "r":
					dumpRegisters(ev.Registers)
				case "q":
					return errStepQuit
				default:
					fmt.Println("commands: [n]ext, [c]ontinue, [r]egisters, [q]uit")
				}
			}
		}

		results, err := interp.Apply(chunk, nil, nil, codeobj.CtxScalar)
		if err != nil {
			if errors.Is(err, errStepQuit) {
				fmt.Println("stopped by user")
				return nil
			}
			return fmt.Errorf("run: %w", err)
		}
		fmt.Printf("result: %s\n", firstResultString(results))
		return nil
	},
}

func dumpRegisters(regs []*values.Value) {
	for i, v := range regs {
		if v == nil {
			continue
		}
		fmt.Printf("  r%-3d = %s\n", i, v.ToString())
	}
}

func firstResultString(vs []*values.Value) string {
	if len(vs) == 0 {
		return "<void>"
	}
	return vs[0].ToString()
}
