// Command rvld-inspect is an interactive REPL over a resolved link: it
// runs the ingestion/resolution core over the given input files, then
// lets the user explore what was decided — which file won a given
// symbol, why, and which files liveness tracing pulled in — without
// re-running the whole pipeline for every question (spec.md §6's
// external-interfaces section carves this out as the core's own
// debugging surface, the same role teacher's own small CLI plays for
// its single-shot link).
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/manifoldco/promptui"

	"github.com/rvld-core/rvld-core/pkg/diag"
	"github.com/rvld-core/rvld-core/pkg/linker"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s file...\n", os.Args[0])
		os.Exit(1)
	}

	sink := diag.NewConsole()
	cfg := linker.NewConfig()
	cfg.Emulation = linker.MachineTypeRISCV64

	ctx := linker.NewContext(cfg, sink)
	if err := linker.ReadInputFiles(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	result, err := linker.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	diag.HLine(fmt.Sprintf("rvld-inspect: %d objects, %d shared, %d symbols",
		len(ctx.Objs), len(ctx.Shared), ctx.Symbols.Len()))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rvld> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	repl(rl, ctx, result)
}

func repl(rl *readline.Instance, ctx *linker.Context, result *linker.Result) {
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			fmt.Println("commands: symbol <name>, objects, fdes, menu, quit")
		case "quit", "exit":
			return
		case "objects":
			for _, obj := range ctx.Objs {
				fmt.Printf("%-40s priority=%d reachable=%v\n", obj.File.Name, obj.Priority, obj.IsReachable())
			}
		case "fdes":
			fmt.Printf("%d CIEs, %d FDEs\n", len(result.Cies), len(result.Fdes))
		case "symbol":
			if len(fields) < 2 {
				fmt.Println("usage: symbol <name>")
				continue
			}
			inspectSymbol(ctx, fields[1])
		case "menu":
			runMenu(ctx)
		default:
			fmt.Println("unknown command; type 'help'")
		}
	}
}

func inspectSymbol(ctx *linker.Context, name string) {
	sym, ok := ctx.Symbols.Get(name)
	if !ok {
		fmt.Printf("%s: not interned (never referenced or defined)\n", name)
		return
	}
	if sym.File == nil {
		fmt.Printf("%s: undefined\n", name)
		return
	}
	fmt.Printf("%s: bound to %s, value=0x%x, weak=%v, visibility=%v\n",
		name, sym.File.FileName(), sym.GetAddr(), sym.IsWeak, sym.Visibility)
}

// runMenu offers a promptui select over the currently loaded objects,
// printing a detail view for whichever one the user picks.
func runMenu(ctx *linker.Context) {
	if len(ctx.Objs) == 0 {
		fmt.Println("no object files loaded")
		return
	}
	names := make([]string, len(ctx.Objs))
	for i, obj := range ctx.Objs {
		names[i] = obj.File.Name
	}

	prompt := promptui.Select{Label: "Select object file", Items: names}
	idx, _, err := prompt.Run()
	if err != nil {
		fmt.Println("cancelled:", err)
		return
	}

	obj := ctx.Objs[idx]
	fmt.Printf("%s: %d sections, %d symbols, reachable=%v\n",
		obj.File.Name, len(obj.Sections), len(obj.Symbols), obj.IsReachable())
}
