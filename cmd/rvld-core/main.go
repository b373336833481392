// Command rvld-core drives the ingestion and symbol-resolution core
// over a set of ELF input files and reports what it resolved. It does
// not emit a linked output file — address assignment, relocation
// application, and file layout are handled by a separate writer this
// core hands its Result to (spec.md §1's explicit non-goals).
package main

import (
	"fmt"
	"os"

	"github.com/rvld-core/rvld-core/pkg/diag"
	"github.com/rvld-core/rvld-core/pkg/linker"
)

func main() {
	sink := diag.NewConsole()
	cfg := linker.NewConfig()

	remaining := linker.ParseArgs(cfg, os.Args[1:])
	if len(remaining) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [options] file...\n", os.Args[0])
		os.Exit(1)
	}

	if cfg.Emulation == linker.MachineTypeNone {
		cfg.Emulation = detectEmulation(remaining)
	}

	ctx := linker.NewContext(cfg, sink)

	if err := linker.ReadInputFiles(ctx, remaining); err != nil {
		sink.Fatal("rvld-core", "%v", err)
	}

	result, err := linker.Run(ctx)
	if err != nil {
		sink.Fatal("rvld-core", "%v", err)
	}

	sink.Out("resolved %d symbols across %d object files, %d shared files",
		ctx.Symbols.Len(), len(ctx.Objs), len(ctx.Shared))
	sink.Out("symtab: %d surviving entries, %d CIEs, %d FDEs",
		len(result.Symtab), len(result.Cies), len(result.Fdes))

	if sink.ErrorCount() > 0 {
		os.Exit(1)
	}
}

// detectEmulation probes the first recognizable input file's e_machine
// field, mirroring the teacher's own "no -m given, sniff the first
// object" fallback in rvld.go's main.
func detectEmulation(remaining []string) linker.MachineType {
	for _, name := range remaining {
		if len(name) > 0 && name[0] == '-' {
			continue
		}
		f := linker.MustNewFile(name)
		if m := linker.SniffMachineType(f.Contents); m != linker.MachineTypeNone {
			return m
		}
	}
	return linker.MachineTypeNone
}
