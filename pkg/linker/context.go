package linker

import (
	"sync"

	"github.com/rvld-core/rvld-core/pkg/diag"
)

// Context is the process-wide state a link shares across every input
// file: the interned global symbol table, the COMDAT leader table, the
// list of object and shared files, and the collaborators every
// component reports through (spec.md §9 "process-wide interners").
type Context struct {
	Config *Config
	Diag   diag.Sink

	Target Target

	Symbols *SymbolInterner
	Comdats *ComdatInterner

	Objs   []*ObjectFile
	Shared []*SharedFile

	// MergedSections indexes merge candidates by (name, flags, entsize)
	// so ObjectParser can route every input MergeableSection to a single
	// shared accumulator (spec.md §4.7).
	MergedSections map[mergedSectionKey]*MergedSectionAccumulator
	mergedMu       sync.Mutex

	TraceSymbols map[string]bool
}

// NewContext builds an empty Context ready to receive input files.
func NewContext(cfg *Config, sink diag.Sink) *Context {
	return &Context{
		Config:         cfg,
		Diag:           sink,
		Target:         targetForMachine(cfg.Emulation),
		Symbols:        NewSymbolInterner(),
		Comdats:        NewComdatInterner(),
		MergedSections: make(map[mergedSectionKey]*MergedSectionAccumulator),
	}
}

// ReadInputFiles walks the operand list the way the teacher's
// ReadInputFiles does, with one deliberate narrowing: archive (.a)
// demultiplexing is out of scope for this core (spec.md §1), so a
// "-lNAME" operand or a path resolving to an ar archive is rejected with
// ErrUnsupportedFormat rather than extracted. A driver that wants
// archive support demuxes it upstream and calls ReadFile per member.
func ReadInputFiles(ctx *Context, remaining []string) error {
	for _, arg := range remaining {
		if name, ok := removeDashL(arg); ok {
			f, ok := FindLibrary(ctx.Config.LibraryPaths, name)
			if !ok {
				return &inputError{name: arg, msg: "library not found"}
			}
			if err := ReadFile(ctx, f); err != nil {
				return err
			}
			continue
		}
		if err := ReadFile(ctx, MustNewFile(arg)); err != nil {
			return err
		}
	}
	return nil
}

func removeDashL(arg string) (string, bool) {
	if len(arg) > 2 && arg[0] == '-' && arg[1] == 'l' {
		return arg[2:], true
	}
	return "", false
}

const arMagic = "!<arch>\n"

type inputError struct {
	name string
	msg  string
}

func (e *inputError) Error() string { return e.name + ": " + e.msg }
