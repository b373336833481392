package linker

import (
	"strings"

	"github.com/rvld-core/rvld-core/pkg/utils"
)

// Config carries every option in spec.md §6's configuration table. It is
// populated once by ParseArgs (or directly by an embedding caller) and
// is read-only for the rest of a link.
type Config struct {
	Emulation    MachineType
	LibraryPaths []string

	Demangle bool

	Relocatable bool

	StripAll   bool
	StripDebug bool

	DiscardSection []string

	DiscardAll    bool
	DiscardLocals bool

	RetainSymbolsFile string
	retainSymbols     map[string]struct{}

	// Wrap lists the --wrap=symbol names the ObjectParser rewrites
	// references for: undefined refs to `symbol` are redirected to
	// `__wrap_symbol`, and refs to `__real_symbol` are redirected back to
	// `symbol` (spec.md §4.3 "Symbol materialization").
	Wrap []string

	ZExecstack         bool
	ZExecstackIfNeeded bool

	AllowShlibUndefined bool
	WarnCommon          bool

	OformatBinary bool

	GdbIndex bool

	DefaultVersion string

	// IsLocal overrides the default local-symbol demotion predicate
	// (DESIGN.md open question #3). Nil means UseDefaultIsLocal.
	IsLocal func(sym *Symbol) bool
}

// NewConfig returns a Config with every option off and Emulation set to
// MachineTypeNone (no emulation chosen yet).
func NewConfig() *Config {
	return &Config{
		Emulation: MachineTypeNone,
	}
}

// ShouldDiscardSection reports whether sectionName matches one of the
// --discard-section patterns (an exact name, not a glob — spec.md §6
// documents this table as a list of literal section names).
func (c *Config) ShouldDiscardSection(sectionName string) bool {
	for _, s := range c.DiscardSection {
		if s == sectionName {
			return true
		}
	}
	return false
}

// RetainSymbols lazily loads RetainSymbolsFile (one symbol name per
// line, blank lines and "#"-comments ignored) and reports whether name
// is listed.
func (c *Config) RetainSymbols(name string) bool {
	if c.RetainSymbolsFile == "" {
		return false
	}
	if c.retainSymbols == nil {
		c.retainSymbols = make(map[string]struct{})
		data, err := utils.ReadFileOrEmpty(c.RetainSymbolsFile)
		if err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				c.retainSymbols[line] = struct{}{}
			}
		}
	}
	_, ok := c.retainSymbols[name]
	return ok
}

// defaultIsLocal implements DESIGN.md open question #3's default
// demotion predicate: a symbol is forced local if --discard-all is set,
// or if --discard-locals is set and the name looks compiler-generated
// (an .L-prefixed temporary), unless --retain-symbols-file lists it by
// name.
func (c *Config) defaultIsLocal(sym *Symbol) bool {
	if c.RetainSymbols(sym.Name) {
		return false
	}
	if c.DiscardAll {
		return true
	}
	if c.DiscardLocals && strings.HasPrefix(sym.Name, ".L") {
		return true
	}
	return false
}

// ResolveIsLocal returns the configured IsLocal hook, or the default
// predicate if none was set.
func (c *Config) ResolveIsLocal() func(*Symbol) bool {
	if c.IsLocal != nil {
		return c.IsLocal
	}
	return c.defaultIsLocal
}

// ParseArgs walks a driver's argv the way the teacher's rvld.go
// parseArgs does: repeated dashes()/readArg()/readFlag() closures over a
// cursor into args, generalized from rvld's fixed RISC-V-only option set
// to spec.md §6's full table. Returns the remaining non-option operands
// (input files and -lNAME library references).
func ParseArgs(cfg *Config, args []string) (remaining []string) {
	i := 0

	dashes := func(s string) (string, bool) {
		if rest, ok := utils.RemovePrefix(s, "--"); ok {
			return rest, true
		}
		if rest, ok := utils.RemovePrefix(s, "-"); ok {
			return rest, true
		}
		return s, false
	}

	readArg := func(name string) (string, bool) {
		if i >= len(args) {
			return "", false
		}
		arg, hasDash := dashes(args[i])
		if !hasDash {
			return "", false
		}
		if arg == name {
			if i+1 >= len(args) {
				utils.Fatal("missing argument for -" + name)
			}
			val := args[i+1]
			i += 2
			return val, true
		}
		if rest, ok := utils.RemovePrefix(arg, name+"="); ok {
			i++
			return rest, true
		}
		return "", false
	}

	readFlag := func(name string) bool {
		if i >= len(args) {
			return false
		}
		arg, hasDash := dashes(args[i])
		if hasDash && arg == name {
			i++
			return true
		}
		return false
	}

	for i < len(args) {
		switch {
		case readFlag("r") || readFlag("relocatable"):
			cfg.Relocatable = true
		case readFlag("s") || readFlag("strip-all"):
			cfg.StripAll = true
		case readFlag("strip-debug"):
			cfg.StripDebug = true
		case readFlag("x") || readFlag("discard-all"):
			cfg.DiscardAll = true
		case readFlag("X") || readFlag("discard-locals"):
			cfg.DiscardLocals = true
		case readFlag("demangle"):
			cfg.Demangle = true
		case readFlag("no-demangle"):
			cfg.Demangle = false
		case readFlag("warn-common"):
			cfg.WarnCommon = true
		case readFlag("allow-shlib-undefined"):
			cfg.AllowShlibUndefined = true
		case readFlag("z-execstack"):
			cfg.ZExecstack = true
		case readFlag("gdb-index"):
			cfg.GdbIndex = true
		case readFlag("oformat-binary"):
			cfg.OformatBinary = true
		default:
			if val, ok := readArg("L"); ok {
				cfg.LibraryPaths = append(cfg.LibraryPaths, val)
				continue
			}
			if val, ok := readArg("discard-section"); ok {
				cfg.DiscardSection = append(cfg.DiscardSection, val)
				continue
			}
			if val, ok := readArg("retain-symbols-file"); ok {
				cfg.RetainSymbolsFile = val
				continue
			}
			if val, ok := readArg("wrap"); ok {
				cfg.Wrap = append(cfg.Wrap, val)
				continue
			}
			if val, ok := readArg("default-version"); ok {
				cfg.DefaultVersion = val
				continue
			}
			remaining = append(remaining, args[i])
			i++
		}
	}

	return remaining
}
