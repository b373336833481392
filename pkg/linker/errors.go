package linker

import "errors"

// Sentinel errors per spec.md §7's three structural error categories.
// Wrap with fmt.Errorf("%w: ...", ...) at the call site so callers can
// still errors.Is against the category while getting a specific message.
var (
	// ErrUnsupportedFormat is returned for well-formed input the core
	// deliberately does not handle: an archive input, an ELF type other
	// than ET_REL/ET_DYN, a relocation section of unknown sh_type, CREL
	// relocations carrying addends on a target without RELA.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrPolicyViolation is returned when an input is structurally valid
	// ELF but violates a linking-level rule this core enforces: a
	// non-weak undefined symbol still unbound after tracing
	// (LiveTracer.ReportUnresolved).
	ErrPolicyViolation = errors.New("policy violation")
)

// ErrMalformedELF is declared in elf.go alongside the struct layouts it
// guards.
