package linker

import "sync"

// Visibility mirrors the three ELF symbol visibilities this core acts
// on (STV_DEFAULT/STV_HIDDEN/STV_PROTECTED; STV_INTERNAL is canonicalized
// to STV_HIDDEN on ingestion, spec.md §4.3 "Symbol materialization").
type Visibility uint8

const (
	VisibilityDefault Visibility = iota
	VisibilityHidden
	VisibilityProtected
)

// Symbol is the single shared record a name resolves to process-wide
// (spec.md §3). Exactly one of InputSection or SectionFragment is set
// once the symbol is bound to a defining file; both are nil for an
// unresolved or absolute symbol. Every mutating operation takes mu, per
// spec.md §9 "per-symbol locking" rather than one global table lock.
type Symbol struct {
	mu sync.Mutex

	Name string

	File            InputFileRef
	InputSection    *InputSection
	SectionFragment *SectionFragment

	Value  uint64
	SymIdx int64
	VerIdx uint16

	Visibility Visibility

	IsWeak             bool
	IsImported         bool
	IsExported         bool
	IsVersionedDefault bool
	IsWrapped          bool
	IsTraced           bool
	SkipDSO            bool
	Demangle           bool

	// GotIdx/GotTpIdx are out of scope here (no GOT/TLS layout in this
	// core) but the fields stay to mirror the teacher's Symbol shape for
	// callers that want to annotate them downstream.
	GotIdx   int32
	GotTpIdx int32

	// origin is a back-reference to another *Symbol. No pass in this
	// core sets it; Clear resets it to nil.
	origin *Symbol
}

// InputFileRef is the narrow interface the Symbol and Resolver need from
// an input file, satisfied by both *ObjectFile and *SharedFile.
type InputFileRef interface {
	FilePriority() int
	MarkReachable() bool
	IsReachable() bool
	FileName() string
}

// NewSymbol returns a fresh, unbound Symbol for name.
func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, SymIdx: -1}
}

// Clear resets a Symbol back to its unbound state, used when a symbol's
// sole definition becomes unreachable (spec.md §3's symbol lifecycle).
func (s *Symbol) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.File = nil
	s.InputSection = nil
	s.SectionFragment = nil
	s.Value = 0
	s.SymIdx = -1
	s.IsWeak = false
	s.origin = nil
}

// SetInputSection binds the symbol to sec, clearing any prior fragment
// binding — the two are mutually exclusive per spec.md §3 invariant 4.
func (s *Symbol) SetInputSection(sec *InputSection) {
	s.InputSection = sec
	s.SectionFragment = nil
}

// SetSectionFragment binds the symbol to frag, clearing any prior
// section binding.
func (s *Symbol) SetSectionFragment(frag *SectionFragment) {
	s.SectionFragment = frag
	s.InputSection = nil
}

// GetAddr resolves the symbol's final value, preferring a live fragment
// binding over a live input-section binding over the raw Value (for
// absolute/common symbols). Returns 0 for a symbol bound to dead input.
func (s *Symbol) GetAddr() uint64 {
	if s.SectionFragment != nil {
		if !s.SectionFragment.IsAlive {
			return 0
		}
		return s.SectionFragment.GetAddr() + s.Value
	}
	if s.InputSection != nil {
		if !s.InputSection.IsAlive {
			return 0
		}
		return s.InputSection.GetAddr() + s.Value
	}
	return s.Value
}

// GetRank computes the resolver's (class<<24)|priority lattice value for
// this symbol's current binding (spec.md §4.5). isLazy is true when the
// candidate comes from a not-yet-reachable archive member — such
// candidates rank below an equivalent already-live one (strong 1 -> 3,
// weak 2 -> 4, common 5 -> 6).
func GetRank(file InputFileRef, isUndef, isWeak, isCommon bool, isLazy bool) uint32 {
	class := rankClass(isUndef, isWeak, isCommon, isLazy)
	return (uint32(class) << 24) | uint32(file.FilePriority())
}

func rankClass(isUndef, isWeak, isCommon, isLazy bool) int {
	switch {
	case isUndef:
		// undefined (weak or not): weakest of all, below every defined class.
		return 7
	case isLazy && isCommon:
		return 6
	case isCommon:
		return 5
	case isLazy && isWeak:
		return 4
	case isLazy && !isWeak && !isUndef:
		return 3
	case isWeak:
		return 2
	case !isUndef:
		return 1
	default:
		// undefined, non-lazy: weakest of all, below every defined class.
		return 7
	}
}
