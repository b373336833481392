package linker

// SectionFragment is one deduplicated piece of a mergeable section
// (spec.md §3 SectionFragment, §4.7). Offset is this fragment's offset
// within the shared MergedSectionAccumulator's backing store; address
// assignment of that store is an output-writer concern, so GetAddr
// returns whatever the caller has set via the accumulator.
type SectionFragment struct {
	Parent  *MergedSectionAccumulator
	Offset  uint64
	P2Align uint8
	IsAlive bool
}

// NewSectionFragment returns a fragment owned by parent, alive by
// default; no pass in this core marks a fragment dead.
func NewSectionFragment(parent *MergedSectionAccumulator) *SectionFragment {
	return &SectionFragment{Parent: parent, IsAlive: true}
}

// GetAddr returns the fragment's address, which is its parent
// accumulator's base address (set by a downstream layout pass) plus its
// own offset within it.
func (f *SectionFragment) GetAddr() uint64 {
	return f.Parent.baseAddr + f.Offset
}
