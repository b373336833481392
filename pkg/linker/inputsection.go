package linker

// InputSection is one section from an ObjectFile (sections without
// SHF_ALLOC are kept too, with IsAlive false): the raw
// content and the relocations that target it, scanned but never
// applied — relocation application is an output-writer concern this
// core hands off rather than performs (spec.md §1 non-goals).
type InputSection struct {
	File    *ObjectFile
	Shndx   int64
	Name    string
	ShSize  uint64
	P2Align uint8

	IsAlive bool

	RelsecIdx int64
	Rels      []Rel

	// addr is left at zero: assigning it is the output writer's job, not
	// this core's. A caller that owns layout sets it with SetAddr;
	// GetAddr reads back whatever was set.
	addr uint64
}

// NewInputSection builds an InputSection view over shdr, grounded on the
// teacher's NewInputSection minus the OutputSection classification step
// (output-section placement is out of scope here).
func NewInputSection(f *ObjectFile, shndx int64, shdr *Shdr, name string) *InputSection {
	return &InputSection{
		File:    f,
		Shndx:   shndx,
		Name:    name,
		ShSize:  shdr.Size,
		P2Align: p2AlignFromShdr(shdr),
		IsAlive: true,

		RelsecIdx: -1,
	}
}

func p2AlignFromShdr(shdr *Shdr) uint8 {
	align := shdr.AddrAlign
	if align == 0 {
		return 0
	}
	n := uint8(0)
	for align > 1 {
		align >>= 1
		n++
	}
	return n
}

// Shdr returns the backing Shdr for this section.
func (s *InputSection) Shdr() *Shdr {
	return &s.File.ElfSections[s.Shndx]
}

// Contents returns the section's raw bytes.
func (s *InputSection) Contents() ([]byte, error) {
	return s.File.GetBytesFromIdx(s.Shndx)
}

// GetRels decodes this section's relocations on first use and caches
// them, dispatching to CREL or classic SHT_RELA/SHT_REL decoding based
// on the linked relocation section's sh_type (spec.md §4.3.1).
func (s *InputSection) GetRels(target Target) ([]Rel, error) {
	if s.Rels != nil || s.RelsecIdx < 0 {
		return s.Rels, nil
	}
	relShdr := &s.File.ElfSections[s.RelsecIdx]
	rels, err := decodeRelocations(s.File.View, relShdr, target)
	if err != nil {
		return nil, err
	}
	s.Rels = rels
	return rels, nil
}

// SetAddr records the section's assigned address; set by a caller that
// owns layout (this core never assigns one itself).
func (s *InputSection) SetAddr(addr uint64) { s.addr = addr }

// GetAddr returns whatever address was last set by SetAddr (zero if
// never set).
func (s *InputSection) GetAddr() uint64 { return s.addr }
