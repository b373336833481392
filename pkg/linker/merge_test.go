package linker

import "testing"

func TestReattachSymbolsRebindsIntoFragment(t *testing.T) {
	acc := newMergedSectionAccumulator(mergedSectionKey{name: ".rodata"})
	f0 := acc.Insert("ab\x00", 0)
	f1 := acc.Insert("cde\x00", 0)
	ms := &MergeableSection{FragOffsets: []uint32{0, 3}, Fragments: []*SectionFragment{f0, f1}}

	obj := &ObjectFile{MergeableSections: map[int64]*MergeableSection{5: ms}}
	obj.ElfSyms = []Sym{
		{Shndx: 5, Val: 4}, // falls inside fragment 1, offset 1 within it
	}
	sym := NewSymbol("local.str")
	obj.Symbols = []*Symbol{sym}

	NewMergeRewriter(nil).reattachSymbols(obj)

	if sym.SectionFragment != f1 {
		t.Fatalf("expected symbol rebound to fragment 1")
	}
	if sym.Value != 1 {
		t.Errorf("Value = %d, want 1 (offset within fragment)", sym.Value)
	}
	if sym.InputSection != nil {
		t.Errorf("InputSection must be cleared once a fragment binding is set")
	}
}

func TestReattachSymbolsSkipsUndefAbsCommon(t *testing.T) {
	ms := &MergeableSection{FragOffsets: []uint32{0}, Fragments: []*SectionFragment{{}}}
	obj := &ObjectFile{MergeableSections: map[int64]*MergeableSection{5: ms}}
	obj.ElfSyms = []Sym{
		{Shndx: 0}, // SHN_UNDEF
	}
	sym := NewSymbol("undef")
	obj.Symbols = []*Symbol{sym}

	NewMergeRewriter(nil).reattachSymbols(obj)

	if sym.SectionFragment != nil {
		t.Fatalf("an undefined symbol must never be rebound to a fragment")
	}
}

func TestRewriteRelocationsSynthesizesHiddenFragmentSymbol(t *testing.T) {
	acc := newMergedSectionAccumulator(mergedSectionKey{name: ".rodata"})
	f0 := acc.Insert("ab\x00", 0)
	ms := &MergeableSection{FragOffsets: []uint32{0}, Fragments: []*SectionFragment{f0}}

	obj := &ObjectFile{MergeableSections: map[int64]*MergeableSection{5: ms}}
	// Symbol index 3 is an STT_SECTION symbol pointing at the mergeable
	// section; a relocation against it carries the fragment-internal
	// offset as its addend.
	obj.ElfSyms = make([]Sym, 4)
	obj.ElfSyms[3] = Sym{Shndx: 5, Info: uint8(3) /* STT_SECTION */}

	sec := &InputSection{
		Name:    ".text",
		IsAlive: true,
		Rels:    []Rel{{Offset: 0x10, Sym: 3, Type: 1, Addend: 1}},
	}
	obj.Sections = []*InputSection{sec}

	NewMergeRewriter(nil).rewriteRelocations(obj)

	if sec.Rels[0].Sym != 4 {
		t.Fatalf("relocation must be rewritten to point at the synthesized symbol (index 4), got %d", sec.Rels[0].Sym)
	}
	if len(obj.Symbols) != 1 {
		t.Fatalf("expected exactly one synthesized fragment symbol, got %d", len(obj.Symbols))
	}
	frag := obj.Symbols[0]
	if frag.SectionFragment != f0 {
		t.Errorf("synthesized symbol must bind to the covering fragment")
	}
	if frag.Visibility != VisibilityHidden {
		t.Errorf("synthesized fragment symbols must be hidden")
	}
	// fragOff (1) - addend (1) == 0
	if frag.Value != 0 {
		t.Errorf("Value = %d, want fragOffset - addend = 0", frag.Value)
	}
}
