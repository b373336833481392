package linker

import "debug/elf"

// MergeRewriter implements spec.md §4.7's two rewrite phases, grounded
// on dongAxis's RegisterSectionPieces: every symbol whose section index
// names a mergeable section is reattached to the SectionFragment that
// covers its value, and every relocation whose symbol is an
// STT_SECTION reference into a mergeable section is redirected to a
// synthesized hidden "<fragment>" symbol so later passes never need to
// know mergeable sections exist.
type MergeRewriter struct {
	ctx *Context
}

// NewMergeRewriter returns a rewriter bound to ctx.
func NewMergeRewriter(ctx *Context) *MergeRewriter {
	return &MergeRewriter{ctx: ctx}
}

// RewriteAll runs both phases over every object file.
func (m *MergeRewriter) RewriteAll() {
	for _, obj := range m.ctx.Objs {
		m.reattachSymbols(obj)
		m.rewriteRelocations(obj)
	}
}

// reattachSymbols implements phase one: any *Symbol (local or global)
// whose section index points at a mergeable section is rebound to the
// fragment covering its value, with the fragment-relative offset
// absorbed into Value.
func (m *MergeRewriter) reattachSymbols(obj *ObjectFile) {
	for i, esym := range obj.ElfSyms {
		if esym.IsUndef() || esym.IsAbs() || esym.IsCommon() {
			continue
		}
		ms, ok := obj.MergeableSections[int64(esym.Shndx)]
		if !ok {
			continue
		}
		sym := obj.Symbols[i]
		if sym == nil {
			continue
		}
		frag, fragOff := ms.GetFragment(uint32(esym.Val))
		sym.mu.Lock()
		sym.SetSectionFragment(frag)
		sym.Value = uint64(fragOff)
		sym.mu.Unlock()
	}
}

// rewriteRelocations implements phase two: a relocation whose symbol is
// STT_SECTION and targets a mergeable section is rewritten to reference
// a freshly synthesized hidden fragment symbol instead, with the
// relocation's addend absorbed into that symbol's Value so the
// relocation itself can be left with addend zero once applied
// downstream (spec.md §4.7 "Value = fragOffset - addend").
func (m *MergeRewriter) rewriteRelocations(obj *ObjectFile) {
	var fragSyms []*Symbol

	for _, sec := range obj.Sections {
		if sec == nil || sec.Rels == nil {
			continue
		}
		for i := range sec.Rels {
			rel := &sec.Rels[i]
			if int64(rel.Sym) >= int64(len(obj.ElfSyms)) {
				continue
			}
			esym := &obj.ElfSyms[rel.Sym]
			if esym.Type() != uint8(elf.STT_SECTION) {
				continue
			}
			ms, ok := obj.MergeableSections[int64(esym.Shndx)]
			if !ok {
				continue
			}

			frag, fragOff := ms.GetFragment(uint32(int64(esym.Val) + rel.Addend))

			fragSym := NewSymbol("<fragment>")
			fragSym.File = obj
			fragSym.SetSectionFragment(frag)
			fragSym.Value = uint64(fragOff) - uint64(rel.Addend)
			fragSym.Visibility = VisibilityHidden

			newIdx := uint32(len(obj.ElfSyms)) + uint32(len(fragSyms))
			fragSyms = append(fragSyms, fragSym)
			rel.Sym = newIdx
		}
	}

	obj.Symbols = append(obj.Symbols, fragSyms...)
}
