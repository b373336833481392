package linker

import (
	"debug/elf"
	"strings"
)

// SymtabEmitter implements spec.md §4.9: a sizing pass (Size) that counts
// how many symbols and how many strtab bytes the final symbol table
// needs, and an emission pass (Emit) that returns the surviving symbols
// and their strtab bytes as new slices — this core never owns the output
// file itself, only the decision of which symbols survive and in what
// order.
type SymtabEmitter struct {
	ctx *Context
}

// NewSymtabEmitter returns an emitter bound to ctx.
func NewSymtabEmitter(ctx *Context) *SymtabEmitter {
	return &SymtabEmitter{ctx: ctx}
}

// shouldEmit applies the discard policy: --strip-all drops everything,
// STT_SECTION symbols are always dropped, compiler-generated .L-prefixed
// temporaries are dropped only when the config's local-symbol predicate
// marks them local, and an already-dead binding (input section or
// fragment no longer alive) is always dropped. --strip-debug is not
// consulted here.
func (e *SymtabEmitter) shouldEmit(sym *Symbol, esym *Sym) bool {
	if e.ctx.Config.StripAll {
		return false
	}
	if esym.Type() == uint8(elf.STT_SECTION) {
		return false
	}
	if strings.HasPrefix(sym.Name, ".L") && e.ctx.Config.ResolveIsLocal()(sym) {
		return false
	}
	if sym.InputSection != nil && !sym.InputSection.IsAlive {
		return false
	}
	if sym.SectionFragment != nil && !sym.SectionFragment.IsAlive {
		return false
	}
	return true
}

// SizingResult is the output of Size: how large the symtab and strtab
// need to be, so a caller can allocate buffers before calling Emit.
type SizingResult struct {
	NumSymbols  int
	StrtabBytes int
	NeedsShndx  bool
}

// Size runs the sizing pass over every live object file's symbol table.
func (e *SymtabEmitter) Size() SizingResult {
	var res SizingResult
	res.StrtabBytes = 1 // strtab[0] is always the empty string

	for _, obj := range e.ctx.Objs {
		if !obj.IsReachable() {
			continue
		}
		for i, esym := range obj.ElfSyms {
			sym := obj.Symbols[i]
			if sym == nil || !e.shouldEmit(sym, &esym) {
				continue
			}
			res.NumSymbols++
			res.StrtabBytes += len(sym.Name) + 1
			if esym.Shndx == shnXindex {
				res.NeedsShndx = true
			}
		}
	}
	return res
}

// EmittedSymbol is one symtab record this core decided to keep, ready
// for a caller to place at whatever file offset it chooses.
type EmittedSymbol struct {
	Name     string
	NameOff  uint32
	Value    uint64
	Size     uint64
	Info     uint8
	Other    uint8
	Shndx    uint16
	ExtShndx uint32
}

// Emit runs the emission pass, returning the ordered list of surviving
// symbols and the strtab bytes to go with them (strtab[0] is the empty
// string per convention). The caller is responsible for writing these
// into the actual output file's Shdr-described regions — this core only
// decides content and order.
func (e *SymtabEmitter) Emit() ([]EmittedSymbol, []byte) {
	strtab := []byte{0}
	var out []EmittedSymbol

	for _, obj := range e.ctx.Objs {
		if !obj.IsReachable() {
			continue
		}
		for i, esym := range obj.ElfSyms {
			sym := obj.Symbols[i]
			if sym == nil || !e.shouldEmit(sym, &esym) {
				continue
			}

			es := EmittedSymbol{
				Name:    sym.Name,
				NameOff: uint32(len(strtab)),
				Value:   sym.GetAddr(),
				Size:    esym.Size,
				Info:    esym.Info,
				Other:   esym.Other,
				Shndx:   esym.Shndx,
			}
			if esym.Shndx == shnXindex {
				es.ExtShndx = uint32(esym.Shndx) // caller resolves the real index via SHT_SYMTAB_SHNDX
			}

			strtab = append(strtab, []byte(sym.Name)...)
			strtab = append(strtab, 0)
			out = append(out, es)
		}
	}

	return out, strtab
}
