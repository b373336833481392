package linker

import (
	"encoding/binary"
	"fmt"
)

// CieRecord is one Common Information Entry from a .eh_frame section
// (spec.md §3 CieRecord). Contents holds the whole record; every CIE
// found is kept, and byte-identical CIEs from different files are not
// merged into one.
type CieRecord struct {
	File     *ObjectFile
	Offset   uint32
	Size     uint32
	Contents []byte
}

// FdeRecord is one Frame Description Entry, associated with both the
// InputSection it unwinds and the CieRecord it references (spec.md §3
// FdeRecord).
type FdeRecord struct {
	File    *ObjectFile
	Offset  uint32
	Size    uint32
	Cie     *CieRecord
	Section *InputSection
}

// EhFrameParser implements spec.md §4.8: walk a .eh_frame section's
// length-prefixed records, classifying each as a CIE (id field == 0) or
// an FDE (id field is a backward byte offset to its CIE), and
// associating each FDE with the InputSection its first relocation
// targets.
type EhFrameParser struct {
	ctx *Context
}

// NewEhFrameParser returns a parser bound to ctx.
func NewEhFrameParser(ctx *Context) *EhFrameParser {
	return &EhFrameParser{ctx: ctx}
}

// ParseAll walks every live object's .eh_frame section, returning the
// combined CIE/FDE lists in a stable order: by object priority, then by
// offset within each object's section — so repeated runs over the same
// input produce byte-identical output (spec.md §8's determinism
// property).
func (p *EhFrameParser) ParseAll() ([]*CieRecord, []*FdeRecord, error) {
	var cies []*CieRecord
	var fdes []*FdeRecord

	for _, obj := range p.ctx.Objs {
		sec := obj.EhFrameSection
		if sec == nil || !obj.IsReachable() {
			continue
		}
		data, err := sec.Contents()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", obj.File.Name, err)
		}

		byOffset := make(map[uint32]*CieRecord)

		var off uint32
		for off+4 <= uint32(len(data)) {
			length := binary.LittleEndian.Uint32(data[off:])
			if length == 0 {
				break // terminator record
			}
			recordEnd := off + 4 + length
			if recordEnd > uint32(len(data)) || length < 4 {
				return nil, nil, fmt.Errorf("%s: %w: truncated .eh_frame record at offset %d", obj.File.Name, ErrMalformedELF, off)
			}

			id := binary.LittleEndian.Uint32(data[off+4:])
			if id == 0 {
				cie := &CieRecord{File: obj, Offset: off, Size: recordEnd - off, Contents: data[off:recordEnd]}
				cies = append(cies, cie)
				byOffset[off] = cie
			} else {
				cieOffset := off + 4 - id
				cie, ok := byOffset[cieOffset]
				if !ok {
					return nil, nil, fmt.Errorf("%s: %w: FDE at offset %d references unknown CIE at %d", obj.File.Name, ErrMalformedELF, off, cieOffset)
				}
				fde := &FdeRecord{File: obj, Offset: off, Size: recordEnd - off, Cie: cie}
				fde.Section = p.findFdeTarget(sec, off)
				fdes = append(fdes, fde)
			}

			off = recordEnd
		}
	}

	return cies, fdes, nil
}

// findFdeTarget looks up sec's relocations for the first one whose
// offset falls within this FDE's "PC begin" field (immediately after
// the CIE-pointer field), and returns the InputSection that relocation
// targets — the section the FDE describes unwind info for.
func (p *EhFrameParser) findFdeTarget(sec *InputSection, fdeOffset uint32) *InputSection {
	pcBeginOffset := uint64(fdeOffset) + 8
	for _, rel := range sec.Rels {
		if rel.Offset != pcBeginOffset {
			continue
		}
		if int64(rel.Sym) >= int64(len(sec.File.Symbols)) {
			return nil
		}
		sym := sec.File.Symbols[rel.Sym]
		if sym == nil {
			return nil
		}
		return sym.InputSection
	}
	return nil
}
