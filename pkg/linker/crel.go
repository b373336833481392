package linker

import (
	"fmt"

	"github.com/rvld-core/rvld-core/pkg/utils"
)

// decodeRelocations dispatches a relocation section to the CREL decoder
// or to classic SHT_RELA/SHT_REL decoding, based on sh_type (spec.md
// §4.3.1). Classic sections decode directly from the Rela/Rel struct
// layouts declared in elf.go; CREL is a delta-compressed stream decoded
// one field at a time.
func decodeRelocations(view *ElfView, shdr *Shdr, target Target) ([]Rel, error) {
	switch shdr.Type {
	case shtCrel:
		bs, err := view.GetBytes(shdr)
		if err != nil {
			return nil, err
		}
		return decodeCREL(bs, target)
	case 9: // SHT_REL
		raw, err := GetData[struct {
			Offset uint64
			Info   uint64
		}](view, shdr)
		if err != nil {
			return nil, err
		}
		rels := make([]Rel, len(raw))
		for i, r := range raw {
			rels[i] = Rel{Offset: r.Offset, Type: uint32(r.Info), Sym: uint32(r.Info >> 32)}
		}
		return rels, nil
	case 4: // SHT_RELA
		raw, err := GetData[Rela](view, shdr)
		if err != nil {
			return nil, err
		}
		rels := make([]Rel, len(raw))
		for i, r := range raw {
			rels[i] = Rel{Offset: r.Offset, Type: r.Type, Sym: r.Sym, Addend: r.Addend}
		}
		return rels, nil
	default:
		return nil, fmt.Errorf("%w: relocation section has sh_type %d", ErrUnsupportedFormat, shdr.Type)
	}
}

// decodeCREL decodes a CREL (compressed relocation) section per §4.3.1.
// The section opens with a ULEB128 header packing the relocation count,
// an is_rela bit, and a 2-bit offset scale. Each record then carries a
// single flags byte F that bit-packs the low bits of the offset delta
// together with presence bits for the symbol, type, and (for RELA)
// addend deltas, so a record whose offset delta and symbol/type/addend
// are all unchanged from its predecessor costs a single zero byte.
func decodeCREL(data []byte, target Target) ([]Rel, error) {
	r := &utils.ULEB128Reader{Data: data}

	header := r.Uleb128()
	nrels := header >> 3
	isRela := (header>>2)&1 != 0
	scale := uint(header & 3)

	if isRela && !target.IsRela {
		return nil, fmt.Errorf("%w: CREL section carries addends but target %v is REL-only", ErrUnsupportedFormat, target.Machine)
	}

	nflags := uint(2)
	if isRela {
		nflags = 3
	}

	rels := make([]Rel, 0, nrels)

	var offset uint64
	var symIdx, relType, addend int64

	for i := uint64(0); i < nrels; i++ {
		f := r.Byte()

		var delta uint64
		if f&0x80 != 0 {
			delta = (r.Uleb128() << (7 - nflags)) | uint64(f&0x7f)>>nflags
		} else {
			delta = uint64(f) >> nflags
		}
		offset += delta << scale

		if f&1 != 0 {
			symIdx += r.Sleb128()
		}
		if f&2 != 0 {
			relType += r.Sleb128()
		}
		if isRela && f&4 != 0 {
			addend += r.Sleb128()
		}

		if symIdx < 0 || relType < 0 {
			return nil, fmt.Errorf("%w: CREL record %d has a negative symbol index or type", ErrMalformedELF, i)
		}

		rels = append(rels, Rel{Offset: offset, Sym: uint32(symIdx), Type: uint32(relType), Addend: addend})
	}

	return rels, nil
}
