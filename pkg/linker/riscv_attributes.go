package linker

import "github.com/rvld-core/rvld-core/pkg/utils"

// RISC-V attribute tags this core understands (spec.md §4.3.2); any
// other tag ends the walk of its subsection, without comment.
const (
	riscvTagStackAlign      = 4
	riscvTagArch            = 5
	riscvTagUnalignedAccess = 6
)

// RiscvAttributes is the subset of .riscv.attributes this core records
// per object file.
type RiscvAttributes struct {
	Present          bool
	StackAlign       uint64
	Arch             string
	UnalignedAccess  uint64
}

// ParseRiscvAttributes decodes a .riscv.attributes section per §4.3.2's
// pseudocode: a format-version byte that must be 'A', then one or more
// vendor subsections, each a (uint32 little-endian size, vendor-string,
// tag/value pairs) blob. A first byte other than 'A' is silently
// ignored per DESIGN.md's open-question #2 decision — the section is
// simply treated as absent, not reported as an error.
func ParseRiscvAttributes(data []byte) RiscvAttributes {
	var out RiscvAttributes
	if len(data) == 0 || data[0] != 'A' {
		return out
	}

	r := &utils.ULEB128Reader{Data: data, Pos: 1}
	for r.Remaining() > 4 {
		subsectionLen := utils.Read[uint32](r.Data[r.Pos:])
		if subsectionLen < 4 || int(subsectionLen) > r.Remaining() {
			break
		}
		end := r.Pos + int(subsectionLen)
		r.Pos += 4

		_ = r.CString() // vendor name, e.g. "riscv"

		for r.Pos < end {
			tag := r.Uleb128()
			switch tag {
			case 1: // Tag_File
				r.Pos += 4 // uint32 subsubsection size, already accounted for by end
			case riscvTagStackAlign:
				out.Present = true
				out.StackAlign = r.Uleb128()
			case riscvTagArch:
				out.Present = true
				out.Arch = r.CString()
			case riscvTagUnalignedAccess:
				out.Present = true
				out.UnalignedAccess = r.Uleb128()
			default:
				// Unknown tag: attribute values alternate ULEB128/NTBS by
				// convention only for known tags, so an unrecognized one
				// can't be skipped generically. Treat the rest of this
				// subsection as consumed.
				r.Pos = end
			}
		}
		r.Pos = end
	}

	return out
}
