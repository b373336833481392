package linker

import (
	"bytes"
	"debug/elf"
	"fmt"
	"unsafe"

	"github.com/rvld-core/rvld-core/pkg/utils"
)

// Generic ELF section/symbol-table constants debug/elf does not name.
const (
	shtCrel            = 0x40000014
	shtRiscvAttributes = 0x70000003
	shtLlvmAddrsig     = 0x6fff4c03
	shfExclude         = 0x80000000

	shnXindex = uint16(elf.SHN_XINDEX)

	verNdxLocal      = 0
	verNdxGlobal     = 1
	verNdxUnspecified = uint16(0xffff)
	versymHidden     = uint16(0x8000)

	ntGnuPropertyType0 = 5
)

// MachineType is the target architecture family a link targets; it fixes
// endianness, word size, and REL-vs-RELA per spec.md §6's generic target
// parameter E.
type MachineType int

const (
	MachineTypeNone MachineType = iota
	MachineTypeRISCV64
	MachineTypeX86_64
	MachineTypeAArch64
	MachineTypeARM
	MachineTypeRISCV32
)

// Target records per-machine properties: endianness, address width, and
// whether relocations carry an addend. Only IsRela is consulted (by
// relocation decoding); ElfView decodes the little-endian ELF64 layouts
// whatever Is64 and LittleEndian say.
type Target struct {
	Machine    MachineType
	Is64       bool
	LittleEndian bool
	IsRela     bool
}

func targetForMachine(m MachineType) Target {
	switch m {
	case MachineTypeRISCV64:
		return Target{Machine: m, Is64: true, LittleEndian: true, IsRela: true}
	case MachineTypeRISCV32:
		return Target{Machine: m, Is64: false, LittleEndian: true, IsRela: true}
	case MachineTypeX86_64:
		return Target{Machine: m, Is64: true, LittleEndian: true, IsRela: true}
	case MachineTypeAArch64:
		return Target{Machine: m, Is64: true, LittleEndian: true, IsRela: true}
	case MachineTypeARM:
		return Target{Machine: m, Is64: false, LittleEndian: true, IsRela: false}
	default:
		return Target{Machine: MachineTypeNone, Is64: true, LittleEndian: true, IsRela: true}
	}
}

// Ehdr mirrors Elf64_Ehdr (the portion after e_ident). There is no
// ELF32 counterpart; a 32-bit header, whose later fields are narrower,
// does not match this layout.
type Ehdr struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

const ehdrIdentSize = 16

// Shdr mirrors Elf64_Shdr.
type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

var shdrSize = int(unsafe.Sizeof(Shdr{}))

// Sym mirrors Elf64_Sym.
type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

var symSize = int(unsafe.Sizeof(Sym{}))

func (s *Sym) IsUndef() bool   { return s.Shndx == uint16(elf.SHN_UNDEF) }
func (s *Sym) IsAbs() bool     { return s.Shndx == uint16(elf.SHN_ABS) }
func (s *Sym) IsCommon() bool  { return s.Shndx == uint16(elf.SHN_COMMON) }
func (s *Sym) IsWeak() bool    { return s.Bind() == uint8(elf.STB_WEAK) }
func (s *Sym) IsUndefWeak() bool { return s.IsUndef() && s.IsWeak() }
func (s *Sym) Bind() uint8     { return s.Info >> 4 }
func (s *Sym) Type() uint8     { return s.Info & 0xf }
func (s *Sym) Visibility() uint8 { return s.Other & 0b11 }

// Rel is a decoded relocation — the common shape CREL, SHT_REL, and
// SHT_RELA all normalize to; Addend is zero for REL-only targets.
type Rel struct {
	Offset uint64
	Type   uint32
	Sym    uint32
	Addend int64
}

// Rela mirrors Elf64_Rela, used only while reading SHT_RELA directly
// (CREL decodes straight to Rel, see crel.go).
type Rela struct {
	Offset uint64
	Type   uint32
	Sym    uint32
	Addend int64
}

var relaSize = int(unsafe.Sizeof(Rela{}))

// Verdef/Verdaux/Verneed mirror the SHT_GNU_VERDEF record layout used by
// SharedParser (§4.4).
type Verdef struct {
	Version uint16
	Flags   uint16
	Ndx     uint16
	Cnt     uint16
	Hash    uint32
	Aux     uint32
	Next    uint32
}

type Verdaux struct {
	Name uint32
	Next uint32
}

var ErrMalformedELF = fmt.Errorf("malformed ELF")

func isELFMagic(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte{0x7f, 'E', 'L', 'F'})
}

// ElfView is a zero-copy structural accessor over a mapped file: §4.1.
type ElfView struct {
	data     []byte
	ehdr     Ehdr
	sections []Shdr
	shstrndx int64
}

// NewElfView validates the magic and header size and parses the section
// header table, resolving both long-section-count encodings (§4.1).
func NewElfView(data []byte) (*ElfView, error) {
	if len(data) < ehdrIdentSize+int(unsafe.Sizeof(Ehdr{})) {
		return nil, fmt.Errorf("%w: file too small for an ELF header", ErrMalformedELF)
	}
	if !isELFMagic(data) {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedELF)
	}

	ehdr := utils.Read[Ehdr](data[ehdrIdentSize:])
	v := &ElfView{data: data, ehdr: ehdr}

	if int(ehdr.ShOff)+shdrSize > len(data) {
		return nil, fmt.Errorf("%w: truncated section header table", ErrMalformedELF)
	}
	first := utils.Read[Shdr](data[ehdr.ShOff:])

	numSections := int64(ehdr.ShNum)
	if numSections == 0 {
		numSections = int64(first.Size)
	}
	if numSections < 0 || int64(ehdr.ShOff)+numSections*int64(shdrSize) > int64(len(data)) {
		return nil, fmt.Errorf("%w: section header table out of range", ErrMalformedELF)
	}

	v.sections = make([]Shdr, 0, numSections)
	v.sections = append(v.sections, first)
	off := int64(ehdr.ShOff) + int64(shdrSize)
	for int64(len(v.sections)) < numSections {
		v.sections = append(v.sections, utils.Read[Shdr](data[off:]))
		off += int64(shdrSize)
	}

	v.shstrndx = int64(ehdr.ShStrndx)
	if ehdr.ShStrndx == shnXindex {
		v.shstrndx = int64(first.Link)
	}

	return v, nil
}

func (v *ElfView) EType() uint16      { return v.ehdr.Type }
func (v *ElfView) EShOff() uint64     { return v.ehdr.ShOff }
func (v *ElfView) Sections() []Shdr   { return v.sections }
func (v *ElfView) Ehdr() Ehdr         { return v.ehdr }
func (v *ElfView) ShstrtabIndex() int64 { return v.shstrndx }

// FindSection returns the first section header of the given sh_type.
func (v *ElfView) FindSection(typ uint32) *Shdr {
	for i := range v.sections {
		if v.sections[i].Type == typ {
			return &v.sections[i]
		}
	}
	return nil
}

// GetBytes clips the file to the byte range described by an Shdr,
// bounds-checked against the mapped size (§4.1 "all accesses are
// bounds-checked").
func (v *ElfView) GetBytes(s *Shdr) ([]byte, error) {
	if s.Type == uint32(elf.SHT_NOBITS) {
		return nil, fmt.Errorf("%w: section has no backing bytes (SHT_NOBITS)", ErrMalformedELF)
	}
	end := s.Offset + s.Size
	if end < s.Offset || end > uint64(len(v.data)) {
		return nil, fmt.Errorf("%w: section out of range (offset=%d size=%d)", ErrMalformedELF, s.Offset, s.Size)
	}
	return v.data[s.Offset:end], nil
}

// GetBytesByIndex is GetBytes for the section at index idx.
func (v *ElfView) GetBytesByIndex(idx int64) ([]byte, error) {
	if idx < 0 || idx >= int64(len(v.sections)) {
		return nil, fmt.Errorf("%w: section index %d out of range", ErrMalformedELF, idx)
	}
	return v.GetBytes(&v.sections[idx])
}

// GetString returns the section's bytes (e.g. a string table) clipped to
// sh_size.
func (v *ElfView) GetString(s *Shdr) ([]byte, error) {
	return v.GetBytes(s)
}

// GetData decodes a section's contents as a packed array of T, failing
// if the size isn't a multiple of sizeof(T) or the section is SHT_NOBITS
// (§4.1 get_data<T>).
func GetData[T any](v *ElfView, s *Shdr) ([]T, error) {
	bs, err := v.GetBytes(s)
	if err != nil {
		return nil, err
	}
	size := int(unsafe.Sizeof(*new(T)))
	if len(bs)%size != 0 {
		return nil, fmt.Errorf("%w: section size %d not a multiple of %d", ErrMalformedELF, len(bs), size)
	}
	return utils.ReadSlice[T](bs, size), nil
}

// GetName decodes the NUL-terminated string at offset off in strtab.
func GetName(strtab []byte, off uint32) string {
	if int(off) >= len(strtab) {
		return ""
	}
	end := bytes.IndexByte(strtab[off:], 0)
	if end == -1 {
		return string(strtab[off:])
	}
	return string(strtab[off : int(off)+end])
}

// e_machine values this core recognizes (EM_* from the SysV ABI).
const (
	emRISCV   = 243
	emX86_64  = 62
	emAArch64 = 183
	emARM     = 40
)

// SniffMachineType reads e_machine out of a candidate input file
// without fully validating it, for a driver's "-m not given, guess from
// the first object" fallback (mirrors the teacher's own rvld.go main).
// Returns MachineTypeNone for anything that doesn't even parse as ELF.
func SniffMachineType(data []byte) MachineType {
	if len(data) < ehdrIdentSize+4 {
		return MachineTypeNone
	}
	if !isELFMagic(data) {
		return MachineTypeNone
	}
	is64 := data[4] == 2
	machineOff := ehdrIdentSize + 2
	machine := uint16(data[machineOff]) | uint16(data[machineOff+1])<<8

	switch machine {
	case emRISCV:
		if is64 {
			return MachineTypeRISCV64
		}
		return MachineTypeRISCV32
	case emX86_64:
		return MachineTypeX86_64
	case emAArch64:
		return MachineTypeAArch64
	case emARM:
		return MachineTypeARM
	default:
		return MachineTypeNone
	}
}

func isKnownSectionType(typ uint32) bool {
	switch elf.SectionType(typ) {
	case elf.SHT_NULL, elf.SHT_PROGBITS, elf.SHT_SYMTAB, elf.SHT_STRTAB,
		elf.SHT_RELA, elf.SHT_HASH, elf.SHT_DYNAMIC, elf.SHT_NOTE,
		elf.SHT_NOBITS, elf.SHT_REL, elf.SHT_SHLIB, elf.SHT_DYNSYM,
		elf.SHT_INIT_ARRAY, elf.SHT_FINI_ARRAY, elf.SHT_PREINIT_ARRAY,
		elf.SHT_GROUP, elf.SHT_SYMTAB_SHNDX,
		elf.SHT_GNU_ATTRIBUTES, elf.SHT_GNU_HASH, elf.SHT_GNU_VERDEF,
		elf.SHT_GNU_VERNEED, elf.SHT_GNU_VERSYM:
		return true
	}
	switch typ {
	case shtCrel, shtRiscvAttributes, shtLlvmAddrsig,
		0x70000001, /* SHT_ARM_EXIDX */
		0x6ffffff0, /* SHT_X86_64_UNWIND-ish vendor range, tolerated generically */
		0x6fff4c00:
		return true
	}
	return false
}
