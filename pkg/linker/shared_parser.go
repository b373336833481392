package linker

import (
	"debug/elf"
	"fmt"
)

// SharedFile is the product of SharedParser.Parse: a DSO's SONAME, its
// exported dynamic symbols, and its version definitions. The exported
// names let the Resolver bind undefined references against it without
// this core ever loading it at runtime (spec.md §4.4); the version
// tables are recorded but not consulted during resolution.
type SharedFile struct {
	InputFile

	Soname    string
	DTNeeded  []string

	DynSyms []Sym
	DynStrtab []byte

	// Versions maps a verdef index to its version name ("GLIBC_2.17"),
	// and DefaultVersion maps the version name of each verdef flagged
	// VER_FLG_BASE to that verdef's index.
	Versions       map[uint16]string
	DefaultVersion map[string]uint16

	Symbols []*Symbol
}

// SharedParser implements spec.md §4.4: extract SONAME/DT_NEEDED,
// read the dynamic symbol table, and decode the verdef table. Symbols
// are interned by bare name; versioned references are not matched
// against the decoded verdefs.
type SharedParser struct {
	ctx  *Context
	file *MappedFile
	view *ElfView
}

// NewSharedParser returns a parser bound to an already-opened ElfView
// of an ET_DYN file.
func NewSharedParser(ctx *Context, file *MappedFile, view *ElfView) *SharedParser {
	return &SharedParser{ctx: ctx, file: file, view: view}
}

// Parse runs the DSO ingestion pipeline.
func (p *SharedParser) Parse() (*SharedFile, error) {
	sf := &SharedFile{
		Versions:       make(map[uint16]string),
		DefaultVersion: make(map[string]uint16),
	}
	sf.File = p.file
	sf.View = p.view
	sf.ElfSections = p.view.Sections()
	sf.Priority = len(p.ctx.Shared) + 1

	shstrtab, err := p.view.GetBytesByIndex(p.view.ShstrtabIndex())
	if err != nil {
		return nil, err
	}
	sf.ShStrtab = shstrtab
	sf.Soname = p.file.Name

	dynsymShdr := p.view.FindSection(uint32(elf.SHT_DYNSYM))
	if dynsymShdr == nil {
		return nil, fmt.Errorf("%s: %w: no SHT_DYNSYM section", p.file.Name, ErrMalformedELF)
	}
	syms, err := GetData[Sym](p.view, dynsymShdr)
	if err != nil {
		return nil, err
	}
	sf.DynSyms = syms

	dynstr, err := p.view.GetBytesByIndex(int64(dynsymShdr.Link))
	if err != nil {
		return nil, err
	}
	sf.DynStrtab = dynstr

	if err := p.parseDynamic(sf); err != nil {
		return nil, err
	}
	if err := p.parseVerdef(sf); err != nil {
		return nil, err
	}
	p.bindSymbols(sf)

	return sf, nil
}

// parseDynamic scans SHT_DYNAMIC for DT_SONAME and DT_NEEDED, the only
// two tags this ingestion core acts on.
func (p *SharedParser) parseDynamic(sf *SharedFile) error {
	dynShdr := p.view.FindSection(uint32(elf.SHT_DYNAMIC))
	if dynShdr == nil {
		return nil
	}
	entries, err := GetData[struct {
		Tag uint64
		Val uint64
	}](p.view, dynShdr)
	if err != nil {
		return err
	}

	dynstrShdr := &p.view.Sections()[dynShdr.Link]
	dynstr, err := p.view.GetBytes(dynstrShdr)
	if err != nil {
		return err
	}

	for _, e := range entries {
		switch elf.DynTag(e.Tag) {
		case elf.DT_SONAME:
			sf.Soname = GetName(dynstr, uint32(e.Val))
		case elf.DT_NEEDED:
			sf.DTNeeded = append(sf.DTNeeded, GetName(dynstr, uint32(e.Val)))
		case elf.DT_NULL:
			return nil
		}
	}
	return nil
}

// parseVerdef decodes SHT_GNU_VERDEF into a verdef-index -> name table,
// and records the index of each verdef flagged VER_FLG_BASE in
// DefaultVersion under its version name.
func (p *SharedParser) parseVerdef(sf *SharedFile) error {
	verdefShdr := p.view.FindSection(uint32(elf.SHT_GNU_VERDEF))
	if verdefShdr == nil {
		return nil
	}
	data, err := p.view.GetBytes(verdefShdr)
	if err != nil {
		return err
	}

	strShdr := &p.view.Sections()[verdefShdr.Link]
	strtab, err := p.view.GetBytes(strShdr)
	if err != nil {
		return err
	}

	off := uint64(0)
	for off+20 <= uint64(len(data)) {
		vd := readVerdef(data[off:])
		auxOff := off + uint64(vd.Aux)
		if auxOff+8 <= uint64(len(data)) {
			aux := readVerdaux(data[auxOff:])
			name := GetName(strtab, aux.Name)
			sf.Versions[vd.Ndx] = name
			if vd.Flags&1 != 0 { // VER_FLG_BASE: this is the file's own default
				sf.DefaultVersion[name] = vd.Ndx
			}
		}
		if vd.Next == 0 {
			break
		}
		off += uint64(vd.Next)
	}
	return nil
}

func readVerdef(b []byte) Verdef {
	return Verdef{
		Version: le16(b[0:2]),
		Flags:   le16(b[2:4]),
		Ndx:     le16(b[4:6]),
		Cnt:     le16(b[6:8]),
		Hash:    le32(b[8:12]),
		Aux:     le32(b[12:16]),
		Next:    le32(b[16:20]),
	}
}

func readVerdaux(b []byte) Verdaux {
	return Verdaux{Name: le32(b[0:4]), Next: le32(b[4:8])}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// bindSymbols interns every defined dynamic symbol whose visibility is
// not STV_HIDDEN, so the Resolver can bind undefined object references
// against it. SHT_GNU_VERSYM is not read: a symbol's version index and
// its hidden bit are not consulted, and names are interned without a
// version suffix.
func (p *SharedParser) bindSymbols(sf *SharedFile) {
	for _, esym := range sf.DynSyms {
		if esym.IsUndef() || esym.Visibility() == uint8(elf.STV_HIDDEN) {
			continue
		}
		name := GetName(sf.DynStrtab, esym.Name)
		if name == "" {
			continue
		}
		sym := p.ctx.Symbols.GetOrInsert(name)
		sf.Symbols = append(sf.Symbols, sym)
	}
}
