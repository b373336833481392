package linker

import (
	"encoding/binary"
	"testing"
)

// buildMinimalElf assembles a syntactically valid little-endian ELF64
// file with a NULL section, a shstrtab, and one PROGBITS section named
// ".text", enough to exercise NewElfView's header/section-table parse.
func buildMinimalElf(t *testing.T) []byte {
	t.Helper()

	const (
		ehdrSize = 16 + 48 // e_ident + the rest of Ehdr
		shdrSz   = 64
	)

	shstrtab := []byte("\x00.shstrtab\x00.text\x00")
	textOff := uint64(ehdrSize)
	textData := []byte{0x13, 0x00, 0x00, 0x00} // four arbitrary bytes
	shstrOff := textOff + uint64(len(textData))
	shOff := shstrOff + uint64(len(shstrtab))

	buf := make([]byte, shOff+3*shdrSz)

	// e_ident: magic + pad
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2 // ELFCLASS64

	le16 := func(off int, v uint16) { binary.LittleEndian.PutUint16(buf[off:], v) }
	le64 := func(off int, v uint64) { binary.LittleEndian.PutUint64(buf[off:], v) }

	le16(16, 1)                 // e_type = ET_REL
	le16(18, 243)                // e_machine = EM_RISCV
	le64(40, shOff)              // e_shoff
	le16(58, uint16(shdrSz))     // e_shentsize
	le16(60, 3)                  // e_shnum: NULL, .text, .shstrtab
	le16(62, 2)                  // e_shstrndx

	copy(buf[textOff:], textData)
	copy(buf[shstrOff:], shstrtab)

	putShdr := func(idx int, nameOff uint32, typ uint32, offset, size uint64) {
		base := int(shOff) + idx*shdrSz
		binary.LittleEndian.PutUint32(buf[base:], nameOff)
		binary.LittleEndian.PutUint32(buf[base+4:], typ)
		binary.LittleEndian.PutUint64(buf[base+24:], offset)
		binary.LittleEndian.PutUint64(buf[base+32:], size)
	}

	putShdr(0, 0, 0, 0, 0)                                   // SHT_NULL
	putShdr(1, 11, 1 /* SHT_PROGBITS */, textOff, uint64(len(textData))) // ".text"
	putShdr(2, 1, 3 /* SHT_STRTAB */, shstrOff, uint64(len(shstrtab)))   // ".shstrtab"

	return buf
}

func TestNewElfViewParsesSectionTable(t *testing.T) {
	data := buildMinimalElf(t)

	v, err := NewElfView(data)
	if err != nil {
		t.Fatalf("NewElfView: %v", err)
	}

	if len(v.Sections()) != 3 {
		t.Fatalf("got %d sections, want 3", len(v.Sections()))
	}

	shstrtab, err := v.GetBytesByIndex(v.ShstrtabIndex())
	if err != nil {
		t.Fatalf("GetBytesByIndex(shstrtab): %v", err)
	}

	name := GetName(shstrtab, v.Sections()[1].Name)
	if name != ".text" {
		t.Errorf("section 1 name = %q, want .text", name)
	}
}

func TestNewElfViewRejectsBadMagic(t *testing.T) {
	data := buildMinimalElf(t)
	data[0] = 0

	if _, err := NewElfView(data); err == nil {
		t.Fatalf("expected an error for corrupted magic")
	}
}

func TestNewElfViewRejectsTruncatedFile(t *testing.T) {
	if _, err := NewElfView([]byte{0x7f, 'E', 'L', 'F'}); err == nil {
		t.Fatalf("expected an error for a file too small to hold an Ehdr")
	}
}

func TestGetDataRejectsMisalignedSize(t *testing.T) {
	data := buildMinimalElf(t)
	v, err := NewElfView(data)
	if err != nil {
		t.Fatalf("NewElfView: %v", err)
	}

	// .text is 4 bytes; asking for it as a slice of 24-byte Rela records
	// must fail since 4 is not a multiple of sizeof(Rela).
	shdr := v.Sections()[1]
	if _, err := GetData[Rela](v, &shdr); err == nil {
		t.Fatalf("expected a size-mismatch error")
	}
}

func TestSniffMachineType(t *testing.T) {
	data := buildMinimalElf(t)
	if got := SniffMachineType(data); got != MachineTypeRISCV64 {
		t.Errorf("SniffMachineType = %v, want MachineTypeRISCV64", got)
	}
	if got := SniffMachineType([]byte("not elf")); got != MachineTypeNone {
		t.Errorf("SniffMachineType(garbage) = %v, want MachineTypeNone", got)
	}
}
