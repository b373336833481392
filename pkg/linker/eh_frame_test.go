package linker

import (
	"encoding/binary"
	"testing"
)

// buildEhFrame assembles a minimal .eh_frame buffer holding one CIE at
// offset 0 followed by one FDE that references it.
func buildEhFrame(t *testing.T) (data []byte, fdeOffset uint32, pcBeginOffset uint64) {
	t.Helper()

	put32 := func(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }

	cie := make([]byte, 12) // length(4) + id(4) + 4 bytes filler
	put32(cie, 0, 8)        // length: 8 bytes follow (id + filler)
	put32(cie, 4, 0)        // id == 0 marks a CIE

	fde := make([]byte, 16) // length(4) + id(4) + pcBegin(4) + filler(4)
	put32(fde, 0, 12)       // length: 12 bytes follow
	// id = (fdeOffset + 4) - cieOffset, cieOffset == 0 here
	put32(fde, 4, uint32(len(cie))+4)
	put32(fde, 8, 0xdeadbeef) // placeholder pc-begin value; the real
	// value is irrelevant, only the relocation at this offset matters.

	buf := append(append([]byte{}, cie...), fde...)
	buf = append(buf, 0, 0, 0, 0) // terminator record (length == 0)

	return buf, uint32(len(cie)), uint64(len(cie)) + 8
}

func buildObjectWithEhFrame(t *testing.T, data []byte) (*ObjectFile, *InputSection) {
	t.Helper()

	shdr := Shdr{Offset: 0, Size: uint64(len(data))}
	view := &ElfView{data: data, sections: []Shdr{shdr}}

	obj := &ObjectFile{}
	obj.File = &MappedFile{Name: "unwind.o"}
	obj.View = view
	obj.ElfSections = []Shdr{shdr}

	sec := NewInputSection(obj, 0, &shdr, ".eh_frame")
	obj.EhFrameSection = sec
	obj.Sections = []*InputSection{sec}

	return obj, sec
}

func TestEhFrameParserAssociatesFdeWithCie(t *testing.T) {
	data, _, pcBeginOffset := buildEhFrame(t)
	obj, sec := buildObjectWithEhFrame(t, data)
	obj.MarkReachable()

	target := NewInputSection(obj, 1, &Shdr{}, ".text")
	targetSym := NewSymbol("text_start")
	targetSym.InputSection = target
	obj.Symbols = []*Symbol{targetSym}
	sec.Rels = []Rel{{Offset: pcBeginOffset, Sym: 0}}

	ctx := &Context{Objs: []*ObjectFile{obj}}
	cies, fdes, err := NewEhFrameParser(ctx).ParseAll()
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(cies) != 1 {
		t.Fatalf("got %d CIEs, want 1", len(cies))
	}
	if len(fdes) != 1 {
		t.Fatalf("got %d FDEs, want 1", len(fdes))
	}
	if fdes[0].Cie != cies[0] {
		t.Errorf("FDE must reference the parsed CIE")
	}
	if fdes[0].Section != target {
		t.Errorf("FDE must resolve its target section via the pc-begin relocation")
	}
}

func TestEhFrameParserSkipsUnreachableObjects(t *testing.T) {
	data, _, _ := buildEhFrame(t)
	obj, _ := buildObjectWithEhFrame(t, data)
	obj.MarkReachable()
	// A second, unreachable object sharing the same section data must
	// contribute nothing.
	obj2, _ := buildObjectWithEhFrame(t, data)

	ctx := &Context{Objs: []*ObjectFile{obj, obj2}}
	cies, _, err := NewEhFrameParser(ctx).ParseAll()
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(cies) != 1 {
		t.Fatalf("only the reachable object's CIE should be counted, got %d", len(cies))
	}
}
