package linker

import "testing"

func buildEmitterFixture() (*Context, *ObjectFile) {
	cfg := NewConfig()
	ctx := &Context{Config: cfg}

	obj := &ObjectFile{}
	obj.File = &MappedFile{Name: "a.o"}
	obj.MarkReachable()

	return ctx, obj
}

func TestShouldEmitDropsStrippedSectionAndDeadSymbols(t *testing.T) {
	ctx, _ := buildEmitterFixture()
	e := NewSymtabEmitter(ctx)

	live := NewSymbol("foo")
	if !e.shouldEmit(live, &Sym{}) {
		t.Errorf("an ordinary global symbol must survive by default")
	}

	sectionSym := NewSymbol("sec")
	if e.shouldEmit(sectionSym, &Sym{Info: uint8(3)}) { // STT_SECTION
		t.Errorf("STT_SECTION symbols must never be emitted")
	}

	deadInputSec := NewSymbol("dead")
	deadInputSec.InputSection = &InputSection{IsAlive: false}
	if e.shouldEmit(deadInputSec, &Sym{}) {
		t.Errorf("a symbol bound to a dead input section must be dropped")
	}

	deadFrag := NewSymbol("dead_frag")
	deadFrag.SectionFragment = &SectionFragment{IsAlive: false}
	if e.shouldEmit(deadFrag, &Sym{}) {
		t.Errorf("a symbol bound to a dead fragment must be dropped")
	}
}

func TestShouldEmitStripAllDropsEverything(t *testing.T) {
	ctx, _ := buildEmitterFixture()
	ctx.Config.StripAll = true
	e := NewSymtabEmitter(ctx)

	if e.shouldEmit(NewSymbol("anything"), &Sym{}) {
		t.Errorf("--strip-all must drop every symbol")
	}
}

func TestShouldEmitDropsLocalTemporariesUnderDiscardLocals(t *testing.T) {
	ctx, _ := buildEmitterFixture()
	ctx.Config.DiscardLocals = true
	e := NewSymtabEmitter(ctx)

	if e.shouldEmit(NewSymbol(".Ltmp3"), &Sym{}) {
		t.Errorf("an .L-prefixed temporary must be dropped under --discard-locals")
	}
	if !e.shouldEmit(NewSymbol("real_name"), &Sym{}) {
		t.Errorf("a non-temporary name must survive --discard-locals")
	}
}

func TestSizeAndEmitAgreeOnSurvivorCount(t *testing.T) {
	ctx, obj := buildEmitterFixture()
	ctx.Objs = []*ObjectFile{obj}

	obj.ElfSyms = []Sym{
		{Name: 0}, // kept
		{Info: 3}, // STT_SECTION, dropped
	}
	obj.Symbols = []*Symbol{NewSymbol("kept"), NewSymbol("sec")}

	e := NewSymtabEmitter(ctx)
	size := e.Size()
	emitted, strtab := e.Emit()

	if size.NumSymbols != 1 {
		t.Fatalf("Size().NumSymbols = %d, want 1", size.NumSymbols)
	}
	if len(emitted) != 1 {
		t.Fatalf("Emit() returned %d symbols, want 1", len(emitted))
	}
	if emitted[0].Name != "kept" {
		t.Errorf("Emit() kept symbol = %q, want %q", emitted[0].Name, "kept")
	}
	// strtab[0] is always the empty string, then "kept\0".
	wantStrtabLen := 1 + len("kept") + 1
	if len(strtab) != wantStrtabLen {
		t.Errorf("strtab length = %d, want %d", len(strtab), wantStrtabLen)
	}
	if size.StrtabBytes != wantStrtabLen {
		t.Errorf("Size().StrtabBytes = %d, want %d", size.StrtabBytes, wantStrtabLen)
	}
}

func TestSizeSkipsUnreachableObjects(t *testing.T) {
	ctx, obj := buildEmitterFixture()
	unreachable := &ObjectFile{}
	unreachable.File = &MappedFile{Name: "b.o"}
	unreachable.ElfSyms = []Sym{{Name: 0}}
	unreachable.Symbols = []*Symbol{NewSymbol("x")}

	ctx.Objs = []*ObjectFile{obj, unreachable}
	obj.ElfSyms = nil
	obj.Symbols = nil

	size := NewSymtabEmitter(ctx).Size()
	if size.NumSymbols != 0 {
		t.Errorf("an unreachable object's symbols must not be sized, got %d", size.NumSymbols)
	}
}
