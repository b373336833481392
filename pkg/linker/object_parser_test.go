package linker

import "testing"

func TestSplitVersionSuffix(t *testing.T) {
	cases := []struct {
		name        string
		wantBase    string
		wantVersion string
		wantOk      bool
	}{
		{"memcpy", "memcpy", "", false},
		{"memcpy@GLIBC_2.2.5", "memcpy", "GLIBC_2.2.5", true},
		{"memcpy@@GLIBC_2.14", "memcpy", "GLIBC_2.14", true},
	}
	for _, tc := range cases {
		base, version, ok := splitVersionSuffix(tc.name)
		if base != tc.wantBase || version != tc.wantVersion || ok != tc.wantOk {
			t.Errorf("splitVersionSuffix(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.name, base, version, ok, tc.wantBase, tc.wantVersion, tc.wantOk)
		}
	}
}

func TestVisibilityFromByte(t *testing.T) {
	// SysV ABI values: STV_DEFAULT=0, STV_INTERNAL=1, STV_HIDDEN=2,
	// STV_PROTECTED=3. STV_INTERNAL is canonicalized to hidden.
	cases := []struct {
		in   uint8
		want Visibility
	}{
		{0, VisibilityDefault},
		{1, VisibilityHidden},
		{2, VisibilityHidden},
		{3, VisibilityProtected},
	}
	for _, tc := range cases {
		if got := visibilityFromByte(tc.in); got != tc.want {
			t.Errorf("visibilityFromByte(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalMergeName(t *testing.T) {
	cases := map[string]string{
		".rodata.str1.1":      ".rodata",
		".rodata.cst8":        ".rodata",
		".data.rel.ro.local":  ".data.rel.ro",
		".text.startup":       ".text",
		".rodata":             ".rodata",
		".some.other.section": ".some.other.section",
	}
	for in, want := range cases {
		if got := canonicalMergeName(in); got != want {
			t.Errorf("canonicalMergeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterComdatGroupRejectsEmptyGroup(t *testing.T) {
	ctx := &Context{Comdats: NewComdatInterner()}
	file := &MappedFile{Name: "empty-group.o"}
	obj := &ObjectFile{}
	obj.File = file

	// An SHT_GROUP section whose data decodes to a single uint32 (just
	// the flags word, no members) must be rejected as malformed.
	buf := make([]byte, 4)
	p := &ObjectParser{ctx: ctx, file: file, view: mustViewOverData(t, buf)}
	shdr := &Shdr{Type: 0, Offset: 0, Size: uint64(len(buf))}

	err := p.registerComdatGroup(obj, 0, shdr)
	if err == nil {
		t.Fatalf("expected an error for an empty SHT_GROUP")
	}
}

// mustViewOverData builds an ElfView directly over a data buffer without
// going through NewElfView's header validation, for tests that only need
// GetBytes/GetData against a raw byte range.
func mustViewOverData(t *testing.T, data []byte) *ElfView {
	t.Helper()
	return &ElfView{data: data}
}
