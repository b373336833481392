package linker

import (
	"reflect"
	"testing"

	"github.com/rvld-core/rvld-core/pkg/utils"
)

// encodeCREL builds a CREL section per spec.md §4.3.1: a ULEB128 header
// packing nrels/is_rela/scale, then one flags-byte record per relocation.
// rels must carry offsets that are multiples of 1<<scale; this helper
// computes each record's deltas against the running state rather than
// taking them as input, the way a real producer would.
func encodeCREL(t *testing.T, rels []Rel, isRela bool, scale uint) []byte {
	t.Helper()

	var buf []byte
	putUleb := func(v uint64) {
		for {
			b := byte(v & 0x7f)
			v >>= 7
			if v != 0 {
				b |= 0x80
			}
			buf = append(buf, b)
			if v == 0 {
				break
			}
		}
	}
	putSleb := func(v int64) {
		for {
			b := byte(v & 0x7f)
			v >>= 7
			signBit := b&0x40 != 0
			if (v == 0 && !signBit) || (v == -1 && signBit) {
				buf = append(buf, b)
				break
			}
			buf = append(buf, b|0x80)
		}
	}

	var isRelaBit uint64
	if isRela {
		isRelaBit = 1
	}
	putUleb(uint64(len(rels))<<3 | isRelaBit<<2 | uint64(scale))

	nflags := uint(2)
	if isRela {
		nflags = 3
	}
	inlineBits := 7 - nflags

	var offset uint64
	var symIdx, relType, addend int64

	for _, rel := range rels {
		rawDelta := (rel.Offset - offset) >> scale
		if rawDelta<<scale != rel.Offset-offset {
			t.Fatalf("offset delta %d is not a multiple of the scale factor", rel.Offset-offset)
		}

		symDelta := int64(rel.Sym) - symIdx
		typeDelta := int64(rel.Type) - relType
		addendDelta := rel.Addend - addend

		var f byte
		if symDelta != 0 {
			f |= 1
		}
		if typeDelta != 0 {
			f |= 2
		}
		if isRela && addendDelta != 0 {
			f |= 4
		}

		lowBits := rawDelta & (uint64(1)<<inlineBits - 1)
		f |= byte(lowBits) << nflags
		if rawDelta>>inlineBits != 0 {
			f |= 0x80
			buf = append(buf, f)
			putUleb(rawDelta >> inlineBits)
		} else {
			buf = append(buf, f)
		}

		offset = rel.Offset
		if symDelta != 0 {
			putSleb(symDelta)
			symIdx = int64(rel.Sym)
		}
		if typeDelta != 0 {
			putSleb(typeDelta)
			relType = int64(rel.Type)
		}
		if isRela && addendDelta != 0 {
			putSleb(addendDelta)
			addend = rel.Addend
		}
	}
	return buf
}

func TestDecodeCRELRoundTrip(t *testing.T) {
	rela := Target{IsRela: true}

	cases := []struct {
		name  string
		rels  []Rel
		scale uint
	}{
		{"empty", nil, 0},
		{"single", []Rel{{Offset: 0x10, Sym: 3, Type: 2, Addend: 7}}, 0},
		{
			"monotonic offsets, repeated symbol",
			[]Rel{
				{Offset: 0x10, Sym: 5, Type: 1, Addend: 0},
				{Offset: 0x18, Sym: 5, Type: 1, Addend: 4},
				{Offset: 0x20, Sym: 9, Type: 3, Addend: -8},
			},
			0,
		},
		{
			"8-byte-aligned offsets use a nonzero scale",
			[]Rel{
				{Offset: 0x100, Sym: 1, Type: 1},
				{Offset: 0x108, Sym: 2, Type: 1},
				{Offset: 0x208, Sym: 2, Type: 4, Addend: 16},
			},
			3,
		},
		{
			"large delta forces the ULEB continuation",
			[]Rel{
				{Offset: 0, Sym: 1, Type: 1},
				{Offset: 1 << 20, Sym: 1, Type: 1},
			},
			0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := encodeCREL(t, tc.rels, true, tc.scale)
			got, err := decodeCREL(data, rela)
			if err != nil {
				t.Fatalf("decodeCREL: %v", err)
			}
			want := tc.rels
			if len(want) == 0 {
				want = []Rel{}
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("decodeCREL round-trip mismatch:\n got  %+v\n want %+v", got, want)
			}
		})
	}
}

func TestDecodeCRELNoAddendOnRelTarget(t *testing.T) {
	rels := []Rel{{Offset: 4, Sym: 1, Type: 2}}
	data := encodeCREL(t, rels, false, 0)

	got, err := decodeCREL(data, Target{IsRela: false})
	if err != nil {
		t.Fatalf("decodeCREL: %v", err)
	}
	if len(got) != 1 || got[0].Addend != 0 {
		t.Fatalf("expected zero addend for a REL-only CREL section, got %+v", got)
	}
}

func TestDecodeCRELRejectsRelaOnRelOnlyTarget(t *testing.T) {
	rels := []Rel{{Offset: 4, Sym: 1, Type: 2, Addend: 3}}
	data := encodeCREL(t, rels, true, 0)

	if _, err := decodeCREL(data, Target{IsRela: false}); err == nil {
		t.Fatalf("expected an error when an is_rela CREL section targets a REL-only ABI")
	}
}

func TestULEB128ReaderSleb128(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, -64, 64, -65, 1 << 20, -(1 << 20)} {
		var buf []byte
		n := v
		for {
			b := byte(n & 0x7f)
			n >>= 7
			signBit := b&0x40 != 0
			if (n == 0 && !signBit) || (n == -1 && signBit) {
				buf = append(buf, b)
				break
			}
			buf = append(buf, b|0x80)
		}
		r := &utils.ULEB128Reader{Data: buf}
		got := r.Sleb128()
		if got != v {
			t.Errorf("Sleb128 round-trip for %d: got %d", v, got)
		}
	}
}
