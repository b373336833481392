package linker

import "testing"

func buildRiscvAttributesSection(t *testing.T) []byte {
	t.Helper()

	var sub []byte
	sub = append(sub, "riscv\x00"...)

	putUleb := func(v uint64) {
		for {
			b := byte(v & 0x7f)
			v >>= 7
			if v != 0 {
				b |= 0x80
			}
			sub = append(sub, b)
			if v == 0 {
				break
			}
		}
	}
	putCString := func(s string) {
		sub = append(sub, s...)
		sub = append(sub, 0)
	}

	putUleb(riscvTagStackAlign)
	putUleb(16)
	putUleb(riscvTagArch)
	putCString("rv64i2p1_m2p0_a2p1_c2p0")

	subsectionLen := uint32(4 + len(sub))
	header := []byte{
		byte(subsectionLen),
		byte(subsectionLen >> 8),
		byte(subsectionLen >> 16),
		byte(subsectionLen >> 24),
	}

	out := []byte{'A'}
	out = append(out, header...)
	out = append(out, sub...)
	return out
}

func TestParseRiscvAttributes(t *testing.T) {
	data := buildRiscvAttributesSection(t)
	attrs := ParseRiscvAttributes(data)

	if !attrs.Present {
		t.Fatalf("expected attributes to be marked present")
	}
	if attrs.StackAlign != 16 {
		t.Errorf("StackAlign = %d, want 16", attrs.StackAlign)
	}
	if attrs.Arch != "rv64i2p1_m2p0_a2p1_c2p0" {
		t.Errorf("Arch = %q", attrs.Arch)
	}
}

func TestParseRiscvAttributesBadFormatVersionIgnored(t *testing.T) {
	data := []byte{'B', 0, 0, 0, 0}
	attrs := ParseRiscvAttributes(data)
	if attrs.Present {
		t.Fatalf("a non-'A' format version must be silently ignored, not parsed")
	}
}

func TestParseRiscvAttributesEmpty(t *testing.T) {
	attrs := ParseRiscvAttributes(nil)
	if attrs.Present {
		t.Fatalf("an empty section must not be marked present")
	}
}
