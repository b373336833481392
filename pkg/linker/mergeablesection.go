package linker

import (
	"sort"
	"sync"
)

// MergeableSection is one input section flagged SHF_MERGE (optionally
// SHF_STRINGS): its content is split into fragments at the point of
// ingestion, each fragment later deduplicated against every other
// object's fragments for the same (name, flags, entsize) key (spec.md
// §3 MergeableSection, §4.7).
type MergeableSection struct {
	Parent      *InputSection
	P2Align     uint8
	Strs        [][]byte // fragment content, NUL included for SHF_STRINGS
	FragOffsets []uint32 // each fragment's offset within the original section
	Fragments   []*SectionFragment
}

// GetFragment returns the fragment covering byte offset off within the
// original section, and the addend (off minus that fragment's start) a
// relocation against this offset needs to preserve (spec.md §4.7
// "relocations... redirected to a synthesized hidden <fragment>
// symbol... Value = fragOffset - addend").
func (m *MergeableSection) GetFragment(off uint32) (*SectionFragment, uint32) {
	i := sort.Search(len(m.FragOffsets), func(i int) bool {
		return m.FragOffsets[i] > off
	}) - 1
	if i < 0 {
		i = 0
	}
	return m.Fragments[i], off - m.FragOffsets[i]
}

// mergedSectionKey identifies the shared accumulator a MergeableSection
// contributes its fragments to.
type mergedSectionKey struct {
	name    string
	flags   uint64
	entsize uint64
}

// MergedSectionAccumulator is the process-wide dedup table for one
// (name, flags, entsize) family of mergeable sections: every object's
// MergeableSection with this key inserts its fragments here and gets
// back the canonical, deduplicated *SectionFragment for each.
type MergedSectionAccumulator struct {
	Key mergedSectionKey

	mu      sync.RWMutex
	entries map[string]*SectionFragment

	baseAddr uint64
}

func newMergedSectionAccumulator(key mergedSectionKey) *MergedSectionAccumulator {
	return &MergedSectionAccumulator{
		Key:     key,
		entries: make(map[string]*SectionFragment),
	}
}

// Insert returns the canonical fragment for content, creating one with
// the given alignment on first sight. p2align only matters the first
// time a given content is inserted; later insertions keep the original.
func (m *MergedSectionAccumulator) Insert(content string, p2align uint8) *SectionFragment {
	m.mu.RLock()
	if f, ok := m.entries[content]; ok {
		m.mu.RUnlock()
		return f
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.entries[content]; ok {
		return f
	}
	f := NewSectionFragment(m)
	f.P2Align = p2align
	m.entries[content] = f
	return f
}

// SetBaseAddr records the accumulator's base address, assigned by a
// downstream layout pass this core does not itself perform.
func (m *MergedSectionAccumulator) SetBaseAddr(addr uint64) { m.baseAddr = addr }

// GetOrCreateMergedSection returns the shared accumulator for key,
// creating it on first use. Guarded by ctx's own lock since
// MergedSections is a plain map read/written from every ObjectParser
// worker.
func GetOrCreateMergedSection(ctx *Context, key mergedSectionKey) *MergedSectionAccumulator {
	ctx.mergedMu.Lock()
	defer ctx.mergedMu.Unlock()
	if acc, ok := ctx.MergedSections[key]; ok {
		return acc
	}
	acc := newMergedSectionAccumulator(key)
	ctx.MergedSections[key] = acc
	return acc
}
