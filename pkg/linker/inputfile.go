package linker

import "sync/atomic"

// InputFile is the data every object and shared file shares: the
// mapped bytes, the parsed section table, the symbol table, and the
// monotonic reachability flag LiveTracer flips (spec.md §3 invariant 6
// "a file transitions not-reachable -> reachable at most once").
type InputFile struct {
	File *MappedFile
	View *ElfView

	ElfSections []Shdr
	ShStrtab    []byte

	// Priority orders otherwise-equal-rank candidates, lower wins ties
	// (spec.md §4.5). Object files and shared files are numbered
	// separately, each from 1 in the order they are added to the Context.
	Priority int

	reachable atomic.Bool
}

// FilePriority implements InputFileRef.
func (f *InputFile) FilePriority() int { return f.Priority }

// FileName implements InputFileRef.
func (f *InputFile) FileName() string { return f.File.Name }

// MarkReachable performs the file's not-reachable -> reachable
// transition via CAS, returning true only for the caller that actually
// flips it — grounded on the teacher lineage's SwapIsAlive, generalized
// from a plain bool (safe only because the teacher never parses files
// concurrently) to atomic.Bool.CompareAndSwap so LiveTracer's worker
// pool can race to mark a file reachable and only one worker enqueues
// its symbols.
func (f *InputFile) MarkReachable() bool {
	return f.reachable.CompareAndSwap(false, true)
}

// IsReachable reports the file's current reachability without mutating
// it.
func (f *InputFile) IsReachable() bool {
	return f.reachable.Load()
}

// GetBytesFromShdr returns the raw bytes of section s.
func (f *InputFile) GetBytesFromShdr(s *Shdr) ([]byte, error) {
	return f.View.GetBytes(s)
}

// GetBytesFromIdx returns the raw bytes of the section at idx.
func (f *InputFile) GetBytesFromIdx(idx int64) ([]byte, error) {
	return f.View.GetBytesByIndex(idx)
}

// FindSection returns the index of the first section with the given
// sh_type, or -1.
func (f *InputFile) FindSection(typ uint32) int64 {
	for i := range f.ElfSections {
		if f.ElfSections[i].Type == typ {
			return int64(i)
		}
	}
	return -1
}

// SectionName returns the name of the section at idx, looked up in
// ShStrtab.
func (f *InputFile) SectionName(idx int64) string {
	if idx < 0 || idx >= int64(len(f.ElfSections)) {
		return ""
	}
	return GetName(f.ShStrtab, f.ElfSections[idx].Name)
}
