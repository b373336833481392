package linker

import "os"

// MappedFile is a loaded input file: the archive member name (if any)
// this came from, the path the user supplied verbatim (for diagnostics),
// and the backing bytes. Contents is produced by mmap on platforms that
// support it (see mmap_unix.go) and falls back to a plain read elsewhere.
type MappedFile struct {
	// Name is the path as given on the command line, or the synthetic
	// "archive.a(member.o)" form for an archive member.
	Name string
	// Contents is the raw file bytes, possibly mmap-backed.
	Contents []byte
	// Parent points at the archive MappedFile this member was extracted
	// from, or nil for a file named directly on the command line.
	Parent *MappedFile
	// UserPath is the exact string the user passed, before any -L search
	// or archive-member splitting; used only for error messages.
	UserPath string
	mmapped bool
}

// MustNewFile loads filename, preferring mmap (see OpenMapped) and
// falling back to a plain read. It terminates the process on failure,
// matching the teacher's convention that a missing top-level input file
// is unrecoverable.
func MustNewFile(filename string) *MappedFile {
	f, err := OpenMapped(filename)
	if err != nil {
		contents, rerr := os.ReadFile(filename)
		if rerr != nil {
			panic(err)
		}
		return &MappedFile{Name: filename, UserPath: filename, Contents: contents}
	}
	return f
}

// OpenLibrary opens filepath for archive search, returning nil rather
// than erroring so callers can probe multiple search-path candidates.
func OpenLibrary(filepath string) *MappedFile {
	f, err := OpenMapped(filepath)
	if err != nil {
		return nil
	}
	return f
}

// FindLibrary resolves a bare "-lfoo" argument against the configured
// library search path, returning the first "libfoo.a" found.
func FindLibrary(libraryPaths []string, name string) (*MappedFile, bool) {
	for _, dir := range libraryPaths {
		if f := OpenLibrary(dir + "/lib" + name + ".a"); f != nil {
			return f, true
		}
	}
	return nil, false
}

// Close unmaps the file's backing memory, if it was mmap-backed. Safe to
// call on a plain-read MappedFile (no-op).
func (f *MappedFile) Close() error {
	if !f.mmapped {
		return nil
	}
	return unmapFile(f)
}
