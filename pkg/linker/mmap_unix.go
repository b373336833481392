//go:build unix

package linker

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenMapped mmaps filename read-only, matching the teacher's preference
// for treating an input file's bytes as an immutable, zero-copy view
// (spec.md §4.1's "zero-copy structural accessor"). Falls back to the
// caller (MustNewFile) on any error, including on platforms where mmap
// isn't available.
func OpenMapped(filename string) (*MappedFile, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer fd.Close()

	st, err := fd.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filename, err)
	}
	if st.Size() == 0 {
		return &MappedFile{Name: filename, UserPath: filename}, nil
	}

	data, err := unix.Mmap(int(fd.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", filename, err)
	}

	return &MappedFile{
		Name:     filename,
		UserPath: filename,
		Contents: data,
		mmapped:  true,
	}, nil
}

func unmapFile(f *MappedFile) error {
	return unix.Munmap(f.Contents)
}
