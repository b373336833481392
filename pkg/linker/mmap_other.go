//go:build !unix

package linker

import (
	"fmt"
	"os"
)

// OpenMapped falls back to a plain read on non-unix platforms, where
// golang.org/x/sys/unix.Mmap isn't available.
func OpenMapped(filename string) (*MappedFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return &MappedFile{Name: filename, UserPath: filename, Contents: data}, nil
}

func unmapFile(f *MappedFile) error { return nil }
