//go:build unix

package persist

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile wraps a single memory-mapped bucket file, the way the
// original broker's MemoryMappedFile wraps one bucket per POSIX fd.
type mappedFile struct {
	file *os.File
	data []byte
}

func openMappedFile(path string, size int64) (*mappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open bucket file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat bucket file: %w", err)
	}

	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate bucket file: %w", err)
		}
	} else {
		size = info.Size()
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap bucket file: %w", err)
	}

	return &mappedFile{file: f, data: data}, nil
}

func (m *mappedFile) Sync() error {
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync bucket file: %w", err)
	}
	return nil
}

func (m *mappedFile) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
		m.data = nil
	}
	if cerr := m.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
