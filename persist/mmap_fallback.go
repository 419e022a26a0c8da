//go:build !unix

package persist

import (
	"fmt"
	"os"
)

// mappedFile is a non-mmap fallback for platforms without golang.org/x/sys/unix
// mmap support: the bucket lives in a plain in-memory buffer and Sync
// flushes it to the backing file explicitly. Functionally equivalent to
// the mmap path from the store's point of view, just without the kernel
// page cache doing the syncing for us.
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

	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && err.Error() != "EOF" {
		// short read on a freshly truncated file is fine; data stays zeroed
	}

	return &mappedFile{file: f, data: data}, nil
}

func (m *mappedFile) Sync() error {
	if _, err := m.file.WriteAt(m.data, 0); err != nil {
		return fmt.Errorf("flush bucket file: %w", err)
	}
	return m.file.Sync()
}

func (m *mappedFile) Close() error {
	err := m.Sync()
	if cerr := m.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
