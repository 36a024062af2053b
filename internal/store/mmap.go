package store

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile wraps a single memory-mapped file that grows by truncate +
// remap. It is the storage primitive DataStore uses for both vectors.bin
// and ids.bin.
type mappedFile struct {
	file *os.File
	data []byte
	path string
	size int64
}

// openMapped opens (creating if absent) the file at path and maps at least
// minSize bytes. A zero-length file cannot be mapped on most platforms, so
// a freshly created file is always truncated up to minSize first.
func openMapped(path string, minSize int64) (*mappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := stat.Size()
	if size < minSize {
		size = minSize
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("refusing to map empty file %s", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &mappedFile{file: f, data: data, path: path, size: size}, nil
}

// Grow truncates the backing file to newSize and remaps it. Existing bytes
// remain at their prior offsets; the moment readers observe the new mapping
// is the remap call itself, which callers must serialize under the
// DataStore's exclusive lock.
func (m *mappedFile) Grow(newSize int64) error {
	if newSize <= m.size {
		return nil
	}

	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("munmap %s: %w", m.path, err)
	}
	m.data = nil

	if err := m.file.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate %s: %w", m.path, err)
	}

	data, err := unix.Mmap(int(m.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("remap %s: %w", m.path, err)
	}

	m.data = data
	m.size = newSize
	return nil
}

// Sync flushes dirty pages to disk via msync.
func (m *mappedFile) Sync() error {
	if m.data == nil {
		return fmt.Errorf("mapping %s is closed", m.path)
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", m.path, err)
	}
	return nil
}

// Close unmaps and closes the backing file.
func (m *mappedFile) Close() error {
	var err error
	if m.data != nil {
		if uerr := unix.Munmap(m.data); uerr != nil {
			err = fmt.Errorf("munmap %s: %w", m.path, uerr)
		}
		m.data = nil
	}
	if m.file != nil {
		if cerr := m.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", m.path, cerr)
		}
		m.file = nil
	}
	return err
}
