//go:build unix

package flash

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type image struct {
	f    *os.File
	data []byte
}

// OpenImage maps the flash image at path, creating it erased when missing
// and extending it to size bytes.
func OpenImage(path string, size uint32) (Memory, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < int64(size) {
		if err := extendErased(f, fi.Size(), int64(size)); err != nil {
			f.Close()
			return nil, err
		}
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("flash: mmap %s: %w", path, err)
	}
	return &image{f: f, data: data}, nil
}

func (m *image) Bytes() []byte { return m.data }

func (m *image) Sync() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *image) Close() error {
	err := unix.Munmap(m.data)
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
