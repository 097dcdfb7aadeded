//go:build !unix

package flash

import (
	"io"
	"os"
)

type image struct {
	f    *os.File
	data []byte
}

// OpenImage loads the flash image at path, creating it erased when missing
// and extending it to size bytes. Sync writes it back.
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
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), data); err != nil {
		f.Close()
		return nil, err
	}
	return &image{f: f, data: data}, nil
}

func (m *image) Bytes() []byte { return m.data }

func (m *image) Sync() error {
	_, err := m.f.WriteAt(m.data, 0)
	return err
}

func (m *image) Close() error {
	err := m.Sync()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
