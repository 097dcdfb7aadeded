package flash

import "io"

// Memory is the storage behind a Backend.
type Memory interface {
	// Bytes returns the whole flash contents. Writes go straight to it.
	Bytes() []byte
	Sync() error
	Close() error
}

type ram []byte

// NewMemory returns an erased in-memory flash of size bytes.
func NewMemory(size uint32) Memory {
	m := make(ram, size)
	fill(m, Erased)
	return m
}

func (m ram) Bytes() []byte { return m }
func (ram) Sync() error     { return nil }
func (ram) Close() error    { return nil }

// extendErased fills f with erased bytes between offsets from and to.
func extendErased(f io.WriterAt, from, to int64) error {
	buf := make([]byte, 4096)
	fill(buf, Erased)
	for off := from; off < to; {
		n := int64(len(buf))
		if to-off < n {
			n = to - off
		}
		if _, err := f.WriteAt(buf[:n], off); err != nil {
			return err
		}
		off += n
	}
	return nil
}
