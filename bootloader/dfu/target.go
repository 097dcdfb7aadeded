package dfu

import (
	"errors"

	"github.com/kiibohd/controller/bootloader/flash"
)

// Target is the memory behind one alternate setting. Offsets are relative
// to the start of the firmware region.
type Target interface {
	// SetupWrite returns the buffer the n-byte block at off is received
	// into. n is zero for the end-of-download request.
	SetupWrite(off uint32, n int) ([]byte, Status)
	// FinishWrite commits the received block.
	FinishWrite(off uint32, n int) Status
	// SetupRead returns up to n bytes at off. A short result ends the
	// upload.
	SetupRead(off uint32, n int) ([]byte, Status)
}

// FlashTarget downloads into the application region of a flash backend.
type FlashTarget struct {
	fb *flash.Backend
}

// NewFlashTarget returns a target writing through fb.
func NewFlashTarget(fb *flash.Backend) *FlashTarget {
	return &FlashTarget{fb: fb}
}

func (t *FlashTarget) SetupWrite(off uint32, n int) ([]byte, Status) {
	if n == 0 {
		return nil, StatusOK
	}
	geo := t.fb.Geometry()
	if uint64(off)+uint64(n) > uint64(geo.AppSize()) {
		return nil, StatusErrAddress
	}
	buf := t.fb.StagingArea(geo.AppOrigin+off, n)
	if buf == nil {
		return nil, StatusErrAddress
	}
	return buf, StatusOK
}

func (t *FlashTarget) FinishWrite(off uint32, n int) Status {
	if n == 0 {
		return StatusOK
	}
	geo := t.fb.Geometry()
	// A short last block is padded with erased bytes by the staging area.
	return StatusFor(t.fb.ProgramSector(geo.AppOrigin+off, int(geo.TransferSize)))
}

func (t *FlashTarget) SetupRead(off uint32, n int) ([]byte, Status) {
	geo := t.fb.Geometry()
	size := geo.AppSize()
	if off >= size {
		return nil, StatusOK
	}
	if rest := size - off; uint32(n) > rest {
		n = int(rest)
	}
	return t.fb.Read(geo.AppOrigin+off, n), StatusOK
}

// StatusFor maps a flash error to the status reported to the host.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, flash.ErrLength), errors.Is(err, flash.ErrStaging):
		return StatusErrWrite
	}
	// Controller faults, protection and range errors.
	return StatusErrAddress
}
