package flash

import (
	"errors"
	"fmt"
	"sort"
)

// ErrGeometry is returned for inconsistent flash layouts.
var ErrGeometry = errors.New("flash: invalid geometry")

// Geometry describes the flash of one part.
type Geometry struct {
	// Size is the total flash size in bytes.
	Size uint32
	// SectorSize is the erase unit.
	SectorSize uint32
	// TransferSize is the DFU block size, a divisor of SectorSize.
	TransferSize uint32
	// AppOrigin is where the application starts. Everything below is the
	// bootloader.
	AppOrigin uint32
	// AppEnd bounds firmware downloads. Zero means Size.
	AppEnd uint32
}

// Validate checks the layout invariants.
func (g Geometry) Validate() error {
	switch {
	case g.Size == 0 || g.SectorSize == 0 || g.TransferSize == 0:
		return fmt.Errorf("%w: zero size", ErrGeometry)
	case g.SectorSize%g.TransferSize != 0:
		return fmt.Errorf("%w: transfer size %d does not divide sector size %d", ErrGeometry, g.TransferSize, g.SectorSize)
	case g.Size%g.SectorSize != 0:
		return fmt.Errorf("%w: size %d is not a multiple of the sector size", ErrGeometry, g.Size)
	case g.AppOrigin%g.SectorSize != 0 || g.AppOrigin >= g.Size:
		return fmt.Errorf("%w: application origin 0x%x", ErrGeometry, g.AppOrigin)
	case g.AppEnd != 0 && (g.AppEnd <= g.AppOrigin || g.AppEnd > g.Size):
		return fmt.Errorf("%w: application end 0x%x", ErrGeometry, g.AppEnd)
	}
	return nil
}

// End returns the effective application end.
func (g Geometry) End() uint32 {
	if g.AppEnd == 0 {
		return g.Size
	}
	return g.AppEnd
}

// AppSize returns the number of bytes a download may cover.
func (g Geometry) AppSize() uint32 { return g.End() - g.AppOrigin }

var parts = map[string]Geometry{
	"mk20dx128": {Size: 128 << 10, SectorSize: 1 << 10, TransferSize: 1 << 10, AppOrigin: 0x1000},
	"mk20dx256": {Size: 256 << 10, SectorSize: 2 << 10, TransferSize: 1 << 10, AppOrigin: 0x2000},
	"mk22fx512": {Size: 512 << 10, SectorSize: 4 << 10, TransferSize: 2 << 10, AppOrigin: 0x2000},
	"sam4s8":    {Size: 512 << 10, SectorSize: 8 << 10, TransferSize: 4 << 10, AppOrigin: 0x8000},
}

// Part returns the geometry of a supported part.
func Part(name string) (Geometry, error) {
	g, ok := parts[name]
	if !ok {
		return Geometry{}, fmt.Errorf("%w: unknown part %q", ErrGeometry, name)
	}
	return g, nil
}

// Parts lists the supported part names.
func Parts() []string {
	out := make([]string, 0, len(parts))
	for name := range parts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
