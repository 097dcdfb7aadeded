package bootloader

import (
	"errors"
	"fmt"

	"github.com/kiibohd/controller/bootloader/dfu"
	"github.com/kiibohd/controller/usb"
)

var (
	// ErrStalled is returned when the device stalls a request.
	ErrStalled = errors.New("bootloader: request stalled")
	// ErrNoResponse is returned when a request never completes, which is how
	// a device that reset itself looks from the host.
	ErrNoResponse = errors.New("bootloader: no response")
)

const dfuInterface = 0

// Host drives a Bootloader the way a DFU host utility does.
type Host struct {
	b *Bootloader
}

// NewHost returns a host attached to b.
func NewHost(b *Bootloader) *Host { return &Host{b: b} }

// Control runs one control transfer and returns the IN payload.
func (h *Host) Control(setup usb.SetupPacket, out []byte) ([]byte, error) {
	t := usb.NewTransfer(setup, out)
	h.b.HandleSetup(setup, t)
	switch {
	case !t.Completed:
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, setup)
	case t.Stalled:
		return nil, fmt.Errorf("%w: %s", ErrStalled, setup)
	}
	return t.In, nil
}

func classOut(req uint8, value uint16, length int) usb.SetupPacket {
	return usb.SetupPacket{
		RequestType: usb.RequestHostToDevice | usb.RequestTypeClass | usb.RecipientInterface,
		Request:     req,
		Value:       value,
		Index:       dfuInterface,
		Length:      uint16(length),
	}
}

func classIn(req uint8, value uint16, length int) usb.SetupPacket {
	s := classOut(req, value, length)
	s.RequestType |= usb.RequestDeviceToHost
	return s
}

// StatusResult is a decoded GETSTATUS response.
type StatusResult struct {
	Status dfu.Status
	State  dfu.State
}

// GetStatus issues DFU_GETSTATUS.
func (h *Host) GetStatus() (StatusResult, error) {
	data, err := h.Control(classIn(dfu.RequestGetStatus, 0, dfu.StatusReportLen), nil)
	if err != nil {
		return StatusResult{}, err
	}
	if len(data) != dfu.StatusReportLen {
		return StatusResult{}, fmt.Errorf("bootloader: status report of %d bytes", len(data))
	}
	return StatusResult{Status: dfu.Status(data[0]), State: dfu.State(data[4])}, nil
}

// ClearStatus issues DFU_CLRSTATUS.
func (h *Host) ClearStatus() error {
	_, err := h.Control(classOut(dfu.RequestClrStatus, 0, 0), nil)
	return err
}

// Abort issues DFU_ABORT.
func (h *Host) Abort() error {
	_, err := h.Control(classOut(dfu.RequestAbort, 0, 0), nil)
	return err
}

// Detach issues DFU_DETACH.
func (h *Host) Detach() error {
	_, err := h.Control(classOut(dfu.RequestDetach, 0, 0), nil)
	return err
}

// SetAlt selects an alternate setting of the DFU interface.
func (h *Host) SetAlt(alt uint8) error {
	_, err := h.Control(usb.SetupPacket{
		RequestType: usb.RecipientInterface,
		Request:     usb.RequestSetInterface,
		Value:       uint16(alt),
		Index:       dfuInterface,
	}, nil)
	return err
}

// Dnload sends one DNLOAD block and checks the status that follows.
func (h *Host) Dnload(block uint16, data []byte) (StatusResult, error) {
	if _, err := h.Control(classOut(dfu.RequestDnload, block, len(data)), data); err != nil {
		return StatusResult{}, err
	}
	return h.GetStatus()
}

// Download writes image through the selected alternate setting. A non-nil
// key is sent as its own block ahead of the image. Download returns once the
// device reports the manifest finished.
func (h *Host) Download(image, key []byte) error {
	ts := h.b.dfu.TransferSize()
	var blockNum uint16
	send := func(data []byte) error {
		st, err := h.Dnload(blockNum, data)
		if err != nil {
			return fmt.Errorf("block %d: %w", blockNum, err)
		}
		if st.Status != dfu.StatusOK || st.State != dfu.DnloadIdle {
			return fmt.Errorf("block %d: %s in %s", blockNum, st.Status, st.State)
		}
		blockNum++
		return nil
	}
	if len(key) > 0 {
		if err := send(key); err != nil {
			return err
		}
	}
	for off := 0; off < len(image); off += ts {
		end := min(off+ts, len(image))
		if err := send(image[off:end]); err != nil {
			return err
		}
	}
	if _, err := h.Control(classOut(dfu.RequestDnload, blockNum, 0), nil); err != nil {
		return fmt.Errorf("end of download: %w", err)
	}
	// dfuMANIFEST, then dfuMANIFEST-WAIT-RESET.
	for i := 0; i < 2; i++ {
		st, err := h.GetStatus()
		if err != nil {
			return err
		}
		if st.Status != dfu.StatusOK {
			return fmt.Errorf("manifest: %s in %s", st.Status, st.State)
		}
	}
	return nil
}

// Upload reads the selected alternate setting until the device returns a
// short block.
func (h *Host) Upload() ([]byte, error) {
	ts := h.b.dfu.TransferSize()
	var out []byte
	for block := uint16(0); ; block++ {
		data, err := h.Control(classIn(dfu.RequestUpload, block, ts), nil)
		if err != nil {
			return out, fmt.Errorf("block %d: %w", block, err)
		}
		out = append(out, data...)
		if len(data) < ts {
			return out, nil
		}
	}
}

// CompatID issues the Microsoft OS extended compat ID request.
func (h *Host) CompatID() ([]byte, error) {
	return h.Control(usb.SetupPacket{
		RequestType: usb.RequestDeviceToHost | usb.RequestTypeVendor | usb.RecipientDevice,
		Request:     usb.MSVendorCode,
		Index:       usb.MSCompatIDIndex,
		Length:      usb.MSCompatIDLen,
	}, nil)
}

// Descriptor issues GET_DESCRIPTOR.
func (h *Host) Descriptor(descType, index uint8, length uint16) ([]byte, error) {
	return h.Control(usb.SetupPacket{
		RequestType: usb.RequestDeviceToHost,
		Request:     usb.RequestGetDescriptor,
		Value:       uint16(descType)<<8 | uint16(index),
		Length:      length,
	}, nil)
}
