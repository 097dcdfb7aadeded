// Package dfu implements the DFU 1.1 class interface of the bootloader.
//
// The handler is driven by control requests from the USB stack. It is only
// ever called from the control path, one request at a time, and needs no
// locking of its own.
package dfu

import (
	"log/slog"

	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/usb"
)

// Validator is the part-specific side of a download.
type Validator interface {
	// Validate inspects the first block of a download and returns the
	// length of its key section, or an error when the key is wrong.
	Validate(block []byte) (int, error)
	// DownloadComplete runs when the host collects the manifest status.
	DownloadComplete()
	// DisableDebugHalt lets the next reset boot the application.
	DisableDebugHalt()
}

// acceptAll is the Validator of parts without download validation.
type acceptAll struct{}

func (acceptAll) Validate([]byte) (int, error) { return 0, nil }
func (acceptAll) DownloadComplete()            {}
func (acceptAll) DisableDebugHalt()            {}

// ResetFunc resets the target of alternate setting alt. Alternate setting 0
// is the device itself; other settings drive a companion part's reset line.
type ResetFunc func(alt uint8)

// Options configures a Handler.
type Options struct {
	// Targets holds one target per alternate setting.
	Targets      []Target
	TransferSize int
	// Validator defaults to accepting every download.
	Validator Validator
	Reset     ResetFunc
	// MSVendorCode answers Microsoft OS feature requests. Zero disables them.
	MSVendorCode uint8
	Interface    uint8
	Logger       *slog.Logger
	Raw          log.RawLogger
}

// Handler is the DFU interface.
type Handler struct {
	ctx    Context
	opts   Options
	buf    []byte
	logger *slog.Logger
}

// New returns a handler in dfuIDLE.
func New(opts Options) *Handler {
	if opts.Raw == nil {
		opts.Raw = log.NewRaw(nil)
	}
	if opts.Validator == nil {
		opts.Validator = acceptAll{}
	}
	h := &Handler{opts: opts, logger: log.Component(opts.Logger, "dfu")}
	h.Reset()
	return h
}

// Reset returns to dfuIDLE with a clean context.
func (h *Handler) Reset() {
	h.ctx = Context{State: Idle, Status: StatusOK, AltSetting: h.ctx.AltSetting}
	h.buf = nil
}

// Context returns a snapshot of the DFU context.
func (h *Handler) Context() Context { return h.ctx }

// SetAlt selects the alternate setting. It fails for unknown settings.
func (h *Handler) SetAlt(alt uint8) bool {
	if int(alt) >= len(h.opts.Targets) {
		return false
	}
	h.ctx.AltSetting = alt
	return true
}

// TransferSize returns wTransferSize.
func (h *Handler) TransferSize() int { return h.opts.TransferSize }

func (h *Handler) target() Target { return h.opts.Targets[h.ctx.AltSetting] }

// HandleSetup processes a control request. It returns false when the
// request is not for this interface; the caller then stalls it.
func (h *Handler) HandleSetup(setup usb.SetupPacket, pipe usb.ControlPipe) bool {
	h.opts.Raw.Log("setup", setup.Bytes())

	if setup.IsVendor() {
		return h.handleVendor(setup, pipe)
	}
	if !setup.IsClass() {
		return false
	}

	switch setup.Request {
	case RequestDetach:
		if h.ctx.State != Idle {
			return h.stall(pipe, StatusErrStalledPkt)
		}
		h.logger.Info("detach", "alt", h.ctx.AltSetting)
		h.reset(h.ctx.AltSetting)
		return true

	case RequestDnload:
		return h.dnload(setup, pipe)

	case RequestUpload:
		return h.upload(setup, pipe)

	case RequestGetStatus:
		st := h.ctx
		h.tx(pipe, StatusReport(st.Status, st.State), setup.Length)
		switch st.State {
		case Manifest:
			h.opts.Validator.DownloadComplete()
			h.ctx.State = ManifestWaitReset
		case ManifestWaitReset:
			h.ctx.State = Idle
			if h.ctx.AltSetting == 0 {
				h.opts.Validator.DisableDebugHalt()
			}
		}
		return true

	case RequestClrStatus:
		h.ctx.State = Idle
		h.ctx.Status = StatusOK
		pipe.Status(true)
		return true

	case RequestGetState:
		h.tx(pipe, []byte{byte(h.ctx.State)}, setup.Length)
		return true

	case RequestAbort:
		switch h.ctx.State {
		case Idle, DnloadIdle, UploadIdle:
			h.ctx.State = Idle
			pipe.Status(true)
			return true
		}
		return h.stall(pipe, StatusErrStalledPkt)
	}
	return false
}

func (h *Handler) dnload(setup usb.SetupPacket, pipe usb.ControlPipe) bool {
	n := int(setup.Length)
	switch h.ctx.State {
	case Idle:
		if n == 0 {
			return h.stall(pipe, StatusErrStalledPkt)
		}
		h.ctx.Off = 0
		h.ctx.LastShort = false
		h.ctx.Verified = VerifiedUnknown
	case DnloadIdle:
	default:
		return h.stall(pipe, StatusErrStalledPkt)
	}

	if n > 0 && (h.ctx.LastShort || n > h.opts.TransferSize) {
		h.logger.Warn("rejected block", "off", h.ctx.Off, "len", n, "last_short", h.ctx.LastShort)
		return h.stall(pipe, StatusErrAddress)
	}

	buf, status := h.target().SetupWrite(h.ctx.Off, n)
	if status != StatusOK {
		return h.stall(pipe, status)
	}
	if n == 0 {
		h.ctx.State = Manifest
		h.ctx.Len = 0
		h.logger.Info("download finished", "bytes", h.ctx.Off)
		pipe.Status(true)
		return true
	}
	h.buf = buf
	pipe.Rx(buf, func(got int) { h.finishWrite(pipe, got) })
	return true
}

// finishWrite runs when the data stage of a DNLOAD completes.
func (h *Handler) finishWrite(pipe usb.ControlPipe, n int) {
	block := h.buf[:n]
	h.buf = nil
	h.opts.Raw.Log("out", block)

	if h.ctx.Off == 0 && h.ctx.Verified == VerifiedUnknown {
		keyLen, err := h.opts.Validator.Validate(block)
		if err != nil {
			h.ctx.Verified = VerifiedFailed
			h.logger.Warn("download validation failed, resetting", "error", err)
			// No status stage: the host only ever sees the reset.
			h.reset(0)
			return
		}
		if keyLen > 0 {
			h.ctx.Verified = VerifiedPending
			h.ctx.State = DnloadIdle
			h.ctx.Status = StatusOK
			h.ctx.LastShort = false
			pipe.Status(true)
			return
		}
		h.ctx.Verified = VerifiedOK
	} else if h.ctx.Verified == VerifiedPending {
		h.ctx.Verified = VerifiedOK
	}

	h.ctx.State = DnBusy
	if status := h.target().FinishWrite(h.ctx.Off, n); status != StatusOK {
		h.logger.Error("flash write failed", "off", h.ctx.Off, "len", n, "status", status)
		h.stall(pipe, status)
		return
	}
	h.ctx.Off += uint32(n)
	h.ctx.Len = n
	if n < h.opts.TransferSize {
		h.ctx.LastShort = true
	}
	h.ctx.State = DnloadIdle
	h.ctx.Status = StatusOK
	h.logger.Debug("block written", "off", h.ctx.Off, "len", n)
	pipe.Status(true)
}

func (h *Handler) upload(setup usb.SetupPacket, pipe usb.ControlPipe) bool {
	switch h.ctx.State {
	case Idle, UploadIdle:
	default:
		return h.stall(pipe, StatusErrStalledPkt)
	}
	n := int(setup.Length)
	off := uint32(h.opts.TransferSize) * uint32(setup.Value)
	data, status := h.target().SetupRead(off, n)
	if status != StatusOK {
		return h.stall(pipe, status)
	}
	h.ctx.Off = off
	h.ctx.Len = len(data)
	if len(data) < n {
		h.ctx.State = Idle
	} else {
		h.ctx.State = UploadIdle
	}
	h.opts.Raw.Log("in", data)
	pipe.Tx(data)
	return true
}

func (h *Handler) handleVendor(setup usb.SetupPacket, pipe usb.ControlPipe) bool {
	if h.opts.MSVendorCode == 0 || setup.Request != h.opts.MSVendorCode || setup.Index != usb.MSCompatIDIndex {
		return false
	}
	h.tx(pipe, usb.MSCompatIDDescriptor(h.opts.Interface, "WINUSB"), setup.Length)
	return true
}

func (h *Handler) tx(pipe usb.ControlPipe, data []byte, limit uint16) {
	if len(data) > int(limit) {
		data = data[:limit]
	}
	h.opts.Raw.Log("in", data)
	pipe.Tx(data)
}

// stall moves to dfuERROR with status and stalls the transfer.
func (h *Handler) stall(pipe usb.ControlPipe, status Status) bool {
	h.ctx.Status = status
	h.ctx.State = Error
	h.logger.Debug("stall", "status", status)
	pipe.Status(false)
	return true
}

func (h *Handler) reset(alt uint8) {
	if h.opts.Reset != nil {
		h.opts.Reset(alt)
	}
}
