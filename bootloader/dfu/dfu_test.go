package dfu_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiibohd/controller/bootloader/dfu"
	"github.com/kiibohd/controller/bootloader/flash"
	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/usb"
)

var geo = flash.Geometry{Size: 16 << 10, SectorSize: 2 << 10, TransferSize: 1 << 10, AppOrigin: 4 << 10, AppEnd: 8 << 10}

var errKey = errors.New("bad key")

// validator accepts blocks starting with key as a key section. A nil key
// means the download is not gated.
type validator struct {
	key       []byte
	completes int
	unhalted  bool
}

func (v *validator) Validate(block []byte) (int, error) {
	if v.key == nil {
		return 0, nil
	}
	if bytes.HasPrefix(block, v.key) {
		return len(v.key), nil
	}
	return 0, errKey
}

func (v *validator) DownloadComplete() { v.completes++ }
func (v *validator) DisableDebugHalt() { v.unhalted = true }

type fixture struct {
	h      *dfu.Handler
	fb     *flash.Backend
	v      *validator
	resets []uint8
}

func newFixture(t *testing.T, key []byte) *fixture {
	t.Helper()
	fb, err := flash.New(geo, flash.NewMemory(geo.Size), log.Discard())
	require.NoError(t, err)
	f := &fixture{fb: fb, v: &validator{key: key}}
	f.h = dfu.New(dfu.Options{
		Targets:      []dfu.Target{dfu.NewFlashTarget(fb)},
		TransferSize: int(geo.TransferSize),
		Validator:    f.v,
		Reset:        func(alt uint8) { f.resets = append(f.resets, alt) },
		MSVendorCode: usb.MSVendorCode,
		Logger:       log.Discard(),
	})
	return f
}

func class(req uint8, in bool, value uint16, length int) usb.SetupPacket {
	s := usb.SetupPacket{
		RequestType: usb.RequestTypeClass | usb.RecipientInterface,
		Request:     req,
		Value:       value,
		Length:      uint16(length),
	}
	if in {
		s.RequestType |= usb.RequestDeviceToHost
	}
	return s
}

func (f *fixture) do(t *testing.T, setup usb.SetupPacket, out []byte) *usb.Transfer {
	t.Helper()
	tr := usb.NewTransfer(setup, out)
	require.True(t, f.h.HandleSetup(setup, tr), "request not handled: %s", setup)
	return tr
}

func (f *fixture) dnload(t *testing.T, block uint16, data []byte) *usb.Transfer {
	t.Helper()
	return f.do(t, class(dfu.RequestDnload, false, block, len(data)), data)
}

func (f *fixture) status(t *testing.T) (dfu.Status, dfu.State) {
	t.Helper()
	tr := f.do(t, class(dfu.RequestGetStatus, true, 0, dfu.StatusReportLen), nil)
	require.Len(t, tr.In, dfu.StatusReportLen)
	return dfu.Status(tr.In[0]), dfu.State(tr.In[4])
}

func chunk(v byte, n int) []byte { return bytes.Repeat([]byte{v}, n) }

func TestDownload(t *testing.T) {
	f := newFixture(t, nil)
	ts := int(geo.TransferSize)

	tr := f.dnload(t, 0, chunk(0x11, ts))
	assert.True(t, tr.Completed)
	assert.False(t, tr.Stalled)
	st, state := f.status(t)
	assert.Equal(t, dfu.StatusOK, st)
	assert.Equal(t, dfu.DnloadIdle, state)

	f.dnload(t, 1, chunk(0x22, 100))
	assert.True(t, f.h.Context().LastShort)
	assert.Equal(t, uint32(ts+100), f.h.Context().Off)

	tr = f.dnload(t, 2, nil)
	assert.False(t, tr.Stalled)
	assert.Equal(t, dfu.Manifest, f.h.Context().State)

	_, state = f.status(t)
	assert.Equal(t, dfu.Manifest, state)
	assert.Equal(t, 1, f.v.completes)
	assert.Equal(t, dfu.ManifestWaitReset, f.h.Context().State)

	_, state = f.status(t)
	assert.Equal(t, dfu.ManifestWaitReset, state)
	assert.True(t, f.v.unhalted)
	assert.Equal(t, dfu.Idle, f.h.Context().State)

	assert.Equal(t, chunk(0x11, ts), f.fb.Read(geo.AppOrigin, ts))
	assert.Equal(t, chunk(0x22, 100), f.fb.Read(geo.AppOrigin+uint32(ts), 100))
	assert.True(t, f.fb.Blank(geo.AppOrigin+uint32(ts)+100, ts-100), "short block padded erased")
}

func TestDownloadWithoutValidator(t *testing.T) {
	fb, err := flash.New(geo, flash.NewMemory(geo.Size), log.Discard())
	require.NoError(t, err)
	f := &fixture{fb: fb}
	f.h = dfu.New(dfu.Options{
		Targets:      []dfu.Target{dfu.NewFlashTarget(fb)},
		TransferSize: int(geo.TransferSize),
		Logger:       log.Discard(),
	})

	assert.NotPanics(t, func() {
		f.dnload(t, 0, chunk(0x33, 100))
		f.dnload(t, 1, nil)
		f.status(t)
		f.status(t)
	})
	assert.Equal(t, dfu.Idle, f.h.Context().State)
	assert.Equal(t, chunk(0x33, 100), fb.Read(geo.AppOrigin, 100))
}

func TestDownloadWithKey(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	f := newFixture(t, key)
	ts := int(geo.TransferSize)

	f.dnload(t, 0, key)
	ctx := f.h.Context()
	assert.Equal(t, dfu.VerifiedPending, ctx.Verified)
	assert.Zero(t, ctx.Off, "the key block is not written")
	assert.False(t, ctx.LastShort, "the key block does not count as a short block")
	assert.True(t, f.fb.Blank(geo.AppOrigin, ts))

	f.dnload(t, 1, chunk(0x33, ts))
	assert.Equal(t, dfu.VerifiedOK, f.h.Context().Verified)
	assert.Equal(t, chunk(0x33, ts), f.fb.Read(geo.AppOrigin, ts))
}

func TestDownloadValidationFailureResets(t *testing.T) {
	f := newFixture(t, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	tr := f.dnload(t, 0, chunk(0x44, int(geo.TransferSize)))
	assert.False(t, tr.Completed, "no status stage after a failed validation")
	assert.Equal(t, []uint8{0}, f.resets)
	assert.Equal(t, dfu.VerifiedFailed, f.h.Context().Verified)
	assert.True(t, f.fb.Blank(geo.AppOrigin, int(geo.TransferSize)))
}

func TestDownloadErrors(t *testing.T) {
	ts := int(geo.TransferSize)
	type testCase struct {
		name   string
		blocks [][]byte
		fault  error
		status dfu.Status
	}
	cases := []testCase{
		{
			name:   "zero length from idle",
			blocks: [][]byte{nil},
			status: dfu.StatusErrStalledPkt,
		},
		{
			name:   "block after a short block",
			blocks: [][]byte{chunk(1, 10), chunk(2, 10)},
			status: dfu.StatusErrAddress,
		},
		{
			name:   "block larger than the transfer size",
			blocks: [][]byte{chunk(1, ts+1)},
			status: dfu.StatusErrAddress,
		},
		{
			name:   "past the application end",
			blocks: [][]byte{chunk(1, ts), chunk(1, ts), chunk(1, ts), chunk(1, ts), chunk(1, ts)},
			status: dfu.StatusErrAddress,
		},
		{
			name:   "flash fault",
			blocks: [][]byte{chunk(1, ts)},
			fault:  flash.ErrProtection,
			status: dfu.StatusErrAddress,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tc.fault != nil {
				f.fb.SetFault(func(flash.Op, uint32) error { return tc.fault })
			}
			var tr *usb.Transfer
			for i, b := range tc.blocks {
				tr = f.dnload(t, uint16(i), b)
			}
			assert.True(t, tr.Stalled)
			st, state := f.status(t)
			assert.Equal(t, tc.status, st)
			assert.Equal(t, dfu.Error, state)

			// Further downloads stall until the error is cleared.
			assert.True(t, f.dnload(t, 9, chunk(1, ts)).Stalled)
			f.do(t, class(dfu.RequestClrStatus, false, 0, 0), nil)
			st, state = f.status(t)
			assert.Equal(t, dfu.StatusOK, st)
			assert.Equal(t, dfu.Idle, state)
		})
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)
	ts := int(geo.TransferSize)
	f.dnload(t, 0, chunk(0x55, ts))
	f.do(t, class(dfu.RequestAbort, false, 0, 0), nil)

	tr := f.do(t, class(dfu.RequestUpload, true, 0, ts), nil)
	assert.Equal(t, chunk(0x55, ts), tr.In)
	assert.Equal(t, dfu.UploadIdle, f.h.Context().State)

	last := uint16(geo.AppSize()/geo.TransferSize) - 1
	tr = f.do(t, class(dfu.RequestUpload, true, last, ts), nil)
	assert.Len(t, tr.In, ts)

	tr = f.do(t, class(dfu.RequestUpload, true, last+1, ts), nil)
	assert.Empty(t, tr.In, "short block ends the upload")
	assert.Equal(t, dfu.Idle, f.h.Context().State)
}

func TestUploadRefusedWhileDownloading(t *testing.T) {
	f := newFixture(t, nil)
	f.dnload(t, 0, chunk(0x55, int(geo.TransferSize)))
	tr := f.do(t, class(dfu.RequestUpload, true, 0, int(geo.TransferSize)), nil)
	assert.True(t, tr.Stalled)
	st, _ := f.status(t)
	assert.Equal(t, dfu.StatusErrStalledPkt, st)
}

func TestAbort(t *testing.T) {
	type testCase struct {
		name    string
		prepare func(t *testing.T, f *fixture)
		stalled bool
	}
	cases := []testCase{
		{name: "idle", prepare: func(*testing.T, *fixture) {}},
		{name: "download idle", prepare: func(t *testing.T, f *fixture) {
			f.dnload(t, 0, chunk(1, int(geo.TransferSize)))
		}},
		{name: "error", prepare: func(t *testing.T, f *fixture) {
			f.dnload(t, 0, nil)
		}, stalled: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tc.prepare(t, f)
			tr := f.do(t, class(dfu.RequestAbort, false, 0, 0), nil)
			assert.Equal(t, tc.stalled, tr.Stalled)
			if !tc.stalled {
				assert.Equal(t, dfu.Idle, f.h.Context().State)
			}
		})
	}
}

func TestDetach(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, class(dfu.RequestDetach, false, 1000, 0), nil)
	assert.Equal(t, []uint8{0}, f.resets)

	f.dnload(t, 0, nil)
	tr := f.do(t, class(dfu.RequestDetach, false, 1000, 0), nil)
	assert.True(t, tr.Stalled, "detach outside dfuIDLE")
	assert.Len(t, f.resets, 1)
}

func TestGetState(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.do(t, class(dfu.RequestGetState, true, 0, 1), nil)
	assert.Equal(t, []byte{byte(dfu.Idle)}, tr.In)
}

func TestStatusReport(t *testing.T) {
	assert.Equal(t, []byte{0x08, 0xE8, 0x03, 0x00, 0x0A, 0x00}, dfu.StatusReport(dfu.StatusErrAddress, dfu.Error))
}

func TestMSCompatID(t *testing.T) {
	f := newFixture(t, nil)
	setup := usb.SetupPacket{
		RequestType: usb.RequestDeviceToHost | usb.RequestTypeVendor,
		Request:     usb.MSVendorCode,
		Index:       usb.MSCompatIDIndex,
		Length:      usb.MSCompatIDLen,
	}
	tr := f.do(t, setup, nil)
	require.Len(t, tr.In, usb.MSCompatIDLen)
	assert.Equal(t, "WINUSB", string(tr.In[18:24]))

	setup.Length = 16
	assert.Len(t, f.do(t, setup, nil).In, 16, "truncated to wLength")

	setup.Request = 0x31
	assert.False(t, f.h.HandleSetup(setup, usb.NewTransfer(setup, nil)))
}

func TestUnhandledRequests(t *testing.T) {
	f := newFixture(t, nil)
	std := usb.SetupPacket{Request: usb.RequestGetStatus}
	assert.False(t, f.h.HandleSetup(std, usb.NewTransfer(std, nil)))
	unknown := class(0x42, false, 0, 0)
	assert.False(t, f.h.HandleSetup(unknown, usb.NewTransfer(unknown, nil)))
}

func TestSetAlt(t *testing.T) {
	f := newFixture(t, nil)
	assert.True(t, f.h.SetAlt(0))
	assert.False(t, f.h.SetAlt(1))
	assert.Equal(t, int(geo.TransferSize), f.h.TransferSize())
}

func TestStatusFor(t *testing.T) {
	type testCase struct {
		err      error
		expected dfu.Status
	}
	cases := []testCase{
		{err: nil, expected: dfu.StatusOK},
		{err: flash.ErrLength, expected: dfu.StatusErrWrite},
		{err: flash.ErrStaging, expected: dfu.StatusErrWrite},
		{err: flash.ErrCollision, expected: dfu.StatusErrAddress},
		{err: flash.ErrAccess, expected: dfu.StatusErrAddress},
		{err: flash.ErrProtection, expected: dfu.StatusErrAddress},
		{err: fmt.Errorf("wrapped: %w", flash.ErrLocked), expected: dfu.StatusErrAddress},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.err), func(t *testing.T) {
			assert.Equal(t, tc.expected, dfu.StatusFor(tc.err))
		})
	}
}
