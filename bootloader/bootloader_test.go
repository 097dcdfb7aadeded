package bootloader_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiibohd/controller/bootloader"
	"github.com/kiibohd/controller/bootloader/chip"
	"github.com/kiibohd/controller/bootloader/dfu"
	"github.com/kiibohd/controller/bootloader/flash"
	"github.com/kiibohd/controller/internal/log"
	"github.com/kiibohd/controller/usb"
)

var geo = flash.Geometry{Size: 32 << 10, SectorSize: 2 << 10, TransferSize: 1 << 10, AppOrigin: 8 << 10}

type device struct {
	resets, setups, steps int
}

func (d *device) Reset()   { d.resets++ }
func (d *device) Setup()   { d.setups++ }
func (d *device) Process() { d.steps++ }

type fixture struct {
	boot   *bootloader.Bootloader
	host   *bootloader.Host
	chip   *chip.Chip
	flash  *flash.Backend
	device *device
	resets int
}

func newFixture(t *testing.T, secure bool) *fixture {
	t.Helper()
	fb, err := flash.New(geo, flash.NewMemory(geo.Size), log.Discard())
	require.NoError(t, err)

	f := &fixture{flash: fb, device: &device{}}
	f.chip = chip.New(fb, chip.Options{Secure: secure, Logger: log.Discard()})
	handler := dfu.New(dfu.Options{
		Targets:      []dfu.Target{dfu.NewFlashTarget(fb)},
		TransferSize: int(geo.TransferSize),
		Validator:    f.chip,
		Reset:        func(uint8) { f.resets++ },
		MSVendorCode: usb.MSVendorCode,
		Logger:       log.Discard(),
	})
	desc := bootloader.Descriptor(0x1C11, 0xB007, "test", uint16(geo.TransferSize), []string{"Firmware"})
	f.boot = bootloader.New(f.chip, f.device, handler, bootloader.Options{Descriptor: desc, Logger: log.Discard()})
	f.host = bootloader.NewHost(f.boot)
	f.boot.Start()
	return f
}

func firmware(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 1)
	}
	return b
}

func TestStart(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, 1, f.device.resets)
	assert.Equal(t, 1, f.device.setups)
	f.boot.Step()
	assert.Equal(t, 1, f.device.steps)
	assert.Equal(t, dfu.Idle, f.boot.DFU().Context().State)
}

func TestDownloadAndUpload(t *testing.T) {
	f := newFixture(t, false)
	fw := firmware(int(geo.TransferSize)*3 + 100)

	require.NoError(t, f.host.Download(fw, nil))
	assert.Equal(t, 1, f.chip.Completed())
	assert.False(t, f.chip.DebugHalt())
	assert.Equal(t, fw, f.flash.Read(geo.AppOrigin, len(fw)))

	up, err := f.host.Upload()
	require.NoError(t, err)
	require.Len(t, up, int(geo.AppSize()))
	assert.Equal(t, fw, up[:len(fw)])
	assert.True(t, bytes.Equal(bytes.Repeat([]byte{flash.Erased}, len(up)-len(fw)), up[len(fw):]))
}

func TestSecureDownload(t *testing.T) {
	f := newFixture(t, true)
	key := f.chip.Registers().Key()
	require.False(t, f.chip.Registers().Zero())
	fw := firmware(int(geo.TransferSize) * 2)

	require.NoError(t, f.host.Download(fw, key))
	assert.Equal(t, fw, f.flash.Read(geo.AppOrigin, len(fw)))
	assert.Zero(t, f.resets)
}

func TestSecureDownloadWrongKey(t *testing.T) {
	f := newFixture(t, true)
	fw := firmware(int(geo.TransferSize))

	err := f.host.Download(fw, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.ErrorIs(t, err, bootloader.ErrNoResponse)
	assert.Equal(t, 1, f.resets)
	assert.True(t, f.flash.Blank(geo.AppOrigin, int(geo.AppSize())))

	err = f.host.Download(fw, nil)
	require.ErrorIs(t, err, bootloader.ErrNoResponse, "a download without the key is refused too")
}

func TestOldKeyRejectedAfterReset(t *testing.T) {
	f := newFixture(t, true)
	old := f.chip.Registers().Key()
	f.boot.Start()

	err := f.host.Download(firmware(16), old)
	assert.ErrorIs(t, err, bootloader.ErrNoResponse)
}

func TestZeroKeyOnBlankPart(t *testing.T) {
	f := newFixture(t, false)
	fw := firmware(64)
	require.NoError(t, f.host.Download(fw, make([]byte, chip.KeyLen)))
	assert.Equal(t, fw, f.flash.Read(geo.AppOrigin, len(fw)), "the zero key section is not written")
}

func TestZeroLedFirmwareOnBlankPart(t *testing.T) {
	f := newFixture(t, false)
	fw := firmware(64)
	copy(fw, make([]byte, chip.KeyLen))
	require.NoError(t, f.host.Download(fw, nil))
	assert.Equal(t, fw, f.flash.Read(geo.AppOrigin, len(fw)), "leading zeros are firmware, not a key")
}

func TestDescriptors(t *testing.T) {
	f := newFixture(t, false)

	dev, err := f.host.Descriptor(usb.DeviceDescType, 0, usb.DeviceDescLen)
	require.NoError(t, err)
	require.Len(t, dev, usb.DeviceDescLen)
	assert.Equal(t, []byte{0x11, 0x1C, 0x07, 0xB0}, dev[8:12])

	short, err := f.host.Descriptor(usb.DeviceDescType, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, dev[:8], short)

	cfg, err := f.host.Descriptor(usb.ConfigDescType, 0, 0xFFFF)
	require.NoError(t, err)
	require.Len(t, cfg, usb.ConfigDescLen+usb.InterfaceDescLen+usb.DFUFunctionalDescLen)
	assert.Equal(t, byte(len(cfg)), cfg[2])
	iface := cfg[usb.ConfigDescLen:]
	assert.Equal(t, []byte{usb.DFUInterfaceClass, usb.DFUInterfaceSubClass, usb.DFUProtocolDFU}, iface[5:8])
	fd := iface[usb.InterfaceDescLen:]
	assert.Equal(t, []byte{
		usb.DFUFunctionalDescLen, usb.DFUFunctionalDescType,
		0x0F,       // download, upload, manifestation tolerant, will detach
		0xC8, 0x00, // detach timeout
		0x00, 0x04, // transfer size
		0x10, 0x01, // DFU 1.1
	}, fd)

	str, err := f.host.Descriptor(usb.StringDescType, 4, 0xFF)
	require.NoError(t, err)
	assert.Equal(t, usb.EncodeStringDescriptor("Firmware"), str)

	msos, err := f.host.Descriptor(usb.StringDescType, usb.MSOSStringIndex, 0xFF)
	require.NoError(t, err)
	assert.Equal(t, byte(usb.MSVendorCode), msos[16])

	_, err = f.host.Descriptor(usb.StringDescType, 9, 0xFF)
	assert.ErrorIs(t, err, bootloader.ErrStalled)

	compat, err := f.host.CompatID()
	require.NoError(t, err)
	assert.Len(t, compat, usb.MSCompatIDLen)
}

func TestStandardRequests(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.host.Control(usb.SetupPacket{Request: usb.RequestSetConfiguration, Value: 1}, nil)
	require.NoError(t, err)
	cfg, err := f.host.Control(usb.SetupPacket{RequestType: usb.RequestDeviceToHost, Request: usb.RequestGetConfiguration, Length: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, cfg)

	require.NoError(t, f.host.SetAlt(0))
	assert.ErrorIs(t, f.host.SetAlt(3), bootloader.ErrStalled)

	alt, err := f.host.Control(usb.SetupPacket{RequestType: usb.RequestDeviceToHost | usb.RecipientInterface, Request: usb.RequestGetInterface, Length: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, alt)

	st, err := f.host.Control(usb.SetupPacket{RequestType: usb.RequestDeviceToHost, Request: usb.RequestGetStatus, Length: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, st)

	_, err = f.host.Control(usb.SetupPacket{Request: usb.RequestSetAddress, Value: 5}, nil)
	assert.NoError(t, err)

	_, err = f.host.Control(usb.SetupPacket{Request: usb.RequestSetFeature}, nil)
	assert.ErrorIs(t, err, bootloader.ErrStalled)
}

func TestHostRecovery(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.host.Dnload(0, nil)
	require.ErrorIs(t, err, bootloader.ErrStalled)
	st, err := f.host.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, dfu.StatusErrStalledPkt, st.Status)
	assert.Equal(t, dfu.Error, st.State)

	require.ErrorIs(t, f.host.Abort(), bootloader.ErrStalled)
	require.NoError(t, f.host.ClearStatus())
	require.NoError(t, f.host.Abort())

	// The device resets instead of completing the request.
	assert.ErrorIs(t, f.host.Detach(), bootloader.ErrNoResponse)
	assert.Equal(t, 1, f.resets)
}

func TestRun(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.boot.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, f.device.steps)
	assert.Equal(t, 2, f.device.resets, "Run starts the bootloader again")
}
