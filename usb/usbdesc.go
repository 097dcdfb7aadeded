// Package usb builds the USB descriptors of the bootloader and the keyboard
// and defines the control transfer plumbing shared by their request
// handlers.
package usb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kiibohd/controller/usb/hid"
)

// Descriptor types.
const (
	DeviceDescType    = 0x01
	ConfigDescType    = 0x02
	InterfaceDescType = 0x04
	EndpointDescType  = 0x05
	HIDDescType       = 0x21
	ReportDescType    = 0x22
)

// Fixed descriptor lengths.
const (
	DeviceDescLen    = 18
	ConfigDescLen    = 9
	InterfaceDescLen = 9
	EndpointDescLen  = 7
)

// LangIDEnglishUS is the only language the string table is served in.
const LangIDEnglishUS = 0x0409

type Data []uint8

// Descriptor is the static descriptor set of a device.
type Descriptor struct {
	Device     DeviceDescriptor
	Config     ConfigHeader
	Interfaces []InterfaceConfig
	Strings    map[uint8]string
}

// InterfaceConfig is one interface (alternate setting) with everything that
// follows it in the configuration descriptor.
type InterfaceConfig struct {
	Descriptor InterfaceDescriptor
	// HID emits the HID class descriptor and serves the report descriptor.
	HID *HIDFunction
	// ClassDescriptors follow the interface descriptor, before endpoints.
	ClassDescriptors []ClassSpecificDescriptor
	Endpoints        []EndpointDescriptor
}

// EncodeStringDescriptor encodes s as a UTF-16LE string descriptor.
func EncodeStringDescriptor(s string) []byte {
	runes := []rune(s)
	buf := make([]byte, 2+len(runes)*2)
	buf[0] = uint8(len(buf))
	buf[1] = StringDescType
	for i, r := range runes {
		buf[2+i*2] = uint8(r)
		buf[2+i*2+1] = uint8(r >> 8)
	}
	return buf
}

// DeviceDescriptor is the standard device descriptor without its header.
type DeviceDescriptor struct {
	BcdUSB             uint16
	BDeviceClass       uint8
	BDeviceSubClass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize0    uint8
	IDVendor           uint16
	IDProduct          uint16
	BcdDevice          uint16
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8
}

// Bytes returns the 18-byte device descriptor.
func (d Descriptor) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(DeviceDescLen)
	b.WriteByte(DeviceDescType)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.BcdUSB)
	b.WriteByte(d.Device.BDeviceClass)
	b.WriteByte(d.Device.BDeviceSubClass)
	b.WriteByte(d.Device.BDeviceProtocol)
	b.WriteByte(d.Device.BMaxPacketSize0)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.IDVendor)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.IDProduct)
	_ = binary.Write(&b, binary.LittleEndian, d.Device.BcdDevice)
	b.WriteByte(d.Device.IManufacturer)
	b.WriteByte(d.Device.IProduct)
	b.WriteByte(d.Device.ISerialNumber)
	b.WriteByte(d.Device.BNumConfigurations)
	return b.Bytes()
}

// ConfigurationBytes returns the configuration descriptor followed by every
// interface, class and endpoint descriptor. wTotalLength and bNumInterfaces
// are filled in.
func (d Descriptor) ConfigurationBytes() (Data, error) {
	var body bytes.Buffer
	ifaces := make(map[uint8]struct{})
	for _, ic := range d.Interfaces {
		ifaces[ic.Descriptor.BInterfaceNumber] = struct{}{}
		ic.Descriptor.BNumEndpoints = uint8(len(ic.Endpoints))
		ic.Descriptor.Write(&body)
		if ic.HID != nil {
			rl, err := ic.HID.reportLen()
			if err != nil {
				return nil, err
			}
			if err := ic.HID.Descriptor.Write(&body, rl); err != nil {
				return nil, err
			}
		}
		for _, cd := range ic.ClassDescriptors {
			body.Write(cd.Bytes())
		}
		for _, ep := range ic.Endpoints {
			ep.Write(&body)
		}
	}
	total := ConfigDescLen + body.Len()
	if total > 0xFFFF {
		return nil, fmt.Errorf("usb: configuration descriptor too large: %d", total)
	}
	h := d.Config
	h.WTotalLength = uint16(total)
	h.BNumInterfaces = uint8(len(ifaces))

	var b bytes.Buffer
	h.Write(&b)
	b.Write(body.Bytes())
	return Data(b.Bytes()), nil
}

// StringBytes returns string descriptor i. Index 0 is the language table.
func (d Descriptor) StringBytes(i uint8) (Data, bool) {
	if i == 0 {
		return Data{4, StringDescType, uint8(LangIDEnglishUS & 0xFF), uint8(LangIDEnglishUS >> 8)}, true
	}
	s, ok := d.Strings[i]
	if !ok {
		return nil, false
	}
	return Data(EncodeStringDescriptor(s)), true
}

// ConfigHeader is the 9-byte configuration descriptor header.
type ConfigHeader struct {
	WTotalLength        uint16
	BNumInterfaces      uint8
	BConfigurationValue uint8
	IConfiguration      uint8
	BMAttributes        uint8
	BMaxPower           uint8
}

func (h ConfigHeader) Write(b *bytes.Buffer) {
	b.WriteByte(ConfigDescLen)
	b.WriteByte(ConfigDescType)
	_ = binary.Write(b, binary.LittleEndian, h.WTotalLength)
	b.WriteByte(h.BNumInterfaces)
	b.WriteByte(h.BConfigurationValue)
	b.WriteByte(h.IConfiguration)
	b.WriteByte(h.BMAttributes)
	b.WriteByte(h.BMaxPower)
}

// InterfaceDescriptor is one interface alternate setting.
type InterfaceDescriptor struct {
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubClass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

func (i InterfaceDescriptor) Write(b *bytes.Buffer) {
	b.WriteByte(InterfaceDescLen)
	b.WriteByte(InterfaceDescType)
	b.WriteByte(i.BInterfaceNumber)
	b.WriteByte(i.BAlternateSetting)
	b.WriteByte(i.BNumEndpoints)
	b.WriteByte(i.BInterfaceClass)
	b.WriteByte(i.BInterfaceSubClass)
	b.WriteByte(i.BInterfaceProtocol)
	b.WriteByte(i.IInterface)
}

// EndpointDescriptor is a 7-byte endpoint descriptor.
type EndpointDescriptor struct {
	BEndpointAddress uint8
	BMAttributes     uint8
	WMaxPacketSize   uint16
	BInterval        uint8
}

func (e EndpointDescriptor) Write(b *bytes.Buffer) {
	b.WriteByte(EndpointDescLen)
	b.WriteByte(EndpointDescType)
	b.WriteByte(e.BEndpointAddress)
	b.WriteByte(e.BMAttributes)
	_ = binary.Write(b, binary.LittleEndian, e.WMaxPacketSize)
	b.WriteByte(e.BInterval)
}

// HIDSubDescriptor lists one descriptor subordinate to the HID descriptor.
// A report entry with Length 0 takes the length of the report descriptor.
type HIDSubDescriptor struct {
	Type   uint8
	Length uint16
}

// HIDDescriptor is the HID class descriptor (0x21).
type HIDDescriptor struct {
	BcdHID       uint16
	BCountryCode uint8
	Descriptors  []HIDSubDescriptor
}

func (h HIDDescriptor) Write(b *bytes.Buffer, reportLen uint16) error {
	if len(h.Descriptors) == 0 {
		return fmt.Errorf("usb: HID descriptor has no subordinate descriptors")
	}
	b.WriteByte(uint8(6 + 3*len(h.Descriptors)))
	b.WriteByte(HIDDescType)
	_ = binary.Write(b, binary.LittleEndian, h.BcdHID)
	b.WriteByte(h.BCountryCode)
	b.WriteByte(uint8(len(h.Descriptors)))
	for _, sd := range h.Descriptors {
		b.WriteByte(sd.Type)
		l := sd.Length
		if sd.Type == ReportDescType && l == 0 {
			l = reportLen
		}
		_ = binary.Write(b, binary.LittleEndian, l)
	}
	return nil
}

// ClassSpecificDescriptor is an opaque interface-level descriptor. Payload
// holds everything after bLength and bDescriptorType.
type ClassSpecificDescriptor struct {
	DescriptorType uint8
	Payload        Data
}

func (d ClassSpecificDescriptor) Bytes() Data {
	out := make([]uint8, 0, 2+len(d.Payload))
	out = append(out, uint8(2+len(d.Payload)), d.DescriptorType)
	out = append(out, d.Payload...)
	return Data(out)
}

// HIDFunction pairs the HID class descriptor with its report descriptor.
type HIDFunction struct {
	Descriptor HIDDescriptor
	Report     hid.Report
}

func (f HIDFunction) reportLen() (uint16, error) {
	rb, err := f.Report.Bytes()
	if err != nil {
		return 0, err
	}
	if len(rb) > 0xFFFF {
		return 0, fmt.Errorf("usb: HID report descriptor too large: %d", len(rb))
	}
	return uint16(len(rb)), nil
}

// ReportBytes returns the HID report descriptor.
func (f HIDFunction) ReportBytes() (Data, error) {
	rb, err := f.Report.Bytes()
	if err != nil {
		return nil, err
	}
	return Data(rb), nil
}
