package usb

import (
	"bytes"
	"encoding/binary"
)

// DFU class codes.
const (
	DFUInterfaceClass    = 0xFE
	DFUInterfaceSubClass = 0x01
	DFUProtocolRuntime   = 0x01
	DFUProtocolDFU       = 0x02

	DFUFunctionalDescType = 0x21
	DFUFunctionalDescLen  = 9
)

// DFU functional descriptor attribute bits.
const (
	DFUCanDownload           = 1 << 0
	DFUCanUpload             = 1 << 1
	DFUManifestationTolerant = 1 << 2
	DFUWillDetach            = 1 << 3
)

// DFUFunctionalDescriptor advertises the DFU capabilities and transfer size.
type DFUFunctionalDescriptor struct {
	BmAttributes   uint8
	WDetachTimeout uint16
	WTransferSize  uint16
	BcdDFUVersion  uint16
}

// Bytes encodes the 9-byte functional descriptor.
func (d DFUFunctionalDescriptor) Bytes() Data {
	var b bytes.Buffer
	b.WriteByte(DFUFunctionalDescLen)
	b.WriteByte(DFUFunctionalDescType)
	b.WriteByte(d.BmAttributes)
	_ = binary.Write(&b, binary.LittleEndian, d.WDetachTimeout)
	_ = binary.Write(&b, binary.LittleEndian, d.WTransferSize)
	_ = binary.Write(&b, binary.LittleEndian, d.BcdDFUVersion)
	return Data(b.Bytes())
}

// ClassDescriptor returns the descriptor for InterfaceConfig.ClassDescriptors.
func (d DFUFunctionalDescriptor) ClassDescriptor() ClassSpecificDescriptor {
	return ClassSpecificDescriptor{DescriptorType: DFUFunctionalDescType, Payload: d.Bytes()[2:]}
}

// Microsoft OS 1.0 descriptors, which let Windows bind WinUSB without an
// INF file.
const (
	MSOSStringIndex     = 0xEE
	MSVendorCode        = 0x30
	MSCompatIDIndex     = 0x0004
	MSCompatIDLen       = 40
	msCompatIDBcd       = 0x0100
	msOSStringSignature = "MSFT100"
)

// MSOSStringDescriptor returns string descriptor 0xEE carrying the vendor
// code the host must use for OS feature requests.
func MSOSStringDescriptor(vendorCode uint8) Data {
	d := EncodeStringDescriptor(msOSStringSignature)
	d = append(d, vendorCode, 0x00)
	d[0] = uint8(len(d))
	return Data(d)
}

// MSCompatIDDescriptor returns the 40-byte extended compat ID descriptor
// binding interface iface to compatible ID compatID (e.g. "WINUSB").
func MSCompatIDDescriptor(iface uint8, compatID string) Data {
	b := make([]byte, MSCompatIDLen)
	binary.LittleEndian.PutUint32(b[0:4], MSCompatIDLen)
	binary.LittleEndian.PutUint16(b[4:6], msCompatIDBcd)
	binary.LittleEndian.PutUint16(b[6:8], MSCompatIDIndex)
	b[8] = 1 // bCount
	// 7 reserved bytes, then the function section.
	b[16] = iface
	b[17] = 0x01
	copy(b[18:26], compatID)
	// 8-byte sub-compatible ID and 6 reserved bytes stay zero.
	return Data(b)
}
