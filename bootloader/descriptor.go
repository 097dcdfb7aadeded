package bootloader

import (
	"github.com/kiibohd/controller/usb"
)

// Descriptor returns the DFU mode descriptor set. Every entry of alts names
// one alternate setting.
func Descriptor(vendor, product uint16, serial string, transferSize uint16, alts []string) usb.Descriptor {
	fd := usb.DFUFunctionalDescriptor{
		BmAttributes:   usb.DFUCanDownload | usb.DFUCanUpload | usb.DFUManifestationTolerant | usb.DFUWillDetach,
		WDetachTimeout: 200,
		WTransferSize:  transferSize,
		BcdDFUVersion:  0x0110,
	}
	d := usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BMaxPacketSize0:    64,
			IDVendor:           vendor,
			IDProduct:          product,
			BcdDevice:          0x0100,
			IManufacturer:      1,
			IProduct:           2,
			ISerialNumber:      3,
			BNumConfigurations: 1,
		},
		Config: usb.ConfigHeader{
			BConfigurationValue: 1,
			BMAttributes:        0x80,
			BMaxPower:           50,
		},
		Strings: map[uint8]string{
			1: "Input Club",
			2: "Kiibohd DFU Bootloader",
			3: serial,
		},
	}
	for i, name := range alts {
		str := uint8(4 + i)
		d.Strings[str] = name
		ic := usb.InterfaceConfig{
			Descriptor: usb.InterfaceDescriptor{
				BAlternateSetting:  uint8(i),
				BInterfaceClass:    usb.DFUInterfaceClass,
				BInterfaceSubClass: usb.DFUInterfaceSubClass,
				BInterfaceProtocol: usb.DFUProtocolDFU,
				IInterface:         str,
			},
		}
		// The functional descriptor follows the last alternate setting.
		if i == len(alts)-1 {
			ic.ClassDescriptors = []usb.ClassSpecificDescriptor{fd.ClassDescriptor()}
		}
		d.Interfaces = append(d.Interfaces, ic)
	}
	return d
}
