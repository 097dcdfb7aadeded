package output

import (
	"github.com/kiibohd/controller/usb"
	"github.com/kiibohd/controller/usb/hid"
)

// Interface numbers of the keyboard configuration.
const (
	KeyboardInterface = 0
	ConsumerInterface = 1
	SystemInterface   = 2
)

var hidClassDescriptor = usb.HIDDescriptor{
	BcdHID:      0x0111,
	Descriptors: []usb.HIDSubDescriptor{{Type: usb.ReportDescType}},
}

func hidInterface(num, endpoint uint8, size uint16, report hid.Report) usb.InterfaceConfig {
	return usb.InterfaceConfig{
		Descriptor: usb.InterfaceDescriptor{
			BInterfaceNumber: num,
			BInterfaceClass:  0x03,
		},
		HID: &usb.HIDFunction{Descriptor: hidClassDescriptor, Report: report},
		Endpoints: []usb.EndpointDescriptor{{
			BEndpointAddress: 0x80 | endpoint,
			BMAttributes:     0x03, // interrupt
			WMaxPacketSize:   size,
			BInterval:        1,
		}},
	}
}

// Descriptor returns the USB descriptor set of the keyboard: an NKRO
// keyboard, a consumer control and a system control interface.
func Descriptor(vendor, product uint16, serial string) usb.Descriptor {
	return usb.Descriptor{
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
			BMAttributes:        0xA0, // bus powered, remote wakeup
			BMaxPower:           250,
		},
		Interfaces: []usb.InterfaceConfig{
			hidInterface(KeyboardInterface, 1, KeyboardReportSize, hid.KeyboardReport()),
			hidInterface(ConsumerInterface, 2, ConsumerReportSize, hid.ConsumerReport()),
			hidInterface(SystemInterface, 3, SystemReportSize, hid.SystemReport()),
		},
		Strings: map[uint8]string{
			1: "Input Club",
			2: "Keyboard",
			3: serial,
		},
	}
}
