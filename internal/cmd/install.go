package cmd

import (
	"fmt"
	"log/slog"
	"strings"
)

// KeyboardProduct is the product ID of the keyboard firmware. It shares the
// bootloader's vendor ID.
const KeyboardProduct = 0xB04D

// Install grants the current user access to the bootloader and keyboard.
type Install struct {
	Rules string `help:"udev rules file (Linux)" default:"/etc/udev/rules.d/50-kiibohd.rules" type:"path"`
}

// Uninstall removes what Install set up.
type Uninstall struct {
	Rules string `help:"udev rules file (Linux)" default:"/etc/udev/rules.d/50-kiibohd.rules" type:"path"`
}

type usbID struct {
	vendor, product uint16
	name            string
}

var hostDevices = []usbID{
	{BootloaderVendor, BootloaderProduct, "DFU bootloader"},
	{BootloaderVendor, KeyboardProduct, "keyboard"},
}

// Run is called by Kong when the install command is executed.
func (c *Install) Run(logger *slog.Logger) error {
	return install(c.Rules, logger)
}

// Run is called by Kong when the uninstall command is executed.
func (c *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(c.Rules, logger)
}

func udevRules() string {
	var b strings.Builder
	b.WriteString("# Kiibohd devices, installed by kiibohd install\n")
	for _, d := range hostDevices {
		fmt.Fprintf(&b, "# %s\n", d.name)
		fmt.Fprintf(&b, "SUBSYSTEMS==\"usb\", ATTRS{idVendor}==\"%04x\", ATTRS{idProduct}==\"%04x\", MODE=\"0664\", TAG+=\"uaccess\"\n", d.vendor, d.product)
	}
	return b.String()
}

// usbflagsValue names the registry value that stops Windows from creating a
// new device instance for every serial number.
func usbflagsValue(d usbID) string {
	return fmt.Sprintf("IgnoreHWSerNum%04X%04X", d.vendor, d.product)
}
