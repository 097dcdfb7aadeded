//go:build windows

package cmd

import (
	"errors"
	"log/slog"

	"golang.org/x/sys/windows/registry"
)

const usbflagsKeyPath = `SYSTEM\CurrentControlSet\Control\usbflags`

func install(_ string, logger *slog.Logger) error {
	key, _, err := registry.CreateKey(registry.LOCAL_MACHINE, usbflagsKeyPath, registry.ALL_ACCESS)
	if err != nil {
		return err
	}
	defer key.Close()

	for _, d := range hostDevices {
		if err := key.SetBinaryValue(usbflagsValue(d), []byte{0x01}); err != nil {
			return err
		}
		logger.Info("Serial numbers ignored", "device", d.name, "value", usbflagsValue(d))
	}
	// WinUSB binds through the MS OS descriptors; no driver package is needed.
	logger.Info("kiibohd install completed for Windows")
	return nil
}

func uninstall(_ string, logger *slog.Logger) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, usbflagsKeyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return err
	}
	defer key.Close()

	for _, d := range hostDevices {
		if err := key.DeleteValue(usbflagsValue(d)); err != nil && !errors.Is(err, registry.ErrNotExist) {
			return err
		}
	}
	logger.Info("kiibohd usbflags entries removed")
	return nil
}
