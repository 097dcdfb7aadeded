package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiibohd/controller/internal/log"
)

func TestUdevRules(t *testing.T) {
	rules := udevRules()
	assert.Contains(t, rules, `ATTRS{idVendor}=="1c11", ATTRS{idProduct}=="b007"`)
	assert.Contains(t, rules, `ATTRS{idVendor}=="1c11", ATTRS{idProduct}=="b04d"`)
	assert.Equal(t, 2, strings.Count(rules, "SUBSYSTEMS"))
}

func TestUsbflagsValue(t *testing.T) {
	assert.Equal(t, "IgnoreHWSerNum1C11B007", usbflagsValue(hostDevices[0]))
}

func TestInstallRulesFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("udev rules are Linux only")
	}
	path := filepath.Join(t.TempDir(), "50-kiibohd.rules")

	require.NoError(t, (&Install{Rules: path}).Run(log.Discard()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, udevRules(), string(data))

	require.NoError(t, (&Uninstall{Rules: path}).Run(log.Discard()))
	assert.NoFileExists(t, path)
	require.NoError(t, (&Uninstall{Rules: path}).Run(log.Discard()), "removing twice is fine")
}
