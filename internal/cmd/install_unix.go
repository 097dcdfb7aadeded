//go:build !windows

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

func install(rules string, logger *slog.Logger) error {
	if err := os.WriteFile(rules, []byte(udevRules()), 0o644); err != nil {
		return fmt.Errorf("write udev rules: %w", err)
	}
	reloadUdev(logger)
	logger.Info("udev rules installed", "file", rules)
	return nil
}

func uninstall(rules string, logger *slog.Logger) error {
	if err := os.Remove(rules); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	reloadUdev(logger)
	logger.Info("udev rules removed", "file", rules)
	return nil
}

// reloadUdev is best effort; rules still apply after the next replug or
// reboot.
func reloadUdev(logger *slog.Logger) {
	for _, args := range [][]string{{"control", "--reload-rules"}, {"trigger", "--subsystem-match=usb"}} {
		out, err := exec.Command("udevadm", args...).CombinedOutput()
		if err != nil {
			logger.Warn("udevadm failed", "args", strings.Join(args, " "), "error", err, "output", strings.TrimSpace(string(out)))
			return
		}
	}
}
