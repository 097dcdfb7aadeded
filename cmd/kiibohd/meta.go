package main

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	Version = ""
	Commit  = ""
	Date    = ""
)

var descriptionTemplate = `
Kiibohd keyboard controller toolkit: macro engine simulator and DFU bootloader emulator
  Version: %s (%s)
           %s
  Source:  https://github.com/kiibohd/controller
`

func Description() string {
	return fmt.Sprintf(descriptionTemplate, Version, Commit, Date)
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if ok && Version == "" {
		Version = info.Main.Version
		if Version == "(devel)" {
			Version = ""
		}
	}
	if ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if Commit == "" {
					Commit = setting.Value[:min(7, len(setting.Value))]
				}
			case "vcs.time":
				if Date == "" {
					Date = setting.Value
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						Date = t.Format("2006-01-02")
					}
				}
			}
		}
	}
	for _, v := range []*string{&Version, &Commit, &Date} {
		if *v == "" {
			*v = "unknown"
		}
	}
	if Version == "unknown" {
		Version = "dev"
	}
}
