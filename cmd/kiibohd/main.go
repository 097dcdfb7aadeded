package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kiibohd/controller/bootloader/flash"
	"github.com/kiibohd/controller/internal/config"
	"github.com/kiibohd/controller/internal/configpaths"
	"github.com/kiibohd/controller/internal/log"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"golang.org/x/term"
)

func main() {
	handlePlainHelpFlag()

	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("kiibohd"),
		kong.Description(Description()),
		kong.UsageOnError(),
		kong.Vars{"parts": strings.Join(flash.Parts(), ",")},
		kong.ConfigureHelp(helpOptions()),
		// Flags and env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logger:", err)
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	rawLogger := setupRawLogger(&cli, logger, &closeFiles)

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func handlePlainHelpFlag() {
	for i, arg := range os.Args[1:] {
		if arg == "-p" {
			os.Setenv("KIIBOHD_HELP_STYLE", "plain")
			os.Args[i+1] = "-h"
			return
		}
	}
}

func findUserConfig(args []string) string {
	for i, a := range args {
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("KIIBOHD_CONFIG")
}

func setupRawLogger(cli *config.CLI, logger *slog.Logger, closeFiles *[]io.Closer) log.RawLogger {
	if cli.Log.RawFile != "" {
		f, err := os.OpenFile(cli.Log.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
			return log.NewRaw(nil)
		}
		*closeFiles = append(*closeFiles, f)
		return log.NewRaw(f)
	}
	if cli.Log.Level == "trace" {
		return log.NewRaw(os.Stdout)
	}
	return log.NewRaw(nil)
}

// helpOptions picks the help layout. KIIBOHD_HELP_STYLE forces "plain",
// "compact" or "tree"; otherwise the terminal width decides.
func helpOptions() kong.HelpOptions {
	style := strings.ToLower(os.Getenv("KIIBOHD_HELP_STYLE"))
	if style == "" {
		style = detectHelpStyle()
	}
	switch style {
	case "tree":
		return kong.HelpOptions{Tree: true, Indenter: kong.TreeIndenter}
	case "compact":
		return kong.HelpOptions{Compact: true}
	}
	return kong.HelpOptions{NoExpandSubcommands: true}
}

func detectHelpStyle() string {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "plain"
		}
	}

	if os.Getenv("TERM") == "dumb" {
		return "plain"
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return "compact"
	}

	const (
		treeThreshold    = 140
		compactThreshold = 100
	)
	switch {
	case width >= treeThreshold:
		return "tree"
	case width >= compactThreshold:
		return "compact"
	default:
		return "plain"
	}
}
