package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("gate-remote"),
		kong.Description("Keys an RFM69 transceiver to imitate an OOK garage gate remote"),
		kong.UsageOnError(),
	)

	slog.SetDefault(newLogger(os.Stdout, os.Stderr, cli.Verbose))

	path := configPath(cli.Config)
	cfg, err := loadConfig(path)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Debug("Configuration loaded", "path", path)

	t := newTransmitter(cfg)

	var ok bool
	var text string
	switch strings.Fields(ctx.Command())[0] {
	case "transmit":
		mode := ModeLive
		if cli.Transmit.DryRun {
			mode = ModeDryRun
		}
		ok, text = t.run(mode, cli.Transmit.Debug)
	case "inspect":
		ok, text = t.inspect(cli.Inspect.Groups)
	case "serve":
		if err := serve(cfg, path); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
		return
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(1)
	}

	fmt.Fprint(os.Stdout, text)
	if !ok {
		os.Exit(1)
	}
}
