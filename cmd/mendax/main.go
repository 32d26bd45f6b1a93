package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joeycumines/mendax/internal/command"
	"github.com/joeycumines/mendax/internal/config"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("[Config] using defaults", "error", err)
		cfg = config.NewConfig()
	}

	cmd := command.NewMendaxCommand(version, cfg)
	fs := command.NewFlagSet(cmd, stderr, cmd.Help())
	rest, err := command.ParseFlags(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return cmd.Execute(rest, stdout, stderr)
}
