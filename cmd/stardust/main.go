//go:build ebiten

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"stardust/internal/app"
	"stardust/internal/config"
	"stardust/internal/logging"
	"stardust/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stardust:", err)
		os.Exit(1)
	}
}

func run() error {
	path := configPath(os.Args[1:])
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	flag.String("config", path, "YAML config file")
	cfg.Bind(flag.CommandLine)
	flag.Parse()

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	s, err := sim.New(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	game := app.New(s)
	w, h := game.Layout(0, 0)

	ebiten.SetWindowTitle("stardust - " + cfg.Scene.Name)
	ebiten.SetWindowSize(w, h)

	err = ebiten.RunGame(game)
	if cerr := game.Close(); cerr != nil {
		logger.Warn("closing session", "error", cerr)
	}
	if err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

// configPath finds -config before the flag set is built, so the file's
// values become the flag defaults.
func configPath(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "config" || !strings.HasPrefix(a, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
