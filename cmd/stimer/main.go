package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeabsfamily-wq/stimer/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/stimer/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (optional)")
	envPath := flag.String("env", "", "dotenv file to load (optional, defaults to ./.env)")
	headless := flag.Bool("headless", false, "run without the terminal UI and log cues to stderr")
	joinCode := flag.String("join", "", "room code to join on connect")
	stationID := flag.Int("station", 0, "station id to claim with -join (0 lets the server pick)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		EnvPath:    *envPath,
		Headless:   *headless,
		JoinCode:   *joinCode,
	}
	if id := *stationID; id > 0 {
		opts.StationID = id
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "stimer: %v\n", err)
		return 1
	}
	return 0
}
