package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeabsfamily-wq/stimer/internal/config"
	"github.com/jeabsfamily-wq/stimer/internal/identity"
	"github.com/jeabsfamily-wq/stimer/internal/prefs"
	"github.com/jeabsfamily-wq/stimer/internal/storage"
	"github.com/jeabsfamily-wq/stimer/internal/ui"
)

const helloTimeout = 3 * time.Second

// Options configure the application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/stimer/prefs.toml
	EnvPath    string // empty uses ./.env
	Headless   bool
	JoinCode   string // headless: room to join on connect
	StationID  int    // headless: slot to ask for; zero lets the server pick
}

// Run boots the client until the context is cancelled or the UI exits.
func Run(ctx context.Context, opts Options) error {
	if err := config.LoadDotEnv(opts.EnvPath); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closeLog, err := setupLogging(cfg.LogLevel, cfg.LogPath, opts.Headless)
	if err != nil {
		return err
	}
	defer closeLog()

	kv, err := storage.Open(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open device state: %w", err)
	}

	core, err := NewCore(cfg, kv, nil)
	if err != nil {
		return err
	}
	log.Info().
		Str("server", cfg.ServerURL).
		Str("client_id", core.ClientID).
		Str("state", kv.Path()).
		Msg("starting stimer")

	if code := identity.NormalizeCode(opts.JoinCode); code != "" {
		if err := seedJoin(core.Identity, code, opts.StationID); err != nil {
			return err
		}
	}

	helloCtx, cancelHello := context.WithTimeout(ctx, helloTimeout)
	core.CheckServer(helloCtx)
	cancelHello()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := core.Start(ctx)

	if opts.Headless {
		return runHeadless(ctx, core, errc)
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	uiErr := ui.Run(ui.Options{
		Context:      ctx,
		Store:        core.Store,
		Actions:      core.Actions,
		Signals:      core.Signals.Subscribe(8),
		ClientID:     core.ClientID,
		Prefs:        userPrefs,
		PrefsPath:    opts.PrefsPath,
		RefreshEvery: cfg.TickInterval,
		LogPath:      cfg.LogPath,
	})
	cancel()
	if err := <-errc; err != nil && uiErr == nil {
		return err
	}
	return uiErr
}

// seedJoin stores code as the room to claim so the connect hook joins it.
func seedJoin(ids *identity.Store, code string, stationID int) error {
	if err := ids.Remember(code, stationID); err != nil {
		return fmt.Errorf("remember room: %w", err)
	}
	if stationID > 0 {
		if err := ids.SetBinding(code, stationID); err != nil {
			return fmt.Errorf("store binding: %w", err)
		}
	}
	return nil
}

// runHeadless logs cues until ctx ends or the connection manager fails.
func runHeadless(ctx context.Context, core *Core, errc <-chan error) error {
	signals := core.Signals.Subscribe(8)
	for {
		select {
		case <-ctx.Done():
			return <-errc
		case err := <-errc:
			return err
		case sig := <-signals:
			snap := core.Store.Snapshot()
			log.Info().
				Str("signal", sig.String()).
				Str("room", snap.Room.Code).
				Int("time_left", snap.DisplayTimeLeft()).
				Msg("cue")
		}
	}
}
