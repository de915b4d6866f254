// Package config loads the client's configuration.
//
// # Resolution Order
//
//  1. Built-in defaults
//  2. The TOML file given with -config, or ~/.config/stimer/config.toml
//  3. Environment variables, including any loaded from .env by LoadDotEnv
//
// A missing config file is not an error. Blank values in the file fall back
// to defaults, and paths accept a leading ~.
//
// # TOML Format
//
//	server_url = "http://127.0.0.1:3000"
//	socket_path = "/ws"
//	state_path = "~/.local/share/stimer/device.toml"
//	log_path = "~/.local/share/stimer/stimer.log"
//	log_level = "info"
//	tick_ms = 1000
//	reconnect_ms = 1000
//
// # Environment
//
//   - STIMER_SERVER_URL
//   - STIMER_STATE_PATH
//   - STIMER_LOG_LEVEL
//   - STIMER_LOG_PATH
package config
