// Package app is the composition root of the stimer client.
//
// # Overview
//
// Run loads configuration, opens the device state file, builds a single
// Core and hands it to either the terminal UI or the headless runner. Core
// owns exactly one of each long-lived component:
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.LoadDotEnv() / config.Load()
//	       ├─────> storage.Open()      Device key/value file
//	       ├─────> NewCore()           Identity, store, connection, dispatcher
//	       ├─────> Core.CheckServer()  GET /api/hello, non-fatal
//	       ├─────> Core.Start()        Connection loop + countdown loop
//	       └─────> ui.Run() or runHeadless()
//
// # Rejoin
//
// The connection manager calls Core.rejoin after every successful dial. It
// reads the last room from the identity store and sends a join for it,
// asking for the stored station when one is bound. Callers never rejoin by
// hand.
//
// # Headless Mode
//
// With -headless the client logs to stderr and prints each cue as it fires.
// -join CODE and -station N seed the identity store so the first connection
// joins that room.
package app
