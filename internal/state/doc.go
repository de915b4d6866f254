// Package state holds the client's cached view of the room it is attached to.
//
// # Overview
//
// The Store is the single place where server pushes meet the UI. The
// transport decodes each push into a room.Event and hands it to Apply; the
// UI and the headless runner read copies through Snapshot on their own
// schedule.
//
//	Producer (transport):          Consumer (UI):
//	┌──────────────────┐          ┌──────────────────┐
//	│ room.Decode()    │          │                  │
//	│      ↓           │          │                  │
//	│ store.Apply()    │─────────→│ store.Snapshot() │
//	│                  │ (mutex)  │      ↓           │
//	│ countdown.Run()  │          │  render          │
//	│ store.Extrapolate│          │                  │
//	└──────────────────┘          └──────────────────┘
//
// # Reducer Rules
//
//   - room:updated replaces the cached room wholesale. Nothing is merged.
//   - room:started and room:resumed move the room to RUNNING and anchor the
//     local countdown at startedAt. Started also fires the start cue and
//     re-arms the warning cues for the new round.
//   - room:tick overrides the derived countdown and re-anchors it at the
//     local receive time.
//   - room:warn60s, room:warn30s and room:timeUp fire at most once per round.
//     TimeUp clears the countdown; the ENDED state arrives in a later
//     room:updated.
//   - room:deleted clears the cached room and forgets the station binding
//     for that code.
//   - station:kicked only matters when it names this client. The binding is
//     forgotten and the view returns to empty.
//   - station:renumbered rewrites the binding only when the stored id still
//     matches the old id.
//
// # Countdown
//
// Between authoritative ticks the displayed time is derived from the last
// (anchor, seconds) pair. Extrapolate never raises the value; only a tick or
// a new round can. Server start times ahead of the local clock are clamped
// to now so skew cannot stretch a round.
//
// # Concurrency Model
//
// All mutation happens under the write lock. Cues are delivered to the
// Notifier after the lock is released so a slow subscriber cannot stall
// the reducer. Snapshot returns deep copies.
package state
