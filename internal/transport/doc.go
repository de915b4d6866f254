// Package transport carries the client's traffic to the timer server.
//
// # Overview
//
// Two pieces live here:
//
//   - client.go: a small HTTP client used for the start-up reachability check
//   - conn.go: the Manager that owns the single WebSocket
//
// # Framing
//
// Every text frame is a JSON object (see Frame). Requests carry an event name
// and a per-connection id; the server answers with {"ack": id, "data": ...}.
// Pushes carry only an event name and data:
//
//	→ {"event":"station:join","id":3,"data":{"code":"ABC123"}}
//	← {"event":"room:updated","data":{...}}
//	← {"ack":3,"data":{"ok":true,"room":{...}}}
//
// # Reconnect Behavior
//
// Run dials, serves until the socket drops, then redials. Consecutive dial
// failures back off exponentially from ReconnectBase up to 30 seconds. Every
// successful dial invokes Handlers.OnConnect, which is where the rejoin
// logic hooks in. Requests still waiting for an acknowledgement when the
// socket drops fail with ErrDisconnected; they are never replayed.
//
// # Liveness
//
// The Manager pings every PingInterval and treats ReadTimeout without any
// frame or pong as a dead connection.
//
// # Singleton
//
// A process builds exactly one Manager. Calling Run while it is already
// running returns ErrAlreadyRunning.
package transport
