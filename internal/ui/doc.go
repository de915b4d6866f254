// Package ui renders the terminal views for a room timer device.
//
// The UI is a Bubble Tea program with two faces that share one model:
//
//   - Central: create and configure a room, pause/resume/reset/skip rounds,
//     remove stations and delete the room. Controls are enabled only when
//     this device created the cached room.
//   - Station: join a room by code, toggle ready and leave.
//
// The model never mutates room state. It polls a SnapshotSource every
// RefreshEvery, dispatches user intent through the Actions interface as
// tea.Cmds and shows the acknowledgement result in the footer. Cues from
// the notification bus arrive as messages and ring the terminal bell when
// sound is enabled.
//
// Theme, role and sound preference persist through the prefs package.
package ui
