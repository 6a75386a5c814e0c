// Package websocket pushes pipeline run snapshots to connected clients.
//
// The Hub implements operations.Hub: every status change published by the
// operations.StatusBroadcaster is fanned out as a "run:snapshot" frame. A
// client that connects mid-run immediately receives the latest snapshot, so
// it never has to reconstruct state from partial events.
package websocket
