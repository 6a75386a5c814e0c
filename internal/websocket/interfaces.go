package websocket

import (
	"time"

	"stockpipe/internal/operations"
)

// Connection is the subset of a websocket connection used by Client.
// It allows pumps to be driven by a fake in tests.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// SnapshotSource supplies the most recent run snapshot, sent to every
// client as soon as it connects.
type SnapshotSource interface {
	Latest() (*operations.RunSnapshot, bool)
}
