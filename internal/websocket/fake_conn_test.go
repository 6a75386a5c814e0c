package websocket

import (
	"errors"
	"sync"
	"time"
)

// fakeConn records written frames and blocks reads until closed
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return errors.New("connection closed")
	default:
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("connection closed")
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) RemoteAddr() string { return "127.0.0.1:1234" }
