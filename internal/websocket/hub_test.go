package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpipe/internal/config"
	"stockpipe/internal/operations"
	"stockpipe/internal/shared/testutil"
)

type staticSource struct {
	snap *operations.RunSnapshot
}

func (s staticSource) Latest() (*operations.RunSnapshot, bool) {
	return s.snap, s.snap != nil
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_GreetsWithLatestSnapshot(t *testing.T) {
	hub := newTestHub(t)
	hub.SetSnapshotSource(staticSource{snap: &operations.RunSnapshot{
		RunID:    "run-1",
		Status:   operations.RunStatusRunning,
		Progress: 50,
	}})

	client := NewClient(hub, newFakeConn(), "req-1", config.WebSocketConfig{}, nil)
	hub.Register(client)

	hello := receive(t, client)
	assert.Equal(t, TypeConnection, hello.Type)
	assert.Equal(t, "connected", hello.Status)

	snap := receive(t, client)
	assert.Equal(t, operations.EventTypeRunSnapshot, snap.Type)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, string(operations.RunStatusRunning), snap.Status)
	assert.EqualValues(t, 50, snap.Data.(map[string]any)["progress"])
}

func TestHub_NoSnapshotBeforeFirstRun(t *testing.T) {
	hub := newTestHub(t)
	hub.SetSnapshotSource(staticSource{})

	client := NewClient(hub, newFakeConn(), "", config.WebSocketConfig{}, nil)
	hub.Register(client)
	assert.Equal(t, TypeConnection, receive(t, client).Type)

	hub.BroadcastUpdate(operations.EventTypeRunSnapshot, "run-2", "pending", map[string]string{"k": "v"})
	msg := receive(t, client)
	assert.Equal(t, "run-2", msg.RunID)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := newTestHub(t)

	a := NewClient(hub, newFakeConn(), "", config.WebSocketConfig{}, nil)
	b := NewClient(hub, newFakeConn(), "", config.WebSocketConfig{}, nil)
	hub.Register(a)
	hub.Register(b)
	receive(t, a)
	receive(t, b)
	assert.Equal(t, 2, hub.ClientCount())

	hub.BroadcastUpdate(operations.EventTypeRunSnapshot, "run-3", "completed", nil)
	assert.Equal(t, "completed", receive(t, a).Status)
	assert.Equal(t, "completed", receive(t, b).Status)

	hub.Unregister(a)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-a.send
	assert.False(t, open)
}

func TestHub_StopClosesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)
	hub.Start()

	c := NewClient(hub, newFakeConn(), "", config.WebSocketConfig{}, nil)
	hub.Register(c)
	receive(t, c)

	hub.Stop()
	hub.Stop()
	_, open := <-c.send
	assert.False(t, open)

	// after stop, updates are discarded without blocking
	hub.BroadcastUpdate(operations.EventTypeRunSnapshot, "run-4", "running", nil)
}

func TestServe_EndToEnd(t *testing.T) {
	hub := newTestHub(t)
	hub.SetSnapshotSource(staticSource{snap: &operations.RunSnapshot{RunID: "run-9", Status: operations.RunStatusCompleted}})

	upgrader := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		Serve(hub, WrapConn(c), "req-9", config.WebSocketConfig{}, nil)
	}))
	defer srv.Close()

	ws, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	var types []string
	for i := 0; i < 2; i++ {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg Message
		require.NoError(t, ws.ReadJSON(&msg))
		types = append(types, msg.Type)
	}
	assert.Equal(t, []string{TypeConnection, operations.EventTypeRunSnapshot}, types)

	ws.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
