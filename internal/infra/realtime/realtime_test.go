package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair returns a server-side Connection and the client end of the same socket.
func pair(t *testing.T, actorID string) (*Connection, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewConnection(actorID, <-serverSide), client
}

func TestConnectionDeliversInOrder(t *testing.T) {
	conn, client := pair(t, "u1")
	r := NewRegistry()
	require.True(t, r.Attach(conn))
	defer r.Close()

	require.NoError(t, conn.SendJSON(map[string]string{"type": "a"}))
	require.NoError(t, conn.Send([]byte(`{"type":"b"}`)))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := client.ReadMessage()
	require.NoError(t, err)
	_, second, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"a"}`, string(first))
	assert.JSONEq(t, `{"type":"b"}`, string(second))
}

func TestRegistryTracksActors(t *testing.T) {
	a, _ := pair(t, "u1")
	b, _ := pair(t, "u1")
	r := NewRegistry()
	require.True(t, r.Attach(a))
	require.True(t, r.Attach(b))
	assert.Equal(t, 2, r.ActorConnections("u1"))

	r.Detach(a)
	a.Close(websocket.CloseNormalClosure, "bye")
	assert.Equal(t, 1, r.Len())

	r.Close()
	assert.Zero(t, r.Len())
	assert.ErrorIs(t, b.Send([]byte("x")), ErrConnectionClosed)
	<-b.Done()

	c, _ := pair(t, "u2")
	assert.False(t, r.Attach(c))
	c.Close(websocket.CloseNormalClosure, "")
}
