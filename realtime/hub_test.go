package realtime

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHub(nil, log)
}

func dial(t *testing.T, h *Hub, conversationID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r, conversationID, "user-1")
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHub_BroadcastReachesSubscribers(t *testing.T) {
	h := newTestHub()
	a := dial(t, h, "conv-1")
	b := dial(t, h, "conv-1")
	other := dial(t, h, "conv-2")

	for _, c := range []*websocket.Conn{a, b, other} {
		assert.Equal(t, "connected", readEnvelope(t, c).Type)
	}
	require.Eventually(t, func() bool { return h.Subscribers("conv-1") == 2 }, time.Second, 10*time.Millisecond)

	h.Broadcast("conv-1", "message", map[string]string{"text": "hello"})

	for _, c := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, c)
		assert.Equal(t, "message", env.Type)
		assert.Equal(t, "conv-1", env.ConversationID)
		assert.Equal(t, map[string]interface{}{"text": "hello"}, env.Data)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	h := newTestHub()
	c := dial(t, h, "conv-1")
	readEnvelope(t, c)

	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	c.Close()

	assert.Eventually(t, func() bool { return h.Subscribers("conv-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	h := newTestHub()
	assert.NotPanics(t, func() { h.Broadcast("empty", "message", nil) })
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHub([]string{"https://hub.example.com"}, log)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://hub.example.com")
	assert.True(t, h.upgrader.CheckOrigin(req))
}
