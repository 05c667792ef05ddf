package mapserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, f *fixture, origin string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) eventMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg eventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestSessionEvents_Stream(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	conn := dialEvents(t, f, "http://localhost:5173")

	first := readEvent(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.Nil(t, first.Session.CallID)

	require.NoError(t, f.session.SelectCall(7))

	changed := readEvent(t, conn)
	assert.Equal(t, "selection_changed", changed.Type)
	require.NotNil(t, changed.Session.CallID)
	assert.Equal(t, 7, *changed.Session.CallID)
	assert.True(t, changed.Session.Loading)

	updated := readEvent(t, conn)
	assert.Equal(t, "regions_updated", updated.Type)
	assert.Equal(t, 2, updated.Session.RegionCount)
	assert.False(t, updated.Session.Loading)
}

func TestSessionEvents_RefreshFailed(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError)
	conn := dialEvents(t, f, "")
	readEvent(t, conn)

	require.NoError(t, f.session.SelectCall(7))
	readEvent(t, conn)

	failed := readEvent(t, conn)
	assert.Equal(t, "refresh_failed", failed.Type)
	assert.NotEmpty(t, failed.Error)
	assert.Zero(t, failed.Session.RegionCount)
}

func TestSessionEvents_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_DropsForSlowClient(t *testing.T) {
	h := newHub()
	ch := h.add()
	for range clientBuffer + 5 {
		h.publish([]byte("x"))
	}
	assert.Len(t, ch, clientBuffer)

	h.remove(ch)
	h.publish([]byte("y"))
	assert.Len(t, ch, clientBuffer)
}
