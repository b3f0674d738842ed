package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peersignal/relay/internal/app"
	"github.com/peersignal/relay/internal/config"
	"github.com/peersignal/relay/internal/directory"
	"github.com/peersignal/relay/internal/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *directory.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ReadLimit:  32768,
		PingPeriod: time.Minute,
		WriteWait:  5 * time.Second,
	}
	dir := directory.NewMemory()
	registry := app.NewRegistry(dir)
	hub := NewHub(cfg)
	hub.Router = &app.Router{
		Registry: registry,
		Relay:    app.NewRelayEngine(registry, hub),
		Policy:   app.LogPolicy{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/api/ws", func(c *gin.Context) {
		hub.HandleWS(ctx, c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, dir
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws" + query
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?roomId="+room), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForMembers(t *testing.T, dir *directory.Memory, room domain.RoomID, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		members, err := dir.Members(context.Background(), room)
		return err == nil && len(members) == n
	}, 2*time.Second, 10*time.Millisecond, "room %s never reached %d members", room, n)
}

func TestHandshakeRequiresRoomID(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, conn)
}

func TestMessageIsRelayedToPeer(t *testing.T) {
	srv, dir := newTestServer(t)

	alice := dial(t, srv, "r1")
	bob := dial(t, srv, "r1")
	waitForMembers(t, dir, "r1", 2)

	inbound := `{"roomId":"r1","type":"offer","payload":{"sdp":"v=0..."}}`
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(inbound)))

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := bob.ReadMessage()
	require.NoError(t, err)

	var out domain.Relayed
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "offer", out.Type)
	assert.JSONEq(t, `{"sdp":"v=0..."}`, string(out.Payload))
	assert.NotEmpty(t, out.From)

	// The sender must not receive its own message.
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = alice.ReadMessage()
	assert.Error(t, err)
}

func TestPeersInOtherRoomsAreUntouched(t *testing.T) {
	srv, dir := newTestServer(t)

	alice := dial(t, srv, "r1")
	stranger := dial(t, srv, "r2")
	waitForMembers(t, dir, "r1", 1)
	waitForMembers(t, dir, "r2", 1)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"roomId":"r1","type":"offer","payload":{}}`)))

	require.NoError(t, stranger.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := stranger.ReadMessage()
	assert.Error(t, err, "message must stay inside its room")
}

func TestDisconnectRemovesMembership(t *testing.T) {
	srv, dir := newTestServer(t)

	alice := dial(t, srv, "r1")
	dial(t, srv, "r1")
	waitForMembers(t, dir, "r1", 2)

	require.NoError(t, alice.Close())
	waitForMembers(t, dir, "r1", 1)
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	srv, dir := newTestServer(t)

	alice := dial(t, srv, "r1")
	bob := dial(t, srv, "r1")
	waitForMembers(t, dir, "r1", 2)

	// Garbage is rejected without dropping the socket...
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json at all")))
	// ...so a well-formed follow-up still goes through.
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"roomId":"r1","type":"candidate","payload":{"c":1}}`)))

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := bob.ReadMessage()
	require.NoError(t, err)

	var out domain.Relayed
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "candidate", out.Type)
}
