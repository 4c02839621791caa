package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralfield/realtime/internal/config"
	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/internal/metrics"
	"github.com/astralfield/realtime/pkg/auth"
	"github.com/astralfield/realtime/pkg/bus"
	"github.com/astralfield/realtime/pkg/domain"
	"github.com/astralfield/realtime/pkg/hub"
	"github.com/astralfield/realtime/pkg/ratelimit"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	verifier := auth.NewStaticVerifier()
	verifier.Add("tok-alice", &domain.Identity{
		UserID:    "alice",
		Username:  "Alice",
		LeagueIDs: []string{"l1"},
	})

	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	h := hub.New(hub.Options{
		Config: config.HubConfig{
			NodeID:           "node-ws",
			MaxConnections:   10,
			SendBufferSize:   64,
			HandshakeTimeout: time.Second,
			CriticalSendWait: 50 * time.Millisecond,
		},
		Verifier: verifier,
		Bus:      bus.NewMemory(),
		Logger:   logger,
		Window:   metrics.NewWindow(time.Minute),
		Limiter:  ratelimit.NewLimiter(time.Minute, 100),
	})
	require.NoError(t, h.Run(context.Background()))

	srv := httptest.NewServer(NewServer(h, logger))
	t.Cleanup(func() {
		h.Stop(context.Background())
		srv.Close()
	})
	return srv, h
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + query
}

func TestServerAcceptsTokenFromQuery(t *testing.T) {
	srv, h := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=tok-alice"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServerAcceptsBearerHeader(t *testing.T) {
	srv, h := newTestServer(t)

	header := http.Header{"Authorization": []string{"Bearer tok-alice"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServerClosesOnBadToken(t *testing.T) {
	srv, h := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=bogus"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	assert.Zero(t, h.Connections())
}

func TestRoundTripOverSocket(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=tok-alice"), nil)
	require.NoError(t, err)
	defer conn.Close()

	data, _ := json.Marshal(domain.SendMessagePayload{LeagueID: "l1", Message: "over the wire", Type: "chat"})
	frame, _ := json.Marshal(domain.Message{ID: "m1", Kind: domain.EventSendMessage, Timestamp: time.Now(), Data: data})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, domain.EventLeagueMessage, msg.Kind)

	var p domain.LeagueMessagePayload
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, "over the wire", p.Message)
	assert.Equal(t, "alice", p.UserID)
}

func TestShutdownFrameReachesClient(t *testing.T) {
	srv, h := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=tok-alice"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)

	h.Stop(context.Background())

	// The announcement must arrive before the close handshake even though
	// the connection is torn down immediately after it is enqueued.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("connection closed before shutdown frame: %v", err)
		}
		var msg domain.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg.Kind == domain.EventServerShutdown {
			break
		}
	}

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived))
}

func TestDisconnectCleansHubState(t *testing.T) {
	srv, h := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=tok-alice"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return h.Connections() == 0 }, time.Second, 10*time.Millisecond)
}
