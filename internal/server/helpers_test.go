package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

// startTestServer runs a relay behind httptest and shuts both down on cleanup.
func startTestServer(t *testing.T, customize func(cfg *Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := NewConfig()
	cfg.AllowedOrigins = "*"
	if customize != nil {
		customize(cfg)
	}

	relay := New(cfg, testLogger())
	ts := httptest.NewServer(relay.SetupRoutes())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ts.Close()
		_ = relay.Shutdown(ctx)
	})
	return relay, ts
}

func chatURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
}

func testDialer() *websocket.Dialer {
	return &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, resp, err := testDialer().Dial(chatURL(ts), nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// connectAs dials, sends the login frame, and waits until the session is live.
func connectAs(t *testing.T, relay *Server, ts *httptest.Server, username, password string) *websocket.Conn {
	t.Helper()
	conn := dial(t, ts)
	require.NoError(t, conn.WriteJSON(Credentials{Username: username, Password: password}))
	require.Eventually(t, func() bool {
		_, ok := relay.Sessions().Lookup(username)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "session for %s never appeared", username)
	return conn
}

func registerHTTP(t *testing.T, ts *httptest.Server, username, password string) *http.Response {
	t.Helper()
	body, err := json.Marshal(Credentials{Username: username, Password: password})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readChat(t *testing.T, conn *websocket.Conn) ChatMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ChatMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no message")
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout(), "expected read timeout, got %v", err)
}

// expectClosed reads until the connection reports an error and returns it.
func expectClosed(t *testing.T, conn *websocket.Conn) error {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection was not closed: %v", err)
			}
			return err
		}
	}
}
