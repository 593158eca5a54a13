package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHealthHandler verifies the liveness token clients probe for.
func TestHealthHandler(t *testing.T) {
	req := require.New(t)
	r := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rr := httptest.NewRecorder()

	HealthHandler(rr, r)

	req.Equal(http.StatusOK, rr.Code)
	req.Equal("text/plain", rr.Header().Get("Content-Type"))
	req.Equal(LivenessToken, rr.Body.String())
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "registers new user",
			method:         http.MethodPost,
			body:           `{"username":"alice","password":"pw1"}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   "User registered",
		},
		{
			name:           "duplicate user",
			method:         http.MethodPost,
			body:           `{"username":"existing","password":"pw"}`,
			expectedStatus: http.StatusConflict,
			expectedBody:   "User already exists\n",
		},
		{
			name:           "malformed body",
			method:         http.MethodPost,
			body:           `{"username":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing password",
			method:         http.MethodPost,
			body:           `{"username":"dave"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			relay := New(nil, testLogger())
			req.NoError(relay.Directory().Register("existing", "original"))

			r := httptest.NewRequest(tt.method, "/register", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			relay.RegisterHandler(rr, r)

			req.Equal(tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				req.Equal(tt.expectedBody, rr.Body.String())
			}
			_, ok := relay.Directory().Verify("existing", "original")
			req.True(ok, "existing account must be untouched")
		})
	}
}

func TestUsersAndOnlineHandlers(t *testing.T) {
	req := require.New(t)
	relay, ts := startTestServer(t, nil)
	req.NoError(relay.Directory().Register("bob", "pw2"))
	req.NoError(relay.Directory().Register("alice", "pw1"))
	connectAs(t, relay, ts, "bob", "pw2")

	users := getNames(t, ts.URL+"/users")
	req.Equal([]string{"alice", "bob"}, users)

	online := getNames(t, ts.URL+"/online")
	req.Equal([]string{"bob"}, online)

	resp, err := http.Get(ts.URL + "/users")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.NotContains(string(body), "pw")
}

func getNames(t *testing.T, url string) []string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	return names
}

func TestChatHandler(t *testing.T) {
	_, ts := startTestServer(t, nil)

	t.Run("rejects non-GET", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/chat", "text/plain", strings.NewReader("x"))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("rejects plain GET without upgrade headers", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/chat")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestConsolePageHandler(t *testing.T) {
	relay := New(nil, testLogger())
	rr := httptest.NewRecorder()

	relay.ConsolePageHandler(rr, httptest.NewRequest(http.MethodGet, "/console", http.NoBody))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/html", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "/chat")
}
