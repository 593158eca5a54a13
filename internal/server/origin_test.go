package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		header  string
		allowed bool
	}{
		{name: "no origin header", origins: "http://localhost:3030", header: "", allowed: true},
		{name: "configured origin", origins: "http://localhost:3030", header: "http://localhost:3030", allowed: true},
		{name: "case insensitive host", origins: "http://LOCALHOST:3030", header: "http://localhost:3030", allowed: true},
		{name: "path is ignored", origins: "https://chat.example.com/app", header: "https://chat.example.com", allowed: true},
		{name: "other origin", origins: "http://localhost:3030", header: "http://evil.example.com", allowed: false},
		{name: "scheme mismatch", origins: "https://chat.example.com", header: "http://chat.example.com", allowed: false},
		{name: "wildcard", origins: "*", header: "http://anything.example.com", allowed: true},
		{name: "malformed header", origins: "http://localhost:3030", header: "not a url", allowed: false},
		{name: "invalid config entries skipped", origins: "bogus, http://ok.example.com", header: "http://ok.example.com", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(tt.origins, testLogger())
			r := httptest.NewRequest(http.MethodGet, "/chat", http.NoBody)
			if tt.header != "" {
				r.Header.Set("Origin", tt.header)
			}

			require.Equal(t, tt.allowed, policy.checkOrigin(r))
		})
	}
}

func TestChatHandler_BlocksDisallowedOrigin(t *testing.T) {
	_, ts := startTestServer(t, func(cfg *Config) {
		cfg.AllowedOrigins = "http://localhost:3030"
	})

	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")
	_, resp, err := testDialer().Dial(chatURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
