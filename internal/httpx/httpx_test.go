package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	var seen string
	h := Middleware(nil, "*")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Middleware(zap.New(core), "https://portal.example.com")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "SERVER_ERROR", payload["code"])
	assert.Equal(t, "https://portal.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, logs.FilterMessage("panic").Len())
	access := logs.FilterMessage("request").All()
	require.Len(t, access, 1)
	assert.EqualValues(t, http.StatusInternalServerError, access[0].ContextMap()["status"])
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"Basic abc":     "",
		"Bearer ":       "",
		"Bearer abc":    "abc",
		"  Bearer xyz ": "xyz",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(req), "header %q", header)
	}
}

func TestRemoteHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4411"
	assert.Equal(t, "192.0.2.7", RemoteHost(req))
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", RemoteHost(req))
}
