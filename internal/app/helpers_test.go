package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portal/api/internal/auth"
	"portal/api/internal/directory"
	"portal/api/internal/export"
	"portal/api/internal/portal"
	"portal/api/internal/search"
	"portal/api/internal/seed"
	"portal/api/internal/session"
)

type fakeSessions struct {
	*session.MemoryStore
	pingFn func(context.Context) error
}

func (f *fakeSessions) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeExporter struct {
	exportFn func(ctx context.Context, req export.Request) (*export.Result, error)
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	if f.exportFn != nil {
		return f.exportFn(ctx, req)
	}
	return &export.Result{Data: []byte("<html></html>"), Filename: "audit.html", MimeType: "text/html; charset=utf-8"}, nil
}

type testEnv struct {
	portal   *portal.Portal
	service  *Service
	sessions *fakeSessions
	server   *HTTPServer
}

type envOption func(*Options, *ServerOptions)

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()
	now := time.Now()
	fx, err := seed.Default(now)
	require.NoError(t, err)
	dir, err := directory.New(fx.Users)
	require.NoError(t, err)
	p, err := portal.New(portal.Config{
		Fixtures:      fx,
		Directory:     dir,
		Authenticator: directory.NewRoleMatch(dir, 0),
	})
	require.NoError(t, err)

	sessions := &fakeSessions{MemoryStore: session.NewMemoryStore(nil)}
	svcOpts := Options{
		Portal:   p,
		Issuer:   auth.NewIssuer("test-secret", "portal-test", time.Hour),
		Sessions: sessions,
		Search:   search.NewService(p.Catalog, nil, nil),
		Exporter: &fakeExporter{},
	}
	srvOpts := ServerOptions{CORSOrigin: "*"}
	for _, opt := range opts {
		opt(&svcOpts, &srvOpts)
	}
	svc := New(svcOpts)
	return testEnv{portal: svcOpts.Portal, service: svc, sessions: sessions, server: NewHTTPServer(svc, srvOpts)}
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

// login signs username in through the API and returns the access token.
func (e testEnv) login(t *testing.T, username string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/session/login", "", map[string]any{
		"username": username,
		"password": "password123",
		"domain":   "EMEA",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected token")
	}
	return token
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}
