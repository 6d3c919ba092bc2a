package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/api/internal/store"
)

func TestNavigationFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "editor")

	rr := env.do(t, http.MethodGet, "/api/navigation", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	selection, _ := decodeMap(t, rr)["selection"].(map[string]any)
	assert.Equal(t, "Home", selection["activeTopTab"])

	rr = env.do(t, http.MethodPost, "/api/navigation/top-tab", token, map[string]any{"tab": "SOPs"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	selection, _ = payload["selection"].(map[string]any)
	assert.Equal(t, "SOPs", selection["activeTopTab"])
	assert.NotNil(t, payload["content"])

	rr = env.do(t, http.MethodPost, "/api/navigation/toggle-category", token, map[string]any{"categoryId": "sa_l3"})
	selection, _ = decodeMap(t, rr)["selection"].(map[string]any)
	assert.Equal(t, "", selection["expandedCategoryId"])
	assert.Equal(t, "unix_l3", selection["activeSubServiceId"], "collapsing keeps the active sub-service")
}

func TestSelectTopTabRejectsUnknownTab(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodPost, "/api/navigation/top-tab", token, map[string]any{"tab": "Casino"})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMalformedBodyIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodPost, "/api/navigation/top-tab", token, "not an object")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "INVALID_BODY", decodeMap(t, rr)["code"])
}

func TestSearchAndSelect(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodGet, "/api/search?q=unix", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	results, _ := payload["results"].([]any)
	require.NotEmpty(t, results)
	assert.Equal(t, "catalog", payload["engine"])

	rr = env.do(t, http.MethodPost, "/api/search/select", token, map[string]any{"query": "unix", "subServiceId": "unix_l2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	selection, _ := decodeMap(t, rr)["selection"].(map[string]any)
	assert.Equal(t, "unix_l2", selection["activeSubServiceId"])
	assert.Equal(t, "Search Selection", env.portal.Audit.List()[0].Action)

	rr = env.do(t, http.MethodPost, "/api/search/select", token, map[string]any{"query": "x", "subServiceId": "ghost"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "editor")

	rr := env.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "Rotate certs", "priority": "High"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeMap(t, rr)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Pending", created["status"])
	assert.Equal(t, "John Dev", created["assignee"])

	skip := env.do(t, http.MethodPut, "/api/tasks/"+id+"/status", token, map[string]any{"status": "Completed"})
	if skip.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for skipped column, got %d body=%s", skip.Code, skip.Body.String())
	}
	assert.Equal(t, "INVALID_TRANSITION", decodeMap(t, skip)["code"])

	move := env.do(t, http.MethodPut, "/api/tasks/"+id+"/status", token, map[string]any{"status": "In Progress"})
	if move.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", move.Code, move.Body.String())
	}
	assert.Equal(t, true, decodeMap(t, move)["changed"])

	board := env.do(t, http.MethodGet, "/api/tasks", token, nil)
	columns, _ := decodeMap(t, board)["board"].([]any)
	require.Len(t, columns, 3)
	inProgress, _ := columns[1].(map[string]any)
	assert.Equal(t, "In Progress", inProgress["status"])
	var moved map[string]any
	items, _ := inProgress["tasks"].([]any)
	for _, item := range items {
		if task, _ := item.(map[string]any); task["id"] == id {
			moved = task
		}
	}
	require.NotNil(t, moved, "moved task should sit in the In Progress column")
	assert.Equal(t, "Completed", moved["forward"])
	assert.Equal(t, "Pending", moved["back"])
}

func TestTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "editor")

	tests := []struct {
		name   string
		method string
		path   string
		body   map[string]any
		want   int
	}{
		{"blank title", http.MethodPost, "/api/tasks", map[string]any{"title": " "}, http.StatusUnprocessableEntity},
		{"bad priority", http.MethodPost, "/api/tasks", map[string]any{"title": "x", "priority": "Urgent"}, http.StatusUnprocessableEntity},
		{"bad status", http.MethodPut, "/api/tasks/t1/status", map[string]any{"status": "Done"}, http.StatusUnprocessableEntity},
		{"unknown task", http.MethodPut, "/api/tasks/nope/status", map[string]any{"status": "In Progress"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, token, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d body=%s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAddDocumentOnDocumentTab(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "editor")

	home := env.do(t, http.MethodPost, "/api/documents", token, map[string]any{"type": "URL", "name": "x", "url": "https://x"})
	if home.Code != http.StatusConflict {
		t.Fatalf("expected status 409 outside a document tab, got %d body=%s", home.Code, home.Body.String())
	}

	env.do(t, http.MethodPost, "/api/navigation/top-tab", token, map[string]any{"tab": "SOPs"})
	rr := env.do(t, http.MethodPost, "/api/documents", token, map[string]any{"type": "URL", "name": "Patch guide", "url": "https://wiki/patch"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	doc := decodeMap(t, rr)
	assert.Equal(t, "SOPs", doc["subCategory"])
	assert.Equal(t, "unix_l3", doc["serviceId"])

	list := env.do(t, http.MethodGet, "/api/documents?serviceId=unix_l3&category=Documentation&subCategory=SOPs", token, nil)
	docs, _ := decodeMap(t, list)["documents"].([]any)
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		m, _ := d.(map[string]any)
		names = append(names, m["name"].(string))
	}
	assert.Contains(t, names, "Patch guide")
}

type fakeLinker struct {
	linkFn func(ctx context.Context, doc store.Document) (string, error)
}

func (f *fakeLinker) Link(ctx context.Context, doc store.Document) (string, error) {
	return f.linkFn(ctx, doc)
}

func TestDocumentLink(t *testing.T) {
	var linked string
	env := newTestEnv(t, func(o *Options, _ *ServerOptions) {
		o.Linker = &fakeLinker{linkFn: func(_ context.Context, doc store.Document) (string, error) {
			linked = doc.ID
			return "https://objects.example/signed/" + doc.ID, nil
		}}
	})
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodGet, "/api/documents/d1/link", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "d1", linked)
	assert.Equal(t, "https://objects.example/signed/d1", decodeMap(t, rr)["url"])

	missing := env.do(t, http.MethodGet, "/api/documents/ghost/link", token, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}
}

func TestDocumentLinkWithoutLinkerReturnsStoredURL(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodGet, "/api/documents/d1/link", token, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "https://wiki.platform.com/unix/patching-sop", decodeMap(t, rr)["url"])
}

func TestEventsAndLinks(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "editor")

	rr := env.do(t, http.MethodPost, "/api/events", token, map[string]any{
		"name":         "Team offsite",
		"schedule":     "Friday",
		"venue":        "HQ",
		"activityType": "OutOfCampus",
		"services":     []string{"unix_l3"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	bad := env.do(t, http.MethodPost, "/api/links", token, map[string]any{"name": "x", "url": "https://x", "services": []string{"ghost"}})
	if bad.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for unknown service, got %d body=%s", bad.Code, bad.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/links", token, map[string]any{"name": "Runbook", "url": "https://runbook"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	links := env.do(t, http.MethodGet, "/api/links?serviceId=wintel_l3", token, nil)
	items, _ := decodeMap(t, links)["links"].([]any)
	found := false
	for _, item := range items {
		if m, _ := item.(map[string]any); m["name"] == "Runbook" {
			found = true
		}
	}
	assert.True(t, found, "a link without services applies everywhere")
}

func TestNotificationRoutes(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodGet, "/api/notifications", token, nil)
	payload := decodeMap(t, rr)
	items, _ := payload["notifications"].([]any)
	require.NotEmpty(t, items, "login queues a welcome notification")
	assert.EqualValues(t, len(items), payload["unread"])
	first, _ := items[0].(map[string]any)
	id, _ := first["id"].(string)

	rr = env.do(t, http.MethodPost, "/api/notifications/"+id+"/read", token, nil)
	assert.Equal(t, true, decodeMap(t, rr)["changed"])
	rr = env.do(t, http.MethodPost, "/api/notifications/"+id+"/read", token, nil)
	assert.Equal(t, false, decodeMap(t, rr)["changed"])

	rr = env.do(t, http.MethodDelete, "/api/notifications/"+id, token, nil)
	assert.Equal(t, true, decodeMap(t, rr)["removed"])
	rr = env.do(t, http.MethodDelete, "/api/notifications/"+id, token, nil)
	assert.Equal(t, false, decodeMap(t, rr)["removed"])

	rr = env.do(t, http.MethodPost, "/api/notifications/read-all", token, nil)
	assert.EqualValues(t, 0, decodeMap(t, rr)["unread"])
}

func TestThemePreference(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodGet, "/api/preferences/theme", token, nil)
	assert.Equal(t, "light", decodeMap(t, rr)["theme"])

	rr = env.do(t, http.MethodPut, "/api/preferences/theme", token, map[string]any{"theme": "Dark"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "dark", decodeMap(t, rr)["theme"])

	other := env.login(t, "viewer")
	rr = env.do(t, http.MethodGet, "/api/preferences/theme", other, nil)
	assert.Equal(t, "dark", decodeMap(t, rr)["theme"], "theme follows the user across sessions")

	rr = env.do(t, http.MethodPut, "/api/preferences/theme", token, map[string]any{"theme": "sepia"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestThemePreferenceStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")
	env.service.sessions = &brokenPreferences{fakeSessions: env.sessions}

	rr := env.do(t, http.MethodGet, "/api/preferences/theme", token, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "SERVER_ERROR", decodeMap(t, rr)["code"])
}

type brokenPreferences struct {
	*fakeSessions
}

func (b *brokenPreferences) Preference(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("redis: connection reset")
}

func TestIngestLog(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodPost, "/api/logs", token, map[string]any{"type": "feedback", "message": "Love the new board"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	logs := env.portal.SystemLogs.List()
	require.NotEmpty(t, logs)
	assert.Equal(t, "Love the new board", logs[0].Message)
	assert.Equal(t, "Client", logs[0].Source)
	assert.Equal(t, "u3", logs[0].UserID)

	rr = env.do(t, http.MethodPost, "/api/logs", token, map[string]any{"type": "debug", "message": "x"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestLogActionRoute(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "viewer")

	rr := env.do(t, http.MethodPost, "/api/audit", token, map[string]any{"action": "Viewed Report", "details": "MOR"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	entry := env.portal.Audit.List()[0]
	assert.Equal(t, "Viewed Report", entry.Action)
	assert.Equal(t, store.SeverityInfo, entry.Severity)
	assert.Equal(t, "Guest Viewer", entry.UserName)
}
