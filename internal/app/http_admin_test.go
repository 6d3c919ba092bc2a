package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/api/internal/directory"
	"portal/api/internal/export"
	"portal/api/internal/rbac"
	"portal/api/internal/store"
)

func TestAdminRoutesForbiddenForNonAdmins(t *testing.T) {
	env := newTestEnv(t)

	for _, username := range []string{"editor", "viewer"} {
		token := env.login(t, username)
		for _, path := range []string{"/api/admin/users", "/api/admin/audit", "/api/admin/logs", "/api/admin/integrations", "/api/admin/notification-settings"} {
			rr := env.do(t, http.MethodGet, path, token, nil)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("%s %s: expected status 403, got %d", username, path, rr.Code)
			}
		}
		rr := env.do(t, http.MethodPost, "/api/admin/console/open", token, nil)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s: expected console open to be forbidden, got %d", username, rr.Code)
		}
	}
}

func TestAdminConsole(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rr := env.do(t, http.MethodPost, "/api/admin/console/open", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	session := env.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, true, decodeMap(t, session)["adminConsole"])

	env.do(t, http.MethodPost, "/api/admin/console/close", token, nil)
	session = env.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, false, decodeMap(t, session)["adminConsole"])
}

func TestAdminUpdatesUserRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin")
	viewer := env.login(t, "viewer")
	env.portal.Settings.Set(store.NotificationSettings{RBACChangeWarnings: true})

	rr := env.do(t, http.MethodPut, "/api/admin/users/u3/role", admin, map[string]any{"role": "Editor"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "Editor", decodeMap(t, rr)["role"])

	notifications := env.do(t, http.MethodGet, "/api/notifications", viewer, nil)
	items, _ := decodeMap(t, notifications)["notifications"].([]any)
	require.NotEmpty(t, items)
	first, _ := items[0].(map[string]any)
	assert.Equal(t, "Your role was changed to Editor", first["message"])

	bad := env.do(t, http.MethodPut, "/api/admin/users/u3/role", admin, map[string]any{"role": "Root"})
	if bad.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", bad.Code)
	}
	missing := env.do(t, http.MethodPut, "/api/admin/users/ghost/role", admin, map[string]any{"role": "Viewer"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}
}

func TestAdminAuditPaging(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")
	for i := 0; i < 5; i++ {
		env.do(t, http.MethodPost, "/api/audit", token, map[string]any{"action": "Click"})
	}

	rr := env.do(t, http.MethodGet, "/api/admin/audit?limit=2&offset=1", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeMap(t, rr)
	entries, _ := payload["entries"].([]any)
	assert.Len(t, entries, 2)
	assert.EqualValues(t, env.portal.Audit.Len(), payload["total"])
	assert.EqualValues(t, 1, payload["offset"])
}

func TestAdminAuditExport(t *testing.T) {
	var got export.Request
	env := newTestEnv(t, func(o *Options, _ *ServerOptions) {
		o.Exporter = &fakeExporter{exportFn: func(_ context.Context, req export.Request) (*export.Result, error) {
			got = req
			return &export.Result{Data: []byte("%PDF-1.4"), Filename: "audit-trail.pdf", MimeType: "application/pdf"}, nil
		}}
	})
	token := env.login(t, "admin")

	rr := env.do(t, http.MethodGet, "/api/admin/audit/export?format=pdf&limit=10", token, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="audit-trail.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", rr.Body.String())
	assert.Equal(t, export.FormatPDF, got.Format)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, "Sarah Admin", got.RequestedBy)
	assert.Equal(t, "Audit Export", env.portal.Audit.List()[0].Action)
}

func TestAdminAuditExportErrors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		exportFn func(context.Context, export.Request) (*export.Result, error)
		want     int
		wantCode string
	}{
		{name: "unknown format", query: "format=xlsx", want: http.StatusUnprocessableEntity, wantCode: "VALIDATION_ERROR"},
		{
			name:  "missing chromium",
			query: "format=pdf",
			exportFn: func(context.Context, export.Request) (*export.Result, error) {
				return nil, export.ErrPDFDependencyMissing
			},
			want:     http.StatusServiceUnavailable,
			wantCode: "EXPORT_UNAVAILABLE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(o *Options, _ *ServerOptions) {
				o.Exporter = &fakeExporter{exportFn: tt.exportFn}
			})
			token := env.login(t, "admin")

			rr := env.do(t, http.MethodGet, "/api/admin/audit/export?"+tt.query, token, nil)

			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d body=%s", tt.want, rr.Code, rr.Body.String())
			}
			assert.Equal(t, tt.wantCode, decodeMap(t, rr)["code"])
		})
	}
}

func TestAdminIntegrations(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	rr := env.do(t, http.MethodPost, "/api/admin/integrations", token, map[string]any{"name": "ServiceNow", "type": "api"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeMap(t, rr)
	id, _ := created["id"].(string)
	assert.Equal(t, "API", created["type"])

	rr = env.do(t, http.MethodPost, "/api/admin/integrations/"+id+"/sync", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, "Integration Sync", env.portal.Audit.List()[0].Action)

	bad := env.do(t, http.MethodPost, "/api/admin/integrations", token, map[string]any{"name": "x", "type": "SOAP"})
	if bad.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", bad.Code)
	}
	missing := env.do(t, http.MethodPost, "/api/admin/integrations/ghost/sync", token, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.Code)
	}
}

func TestAdminNotificationSettings(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin")

	current := decodeMap(t, env.do(t, http.MethodGet, "/api/admin/notification-settings", token, nil))
	current["featureAnnouncements"] = false

	rr := env.do(t, http.MethodPut, "/api/admin/notification-settings", token, current)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, false, decodeMap(t, rr)["featureAnnouncements"])
	assert.False(t, env.portal.Settings.Get().FeatureAnnouncements)
}

func TestAdminBroadcast(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin")
	viewer := env.login(t, "viewer")
	env.service.NewClient()

	rr := env.do(t, http.MethodPost, "/api/admin/broadcast", admin, map[string]any{"message": "Maintenance at 22:00", "type": "warning"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.EqualValues(t, 2, decodeMap(t, rr)["delivered"], "only signed-in sessions receive broadcasts")

	items, _ := decodeMap(t, env.do(t, http.MethodGet, "/api/notifications", viewer, nil))["notifications"].([]any)
	first, _ := items[0].(map[string]any)
	assert.Equal(t, "Maintenance at 22:00", first["message"])
	assert.Equal(t, "warning", first["type"])

	blank := env.do(t, http.MethodPost, "/api/admin/broadcast", admin, map[string]any{"message": " "})
	if blank.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", blank.Code)
	}
}

type fakeMailer struct {
	roleChangedFn func(user directory.User, role rbac.Role) error
	broadcasts    []store.NotificationType
	roleChanges   []string
}

func (f *fakeMailer) RoleChanged(user directory.User, role rbac.Role) error {
	f.roleChanges = append(f.roleChanges, user.ID+":"+string(role))
	if f.roleChangedFn != nil {
		return f.roleChangedFn(user, role)
	}
	return nil
}

func (f *fakeMailer) Broadcast(_ []directory.User, _ string, typ store.NotificationType) error {
	f.broadcasts = append(f.broadcasts, typ)
	return nil
}

func withMailer(m *fakeMailer) envOption {
	return func(o *Options, _ *ServerOptions) { o.Mailer = m }
}

func TestAdminAlertsMailedPerSettings(t *testing.T) {
	mailer := &fakeMailer{}
	env := newTestEnv(t, withMailer(mailer))
	admin := env.login(t, "admin")

	env.portal.Settings.Set(store.NotificationSettings{DowntimeAlerts: true})
	env.do(t, http.MethodPost, "/api/admin/broadcast", admin, map[string]any{"message": "Outage", "type": "error"})
	env.do(t, http.MethodPost, "/api/admin/broadcast", admin, map[string]any{"message": "New search", "type": "info"})
	assert.Equal(t, []store.NotificationType{store.NotifyError}, mailer.broadcasts)

	env.do(t, http.MethodPut, "/api/admin/users/u2/role", admin, map[string]any{"role": "Viewer"})
	assert.Empty(t, mailer.roleChanges, "role mail needs rbac change warnings")

	env.portal.Settings.Set(store.NotificationSettings{FeatureAnnouncements: true, RBACChangeWarnings: true})
	env.do(t, http.MethodPost, "/api/admin/broadcast", admin, map[string]any{"message": "New search", "type": "success"})
	assert.Equal(t, []store.NotificationType{store.NotifyError, store.NotifySuccess}, mailer.broadcasts)

	mailer.roleChangedFn = func(directory.User, rbac.Role) error { return errors.New("smtp down") }
	rr := env.do(t, http.MethodPut, "/api/admin/users/u2/role", admin, map[string]any{"role": "Editor"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 despite mail failure, got %d body=%s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, []string{"u2:Editor"}, mailer.roleChanges)
}
