package email

import (
	"net/smtp"
	"strings"
	"testing"

	"portal/api/internal/directory"
	"portal/api/internal/rbac"
	"portal/api/internal/store"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newRecordingService(t *testing.T) (*Service, *[]sentMail) {
	t.Helper()
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "portal@example.com", FromName: "Platform Services"})
	var sent []sentMail
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return svc, &sent
}

func TestSendHTMLEmailNotConfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "s", "p", "<p>h</p>"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRoleChangedMailsAffectedUser(t *testing.T) {
	svc, sent := newRecordingService(t)
	user := directory.User{ID: "u2", Name: "John Dev", Email: "john.dev@platform.com", Role: rbac.RoleViewer}

	if err := svc.RoleChanged(user, rbac.RoleViewer); err != nil {
		t.Fatalf("RoleChanged failed: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(*sent))
	}
	m := (*sent)[0]
	if m.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q", m.addr)
	}
	if len(m.to) != 1 || m.to[0] != "john.dev@platform.com" {
		t.Errorf("to = %v", m.to)
	}
	if !strings.Contains(m.msg, "Subject: Your Platform Services role is now Viewer") {
		t.Error("message should carry the role in the subject")
	}
	if !strings.Contains(m.msg, "From: Platform Services <portal@example.com>") {
		t.Error("message should use the display name")
	}
	if !strings.Contains(m.msg, "<strong>Viewer</strong>") {
		t.Error("html part should contain the new role")
	}
}

func TestRoleChangedSkipsUserWithoutEmail(t *testing.T) {
	svc, sent := newRecordingService(t)

	if err := svc.RoleChanged(directory.User{ID: "u9", Name: "No Mail"}, rbac.RoleEditor); err != nil {
		t.Fatalf("RoleChanged failed: %v", err)
	}
	if len(*sent) != 0 {
		t.Fatalf("expected no message, got %d", len(*sent))
	}
}

func TestBroadcastMailsEveryAddress(t *testing.T) {
	svc, sent := newRecordingService(t)
	users := []directory.User{
		{ID: "u1", Email: "sarah.admin@platform.com"},
		{ID: "u2"},
		{ID: "u3", Email: "guest@platform.com"},
	}

	if err := svc.Broadcast(users, "Maintenance at <22:00>", store.NotifyWarning); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(*sent))
	}
	m := (*sent)[0]
	if strings.Join(m.to, ",") != "sarah.admin@platform.com,guest@platform.com" {
		t.Errorf("to = %v", m.to)
	}
	if !strings.Contains(m.msg, "Subject: [Platform Services] Service alert") {
		t.Error("warnings should be sent as service alerts")
	}
	if !strings.Contains(m.msg, "Maintenance at &lt;22:00&gt;") {
		t.Error("html part should escape the message")
	}
}

func TestBroadcastKind(t *testing.T) {
	cases := map[store.NotificationType]string{
		store.NotifyError:   "Service alert",
		store.NotifyWarning: "Service alert",
		store.NotifyInfo:    "Announcement",
		store.NotifySuccess: "Announcement",
	}
	for typ, want := range cases {
		if got := broadcastKind(typ); got != want {
			t.Errorf("broadcastKind(%s) = %q, want %q", typ, got, want)
		}
	}
}
