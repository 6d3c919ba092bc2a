// Package email mails portal alerts over SMTP: role change warnings to the
// affected user and admin broadcasts to the whole directory.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"portal/api/internal/directory"
	"portal/api/internal/rbac"
	"portal/api/internal/store"
)

const appName = "Platform Services"

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, plain, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return nil
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-platform-services"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", plain)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type RoleChangeData struct {
	AppName  string
	UserName string
	Role     rbac.Role
}

type BroadcastData struct {
	AppName string
	Kind    string
	Message string
}

// RoleChanged warns user that an admin changed their role.
func (s *Service) RoleChanged(user directory.User, role rbac.Role) error {
	if user.Email == "" {
		return nil
	}
	data := RoleChangeData{AppName: appName, UserName: user.Name, Role: role}
	html, err := renderTemplate(roleChangeEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render role change template: %w", err)
	}
	subject := fmt.Sprintf("Your %s role is now %s", appName, role)
	plain := fmt.Sprintf("Hi %s, an administrator changed your role to %s. It applies from your next sign-in.", user.Name, role)
	return s.SendHTMLEmail([]string{user.Email}, subject, plain, html)
}

// Broadcast mails an admin broadcast to every recipient with an address.
func (s *Service) Broadcast(recipients []directory.User, message string, typ store.NotificationType) error {
	to := make([]string, 0, len(recipients))
	for _, u := range recipients {
		if u.Email != "" {
			to = append(to, u.Email)
		}
	}
	data := BroadcastData{AppName: appName, Kind: broadcastKind(typ), Message: message}
	html, err := renderTemplate(broadcastEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render broadcast template: %w", err)
	}
	subject := fmt.Sprintf("[%s] %s", appName, data.Kind)
	return s.SendHTMLEmail(to, subject, message, html)
}

func broadcastKind(typ store.NotificationType) string {
	switch typ {
	case store.NotifyWarning, store.NotifyError:
		return "Service alert"
	default:
		return "Announcement"
	}
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const roleChangeEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your {{.AppName}} role changed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.UserName}},</p>

    <div class="warning">
        An administrator changed your role to <strong>{{.Role}}</strong>.
    </div>

    <p>Sessions that are already open keep their current permissions. The new role applies the next time you sign in.</p>

    <div class="footer">
        <p>If you did not expect this change, contact your portal administrator.</p>
    </div>
</body>
</html>`

const broadcastEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}}: {{.Kind}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .message { background: #f4f7fb; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>{{.Kind}}</h2>

    <div class="message">{{.Message}}</div>

    <div class="footer">
        <p>You receive this because portal notifications are enabled for your team.</p>
    </div>
</body>
</html>`
