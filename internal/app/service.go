package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"portal/api/internal/auth"
	"portal/api/internal/directory"
	"portal/api/internal/export"
	"portal/api/internal/portal"
	"portal/api/internal/rbac"
	"portal/api/internal/search"
	"portal/api/internal/session"
	"portal/api/internal/store"
)

const (
	prefTheme    = "theme"
	themeLight   = "light"
	themeDark    = "dark"
	defaultTheme = themeLight
)

// Session is an authenticated request's view of its portal client. The token
// id doubles as the client id.
type Session struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
	User      directory.User
	Client    *portal.Client
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Domain   string `json:"domain"`
	// ClientID reuses a session created by POST /api/session.
	ClientID string `json:"clientId"`
}

type searcher interface {
	Search(q search.Query) search.Response
}

type auditExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// documentLinker resolves where a document can be downloaded from.
type documentLinker interface {
	Link(ctx context.Context, doc store.Document) (string, error)
}

type alertMailer interface {
	RoleChanged(user directory.User, role rbac.Role) error
	Broadcast(recipients []directory.User, message string, typ store.NotificationType) error
}

type Service struct {
	portal   *portal.Portal
	issuer   *auth.Issuer
	sessions session.Store
	search   searcher
	exporter auditExporter
	linker   documentLinker
	mailer   alertMailer
	logger   *zap.Logger
}

type Options struct {
	Portal   *portal.Portal
	Issuer   *auth.Issuer
	Sessions session.Store
	Search   searcher
	Exporter auditExporter
	// Linker is optional; without it document URLs are returned as stored.
	Linker documentLinker
	// Mailer is optional; alerts then stay in-app.
	Mailer alertMailer
	Logger *zap.Logger
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		portal:   opts.Portal,
		issuer:   opts.Issuer,
		sessions: opts.Sessions,
		search:   opts.Search,
		exporter: opts.Exporter,
		linker:   opts.Linker,
		mailer:   opts.Mailer,
		logger:   logger,
	}
}

func (s *Service) Portal() *portal.Portal { return s.portal }

// NewClient opens a signed-out client, so a browser can navigate and attach
// a later login to the same session.
func (s *Service) NewClient() *portal.Client {
	return s.portal.NewClient()
}

// Login signs a client in and issues its access token. A new client is opened
// unless in.ClientID names a live one.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if strings.TrimSpace(in.Username) == "" {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "username is required", nil)
	}

	var client *portal.Client
	created := false
	if in.ClientID != "" {
		client, _ = s.portal.Client(in.ClientID)
	}
	if client == nil {
		client, created = s.portal.NewClient(), true
	}

	ok, err := client.Login(ctx, in.Username, in.Password, in.Domain)
	if err != nil || !ok {
		if created {
			s.portal.RemoveClient(client.ID())
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Session{}, domainError(http.StatusGatewayTimeout, "LOGIN_TIMEOUT", "Authentication timed out", nil)
		}
		if errors.Is(err, context.Canceled) {
			return Session{}, domainError(http.StatusRequestTimeout, "LOGIN_CANCELLED", "Login request was cancelled", nil)
		}
		s.logger.Warn("login failed", zap.Error(err))
		return Session{}, domainError(http.StatusBadGateway, "AUTH_UNAVAILABLE", "Authentication service unavailable", nil)
	}
	if !ok {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}

	user, _ := client.User()
	token, expiresAt, err := s.issuer.Issue(user.ID, user.Name, string(user.Role), client.ID())
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, JTI: client.ID(), ExpiresAt: expiresAt, User: user, Client: client}, nil
}

// SessionFromToken resolves a bearer token to its live client. Revoked tokens,
// evicted clients and clients signed in as someone else are rejected.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}
	client, ok := s.portal.Client(claims.ID)
	if !ok {
		return Session{}, errSessionExpired
	}
	user, ok := client.User()
	if !ok || user.ID != claims.Subject {
		return Session{}, errSessionExpired
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Session{Token: token, JTI: claims.ID, ExpiresAt: expiresAt, User: user, Client: client}, nil
}

// Logout signs the client out, revokes its token and drops the client.
func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.Client != nil {
		session.Client.Logout()
	}
	if session.JTI == "" {
		return nil
	}
	s.portal.RemoveClient(session.JTI)
	if err := s.sessions.RevokeToken(ctx, session.JTI, session.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) Theme(ctx context.Context, userID string) (string, error) {
	value, ok, err := s.sessions.Preference(ctx, userID, prefTheme)
	if err != nil {
		return "", err
	}
	if !ok {
		return defaultTheme, nil
	}
	return value, nil
}

func (s *Service) SetTheme(ctx context.Context, userID, theme string) (string, error) {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != themeLight && theme != themeDark {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "theme must be light or dark", map[string]any{"theme": theme})
	}
	if err := s.sessions.SetPreference(ctx, userID, prefTheme, theme); err != nil {
		return "", err
	}
	return theme, nil
}

func (s *Service) Search(text string, limit int) search.Response {
	return s.search.Search(search.Query{Text: text, Limit: limit})
}

// ExportAudit renders the audit trail and records who exported it.
func (s *Service) ExportAudit(ctx context.Context, session Session, format export.Format, limit int) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	res, err := s.exporter.Export(ctx, export.Request{Format: format, Limit: limit, RequestedBy: session.User.Name})
	if err != nil {
		return nil, err
	}
	session.Client.LogAction("Audit Export", fmt.Sprintf("Exported audit trail as %s", format), store.SeverityInfo)
	return res, nil
}

// DocumentLink returns a download location for a document.
func (s *Service) DocumentLink(ctx context.Context, id string) (string, error) {
	doc, ok := s.portal.Data.Document(id)
	if !ok {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", map[string]any{"id": id})
	}
	if s.linker == nil {
		return doc.URL, nil
	}
	return s.linker.Link(ctx, doc)
}

// UpdateUserRole changes a user's role and, with RBAC change warnings on,
// mails them about it. Mail failures are logged, never returned.
func (s *Service) UpdateUserRole(session Session, id string, role rbac.Role) (directory.User, error) {
	user, err := session.Client.UpdateUserRole(id, role)
	if err != nil {
		return directory.User{}, err
	}
	if s.mailer != nil && s.portal.Settings.Get().RBACChangeWarnings {
		if err := s.mailer.RoleChanged(user, role); err != nil {
			s.logger.Warn("role change email", zap.String("user", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

// Broadcast notifies every signed-in client and returns how many were reached.
// Service alerts are mailed when downtime alerts are on, announcements when
// feature announcements are on.
func (s *Service) Broadcast(session Session, message string, typ store.NotificationType) int {
	delivered := s.portal.Broadcast(message, typ)
	session.Client.LogAction("Broadcast", fmt.Sprintf("Broadcast %q to %d sessions", message, delivered), store.SeverityWarning)
	if s.mailer == nil {
		return delivered
	}
	settings := s.portal.Settings.Get()
	mail := settings.FeatureAnnouncements
	if typ == store.NotifyWarning || typ == store.NotifyError {
		mail = settings.DowntimeAlerts
	}
	if mail {
		if err := s.mailer.Broadcast(s.portal.Directory.List(), message, typ); err != nil {
			s.logger.Warn("broadcast email", zap.Error(err))
		}
	}
	return delivered
}

func (s *Service) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}
