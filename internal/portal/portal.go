// Package portal is the application state behind the Platform Services portal.
//
// A Portal owns everything shared between browser sessions: the catalog, the
// user directory, the audit trail, the task board and the ancillary data
// collections. Each browser session is a Client with its own signed-in user,
// navigation selection and notification queue.
package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"portal/api/internal/auth"
	"portal/api/internal/catalog"
	"portal/api/internal/directory"
	"portal/api/internal/seed"
	"portal/api/internal/store"
	"portal/api/internal/util"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotDocumentTab   = errors.New("active tab does not hold documents")
	ErrInvalidInput     = errors.New("invalid input")
)

const defaultLoginTimeout = 5 * time.Second

// Observer receives counts of domain events, typically for metrics.
type Observer interface {
	ObserveLogin(outcome string)
	ObserveAudit(severity string)
	ObserveNotification(kind string)
}

type nopObserver struct{}

func (nopObserver) ObserveLogin(string)        {}
func (nopObserver) ObserveAudit(string)        {}
func (nopObserver) ObserveNotification(string) {}

type Config struct {
	Fixtures      seed.Fixtures
	Directory     *directory.Directory
	Authenticator directory.Authenticator
	Now           func() time.Time
	LoginTimeout  time.Duration
	Logger        *zap.Logger
	// Observer is optional.
	Observer Observer
}

type Portal struct {
	Catalog      *catalog.Catalog
	Directory    *directory.Directory
	Audit        *store.AuditLog
	Tasks        *store.Tasks
	Data         *store.Data
	SystemLogs   *store.SystemLogs
	Integrations *store.Integrations
	Settings     *store.Settings

	auth         directory.Authenticator
	now          func() time.Time
	loginTimeout time.Duration
	logger       *zap.Logger
	observer     Observer
	logins       singleflight.Group

	mu      sync.RWMutex
	clients map[string]*Client
}

func New(cfg Config) (*Portal, error) {
	if cfg.Fixtures.Catalog == nil {
		return nil, errors.New("portal: catalog is required")
	}
	if cfg.Directory == nil || cfg.Authenticator == nil {
		return nil, errors.New("portal: directory and authenticator are required")
	}
	if err := cfg.Fixtures.Validate(); err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.LoginTimeout
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	p := &Portal{
		Catalog:      cfg.Fixtures.Catalog,
		Directory:    cfg.Directory,
		Audit:        store.NewAuditLog(now),
		Tasks:        store.NewTasks(now, cfg.Fixtures.Tasks),
		Data:         store.NewData(now),
		SystemLogs:   store.NewSystemLogs(now, 1000, cfg.Fixtures.SystemLogs),
		Integrations: store.NewIntegrations(now, cfg.Fixtures.Integrations),
		Settings:     store.NewSettings(cfg.Fixtures.NotificationSettings),
		auth:         cfg.Authenticator,
		now:          now,
		loginTimeout: timeout,
		logger:       logger,
		observer:     observer,
		clients:      make(map[string]*Client),
	}
	for _, doc := range cfg.Fixtures.Documents {
		p.Data.AddDocument(doc)
	}
	for _, event := range cfg.Fixtures.Events {
		p.Data.AddEvent(event)
	}
	for _, link := range cfg.Fixtures.Links {
		p.Data.AddLink(link)
	}
	return p, nil
}

// NewClient registers a fresh, signed-out session.
func (p *Portal) NewClient() *Client {
	c := newClient(p, util.NewID("cli"))
	p.mu.Lock()
	p.clients[c.id] = c
	p.mu.Unlock()
	return c
}

func (p *Portal) Client(id string) (*Client, bool) {
	p.mu.RLock()
	c, ok := p.clients[id]
	p.mu.RUnlock()
	if ok {
		c.touch()
	}
	return c, ok
}

func (p *Portal) RemoveClient(id string) {
	p.mu.Lock()
	c, ok := p.clients[id]
	delete(p.clients, id)
	p.mu.Unlock()
	if ok {
		c.close()
	}
}

func (p *Portal) ClientCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

func (p *Portal) snapshot() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Client, 0, len(p.clients))
	for _, c := range p.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast adds a notification to every signed-in client and returns how many
// received it.
func (p *Portal) Broadcast(message string, typ store.NotificationType) int {
	count := 0
	for _, c := range p.snapshot() {
		if _, ok := c.User(); ok {
			c.notify(message, typ)
			count++
		}
	}
	return count
}

// notifyUser adds a notification to every client signed in as userID.
func (p *Portal) notifyUser(userID, message string, typ store.NotificationType) {
	for _, c := range p.snapshot() {
		if u, ok := c.User(); ok && u.ID == userID {
			c.notify(message, typ)
		}
	}
}

// PruneNotifications drops read notifications older than maxAge on every client.
func (p *Portal) PruneNotifications(maxAge time.Duration) int {
	cutoff := p.now().Add(-maxAge)
	total := 0
	for _, c := range p.snapshot() {
		total += c.notifications.PruneRead(cutoff)
	}
	return total
}

// EvictIdle removes clients not seen for longer than idle.
func (p *Portal) EvictIdle(idle time.Duration) int {
	cutoff := p.now().Add(-idle)
	var stale []string
	for _, c := range p.snapshot() {
		if c.lastSeenAt().Before(cutoff) {
			stale = append(stale, c.id)
		}
	}
	for _, id := range stale {
		p.RemoveClient(id)
	}
	return len(stale)
}

// IngestLog records a client-reported log line in the admin console logs.
func (p *Portal) IngestLog(entry store.SystemLog) store.SystemLog {
	if entry.Source == "" {
		entry.Source = "Client"
	}
	return p.SystemLogs.Add(entry)
}

// SyncIntegrations refreshes every connected integration and records the run.
func (p *Portal) SyncIntegrations() int {
	n := p.Integrations.SyncConnected()
	p.SystemLogs.Add(store.SystemLog{
		Type:    store.LogInfo,
		Message: fmt.Sprintf("Directory sync refreshed %d integrations", n),
		Source:  "IntegrationService",
	})
	return n
}

func (p *Portal) audit(user directory.User, action, details string, severity store.Severity) {
	entry := p.Audit.Append(user.ID, user.Name, action, details, severity)
	p.observer.ObserveAudit(string(entry.Severity))
}

// authenticate coalesces identical in-flight credential checks across clients.
// The shared check runs detached from any one caller and is bounded by the
// login timeout, so a caller that goes away does not fail the others.
func (p *Portal) authenticate(ctx context.Context, creds directory.Credentials) (directory.User, error) {
	key := auth.HashToken(creds.Username + "\x00" + creds.Password + "\x00" + creds.Domain)
	ch := p.logins.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loginTimeout)
		defer cancel()
		return p.auth.Authenticate(flightCtx, creds)
	})
	select {
	case <-ctx.Done():
		return directory.User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return directory.User{}, res.Err
		}
		return res.Val.(directory.User), nil
	}
}
