package store

import (
	"errors"
	"sync"
	"time"

	"portal/api/internal/util"
)

var ErrIntegrationNotFound = errors.New("integration not found")

// SystemLogs backs the admin console Logs tab, most recent first.
type SystemLogs struct {
	mu    sync.RWMutex
	items []SystemLog
	now   func() time.Time
	limit int
}

// NewSystemLogs keeps at most limit entries (0 keeps everything).
func NewSystemLogs(now func() time.Time, limit int, seed []SystemLog) *SystemLogs {
	if now == nil {
		now = time.Now
	}
	s := &SystemLogs{now: now, limit: limit}
	for i := len(seed) - 1; i >= 0; i-- {
		s.Add(seed[i])
	}
	return s
}

func (s *SystemLogs) Add(entry SystemLog) SystemLog {
	if entry.ID == "" {
		entry.ID = util.NewID("log")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	if entry.Type == "" {
		entry.Type = LogInfo
	}
	s.mu.Lock()
	s.items = append([]SystemLog{entry}, s.items...)
	if s.limit > 0 && len(s.items) > s.limit {
		s.items = s.items[:s.limit]
	}
	s.mu.Unlock()
	return entry
}

func (s *SystemLogs) List() []SystemLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SystemLog(nil), s.items...)
}

// Integrations backs the admin console Integrations tab.
type Integrations struct {
	mu    sync.RWMutex
	items []Integration
	now   func() time.Time
}

func NewIntegrations(now func() time.Time, seed []Integration) *Integrations {
	if now == nil {
		now = time.Now
	}
	return &Integrations{now: now, items: append([]Integration(nil), seed...)}
}

func (s *Integrations) List() []Integration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Integration(nil), s.items...)
}

// Add registers a new integration. It starts disconnected and never synced.
func (s *Integrations) Add(name string, typ IntegrationType) Integration {
	item := Integration{
		ID:     util.NewID("int"),
		Name:   name,
		Type:   typ,
		Status: IntegrationDisconnected,
	}
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	return item
}

// Sync stamps a successful sync on id and marks it connected.
func (s *Integrations) Sync(id string) (Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		at := s.now().UTC()
		s.items[i].LastSync = &at
		s.items[i].Status = IntegrationConnected
		return s.items[i], nil
	}
	return Integration{}, ErrIntegrationNotFound
}

// SyncConnected refreshes LastSync on every connected integration and returns
// how many were touched.
func (s *Integrations) SyncConnected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now().UTC()
	count := 0
	for i := range s.items {
		if s.items[i].Status != IntegrationConnected {
			continue
		}
		stamp := at
		s.items[i].LastSync = &stamp
		count++
	}
	return count
}

// Settings holds the global notification toggles.
type Settings struct {
	mu    sync.RWMutex
	value NotificationSettings
}

func NewSettings(initial NotificationSettings) *Settings {
	return &Settings{value: initial}
}

func (s *Settings) Get() NotificationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

func (s *Settings) Set(value NotificationSettings) NotificationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	return s.value
}
