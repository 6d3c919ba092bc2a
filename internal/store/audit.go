package store

import (
	"sync"
	"time"

	"portal/api/internal/util"
)

// AuditLog is the append-only accountability trail. Entries are held oldest
// first internally and always handed out most recent first.
type AuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
	now     func() time.Time
}

func NewAuditLog(now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{now: now}
}

// Append records an action attributed to the given user. An empty severity is
// stored as info.
func (l *AuditLog) Append(userID, userName, action, details string, severity Severity) AuditEntry {
	if severity == "" {
		severity = SeverityInfo
	}
	entry := AuditEntry{
		ID:        util.NewID("audit"),
		UserID:    userID,
		UserName:  userName,
		Action:    action,
		Details:   details,
		Timestamp: l.now().UTC(),
		Severity:  severity,
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return entry
}

func (l *AuditLog) List() []AuditEntry {
	items, _ := l.Page(0, 0)
	return items
}

// Page returns up to limit entries after skipping offset, most recent first, and
// the total number of entries. limit <= 0 means no limit.
func (l *AuditLog) Page(limit, offset int) ([]AuditEntry, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.entries)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []AuditEntry{}, total
	}
	remaining := total - offset
	if limit <= 0 || limit > remaining {
		limit = remaining
	}
	out := make([]AuditEntry, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, total
}

func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
