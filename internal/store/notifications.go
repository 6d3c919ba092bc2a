package store

import (
	"sync"
	"time"

	"portal/api/internal/util"
)

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRead    ChangeKind = "read"
	ChangeRemoved ChangeKind = "removed"
)

// Change is published to subscribers after every mutation. Unread is the count
// after the mutation was applied.
type Change struct {
	Kind         ChangeKind    `json:"kind"`
	Notification *Notification `json:"notification,omitempty"`
	IDs          []string      `json:"ids,omitempty"`
	Unread       int           `json:"unread"`
}

// Notifications is one client's toast queue, most recent first.
type Notifications struct {
	mu     sync.Mutex
	items  []Notification
	now    func() time.Time
	subs   map[int]chan Change
	nextID int
}

func NewNotifications(now func() time.Time) *Notifications {
	if now == nil {
		now = time.Now
	}
	return &Notifications{now: now, subs: make(map[int]chan Change)}
}

func (n *Notifications) Add(message string, typ NotificationType) Notification {
	item := Notification{
		ID:        util.NewID("ntf"),
		Message:   message,
		Type:      typ,
		Timestamp: n.now().UTC(),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append([]Notification{item}, n.items...)
	copyItem := item
	n.publishLocked(Change{Kind: ChangeAdded, Notification: &copyItem})
	return item
}

// Remove drops the notification with id. Removing an unknown id is a no-op.
func (n *Notifications) Remove(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i:i], n.items[i+1:]...)
			n.publishLocked(Change{Kind: ChangeRemoved, IDs: []string{id}})
			return true
		}
	}
	return false
}

func (n *Notifications) MarkAsRead(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.items {
		if n.items[i].ID != id {
			continue
		}
		if !n.items[i].Read {
			n.items[i].Read = true
			n.publishLocked(Change{Kind: ChangeRead, IDs: []string{id}})
		}
		return true
	}
	return false
}

// MarkAllAsRead flips every unread entry and returns how many changed.
func (n *Notifications) MarkAllAsRead() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for i := range n.items {
		if !n.items[i].Read {
			n.items[i].Read = true
			ids = append(ids, n.items[i].ID)
		}
	}
	if len(ids) > 0 {
		n.publishLocked(Change{Kind: ChangeRead, IDs: ids})
	}
	return len(ids)
}

// UnreadCount is computed from the list on every call.
func (n *Notifications) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unreadLocked()
}

func (n *Notifications) List() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

// PruneRead removes read notifications created before cutoff.
func (n *Notifications) PruneRead(cutoff time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.items[:0:0]
	var removed []string
	for _, item := range n.items {
		if item.Read && item.Timestamp.Before(cutoff) {
			removed = append(removed, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	n.items = kept
	if len(removed) > 0 {
		n.publishLocked(Change{Kind: ChangeRemoved, IDs: removed})
	}
	return len(removed)
}

// Subscribe registers a listener. Slow listeners miss changes rather than block
// writers; the returned cancel func closes the channel.
func (n *Notifications) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
}

// CloseSubscribers ends every subscription, e.g. when the owning session goes
// away.
func (n *Notifications) CloseSubscribers() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

func (n *Notifications) unreadLocked() int {
	count := 0
	for _, item := range n.items {
		if !item.Read {
			count++
		}
	}
	return count
}

func (n *Notifications) publishLocked(change Change) {
	change.Unread = n.unreadLocked()
	for _, ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
