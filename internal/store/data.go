package store

import (
	"sync"
	"time"

	"portal/api/internal/util"
)

// DocumentFilter narrows a service's documents to one tab. The zero value
// matches everything.
type DocumentFilter struct {
	Category    DocumentCategory `json:"category,omitempty"`
	SubCategory string           `json:"subCategory,omitempty"`
}

func (f DocumentFilter) Matches(doc Document) bool {
	if f.Category != "" && doc.Category != f.Category {
		return false
	}
	if f.SubCategory != "" && doc.SubCategory != f.SubCategory {
		return false
	}
	return true
}

// Data holds the append-only events, documents and links collections.
type Data struct {
	mu        sync.RWMutex
	documents []Document
	events    []Event
	links     []Link
	now       func() time.Time
}

func NewData(now func() time.Time) *Data {
	if now == nil {
		now = time.Now
	}
	return &Data{now: now}
}

// AddDocument stamps id and date and appends. An id already set by the caller
// (seed fixtures) is kept.
func (d *Data) AddDocument(doc Document) Document {
	if doc.ID == "" {
		doc.ID = util.NewID("doc")
	}
	if doc.Date.IsZero() {
		doc.Date = d.now().UTC()
	}
	d.mu.Lock()
	d.documents = append(d.documents, doc)
	d.mu.Unlock()
	return doc
}

func (d *Data) AddEvent(event Event) Event {
	if event.ID == "" {
		event.ID = util.NewID("evt")
	}
	event.Services = normalizeServices(event.Services)
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return cloneEvent(event)
}

func (d *Data) AddLink(link Link) Link {
	if link.ID == "" {
		link.ID = util.NewID("lnk")
	}
	link.Services = normalizeServices(link.Services)
	d.mu.Lock()
	d.links = append(d.links, link)
	d.mu.Unlock()
	return cloneLink(link)
}

func (d *Data) Document(id string) (Document, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, doc := range d.documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

// Documents lists the documents of serviceID that pass filter.
func (d *Data) Documents(serviceID string, filter DocumentFilter) []Document {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Document{}
	for _, doc := range d.documents {
		if doc.ServiceID == serviceID && filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// Events lists events visible under subID. An empty subID lists everything.
func (d *Data) Events(subID string) []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Event{}
	for _, event := range d.events {
		if subID == "" || AppliesTo(event.Services, subID) {
			out = append(out, cloneEvent(event))
		}
	}
	return out
}

func (d *Data) Links(subID string) []Link {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Link{}
	for _, link := range d.links {
		if subID == "" || AppliesTo(link.Services, subID) {
			out = append(out, cloneLink(link))
		}
	}
	return out
}

// References returns every sub-service id the collections point at.
func (d *Data) References() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var refs []string
	for _, doc := range d.documents {
		refs = append(refs, doc.ServiceID)
	}
	for _, event := range d.events {
		refs = append(refs, event.Services...)
	}
	for _, link := range d.links {
		refs = append(refs, link.Services...)
	}
	return refs
}

// AppliesTo reports whether a membership list covers subID. An empty list
// covers every sub-service.
func AppliesTo(services []string, subID string) bool {
	if len(services) == 0 {
		return true
	}
	for _, id := range services {
		if id == subID {
			return true
		}
	}
	return false
}

// ToggleMembership adds id when absent and removes it when present. The input
// is not modified.
func ToggleMembership(set []string, id string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, existing := range set {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func normalizeServices(services []string) []string {
	out := make([]string, 0, len(services))
	seen := make(map[string]struct{}, len(services))
	for _, id := range services {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func cloneEvent(event Event) Event {
	event.Services = append([]string{}, event.Services...)
	return event
}

func cloneLink(link Link) Link {
	link.Services = append([]string{}, link.Services...)
	return link
}
