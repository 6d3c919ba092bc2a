package search

import (
	"go.uber.org/zap"

	"portal/api/internal/catalog"
)

const defaultLimit = 20

const (
	EngineMeili   = "meilisearch"
	EngineCatalog = "catalog"
)

// Service matches queries against the catalog. Which entries match is always
// decided by the catalog's term containment rule; when Meilisearch is healthy
// it only decides the order.
type Service struct {
	catalog *catalog.Catalog
	ranker  Ranker
	logger  *zap.Logger
}

// NewService creates a search service. ranker may be nil if Meilisearch is not
// configured.
func NewService(c *catalog.Catalog, ranker Ranker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: c, ranker: ranker, logger: logger}
}

func (s *Service) Search(q Query) Response {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	matches := s.catalog.Match(q.Text, 0)
	engine := EngineCatalog

	if len(matches) > 1 && s.ranker != nil && s.ranker.Healthy() {
		order, err := s.ranker.Rank(Query{Text: q.Text, Limit: len(matches)})
		if err == nil {
			matches = reorder(matches, order)
			engine = EngineMeili
		} else {
			s.logger.Warn("search: meilisearch error, using catalog order", zap.Error(err))
		}
	}

	total := len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	results := make([]Result, 0, len(matches))
	for _, entry := range matches {
		results = append(results, Result{
			SubServiceID:   entry.SubService.ID,
			SubServiceName: entry.SubService.Name,
			CategoryID:     entry.Category.ID,
			CategoryTitle:  entry.Category.Title,
		})
	}
	return Response{Results: results, Total: total, Query: q.Text, Engine: engine}
}

// Records flattens the catalog into index records.
func Records(c *catalog.Catalog) []ServiceRecord {
	entries := c.Entries()
	out := make([]ServiceRecord, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ServiceRecord{
			ID:            entry.SubService.ID,
			Name:          entry.SubService.Name,
			CategoryID:    entry.Category.ID,
			CategoryTitle: entry.Category.Title,
		})
	}
	return out
}

// reorder puts ranked ids first, in rank order, then the remaining matches in
// catalog order. Ranked ids that did not match are ignored.
func reorder(matches []catalog.Entry, ranked []string) []catalog.Entry {
	byID := make(map[string]catalog.Entry, len(matches))
	for _, entry := range matches {
		byID[entry.SubService.ID] = entry
	}
	out := make([]catalog.Entry, 0, len(matches))
	for _, id := range ranked {
		if entry, ok := byID[id]; ok {
			out = append(out, entry)
			delete(byID, id)
		}
	}
	for _, entry := range matches {
		if _, left := byID[entry.SubService.ID]; left {
			out = append(out, entry)
		}
	}
	return out
}
