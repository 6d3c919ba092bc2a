package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Meili ranks catalog entries via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	index   string
	records []ServiceRecord
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	closed  atomic.Bool
}

// NewMeili creates a Meilisearch client, configures the index and loads
// records into it. An unreachable server is not an error: the health loop keeps
// probing and indexes once it comes up.
func NewMeili(url, apiKey, index string, records []ServiceRecord, interval time.Duration, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m := &Meili{
		client:  meili.New(url, meili.WithAPIKey(apiKey)),
		index:   index,
		records: records,
		logger:  logger,
		done:    make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("search: meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configure()
	}

	go m.healthLoop(interval)
	return m
}

func (m *Meili) configure() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: m.index, PrimaryKey: "id"}); err != nil {
		m.logger.Debug("search: create index (may already exist)", zap.String("index", m.index), zap.Error(err))
	}
	index := m.client.Index(m.index)
	filterable := []interface{}{"categoryId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search: update filterable attributes", zap.Error(err))
	}
	searchable := []string{"name", "categoryTitle"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search: update searchable attributes", zap.Error(err))
	}
	if len(m.records) > 0 {
		if _, err := index.AddDocuments(m.records, nil); err != nil {
			m.logger.Warn("search: index catalog", zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search: meilisearch recovered, reindexing catalog")
				m.configure()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.done)
	}
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Rank returns sub-service ids in relevance order.
func (m *Meili) Rank(q Query) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = defaultLimit
	}
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:             m.index,
			Query:                q.Text,
			Limit:                limit,
			AttributesToRetrieve: []string{"id"},
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var ids []string
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			if id := decodeString(hit, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
