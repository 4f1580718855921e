package search

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const idxContent = "sitecms_content"

// Meili mirrors the searchable site entries into one Meilisearch index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}

	// indexed tracks the keys pushed so far so stale entries can be removed
	// without clearing the whole index.
	mu      sync.Mutex
	indexed map[string]struct{}
}

// NewMeili creates a client and configures the index. A failed initial health
// check is logged; the health loop keeps retrying.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client:  client,
		done:    make(chan struct{}),
		indexed: make(map[string]struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxContent,
		PrimaryKey: "key",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxContent, err)
	}

	index := m.client.Index(idxContent)
	filterable := []interface{}{"type"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxContent, err)
	}
	searchable := []string{"title", "body"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxContent, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
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
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	req := &meili.SearchRequest{
		IndexUID:              idxContent,
		Query:                 q.Text,
		Limit:                 int64(normalizeLimit(q.Limit)),
		AttributesToHighlight: []string{"title", "body"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.FilterType != "" {
		req.Filter = fmt.Sprintf("type = %q", string(q.FilterType))
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{req},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

// ReplaceAll upserts records and deletes anything indexed earlier that is
// no longer present.
func (m *Meili) ReplaceAll(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(records) > 0 {
		if _, err := m.client.Index(idxContent).AddDocuments(records, nil); err != nil {
			return fmt.Errorf("index records: %w", err)
		}
	}

	next := make(map[string]struct{}, len(records))
	for _, record := range records {
		next[record.Key] = struct{}{}
	}
	for key := range m.indexed {
		if _, ok := next[key]; ok {
			continue
		}
		if _, err := m.client.Index(idxContent).DeleteDocument(key, nil); err != nil {
			return fmt.Errorf("delete stale record %s: %w", key, err)
		}
	}
	m.indexed = next
	return nil
}

var highlightPolicy = func() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("mark")
	return policy
}()

// sanitizeHighlight keeps the <mark> tags Meilisearch inserts and escapes
// everything else.
func sanitizeHighlight(formatted string) string {
	return highlightPolicy.Sanitize(formatted)
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		Type:    ResultType(decodeString(hit, "type")),
		ID:      decodeString(hit, "id"),
		Title:   firstNonBlank(sanitizeHighlight(decodeFormattedString(hit, "title")), html.EscapeString(decodeString(hit, "title"))),
		Snippet: firstNonBlank(sanitizeHighlight(decodeFormattedString(hit, "body")), html.EscapeString(decodeString(hit, "body"))),
		Image:   decodeString(hit, "image"),
	}
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

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(formatted[key], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
