package search

import (
	"html"
	"sort"
	"strings"
	"sync"
)

const snippetRadius = 60

// Memory is a substring index over the latest records. It answers queries
// whenever Meilisearch is not configured or unhealthy.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Replace(records []Record) {
	copied := make([]Record, len(records))
	copy(copied, records)

	m.mu.Lock()
	m.records = copied
	m.mu.Unlock()
}

// Search matches every whitespace-separated term case-insensitively against
// title and body. Title matches rank ahead of body-only matches.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return []Result{}, 0, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		result Result
		score  int
		order  int
	}
	var hits []scored
	for i, record := range m.records {
		if q.FilterType != "" && record.Type != q.FilterType {
			continue
		}
		title := strings.ToLower(record.Title)
		body := strings.ToLower(record.Body)
		score := 0
		matched := true
		for _, term := range terms {
			switch {
			case strings.Contains(title, term):
				score += 2
			case strings.Contains(body, term):
				score++
			default:
				matched = false
			}
			if !matched {
				break
			}
		}
		if !matched {
			continue
		}
		hits = append(hits, scored{
			result: Result{
				Type:    record.Type,
				ID:      record.ID,
				Title:   html.EscapeString(record.Title),
				Snippet: html.EscapeString(snippet(record.Body, terms[0])),
				Image:   record.Image,
			},
			score: score,
			order: i,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	total := len(hits)
	limit := normalizeLimit(q.Limit)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, hit.result)
	}
	return results, total, nil
}

func snippet(body, term string) string {
	idx := strings.Index(strings.ToLower(body), term)
	if idx > len(body) {
		idx = -1
	}
	if idx < 0 {
		if len(body) > 2*snippetRadius {
			return body[:2*snippetRadius] + "…"
		}
		return body
	}
	start := idx - snippetRadius
	prefix := "…"
	if start <= 0 {
		start = 0
		prefix = ""
	}
	end := idx + len(term) + snippetRadius
	suffix := "…"
	if end >= len(body) {
		end = len(body)
		suffix = ""
	}
	for start > 0 && !isRuneStart(body[start]) {
		start--
	}
	for end < len(body) && !isRuneStart(body[end]) {
		end++
	}
	return prefix + body[start:end] + suffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
