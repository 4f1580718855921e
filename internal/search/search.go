package search

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"sitecms/api/internal/content"
)

// ResultType identifies the kind of site entry in a search result.
type ResultType string

const (
	ResultProgram ResultType = "program"
	ResultStory   ResultType = "story"
	ResultGallery ResultType = "gallery"
)

// Result is a single search hit returned to the caller. Title and Snippet are
// HTML-escaped; Meilisearch hits may wrap matches in <mark>.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Image   string     `json:"image,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Record is what gets indexed for one program, story or gallery item.
type Record struct {
	Key   string     `json:"key"`
	ID    string     `json:"id"`
	Type  ResultType `json:"type"`
	Title string     `json:"title"`
	Body  string     `json:"body"`
	Image string     `json:"image"`
}

// Records flattens the searchable parts of doc. Keys are unique across types
// because ids are only unique within their own list.
func Records(doc content.WebsiteContent) []Record {
	records := make([]Record, 0, len(doc.Programs)+len(doc.Stories)+len(doc.Gallery))
	for _, p := range doc.Programs {
		records = append(records, Record{
			Key: recordKey(ResultProgram, p.ID), ID: p.ID, Type: ResultProgram,
			Title: plainText(p.Title), Body: plainText(p.Description), Image: p.Image,
		})
	}
	for _, s := range doc.Stories {
		records = append(records, Record{
			Key: recordKey(ResultStory, s.ID), ID: s.ID, Type: ResultStory,
			Title: plainText(s.Title), Body: plainText(strings.TrimSpace(s.Excerpt + " " + s.Body)), Image: s.Image,
		})
	}
	for _, g := range doc.Gallery {
		records = append(records, Record{
			Key: recordKey(ResultGallery, g.ID), ID: g.ID, Type: ResultGallery,
			Title: plainText(g.Caption), Body: plainText(g.Category), Image: g.URL,
		})
	}
	return records
}

var stripMarkup = bluemonday.StrictPolicy()

// plainText drops any markup operators pasted into rich text fields so only
// readable text is indexed.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripMarkup.Sanitize(s)))
}

// recordKey only uses characters Meilisearch accepts in primary keys.
func recordKey(t ResultType, id string) string {
	var b strings.Builder
	b.WriteString(string(t))
	b.WriteByte('_')
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	return b.String()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
