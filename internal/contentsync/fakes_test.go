package contentsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sitecms/api/internal/content"
)

type versionRecord struct {
	body       json.RawMessage
	archivedAt time.Time
}

type auditRecord struct {
	action string
	actor  string
	at     time.Time
}

// memoryBackend implements DocumentStore, VersionArchive and AuditLog.
type memoryBackend struct {
	mu       sync.Mutex
	doc      *StoredDocument
	versions []versionRecord
	audits   []auditRecord

	fetchFn     func(context.Context) error
	overwriteFn func(context.Context, json.RawMessage) error
	versionFn   func(context.Context) error
	auditFn     func(context.Context) error
}

func (m *memoryBackend) FetchDocument(ctx context.Context) (*StoredDocument, error) {
	if m.fetchFn != nil {
		if err := m.fetchFn(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, nil
	}
	copied := *m.doc
	return &copied, nil
}

func (m *memoryBackend) OverwriteDocument(ctx context.Context, body json.RawMessage, lastUpdated time.Time) error {
	if m.overwriteFn != nil {
		if err := m.overwriteFn(ctx, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = &StoredDocument{Body: append(json.RawMessage(nil), body...), UpdatedAt: lastUpdated}
	return nil
}

func (m *memoryBackend) AppendVersion(ctx context.Context, body json.RawMessage, archivedAt time.Time) error {
	if m.versionFn != nil {
		if err := m.versionFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, versionRecord{body: append(json.RawMessage(nil), body...), archivedAt: archivedAt})
	return nil
}

func (m *memoryBackend) AppendAuditEntry(ctx context.Context, action, actor string, at time.Time) error {
	if m.auditFn != nil {
		if err := m.auditFn(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, auditRecord{action: action, actor: actor, at: at})
	return nil
}

func (m *memoryBackend) seed(doc content.WebsiteContent) json.RawMessage {
	body, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = &StoredDocument{Body: body, UpdatedAt: time.Now()}
	return body
}

func (m *memoryBackend) seedRaw(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = &StoredDocument{Body: json.RawMessage(body), UpdatedAt: time.Now()}
}

func (m *memoryBackend) stored() (content.WebsiteContent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return content.WebsiteContent{}, false
	}
	var doc content.WebsiteContent
	if err := json.Unmarshal(m.doc.Body, &doc); err != nil {
		panic(err)
	}
	return doc, true
}

func (m *memoryBackend) versionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.versions)
}

func (m *memoryBackend) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audits)
}

type actorKey struct{}

type contextActors struct{}

func (contextActors) CurrentActor(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}

func withActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func newTestPersister(backend *memoryBackend) *Persister {
	p := NewPersister(backend, backend, backend, contextActors{})
	p.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func strPtr(v string) *string { return &v }
