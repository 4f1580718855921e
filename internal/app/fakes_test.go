package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sitecms/api/internal/auth"
	"sitecms/api/internal/authpw"
	"sitecms/api/internal/config"
	"sitecms/api/internal/contentsync"
	"sitecms/api/internal/session"
	"sitecms/api/internal/store"
)

type auditRow struct {
	action string
	actor  string
}

// fakeBackend stands in for Postgres behind the content store.
type fakeBackend struct {
	mu       sync.Mutex
	doc      *contentsync.StoredDocument
	versions []json.RawMessage
	audits   []auditRow

	pingFn      func(context.Context) error
	overwriteFn func(context.Context) error
}

func (f *fakeBackend) FetchDocument(context.Context) (*contentsync.StoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doc == nil {
		return nil, nil
	}
	copied := *f.doc
	return &copied, nil
}

func (f *fakeBackend) OverwriteDocument(ctx context.Context, body json.RawMessage, lastUpdated time.Time) error {
	if f.overwriteFn != nil {
		if err := f.overwriteFn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = &contentsync.StoredDocument{Body: append(json.RawMessage(nil), body...), UpdatedAt: lastUpdated}
	return nil
}

func (f *fakeBackend) AppendVersion(_ context.Context, body json.RawMessage, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, append(json.RawMessage(nil), body...))
	return nil
}

func (f *fakeBackend) AppendAuditEntry(_ context.Context, action, actor string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, auditRow{action: action, actor: actor})
	return nil
}

func (f *fakeBackend) ListAuditEntries(_ context.Context, limit int) ([]store.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]store.AuditEntry, 0, len(f.audits))
	for i := len(f.audits) - 1; i >= 0; i-- {
		entries = append(entries, store.AuditEntry{
			ID:     int64(i + 1),
			Action: f.audits[i].action,
			Actor:  f.audits[i].actor,
			At:     time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		})
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (f *fakeBackend) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeBackend) auditRows() []auditRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auditRow(nil), f.audits...)
}

func (f *fakeBackend) storedBody() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doc == nil {
		return nil
	}
	return f.doc.Body
}

type fakeOperators struct {
	mu        sync.Mutex
	operators map[string]store.Operator
	passwords map[string]string
}

func newFakeOperators() *fakeOperators {
	return &fakeOperators{operators: map[string]store.Operator{}, passwords: map[string]string{}}
}

func (f *fakeOperators) add(op store.Operator, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operators[op.ID] = op
	f.passwords[op.Email] = password
}

func (f *fakeOperators) deactivate(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := f.operators[id]
	now := time.Now()
	op.DeactivatedAt = &now
	f.operators[id] = op
}

func (f *fakeOperators) GetOperatorByID(_ context.Context, id string) (store.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.operators[id]
	if !ok {
		return store.Operator{}, store.ErrNotFound
	}
	return op, nil
}

func (f *fakeOperators) SignIn(_ context.Context, email, password string) (store.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if expected, ok := f.passwords[email]; !ok || expected != password {
		return store.Operator{}, authpw.ErrInvalidCredentials
	}
	for _, op := range f.operators {
		if op.Email == email && op.DeactivatedAt == nil {
			return op, nil
		}
	}
	return store.Operator{}, authpw.ErrInvalidCredentials
}

type fakeMedia struct {
	uploadFn func(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error)
	pingFn   func(context.Context) error
}

func (f *fakeMedia) Upload(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, filename, contentType, body, size)
	}
	return "", errors.New("not implemented")
}

func (f *fakeMedia) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeVersions struct {
	entries []VersionEntry
	bodies  map[string]json.RawMessage
}

func (f *fakeVersions) ListVersions(_ context.Context, limit int) ([]VersionEntry, error) {
	if limit > 0 && limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeVersions) GetVersion(_ context.Context, id string) (json.RawMessage, error) {
	body, ok := f.bodies[id]
	if !ok {
		return nil, errVersionNotFound
	}
	return body, nil
}

type testEnv struct {
	backend   *fakeBackend
	operators *fakeOperators
	sessions  *session.MemoryStore
	content   *contentsync.Store
	service   *Service
	server    http.Handler
}

const testSecret = "test-secret"

func newTestEnv(t *testing.T, configure func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	backend := &fakeBackend{}
	operators := newFakeOperators()
	operators.add(store.Operator{ID: "op-admin", Email: "admin@example.org", DisplayName: "Admin", Role: "admin"}, "admin-password")
	operators.add(store.Operator{ID: "op-editor", Email: "editor@example.org", DisplayName: "Editor", Role: "editor"}, "editor-password")
	operators.add(store.Operator{ID: "op-viewer", Email: "viewer@example.org", DisplayName: "Viewer", Role: "viewer"}, "viewer-password")
	sessions := session.NewMemoryStore()

	persister := contentsync.NewPersister(backend, backend, backend, auth.ContextGate{})
	contentStore := contentsync.NewStore(backend, persister, time.Second)

	cfg := config.Config{
		JWTSecret:      testSecret,
		AccessTTL:      time.Hour,
		RefreshTTL:     24 * time.Hour,
		MaxUploadBytes: 1 << 20,
	}
	deps := Deps{
		Content:   contentStore,
		Database:  backend,
		Operators: operators,
		Passwords: operators,
		Sessions:  sessions,
		Activity:  backend,
	}
	if configure != nil {
		configure(&cfg, &deps)
	}

	svc := New(cfg, deps)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	t.Cleanup(contentStore.Wait)

	return &testEnv{
		backend:   backend,
		operators: operators,
		sessions:  sessions,
		content:   contentStore,
		service:   svc,
		server:    NewHTTPServer(svc, "*").Handler(),
	}
}

func (e *testEnv) login(t *testing.T, email, password string) map[string]any {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/session/login", "", map[string]any{"email": email, "password": password})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, rr.Code, rr.Body.String())
	}
	return decodeResponse(t, rr)
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	payload := e.login(t, role+"@example.org", role+"-password")
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("no token for %s", role)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["code"] != code {
		t.Fatalf("expected code %s, got %v", code, payload["code"])
	}
}
