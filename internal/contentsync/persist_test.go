package contentsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sitecms/api/internal/content"
)

func TestPersistSkipsWithoutActor(t *testing.T) {
	backend := &memoryBackend{}
	original := backend.seed(content.Default())
	p := newTestPersister(backend)

	doc := content.Default()
	doc.Hero.Headline = "New"
	outcome := p.Persist(context.Background(), doc, "update hero")

	if outcome.Status != StatusSkipped || !errors.Is(outcome.Err, ErrUnauthenticated) {
		t.Fatalf("expected skipped/unauthenticated, got %+v", outcome)
	}
	if string(backend.doc.Body) != string(original) {
		t.Fatal("stored document changed without an actor")
	}
	if backend.versionCount() != 0 || backend.auditCount() != 0 {
		t.Fatal("no archive or audit entry expected")
	}
}

func TestPersistArchivesPreviousDocument(t *testing.T) {
	backend := &memoryBackend{}
	previous := backend.seed(content.Default())
	p := newTestPersister(backend)

	doc := content.Default()
	doc.Hero.Headline = "Changed"
	outcome := p.Persist(withActor(context.Background(), "ops@example.org"), doc, "update hero")

	if outcome.Status != StatusPersisted || outcome.Err != nil {
		t.Fatalf("expected persisted, got %+v", outcome)
	}
	if !outcome.Archived {
		t.Fatal("expected Archived=true")
	}
	if len(backend.versions) != 1 {
		t.Fatalf("expected one version entry, got %d", len(backend.versions))
	}
	if string(backend.versions[0].body) != string(previous) {
		t.Fatalf("archived body differs from prior document")
	}
	if !backend.versions[0].archivedAt.Equal(outcome.LastUpdated) {
		t.Fatalf("unexpected archive timestamp %v", backend.versions[0].archivedAt)
	}

	stored, _ := backend.stored()
	if stored.Hero.Headline != "Changed" {
		t.Fatalf("expected stored headline Changed, got %q", stored.Hero.Headline)
	}
	if stored.LastUpdated == nil || !stored.LastUpdated.Equal(outcome.LastUpdated) {
		t.Fatalf("expected lastUpdated to be set, got %v", stored.LastUpdated)
	}
	if doc.LastUpdated != nil {
		t.Fatal("persist must not set lastUpdated on the caller's value")
	}

	if len(backend.audits) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(backend.audits))
	}
	if backend.audits[0].action != "update hero" || backend.audits[0].actor != "ops@example.org" {
		t.Fatalf("unexpected audit entry %+v", backend.audits[0])
	}
}

func TestPersistFirstWriteCreatesNoArchive(t *testing.T) {
	backend := &memoryBackend{}
	p := newTestPersister(backend)

	outcome := p.Persist(withActor(context.Background(), "ops"), content.Default(), "update hero")
	if outcome.Status != StatusPersisted {
		t.Fatalf("expected persisted, got %+v", outcome)
	}
	if outcome.Archived || backend.versionCount() != 0 {
		t.Fatal("first write must not archive")
	}
	if _, ok := backend.stored(); !ok {
		t.Fatal("expected document to be written")
	}
	if backend.auditCount() != 1 {
		t.Fatal("expected audit entry")
	}
}

func TestPersistAbortsWhenPreReadFails(t *testing.T) {
	backend := &memoryBackend{
		fetchFn: func(context.Context) error { return errors.New("connection refused") },
	}
	original := backend.seed(content.Default())
	p := newTestPersister(backend)

	doc := content.Default()
	doc.Hero.Headline = "Never"
	outcome := p.Persist(withActor(context.Background(), "ops"), doc, "update hero")

	if outcome.Status != StatusFailed || !errors.Is(outcome.Err, ErrFetchFailed) {
		t.Fatalf("expected fetch failure, got %+v", outcome)
	}
	if string(backend.doc.Body) != string(original) {
		t.Fatal("document overwritten after failed pre-read")
	}
	if backend.versionCount() != 0 || backend.auditCount() != 0 {
		t.Fatal("no archive or audit expected after failed pre-read")
	}
}

func TestPersistAbortsWhenArchiveFails(t *testing.T) {
	backend := &memoryBackend{
		versionFn: func(context.Context) error { return errors.New("disk full") },
	}
	original := backend.seed(content.Default())
	p := newTestPersister(backend)

	outcome := p.Persist(withActor(context.Background(), "ops"), content.Default(), "update hero")
	if outcome.Status != StatusFailed || !errors.Is(outcome.Err, ErrArchiveFailed) {
		t.Fatalf("expected archive failure, got %+v", outcome)
	}
	if string(backend.doc.Body) != string(original) {
		t.Fatal("document overwritten without archive")
	}
	if backend.auditCount() != 0 {
		t.Fatal("no audit expected")
	}
}

func TestPersistOverwriteFailureWritesNoAudit(t *testing.T) {
	backend := &memoryBackend{
		overwriteFn: func(context.Context, json.RawMessage) error { return errors.New("timeout") },
	}
	backend.seed(content.Default())
	p := newTestPersister(backend)

	outcome := p.Persist(withActor(context.Background(), "ops"), content.Default(), "update hero")
	if outcome.Status != StatusFailed || !errors.Is(outcome.Err, ErrOverwriteFailed) {
		t.Fatalf("expected overwrite failure, got %+v", outcome)
	}
	if backend.auditCount() != 0 {
		t.Fatal("no audit expected after failed overwrite")
	}
}

func TestPersistAuditFailureLeavesGap(t *testing.T) {
	auditErr := errors.New("audit table locked")
	backend := &memoryBackend{
		auditFn: func(context.Context) error { return auditErr },
	}
	backend.seed(content.Default())
	p := newTestPersister(backend)

	doc := content.Default()
	doc.Hero.Headline = "Durable"
	outcome := p.Persist(withActor(context.Background(), "ops"), doc, "update hero")

	if outcome.Status != StatusPersisted || outcome.Err != nil {
		t.Fatalf("audit gap must not fail the persist, got %+v", outcome)
	}
	if !errors.Is(outcome.AuditErr, auditErr) {
		t.Fatalf("expected AuditErr, got %v", outcome.AuditErr)
	}
	stored, _ := backend.stored()
	if stored.Hero.Headline != "Durable" {
		t.Fatal("content should be durable despite audit failure")
	}
	if backend.versionCount() != 1 {
		t.Fatal("archive should still be written")
	}
}

func TestConcurrentPersistLastOverwriteWins(t *testing.T) {
	releaseA := make(chan struct{})
	bDone := make(chan struct{})
	backend := &memoryBackend{
		overwriteFn: func(_ context.Context, body json.RawMessage) error {
			var doc content.WebsiteContent
			if err := json.Unmarshal(body, &doc); err != nil {
				return err
			}
			if doc.Hero.Headline == "A" {
				<-releaseA
			}
			return nil
		},
	}
	backend.seed(content.Default())
	p := newTestPersister(backend)
	ctx := withActor(context.Background(), "ops")

	docA := content.Default()
	docA.Hero.Headline = "A"

	docB := content.Default()
	docB.Hero.Headline = "B"
	docB.Hero.Subheadline = "changed only by B"
	docB.Maintenance = true

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Persist(ctx, docA, "update hero")
	}()
	go func() {
		defer wg.Done()
		defer close(bDone)
		p.Persist(ctx, docB, "update hero")
	}()

	select {
	case <-bDone:
	case <-time.After(5 * time.Second):
		t.Fatal("persist B did not finish")
	}
	close(releaseA)
	wg.Wait()

	stored, _ := backend.stored()
	if stored.Hero.Headline != "A" {
		t.Fatalf("expected A's overwrite to win, got %q", stored.Hero.Headline)
	}
	if stored.Hero.Subheadline != docA.Hero.Subheadline {
		t.Fatalf("B's subheadline should be replaced by A's payload, got %q", stored.Hero.Subheadline)
	}
	if stored.Maintenance {
		t.Fatal("B's maintenance flag should be replaced by A's payload")
	}
	if len(stored.Gallery) != len(content.Default().Gallery) {
		t.Fatal("gallery should match A's payload")
	}
}
