// Package contentsync keeps the in-memory site content and the shared stored
// document in step. Edits apply optimistically in memory; persistence runs in
// the background as pre-read, archive, overwrite, audit.
//
// There is no compare-and-swap on the stored document: concurrent persists
// are last-write-wins at whole-document granularity.
package contentsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sitecms/api/internal/content"
)

var (
	ErrUnauthenticated = errors.New("no authenticated actor")
	ErrFetchFailed     = errors.New("fetch content document failed")
	ErrArchiveFailed   = errors.New("archive previous document failed")
	ErrOverwriteFailed = errors.New("overwrite content document failed")
)

// StoredDocument is the shared document exactly as the backend holds it.
type StoredDocument struct {
	Body      json.RawMessage
	UpdatedAt time.Time
}

// DocumentStore holds the single shared document. FetchDocument returns
// nil, nil when nothing has been written yet.
type DocumentStore interface {
	FetchDocument(ctx context.Context) (*StoredDocument, error)
	OverwriteDocument(ctx context.Context, body json.RawMessage, lastUpdated time.Time) error
}

// VersionArchive is append-only.
type VersionArchive interface {
	AppendVersion(ctx context.Context, body json.RawMessage, archivedAt time.Time) error
}

// AuditLog is append-only.
type AuditLog interface {
	AppendAuditEntry(ctx context.Context, action, actor string, at time.Time) error
}

// ActorSource reports the authenticated identity carried by ctx, if any.
type ActorSource interface {
	CurrentActor(ctx context.Context) (string, bool)
}

type Status string

const (
	StatusPersisted Status = "persisted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome describes one persist attempt.
type Outcome struct {
	Action      string
	Actor       string
	Status      Status
	Archived    bool
	LastUpdated time.Time
	// Err is set for skipped and failed attempts.
	Err error
	// AuditErr is set when the document was written but the audit entry was
	// not. The attempt still counts as persisted.
	AuditErr error
}

type Persister struct {
	documents DocumentStore
	versions  VersionArchive
	audit     AuditLog
	actors    ActorSource
	now       func() time.Time
}

func NewPersister(documents DocumentStore, versions VersionArchive, audit AuditLog, actors ActorSource) *Persister {
	return &Persister{
		documents: documents,
		versions:  versions,
		audit:     audit,
		actors:    actors,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Persist makes doc the shared document. The steps run in order and are not
// transactional: a failed pre-read, archive or overwrite stops the attempt
// before anything later is written; a failed audit append leaves the written
// document in place.
func (p *Persister) Persist(ctx context.Context, doc content.WebsiteContent, action string) Outcome {
	outcome := Outcome{Action: action}

	actor, ok := p.actors.CurrentActor(ctx)
	if !ok {
		log.Printf("contentsync: WARNING persist %q skipped: no authenticated actor; change kept in memory only", action)
		outcome.Status = StatusSkipped
		outcome.Err = ErrUnauthenticated
		return outcome
	}
	outcome.Actor = actor

	previous, err := p.documents.FetchDocument(ctx)
	if err != nil {
		return failed(outcome, fmt.Errorf("%w: %w", ErrFetchFailed, err))
	}

	now := p.now()
	if previous != nil {
		if err := p.versions.AppendVersion(ctx, previous.Body, now); err != nil {
			return failed(outcome, fmt.Errorf("%w: %w", ErrArchiveFailed, err))
		}
		outcome.Archived = true
	}

	written := doc.Clone()
	written.LastUpdated = &now
	body, err := json.Marshal(written)
	if err != nil {
		return failed(outcome, fmt.Errorf("%w: encode document: %w", ErrOverwriteFailed, err))
	}
	if err := p.documents.OverwriteDocument(ctx, body, now); err != nil {
		return failed(outcome, fmt.Errorf("%w: %w", ErrOverwriteFailed, err))
	}
	outcome.Status = StatusPersisted
	outcome.LastUpdated = now

	if err := p.audit.AppendAuditEntry(ctx, action, actor, now); err != nil {
		log.Printf("contentsync: WARNING audit entry for %q by %s not recorded: %v", action, actor, err)
		outcome.AuditErr = err
	}
	return outcome
}

func failed(outcome Outcome, err error) Outcome {
	log.Printf("contentsync: persist %q failed: %v", outcome.Action, err)
	outcome.Status = StatusFailed
	outcome.Err = err
	return outcome
}
