package app

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"sitecms/api/internal/gitrepo"
	"sitecms/api/internal/store"
)

// VersionEntry is one archived document as listed to operators.
type VersionEntry struct {
	ID         string    `json:"id"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// VersionHistory reads back the version archive, whichever backend holds it.
type VersionHistory interface {
	ListVersions(ctx context.Context, limit int) ([]VersionEntry, error)
	GetVersion(ctx context.Context, id string) (json.RawMessage, error)
}

type postgresVersions struct {
	store *store.PostgresStore
}

func PostgresVersions(s *store.PostgresStore) VersionHistory {
	return postgresVersions{store: s}
}

func (p postgresVersions) ListVersions(ctx context.Context, limit int) ([]VersionEntry, error) {
	versions, err := p.store.ListVersions(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]VersionEntry, 0, len(versions))
	for _, version := range versions {
		entries = append(entries, VersionEntry{
			ID:         strconv.FormatInt(version.ID, 10),
			ArchivedAt: version.ArchivedAt,
		})
	}
	return entries, nil
}

func (p postgresVersions) GetVersion(ctx context.Context, id string) (json.RawMessage, error) {
	numeric, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, errVersionNotFound
	}
	version, err := p.store.GetVersion(ctx, numeric)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return version.Body, nil
}

type gitVersions struct {
	archive *gitrepo.Archive
}

func GitVersions(archive *gitrepo.Archive) VersionHistory {
	return gitVersions{archive: archive}
}

func (g gitVersions) ListVersions(_ context.Context, limit int) ([]VersionEntry, error) {
	commits, err := g.archive.History(limit)
	if err != nil {
		return nil, err
	}
	entries := make([]VersionEntry, 0, len(commits))
	for _, commit := range commits {
		entries = append(entries, VersionEntry{ID: commit.Hash, ArchivedAt: commit.ArchivedAt})
	}
	return entries, nil
}

func (g gitVersions) GetVersion(_ context.Context, id string) (json.RawMessage, error) {
	body, err := g.archive.Version(id)
	if errors.Is(err, gitrepo.ErrVersionNotFound) {
		return nil, errVersionNotFound
	}
	return body, err
}

func (s *Service) ListVersions(ctx context.Context, limit int) ([]VersionEntry, error) {
	if s.versions == nil {
		return nil, errVersionsDisabled
	}
	return s.versions.ListVersions(ctx, limit)
}

func (s *Service) GetVersion(ctx context.Context, id string) (json.RawMessage, error) {
	if s.versions == nil {
		return nil, errVersionsDisabled
	}
	return s.versions.GetVersion(ctx, id)
}
