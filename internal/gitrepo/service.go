// Package gitrepo keeps archived content documents as commits in a local git
// repository. Each archived document is one commit of snapshot.json on main.
package gitrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	snapshotFile = "snapshot.json"
	mainBranch   = "main"
)

var ErrVersionNotFound = errors.New("archived version not found")

// Commit describes one archived version.
type Commit struct {
	Hash       string
	Message    string
	ArchivedAt time.Time
}

type Archive struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Archive {
	return &Archive{dir: dir}
}

// AppendVersion commits body verbatim. Identical bodies still produce a new
// commit so every archive call leaves exactly one entry.
func (a *Archive) AppendVersion(ctx context.Context, body json.RawMessage, archivedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := a.open()
	if err != nil {
		return err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.dir, snapshotFile), body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}
	_, err = worktree.Commit("archive "+archivedAt.UTC().Format(time.RFC3339Nano), &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  "sitecms archive",
			Email: "archive@sitecms.local",
			When:  archivedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// History lists archived versions newest first. limit <= 0 means all.
func (a *Archive) History(limit int) ([]Commit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := git.PlainOpen(a.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Version returns the archived body recorded by the commit hash (full or
// abbreviated).
func (a *Archive) Version(hash string) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := git.PlainOpen(a.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("read commit %s: %w", hash, ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read snapshot bytes: %w", err)
	}
	return json.RawMessage(body), nil
}

// open returns the repository, initialising it with main as HEAD on first use.
func (a *Archive) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(a.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err = git.PlainInit(a.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", mainBranch, err)
	}
	return repo, nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:       commitObj.Hash.String()[:7],
		Message:    commitObj.Message,
		ArchivedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w: %w", hash, ErrVersionNotFound, err)
	}
	return *resolved, nil
}
