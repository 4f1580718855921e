package contentsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sitecms/api/internal/content"
)

var ErrItemNotFound = errors.New("item not found")

// Store holds the current content and applies edits to it. It is built once
// at startup and handed to whatever needs it.
type Store struct {
	documents      DocumentStore
	persister      *Persister
	persistTimeout time.Duration

	mu      sync.RWMutex
	current content.WebsiteContent

	observerMu sync.RWMutex
	observers  []func(content.WebsiteContent, Outcome)

	inflight sync.WaitGroup
}

// NewStore starts from the compiled-in baseline; call Load to pick up the
// stored document. persistTimeout bounds each background persist; zero means
// no bound.
func NewStore(documents DocumentStore, persister *Persister, persistTimeout time.Duration) *Store {
	return &Store{
		documents:      documents,
		persister:      persister,
		persistTimeout: persistTimeout,
		current:        content.Default(),
	}
}

// OnPersisted registers fn to run after every successful persist with the
// document that was written.
func (s *Store) OnPersisted(fn func(content.WebsiteContent, Outcome)) {
	s.observerMu.Lock()
	defer s.observerMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Load replaces the current content with the stored document merged over the
// baseline. It always leaves usable content in place: when the stored
// document cannot be read or decoded the baseline is used and the returned
// error wraps ErrFetchFailed. Repeated program or gallery ids in the stored
// document are reassigned so later edits are not refused.
func (s *Store) Load(ctx context.Context) (content.WebsiteContent, error) {
	loaded, loadErr := s.fetchMerged(ctx)

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	return loaded.Clone(), loadErr
}

func (s *Store) fetchMerged(ctx context.Context) (content.WebsiteContent, error) {
	stored, err := s.documents.FetchDocument(ctx)
	if err != nil {
		log.Printf("contentsync: load fell back to baseline: %v", err)
		return content.Default(), fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if stored == nil {
		return content.Default(), nil
	}
	partial, err := content.DecodePartial(stored.Body)
	if err != nil {
		log.Printf("contentsync: load fell back to baseline: %v", err)
		return content.Default(), fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	merged := content.Merge(content.Default(), partial)
	if err := content.Validate(merged); err != nil {
		repaired, repeated := content.RepairDuplicateIDs(merged)
		log.Printf("contentsync: WARNING stored document repeats ids %v; reassigned in memory until the next save", repeated)
		return repaired, nil
	}
	return merged, nil
}

// Current returns a copy of the content as it is now, including edits whose
// persistence has not finished (or was skipped).
func (s *Store) Current() content.WebsiteContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Mutate applies m and returns the new content immediately. Persistence runs
// in the background; the channel yields its single Outcome and is closed.
// Cancelling ctx does not abort an attempt that has started.
func (s *Store) Mutate(ctx context.Context, m content.Mutation) (content.WebsiteContent, <-chan Outcome, error) {
	if m == nil {
		return content.WebsiteContent{}, nil, content.ErrUnknownSection
	}
	return s.update(ctx, content.ActionLabel(m.Section()), func(content.WebsiteContent) (content.Mutation, error) {
		return m, nil
	})
}

// Save persists the current content as-is under section's action label.
func (s *Store) Save(ctx context.Context, section content.Section) (<-chan Outcome, error) {
	if _, err := content.ParseSection(string(section)); err != nil {
		return nil, err
	}
	return s.persistAsync(ctx, s.Current(), content.ActionLabel(section)), nil
}

// AddGalleryItem puts item at the front of the gallery under a fresh id.
func (s *Store) AddGalleryItem(ctx context.Context, item content.GalleryItem) (content.WebsiteContent, content.GalleryItem, <-chan Outcome, error) {
	var added content.GalleryItem
	next, done, err := s.update(ctx, content.ActionAddGalleryItem, func(current content.WebsiteContent) (content.Mutation, error) {
		var list []content.GalleryItem
		list, added = content.AddGalleryItem(current.Gallery, item)
		return content.GalleryList(list), nil
	})
	if err != nil {
		return content.WebsiteContent{}, content.GalleryItem{}, nil, err
	}
	return next, added, done, nil
}

func (s *Store) RemoveGalleryItem(ctx context.Context, id string) (content.WebsiteContent, <-chan Outcome, error) {
	return s.update(ctx, content.ActionDeleteGalleryItem, func(current content.WebsiteContent) (content.Mutation, error) {
		list, removed := content.RemoveGalleryItem(current.Gallery, id)
		if !removed {
			return nil, fmt.Errorf("gallery item %q: %w", id, ErrItemNotFound)
		}
		return content.GalleryList(list), nil
	})
}

func (s *Store) SetMaintenance(ctx context.Context, enabled bool) (content.WebsiteContent, <-chan Outcome, error) {
	return s.update(ctx, content.ActionToggleMaintenance, func(content.WebsiteContent) (content.Mutation, error) {
		return content.MaintenanceToggle(enabled), nil
	})
}

// Wait blocks until every background persist started so far has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}

func (s *Store) update(ctx context.Context, action string, build func(content.WebsiteContent) (content.Mutation, error)) (content.WebsiteContent, <-chan Outcome, error) {
	s.mu.Lock()
	m, err := build(s.current)
	if err != nil {
		s.mu.Unlock()
		return content.WebsiteContent{}, nil, err
	}
	next, err := content.Apply(s.current, m)
	if err != nil {
		s.mu.Unlock()
		return content.WebsiteContent{}, nil, err
	}
	s.current = next
	s.mu.Unlock()

	done := s.persistAsync(ctx, next.Clone(), action)
	return next.Clone(), done, nil
}

func (s *Store) persistAsync(ctx context.Context, doc content.WebsiteContent, action string) <-chan Outcome {
	done := make(chan Outcome, 1)
	detached := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(done)

		persistCtx := detached
		if s.persistTimeout > 0 {
			var cancel context.CancelFunc
			persistCtx, cancel = context.WithTimeout(detached, s.persistTimeout)
			defer cancel()
		}

		outcome := s.persister.Persist(persistCtx, doc, action)
		if outcome.Status == StatusPersisted {
			s.notify(doc, outcome)
		}
		done <- outcome
	}()
	return done
}

func (s *Store) notify(doc content.WebsiteContent, outcome Outcome) {
	s.observerMu.RLock()
	observers := make([]func(content.WebsiteContent, Outcome), len(s.observers))
	copy(observers, s.observers)
	s.observerMu.RUnlock()

	for _, fn := range observers {
		fn(doc.Clone(), outcome)
	}
}
