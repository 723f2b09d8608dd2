package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"quill/api/internal/doc"
)

type draftKey struct {
	pageID string
	userID string
}

type versionKey struct {
	pageID  string
	version int64
}

// MemoryStore is an in-memory Store with the same compare-and-swap publish
// semantics as Postgres. It backs the test suite and single-node local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	pages    map[string]Page
	versions map[versionKey]PageVersion
	drafts   map[draftKey]Draft
	anchors  map[string]Anchor
	threads  map[string]Thread
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages:    make(map[string]Page),
		versions: make(map[versionKey]PageVersion),
		drafts:   make(map[draftKey]Draft),
		anchors:  make(map[string]Anchor),
		threads:  make(map[string]Thread),
		messages: make(map[string][]Message),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) CreatePage(_ context.Context, page Page, initial PageVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	page.CurrentVersion = initial.Version
	page.CreatedAt = now
	page.UpdatedAt = now
	s.pages[page.ID] = page

	initial.PublishedAt = now
	s.versions[versionKey{initial.PageID, initial.Version}] = initial
	return nil
}

func (s *MemoryStore) GetPage(_ context.Context, pageID string) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok {
		return Page{}, sql.ErrNoRows
	}
	return page, nil
}

func (s *MemoryStore) ListPages(_ context.Context, wikiID string) ([]Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pages []Page
	for _, page := range s.pages {
		if page.WikiID == wikiID {
			pages = append(pages, page)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].CreatedAt.Before(pages[j].CreatedAt) })
	return pages, nil
}

func (s *MemoryStore) DeletePage(_ context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[pageID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.pages, pageID)
	return nil
}

func (s *MemoryStore) GetVersion(_ context.Context, pageID string, version int64) (PageVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[versionKey{pageID, version}]
	if !ok {
		return PageVersion{}, sql.ErrNoRows
	}
	return v, nil
}

func (s *MemoryStore) GetCurrentVersion(_ context.Context, pageID string) (PageVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok {
		return PageVersion{}, sql.ErrNoRows
	}
	v, ok := s.versions[versionKey{pageID, page.CurrentVersion}]
	if !ok {
		return PageVersion{}, sql.ErrNoRows
	}
	return v, nil
}

func (s *MemoryStore) ListVersions(_ context.Context, pageID string, limit int) ([]PageVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var versions []PageVersion
	for key, v := range s.versions {
		if key.pageID == pageID {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version > versions[j].Version })
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

func (s *MemoryStore) PublishVersion(_ context.Context, v PageVersion, anchors []AnchorUpdate, draftUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[v.PageID]
	if !ok {
		return sql.ErrNoRows
	}
	if page.CurrentVersion != v.ParentVersion {
		return ErrVersionConflict
	}

	page.CurrentVersion = v.Version
	page.Title = v.Title
	page.UpdatedBy = v.PublishedBy
	page.UpdatedAt = time.Now()
	s.pages[v.PageID] = page

	v.PublishedAt = page.UpdatedAt
	s.versions[versionKey{v.PageID, v.Version}] = v

	for _, update := range anchors {
		a, ok := s.anchors[update.AnchorID]
		if !ok || a.PageID != v.PageID {
			continue
		}
		a.Range = cloneRange(update.Range)
		a.OrphanReason = update.OrphanReason
		if a.Range != nil {
			a.OrphanReason = ""
		}
		s.anchors[update.AnchorID] = a
	}

	if draftUserID != "" {
		delete(s.drafts, draftKey{v.PageID, draftUserID})
	}
	return nil
}

func (s *MemoryStore) UpsertDraft(_ context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft.LastSavedAt = time.Now()
	draft.Content = append([]byte(nil), draft.Content...)
	s.drafts[draftKey{draft.PageID, draft.UserID}] = draft
	return nil
}

func (s *MemoryStore) GetDraft(_ context.Context, pageID, userID string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[draftKey{pageID, userID}]
	if !ok {
		return Draft{}, sql.ErrNoRows
	}
	draft.Content = append([]byte(nil), draft.Content...)
	return draft, nil
}

func (s *MemoryStore) DeleteDraft(_ context.Context, pageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey{pageID, userID})
	return nil
}

func (s *MemoryStore) InsertAnchor(_ context.Context, a Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.CreatedAt = time.Now()
	a.Range = cloneRange(a.Range)
	s.anchors[a.ID] = a
	return nil
}

func (s *MemoryStore) ListAnchors(_ context.Context, pageID string) ([]Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var anchors []Anchor
	for _, a := range s.anchors {
		if a.PageID == pageID {
			a.Range = cloneRange(a.Range)
			anchors = append(anchors, a)
		}
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].CreatedAt.Before(anchors[j].CreatedAt) })
	return anchors, nil
}

func (s *MemoryStore) InsertThread(_ context.Context, t Thread, root Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = time.Now()
	s.threads[t.ID] = t
	root.ThreadID = t.ID
	root.CreatedAt = t.CreatedAt
	s.messages[t.ID] = append(s.messages[t.ID], root)
	return nil
}

func (s *MemoryStore) GetThread(_ context.Context, threadID string) (Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return Thread{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *MemoryStore) ListThreads(_ context.Context, pageID string) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var threads []Thread
	for _, t := range s.threads {
		if t.PageID == pageID {
			threads = append(threads, t)
		}
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].CreatedAt.Before(threads[j].CreatedAt) })
	return threads, nil
}

func (s *MemoryStore) SetThreadResolved(_ context.Context, threadID string, resolved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return sql.ErrNoRows
	}
	t.Resolved = resolved
	s.threads[threadID] = t
	return nil
}

func (s *MemoryStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return sql.ErrNoRows
	}
	delete(s.threads, threadID)
	delete(s.messages, threadID)
	delete(s.anchors, t.AnchorID)
	return nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[m.ThreadID]; !ok {
		return sql.ErrNoRows
	}
	m.CreatedAt = time.Now()
	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], m)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]Message, len(s.messages[threadID]))
	copy(messages, s.messages[threadID])
	return messages, nil
}

func cloneRange(r *doc.Range) *doc.Range {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
