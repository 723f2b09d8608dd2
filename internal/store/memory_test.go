package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"quill/api/internal/doc"
)

func seedPage(t *testing.T, s *MemoryStore, pageID string) {
	t.Helper()
	err := s.CreatePage(context.Background(), Page{
		ID:     pageID,
		WikiID: "wiki-1",
		Title:  "Seeded",
	}, PageVersion{
		PageID:  pageID,
		Version: 1,
		Title:   "Seeded",
		Content: []byte(`{"type":"doc"}`),
	})
	if err != nil {
		t.Fatalf("seed page: %v", err)
	}
}

func TestPublishVersionAdvancesHead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	err := s.PublishVersion(ctx, PageVersion{
		PageID:        "page-1",
		Version:       2,
		ParentVersion: 1,
		Title:         "Updated",
		PublishedBy:   "alice",
	}, nil, "alice")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	page, err := s.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if page.CurrentVersion != 2 || page.Title != "Updated" || page.UpdatedBy != "alice" {
		t.Fatalf("page head = %+v", page)
	}
	if _, err := s.GetVersion(ctx, "page-1", 2); err != nil {
		t.Fatalf("version 2 missing: %v", err)
	}
	// Version 1 remains readable.
	if _, err := s.GetVersion(ctx, "page-1", 1); err != nil {
		t.Fatalf("version 1 lost: %v", err)
	}
}

func TestPublishVersionStaleBaseConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	if err := s.PublishVersion(ctx, PageVersion{PageID: "page-1", Version: 2, ParentVersion: 1}, nil, ""); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	err := s.PublishVersion(ctx, PageVersion{PageID: "page-1", Version: 2, ParentVersion: 1}, nil, "")
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestPublishVersionMissingPage(t *testing.T) {
	s := NewMemoryStore()
	err := s.PublishVersion(context.Background(), PageVersion{PageID: "nope", Version: 2, ParentVersion: 1}, nil, "")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestConcurrentPublishesExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.PublishVersion(ctx, PageVersion{
				PageID:        "page-1",
				Version:       2,
				ParentVersion: 1,
				PublishedBy:   fmt.Sprintf("user-%d", i),
			}, nil, "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrVersionConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	page, _ := s.GetPage(ctx, "page-1")
	if page.CurrentVersion != 2 {
		t.Fatalf("head = %d, want 2", page.CurrentVersion)
	}
}

func TestPublishVersionDeletesPublisherDraftOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	for _, user := range []string{"alice", "bob"} {
		if err := s.UpsertDraft(ctx, Draft{PageID: "page-1", UserID: user, BaseVersion: 1}); err != nil {
			t.Fatalf("upsert draft: %v", err)
		}
	}

	if err := s.PublishVersion(ctx, PageVersion{PageID: "page-1", Version: 2, ParentVersion: 1}, nil, "alice"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := s.GetDraft(ctx, "page-1", "alice"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("alice's draft should be gone, err = %v", err)
	}
	if _, err := s.GetDraft(ctx, "page-1", "bob"); err != nil {
		t.Fatalf("bob's draft should survive, err = %v", err)
	}
}

func TestPublishVersionAppliesAnchorUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	r := &doc.Range{StartNodeID: "p1", StartOffset: 0, EndNodeID: "p1", EndOffset: 5}
	if err := s.InsertAnchor(ctx, Anchor{ID: "ic-1", PageID: "page-1", TextSnapshot: "hello", Range: r}); err != nil {
		t.Fatalf("insert anchor: %v", err)
	}
	if err := s.InsertAnchor(ctx, Anchor{ID: "ic-2", PageID: "page-1", TextSnapshot: "world", Range: r}); err != nil {
		t.Fatalf("insert anchor: %v", err)
	}

	updates := []AnchorUpdate{
		{AnchorID: "ic-1", Range: &doc.Range{StartNodeID: "p1", StartOffset: 7, EndNodeID: "p1", EndOffset: 12}},
		{AnchorID: "ic-2", OrphanReason: "snapshot_not_found"},
	}
	if err := s.PublishVersion(ctx, PageVersion{PageID: "page-1", Version: 2, ParentVersion: 1}, updates, ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	anchors, err := s.ListAnchors(ctx, "page-1")
	if err != nil {
		t.Fatalf("list anchors: %v", err)
	}
	byID := map[string]Anchor{}
	for _, a := range anchors {
		byID[a.ID] = a
	}
	moved := byID["ic-1"]
	if moved.Range == nil || moved.Range.StartOffset != 7 || moved.OrphanReason != "" {
		t.Fatalf("ic-1 = %+v", moved)
	}
	orphaned := byID["ic-2"]
	if orphaned.Range != nil || orphaned.OrphanReason != "snapshot_not_found" {
		t.Fatalf("ic-2 = %+v", orphaned)
	}
	// Snapshot is immutable through updates.
	if orphaned.TextSnapshot != "world" {
		t.Fatalf("snapshot mutated: %q", orphaned.TextSnapshot)
	}
}

func TestDraftIsolationPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	if err := s.UpsertDraft(ctx, Draft{PageID: "page-1", UserID: "alice", Title: "Alice's take", BaseVersion: 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertDraft(ctx, Draft{PageID: "page-1", UserID: "bob", Title: "Bob's take", BaseVersion: 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	alice, err := s.GetDraft(ctx, "page-1", "alice")
	if err != nil || alice.Title != "Alice's take" {
		t.Fatalf("alice draft = %+v, err = %v", alice, err)
	}
	bob, err := s.GetDraft(ctx, "page-1", "bob")
	if err != nil || bob.Title != "Bob's take" {
		t.Fatalf("bob draft = %+v, err = %v", bob, err)
	}

	// Re-saving replaces, never duplicates.
	if err := s.UpsertDraft(ctx, Draft{PageID: "page-1", UserID: "alice", Title: "Alice v2", BaseVersion: 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	alice, _ = s.GetDraft(ctx, "page-1", "alice")
	if alice.Title != "Alice v2" {
		t.Fatalf("alice draft after resave = %+v", alice)
	}
}

func TestDeleteThreadRemovesAnchor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	if err := s.InsertAnchor(ctx, Anchor{ID: "ic-1", PageID: "page-1", TextSnapshot: "x"}); err != nil {
		t.Fatalf("insert anchor: %v", err)
	}
	if err := s.InsertThread(ctx, Thread{ID: "t1", PageID: "page-1", AnchorID: "ic-1"}, Message{ID: "m1", Author: "alice", Body: "root"}); err != nil {
		t.Fatalf("insert thread: %v", err)
	}
	if err := s.InsertMessage(ctx, Message{ID: "m2", ThreadID: "t1", Author: "bob", Body: "reply"}); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	if err := s.DeleteThread(ctx, "t1"); err != nil {
		t.Fatalf("delete thread: %v", err)
	}

	if _, err := s.GetThread(ctx, "t1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("thread should be gone, err = %v", err)
	}
	messages, _ := s.ListMessages(ctx, "t1")
	if len(messages) != 0 {
		t.Fatalf("messages remain: %d", len(messages))
	}
	anchors, _ := s.ListAnchors(ctx, "page-1")
	if len(anchors) != 0 {
		t.Fatalf("anchor should be gone with its thread, found %d", len(anchors))
	}
}

func TestListVersionsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedPage(t, s, "page-1")

	for v := int64(2); v <= 5; v++ {
		if err := s.PublishVersion(ctx, PageVersion{PageID: "page-1", Version: v, ParentVersion: v - 1}, nil, ""); err != nil {
			t.Fatalf("publish v%d: %v", v, err)
		}
	}

	versions, err := s.ListVersions(ctx, "page-1", 3)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("len = %d, want 3", len(versions))
	}
	for i, want := range []int64{5, 4, 3} {
		if versions[i].Version != want {
			t.Fatalf("versions[%d] = %d, want %d", i, versions[i].Version, want)
		}
	}
}
