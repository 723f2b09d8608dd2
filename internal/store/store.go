package store

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by PublishVersion when the page's current
// version no longer matches the publish attempt's base version.
var ErrVersionConflict = errors.New("page version conflict")

// Store is the persistence surface for pages, versions, drafts, anchors and
// threads. Postgres is the production implementation; Memory backs tests and
// single-node local runs with the same compare-and-swap semantics.
type Store interface {
	CreatePage(ctx context.Context, page Page, initial PageVersion) error
	GetPage(ctx context.Context, pageID string) (Page, error)
	ListPages(ctx context.Context, wikiID string) ([]Page, error)
	DeletePage(ctx context.Context, pageID string) error

	GetVersion(ctx context.Context, pageID string, version int64) (PageVersion, error)
	GetCurrentVersion(ctx context.Context, pageID string) (PageVersion, error)
	ListVersions(ctx context.Context, pageID string, limit int) ([]PageVersion, error)

	// PublishVersion atomically advances the page head from v.ParentVersion
	// to v.Version, inserts the immutable version row, rewrites anchor
	// ranges, and deletes the publishing user's draft. Either everything
	// commits or nothing does. Returns ErrVersionConflict when the CAS on
	// the page head fails.
	PublishVersion(ctx context.Context, v PageVersion, anchors []AnchorUpdate, draftUserID string) error

	UpsertDraft(ctx context.Context, draft Draft) error
	GetDraft(ctx context.Context, pageID, userID string) (Draft, error)
	DeleteDraft(ctx context.Context, pageID, userID string) error

	InsertAnchor(ctx context.Context, a Anchor) error
	ListAnchors(ctx context.Context, pageID string) ([]Anchor, error)

	InsertThread(ctx context.Context, t Thread, root Message) error
	GetThread(ctx context.Context, threadID string) (Thread, error)
	ListThreads(ctx context.Context, pageID string) ([]Thread, error)
	SetThreadResolved(ctx context.Context, threadID string, resolved bool) error
	// DeleteThread removes the thread, its messages, and its anchor in one
	// transaction. This is the only operation that removes an anchor id.
	DeleteThread(ctx context.Context, threadID string) error
	InsertMessage(ctx context.Context, m Message) error
	ListMessages(ctx context.Context, threadID string) ([]Message, error)

	Ping(ctx context.Context) error
}
