package store

import (
	"time"

	"quill/api/internal/doc"
)

// Page is the mutable head record for a wiki page. CurrentVersion is the
// optimistic-concurrency token: it only ever moves forward, one step per
// publish, through the compare-and-swap in PublishVersion.
type Page struct {
	ID             string
	WikiID         string
	ParentID       string
	Title          string
	CurrentVersion int64
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PageVersion is one immutable published revision of a page. Content is the
// document JSON; SearchText is the extracted plain text.
type PageVersion struct {
	PageID        string
	Version       int64
	ParentVersion int64
	Title         string
	Content       []byte
	SearchText    string
	PublishedBy   string
	PublishedAt   time.Time
}

// Draft is a per-(page, user) working copy. It is owned exclusively by its
// user and carries the version it was seeded from.
type Draft struct {
	PageID      string
	UserID      string
	BaseVersion int64
	Title       string
	Content     []byte
	LastSavedAt time.Time
}

// Anchor binds an inline comment to a text range. TextSnapshot is immutable;
// Range is nil while the anchor is orphaned.
type Anchor struct {
	ID               string
	PageID           string
	CreatedInVersion int64
	TextSnapshot     string
	Range            *doc.Range
	OrphanReason     string
	CreatedBy        string
	CreatedAt        time.Time
}

// AnchorUpdate carries one anchor's re-resolved range into a publish commit.
type AnchorUpdate struct {
	AnchorID     string
	Range        *doc.Range
	OrphanReason string
}

// Thread is a comment thread attached to exactly one anchor.
type Thread struct {
	ID        string
	PageID    string
	AnchorID  string
	Resolved  bool
	CreatedBy string
	CreatedAt time.Time
}

// Message is the root comment or a reply within a thread.
type Message struct {
	ID        string
	ThreadID  string
	Author    string
	Body      string
	CreatedAt time.Time
}
