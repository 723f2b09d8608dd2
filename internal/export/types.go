// Package export renders published pages to standalone HTML and PDF.
package export

import (
	"errors"
	"time"

	"quill/api/internal/doc"
)

// Format is the export output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Request contains parameters for an export operation.
type Request struct {
	PageID         string
	Version        int64 // 0 means current version
	Format         Format
	IncludeThreads bool
}

// PageInfo holds page metadata for the export header.
type PageInfo struct {
	ID        string
	WikiID    string
	Title     string
	UpdatedBy string
	UpdatedAt time.Time
}

// ThreadInfo holds one comment thread for the discussion appendix.
type ThreadInfo struct {
	ID       string
	Snapshot string
	Resolved bool
}

// MessageInfo holds one thread message.
type MessageInfo struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// DataStore is the data access the export service needs.
type DataStore interface {
	GetPageInfo(id string) (PageInfo, error)
	GetPageContent(id string, version int64) (*doc.Document, error)
	ListThreads(pageID string) ([]ThreadInfo, error)
	ListThreadMessages(threadID string) ([]MessageInfo, error)
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates page content could not be loaded.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates the headless browser is not installed.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
