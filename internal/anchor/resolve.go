// Package anchor re-resolves inline-comment anchors against new document
// versions. An anchor's text snapshot is the ground truth: diff-based offset
// translation is only a fast path, and every translated range is verified
// against the snapshot before it is trusted.
package anchor

import (
	"strings"

	"quill/api/internal/doc"
)

// Orphan reasons surfaced per anchor alongside a publish.
const (
	ReasonEmptySnapshot     = "empty_snapshot"
	ReasonSnapshotNotFound  = "snapshot_not_found"
	ReasonSnapshotAmbiguous = "snapshot_ambiguous"
	// ReasonSnapshotUnaddressable: the snapshot occurs exactly once but the
	// occurrence starts or ends on a block separator, so no node-addressed
	// range can cover it. Happens when a hardBreak inside the span became a
	// block split.
	ReasonSnapshotUnaddressable = "snapshot_unaddressable"
)

// Anchor is a permanent identifier bound to a text range. TextSnapshot is the
// exact substring covered at creation time and is never mutated.
type Anchor struct {
	ID               string
	PageID           string
	CreatedInVersion int64
	TextSnapshot     string
	Range            *doc.Range
}

// Resolution is the outcome of re-resolving one anchor. Range is nil when the
// anchor is orphaned.
type Resolution struct {
	AnchorID string
	Range    *doc.Range
	Orphaned bool
	Reason   string
}

// Resolve recomputes ranges for all anchors against newDoc. oldDoc may be nil
// for first-time resolution, in which case only snapshot search applies.
// Anchors whose ranges survive translation through the structural diff keep
// their identity cheaply; everything else falls back to an exact-substring
// search of the snapshot. Zero or multiple matches orphan the anchor rather
// than guessing.
func Resolve(oldDoc, newDoc *doc.Document, anchors []Anchor) []Resolution {
	newIx := doc.NewIndex(newDoc)
	var d *diff
	var oldIx *doc.Index
	if oldDoc != nil {
		oldIx = doc.NewIndex(oldDoc)
		d = computeDiff(oldIx, newIx)
	}

	resolutions := make([]Resolution, 0, len(anchors))
	for _, a := range anchors {
		resolutions = append(resolutions, resolveOne(d, newIx, a))
	}
	return resolutions
}

func resolveOne(d *diff, newIx *doc.Index, a Anchor) Resolution {
	if a.TextSnapshot == "" {
		return Resolution{AnchorID: a.ID, Orphaned: true, Reason: ReasonEmptySnapshot}
	}

	if translated := translateRange(d, a.Range); translated != nil {
		// Positional arithmetic alone is not trusted across versions: the
		// translated range must still cover the snapshot text exactly.
		if text, ok := newIx.Slice(translated); ok && text == a.TextSnapshot {
			return Resolution{AnchorID: a.ID, Range: translated}
		}
	}

	return searchSnapshot(newIx, a)
}

func translateRange(d *diff, r *doc.Range) *doc.Range {
	if d == nil || r == nil {
		return nil
	}
	start, ok := d.translate(r.StartNodeID, r.StartOffset)
	if !ok {
		return nil
	}
	end, ok := d.translate(r.EndNodeID, r.EndOffset)
	if !ok {
		return nil
	}
	return &doc.Range{
		StartNodeID: r.StartNodeID,
		StartOffset: start,
		EndNodeID:   r.EndNodeID,
		EndOffset:   end,
	}
}

func searchSnapshot(newIx *doc.Index, a Anchor) Resolution {
	text := newIx.Text()
	first := strings.Index(text, a.TextSnapshot)
	if first < 0 {
		return Resolution{AnchorID: a.ID, Orphaned: true, Reason: ReasonSnapshotNotFound}
	}
	if strings.Contains(text[first+1:], a.TextSnapshot) {
		return Resolution{AnchorID: a.ID, Orphaned: true, Reason: ReasonSnapshotAmbiguous}
	}
	r, ok := newIx.RangeFor(first, first+len(a.TextSnapshot))
	if !ok {
		return Resolution{AnchorID: a.ID, Orphaned: true, Reason: ReasonSnapshotUnaddressable}
	}
	return Resolution{AnchorID: a.ID, Range: r}
}
