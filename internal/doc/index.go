package doc

import "strings"

// Range addresses a span of text by node identity and byte offsets within the
// owning text blocks. Ranges are only meaningful against the document version
// they were resolved for.
type Range struct {
	StartNodeID string `json:"startNodeId"`
	StartOffset int    `json:"startOffset"`
	EndNodeID   string `json:"endNodeId"`
	EndOffset   int    `json:"endOffset"`
}

// Segment is one text block's inline text placed at a global offset in the
// document's plain text. Block boundaries contribute a single newline between
// consecutive segments.
type Segment struct {
	NodeID string
	Start  int
	Text   string
}

// Index is the flattened text view of a document: the full plain text plus
// the segment table mapping global offsets to (node, offset) pairs.
type Index struct {
	segments []Segment
	byNode   map[string]int
	text     string
}

func NewIndex(d *Document) *Index {
	ix := &Index{byNode: make(map[string]int)}
	if d == nil || d.Root == nil {
		return ix
	}

	var builder strings.Builder
	var walk func(n *Node)
	walk = func(n *Node) {
		if IsTextBlock(n.Type) {
			if len(ix.segments) > 0 {
				builder.WriteByte('\n')
			}
			text := inlineText(n)
			ix.byNode[n.ID] = len(ix.segments)
			ix.segments = append(ix.segments, Segment{NodeID: n.ID, Start: builder.Len(), Text: text})
			builder.WriteString(text)
			return
		}
		for _, child := range n.Content {
			walk(child)
		}
	}
	walk(d.Root)
	ix.text = builder.String()
	return ix
}

func inlineText(block *Node) string {
	var b strings.Builder
	for _, child := range block.Content {
		switch child.Type {
		case KindText:
			b.WriteString(child.Text)
		case KindHardBreak:
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Text returns the document's full plain text.
func (ix *Index) Text() string {
	return ix.text
}

// Segments returns the segment table in document order.
func (ix *Index) Segments() []Segment {
	return ix.segments
}

// Segment returns the segment owned by nodeID.
func (ix *Index) Segment(nodeID string) (Segment, bool) {
	i, ok := ix.byNode[nodeID]
	if !ok {
		return Segment{}, false
	}
	return ix.segments[i], true
}

// GlobalOffset converts a (node, local offset) position to a global offset.
func (ix *Index) GlobalOffset(nodeID string, offset int) (int, bool) {
	seg, ok := ix.Segment(nodeID)
	if !ok || offset < 0 || offset > len(seg.Text) {
		return 0, false
	}
	return seg.Start + offset, true
}

// RangeFor converts a global [start, end) span to a node-addressed Range.
// Endpoints that land on block separators do not belong to any node, so the
// conversion fails for them.
func (ix *Index) RangeFor(start, end int) (*Range, bool) {
	if start < 0 || end > len(ix.text) || start >= end {
		return nil, false
	}
	startSeg, startOff, ok := ix.locate(start, false)
	if !ok {
		return nil, false
	}
	endSeg, endOff, ok := ix.locate(end, true)
	if !ok {
		return nil, false
	}
	return &Range{
		StartNodeID: startSeg.NodeID,
		StartOffset: startOff,
		EndNodeID:   endSeg.NodeID,
		EndOffset:   endOff,
	}, true
}

// Slice returns the plain text covered by a range, or false if the range does
// not address this document version.
func (ix *Index) Slice(r *Range) (string, bool) {
	if r == nil {
		return "", false
	}
	start, ok := ix.GlobalOffset(r.StartNodeID, r.StartOffset)
	if !ok {
		return "", false
	}
	end, ok := ix.GlobalOffset(r.EndNodeID, r.EndOffset)
	if !ok || end <= start {
		return "", false
	}
	return ix.text[start:end], true
}

// locate maps a global offset onto its owning segment. Range ends are
// exclusive, so for them an offset equal to a segment's end is attributed to
// that segment rather than the next one.
func (ix *Index) locate(offset int, isEnd bool) (Segment, int, bool) {
	for _, seg := range ix.segments {
		segEnd := seg.Start + len(seg.Text)
		if isEnd {
			if offset > seg.Start && offset <= segEnd {
				return seg, offset - seg.Start, true
			}
		} else {
			if offset >= seg.Start && offset < segEnd {
				return seg, offset - seg.Start, true
			}
		}
	}
	return Segment{}, 0, false
}
