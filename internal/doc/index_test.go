package doc

import "testing"

func twoParagraphDoc() *Document {
	return &Document{Root: &Node{Type: KindDoc, Content: []*Node{
		textBlock("p1", "The quick brown fox"),
		textBlock("p2", "jumps over the lazy dog"),
	}}}
}

func TestIndexTextAndSegments(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	want := "The quick brown fox\njumps over the lazy dog"
	if ix.Text() != want {
		t.Fatalf("text = %q, want %q", ix.Text(), want)
	}
	if len(ix.Segments()) != 2 {
		t.Fatalf("segments = %d, want 2", len(ix.Segments()))
	}
	seg, ok := ix.Segment("p2")
	if !ok {
		t.Fatal("segment p2 missing")
	}
	if seg.Start != len("The quick brown fox")+1 {
		t.Fatalf("p2 start = %d", seg.Start)
	}
}

func TestIndexHandlesHardBreaks(t *testing.T) {
	d := &Document{Root: &Node{Type: KindDoc, Content: []*Node{
		{ID: "p1", Type: KindParagraph, Content: []*Node{
			{Type: KindText, Text: "line one"},
			{Type: KindHardBreak},
			{Type: KindText, Text: "line two"},
		}},
	}}}
	ix := NewIndex(d)
	if ix.Text() != "line one\nline two" {
		t.Fatalf("text = %q", ix.Text())
	}
}

func TestGlobalOffsetBounds(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	if _, ok := ix.GlobalOffset("p1", -1); ok {
		t.Fatal("negative offset should fail")
	}
	if _, ok := ix.GlobalOffset("p1", len("The quick brown fox")+1); ok {
		t.Fatal("offset past block end should fail")
	}
	if _, ok := ix.GlobalOffset("missing", 0); ok {
		t.Fatal("unknown node should fail")
	}
	got, ok := ix.GlobalOffset("p2", 5)
	if !ok || got != len("The quick brown fox")+1+5 {
		t.Fatalf("global offset = %d, ok = %v", got, ok)
	}
}

func TestRangeForAndSliceAgree(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	// "brown fox" lives at offsets 10..19 inside p1.
	r, ok := ix.RangeFor(10, 19)
	if !ok {
		t.Fatal("range conversion failed")
	}
	if r.StartNodeID != "p1" || r.EndNodeID != "p1" {
		t.Fatalf("range nodes = %s..%s", r.StartNodeID, r.EndNodeID)
	}
	text, ok := ix.Slice(r)
	if !ok || text != "brown fox" {
		t.Fatalf("slice = %q, ok = %v", text, ok)
	}
}

func TestRangeForRejectsSeparatorStart(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	sep := len("The quick brown fox")
	if _, ok := ix.RangeFor(sep, sep+6); ok {
		t.Fatal("range starting on a block separator should fail")
	}
}

func TestRangeEndOnBlockBoundary(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	// End exactly at p1's last byte is attributed to p1, not the separator.
	r, ok := ix.RangeFor(16, 19)
	if !ok {
		t.Fatal("range conversion failed")
	}
	if r.EndNodeID != "p1" || r.EndOffset != 19 {
		t.Fatalf("end = %s:%d", r.EndNodeID, r.EndOffset)
	}
	if text, _ := ix.Slice(r); text != "fox" {
		t.Fatalf("slice = %q", text)
	}
}

func TestSliceRejectsInvertedRange(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	r := &Range{StartNodeID: "p1", StartOffset: 10, EndNodeID: "p1", EndOffset: 4}
	if _, ok := ix.Slice(r); ok {
		t.Fatal("inverted range should fail")
	}
}

func TestCrossBlockRange(t *testing.T) {
	ix := NewIndex(twoParagraphDoc())
	r := &Range{StartNodeID: "p1", StartOffset: 16, EndNodeID: "p2", EndOffset: 5}
	text, ok := ix.Slice(r)
	if !ok || text != "fox\njumps" {
		t.Fatalf("slice = %q, ok = %v", text, ok)
	}
}
