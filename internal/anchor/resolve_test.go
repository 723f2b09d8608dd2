package anchor

import (
	"fmt"
	"math/rand"
	"testing"

	"quill/api/internal/doc"
)

func paragraph(id, text string) *doc.Node {
	p := &doc.Node{ID: id, Type: doc.KindParagraph}
	if text != "" {
		p.Content = []*doc.Node{{Type: doc.KindText, Text: text}}
	}
	return p
}

func docOf(paragraphs ...*doc.Node) *doc.Document {
	return &doc.Document{Root: &doc.Node{Type: doc.KindDoc, Content: paragraphs}}
}

func anchorOn(t *testing.T, d *doc.Document, id, snapshot string) Anchor {
	t.Helper()
	ix := doc.NewIndex(d)
	text := ix.Text()
	start := -1
	for i := 0; i+len(snapshot) <= len(text); i++ {
		if text[i:i+len(snapshot)] == snapshot {
			start = i
			break
		}
	}
	if start < 0 {
		t.Fatalf("snapshot %q not in document", snapshot)
	}
	r, ok := ix.RangeFor(start, start+len(snapshot))
	if !ok {
		t.Fatalf("cannot build range for %q", snapshot)
	}
	return Anchor{ID: id, TextSnapshot: snapshot, Range: r}
}

func single(t *testing.T, resolutions []Resolution) Resolution {
	t.Helper()
	if len(resolutions) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(resolutions))
	}
	return resolutions[0]
}

func assertCovers(t *testing.T, d *doc.Document, r *doc.Range, want string) {
	t.Helper()
	if r == nil {
		t.Fatal("range is nil")
	}
	got, ok := doc.NewIndex(d).Slice(r)
	if !ok {
		t.Fatalf("range does not address the document")
	}
	if got != want {
		t.Fatalf("range covers %q, want %q", got, want)
	}
}

func TestResolveSurvivesPrefixInsertion(t *testing.T) {
	oldDoc := docOf(paragraph("p1", "The quick brown fox"))
	newDoc := docOf(paragraph("p1", "Once upon a time, The quick brown fox"))
	a := anchorOn(t, oldDoc, "ic-1", "brown fox")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if res.Orphaned {
		t.Fatalf("anchor orphaned: %s", res.Reason)
	}
	assertCovers(t, newDoc, res.Range, "brown fox")
}

func TestResolveSurvivesDeletionBeforeSpan(t *testing.T) {
	oldDoc := docOf(paragraph("p1", "DELETE THIS: keep me around"))
	newDoc := docOf(paragraph("p1", "keep me around"))
	a := anchorOn(t, oldDoc, "ic-1", "keep me")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if res.Orphaned {
		t.Fatalf("anchor orphaned: %s", res.Reason)
	}
	assertCovers(t, newDoc, res.Range, "keep me")
}

func TestResolveSurvivesBlockMove(t *testing.T) {
	oldDoc := docOf(
		paragraph("p1", "first paragraph here"),
		paragraph("p2", "second paragraph with target text"),
	)
	newDoc := docOf(
		paragraph("p2", "second paragraph with target text"),
		paragraph("p1", "first paragraph here"),
	)
	a := anchorOn(t, oldDoc, "ic-1", "target text")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if res.Orphaned {
		t.Fatalf("anchor orphaned after block move: %s", res.Reason)
	}
	assertCovers(t, newDoc, res.Range, "target text")
}

func TestResolveFallsBackToSnapshotSearch(t *testing.T) {
	oldDoc := docOf(paragraph("p1", "the needle sits here"))
	// Block deleted, text reappears in a brand new block.
	newDoc := docOf(paragraph("p9", "moved: the needle sits here"))
	a := anchorOn(t, oldDoc, "ic-1", "needle")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if res.Orphaned {
		t.Fatalf("anchor orphaned: %s", res.Reason)
	}
	assertCovers(t, newDoc, res.Range, "needle")
	if res.Range.StartNodeID != "p9" {
		t.Fatalf("anchor bound to %s, want p9", res.Range.StartNodeID)
	}
}

func TestResolveOrphansWhenSnapshotRemoved(t *testing.T) {
	oldDoc := docOf(paragraph("p1", "this text will vanish"))
	newDoc := docOf(paragraph("p1", "completely different now"))
	a := anchorOn(t, oldDoc, "ic-1", "will vanish")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if !res.Orphaned {
		t.Fatal("expected orphaned anchor")
	}
	if res.Reason != ReasonSnapshotNotFound {
		t.Fatalf("reason = %s, want %s", res.Reason, ReasonSnapshotNotFound)
	}
	if res.Range != nil {
		t.Fatal("orphaned anchor must not carry a range")
	}
}

func TestResolveOrphansOnAmbiguousSnapshot(t *testing.T) {
	oldDoc := docOf(paragraph("p1", "unique phrase"))
	newDoc := docOf(
		paragraph("p2", "unique phrase"),
		paragraph("p3", "unique phrase"),
	)
	a := anchorOn(t, oldDoc, "ic-1", "unique phrase")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if !res.Orphaned {
		t.Fatal("expected orphaned anchor for ambiguous snapshot")
	}
	if res.Reason != ReasonSnapshotAmbiguous {
		t.Fatalf("reason = %s, want %s", res.Reason, ReasonSnapshotAmbiguous)
	}
}

func TestResolveDoesNotGuessOnEditInsideSpan(t *testing.T) {
	oldDoc := docOf(paragraph("p1", "the original wording stands"))
	newDoc := docOf(paragraph("p1", "the revised wording stands"))
	a := anchorOn(t, oldDoc, "ic-1", "original wording")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if !res.Orphaned {
		t.Fatal("anchor over edited text must orphan, not guess")
	}
	if res.Reason != ReasonSnapshotNotFound {
		t.Fatalf("reason = %s", res.Reason)
	}
}

func TestResolveEmptySnapshotOrphans(t *testing.T) {
	newDoc := docOf(paragraph("p1", "anything"))
	res := single(t, Resolve(nil, newDoc, []Anchor{{ID: "ic-1"}}))
	if !res.Orphaned || res.Reason != ReasonEmptySnapshot {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestResolveWithoutOldDocumentUsesSearchOnly(t *testing.T) {
	newDoc := docOf(paragraph("p1", "fresh resolution target"))
	res := single(t, Resolve(nil, newDoc, []Anchor{{ID: "ic-1", TextSnapshot: "resolution"}}))
	if res.Orphaned {
		t.Fatalf("anchor orphaned: %s", res.Reason)
	}
	assertCovers(t, newDoc, res.Range, "resolution")
}

func TestResolveIsIdempotent(t *testing.T) {
	d := docOf(paragraph("p1", "steady state content"))
	a := anchorOn(t, d, "ic-1", "steady state")

	first := single(t, Resolve(d, d, []Anchor{a}))
	if first.Orphaned {
		t.Fatalf("anchor orphaned: %s", first.Reason)
	}

	a.Range = first.Range
	second := single(t, Resolve(d, d, []Anchor{a}))
	if second.Orphaned {
		t.Fatalf("anchor orphaned on second pass: %s", second.Reason)
	}
	if *second.Range != *first.Range {
		t.Fatalf("re-resolution moved the range: %+v vs %+v", second.Range, first.Range)
	}
}

func TestResolveMixedBatch(t *testing.T) {
	oldDoc := docOf(
		paragraph("p1", "alpha block text"),
		paragraph("p2", "beta block text that disappears"),
	)
	newDoc := docOf(paragraph("p1", "prefix alpha block text"))

	keep := anchorOn(t, oldDoc, "ic-keep", "alpha block")
	lose := anchorOn(t, oldDoc, "ic-lose", "disappears")

	resolutions := Resolve(oldDoc, newDoc, []Anchor{keep, lose})
	if len(resolutions) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(resolutions))
	}
	byID := map[string]Resolution{}
	for _, res := range resolutions {
		byID[res.AnchorID] = res
	}
	if byID["ic-keep"].Orphaned {
		t.Fatalf("ic-keep orphaned: %s", byID["ic-keep"].Reason)
	}
	assertCovers(t, newDoc, byID["ic-keep"].Range, "alpha block")
	if !byID["ic-lose"].Orphaned {
		t.Fatal("ic-lose should be orphaned")
	}
}

func TestResolveReportsUnaddressableSnapshot(t *testing.T) {
	// The span covers a hardBreak; in the new version that break became a
	// paragraph split, so the unique match starts on a block separator.
	oldDoc := docOf(&doc.Node{ID: "p1", Type: doc.KindParagraph, Content: []*doc.Node{
		{Type: doc.KindText, Text: "alpha"},
		{Type: doc.KindHardBreak},
		{Type: doc.KindText, Text: "beta"},
	}})
	newDoc := docOf(paragraph("p1", "alpha"), paragraph("p2", "beta"))
	a := anchorOn(t, oldDoc, "ic-1", "\nbeta")

	res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
	if !res.Orphaned {
		t.Fatal("expected orphaned anchor")
	}
	if res.Reason != ReasonSnapshotUnaddressable {
		t.Fatalf("reason = %s, want %s", res.Reason, ReasonSnapshotUnaddressable)
	}
	if res.Range != nil {
		t.Fatal("orphaned anchor must not carry a range")
	}
}

// TestResolveStableUnderRandomDisjointEdits drives Resolve with generated
// documents: a uniquely marked span plus random inserts and deletes that never
// touch it. The anchor must survive every trial and the resolved range must
// still cover the original snapshot.
func TestResolveStableUnderRandomDisjointEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const letters = "abcdefghij mnop rstu"
	randomText := func(n int) string {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = letters[rng.Intn(len(letters))]
		}
		return string(buf)
	}

	for trial := 0; trial < 300; trial++ {
		// Lowercase filler, uppercase marker: the filler can never produce a
		// second occurrence of the snapshot.
		marker := fmt.Sprintf("MARK%04dER", trial)

		numParas := 1 + rng.Intn(4)
		texts := make([]string, numParas)
		for i := range texts {
			texts[i] = randomText(5 + rng.Intn(40))
		}
		markerPara := rng.Intn(numParas)
		insertAt := rng.Intn(len(texts[markerPara]) + 1)
		texts[markerPara] = texts[markerPara][:insertAt] + marker + texts[markerPara][insertAt:]

		oldParas := make([]*doc.Node, numParas)
		for i, text := range texts {
			oldParas[i] = paragraph(fmt.Sprintf("p%d", i), text)
		}
		oldDoc := docOf(oldParas...)
		a := anchorOn(t, oldDoc, "ic-1", marker)

		// Span position in the marker paragraph's evolving text.
		spanStart := insertAt
		spanEnd := insertAt + len(marker)

		edited := append([]string(nil), texts...)
		numEdits := 1 + rng.Intn(3)
		for e := 0; e < numEdits; e++ {
			pi := rng.Intn(numParas)
			text := edited[pi]
			if rng.Intn(2) == 0 {
				ins := randomText(1 + rng.Intn(10))
				pos := rng.Intn(len(text) + 1)
				if pi == markerPara && pos > spanStart && pos < spanEnd {
					pos = spanEnd
				}
				edited[pi] = text[:pos] + ins + text[pos:]
				if pi == markerPara && pos <= spanStart {
					spanStart += len(ins)
					spanEnd += len(ins)
				}
			} else {
				var d0, d1 int
				if pi == markerPara {
					if spanStart > 0 && (spanEnd >= len(text) || rng.Intn(2) == 0) {
						d0 = rng.Intn(spanStart)
						d1 = d0 + 1 + rng.Intn(spanStart-d0)
					} else if spanEnd < len(text) {
						d0 = spanEnd + rng.Intn(len(text)-spanEnd)
						d1 = d0 + 1 + rng.Intn(len(text)-d0)
					} else {
						continue
					}
				} else {
					if len(text) == 0 {
						continue
					}
					d0 = rng.Intn(len(text))
					d1 = d0 + 1 + rng.Intn(len(text)-d0)
				}
				edited[pi] = text[:d0] + text[d1:]
				if pi == markerPara && d1 <= spanStart {
					spanStart -= d1 - d0
					spanEnd -= d1 - d0
				}
			}
		}

		newParas := make([]*doc.Node, numParas)
		for i, text := range edited {
			newParas[i] = paragraph(fmt.Sprintf("p%d", i), text)
		}
		newDoc := docOf(newParas...)

		res := single(t, Resolve(oldDoc, newDoc, []Anchor{a}))
		if res.Orphaned {
			t.Fatalf("trial %d: anchor orphaned (%s); old=%q new=%q",
				trial, res.Reason, texts, edited)
		}
		got, ok := doc.NewIndex(newDoc).Slice(res.Range)
		if !ok || got != marker {
			t.Fatalf("trial %d: range covers %q, want %q; new=%q", trial, got, marker, edited)
		}
	}
}
