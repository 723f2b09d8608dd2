package anchor

import "quill/api/internal/doc"

// textEdit describes what happened to one retained text block between two
// document versions. Prefix and Suffix are the byte counts left untouched at
// either end; the window between them is the edited span.
type textEdit struct {
	oldLen int
	newLen int
	prefix int
	suffix int
}

func (e textEdit) clean() bool {
	return e.oldLen == e.newLen && e.prefix == e.oldLen
}

// diff is a node-granularity structural diff between two document versions.
// Node identity does the heavy lifting: a block present in both versions is
// retained, blocks only in the old version are deletions, blocks only in the
// new version are insertions. Intra-block text changes are narrowed to a
// single edit window via common prefix/suffix.
type diff struct {
	retained map[string]textEdit
}

func computeDiff(oldIx, newIx *doc.Index) *diff {
	d := &diff{retained: make(map[string]textEdit)}
	for _, oldSeg := range oldIx.Segments() {
		newSeg, ok := newIx.Segment(oldSeg.NodeID)
		if !ok {
			continue
		}
		prefix := commonPrefix(oldSeg.Text, newSeg.Text)
		suffix := commonSuffix(oldSeg.Text, newSeg.Text, prefix)
		d.retained[oldSeg.NodeID] = textEdit{
			oldLen: len(oldSeg.Text),
			newLen: len(newSeg.Text),
			prefix: prefix,
			suffix: suffix,
		}
	}
	return d
}

// translate maps a local offset within a retained block onto the new version.
// Offsets at or before the edit window keep their position, offsets at or
// after it shift by the window's size delta, and offsets inside the window
// cannot be translated.
func (d *diff) translate(nodeID string, offset int) (int, bool) {
	edit, ok := d.retained[nodeID]
	if !ok {
		return 0, false
	}
	if edit.clean() {
		if offset < 0 || offset > edit.oldLen {
			return 0, false
		}
		return offset, true
	}
	editEnd := edit.oldLen - edit.suffix
	switch {
	case offset <= edit.prefix:
		return offset, true
	case offset >= editEnd:
		return offset + (edit.newLen - edit.oldLen), true
	default:
		return 0, false
	}
}

func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// commonSuffix never overlaps the prefix, so a pure insertion or deletion
// yields one well-defined edit window.
func commonSuffix(a, b string, prefix int) int {
	n := min(len(a), len(b)) - prefix
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
