// Package doc models the structured page document: an ordered tree of typed
// block and inline nodes with a stable node-identity scheme. The JSON wire
// format is the ProseMirror-style payload produced by the page editor.
package doc

import (
	"encoding/json"
	"fmt"
	"strings"

	"quill/api/internal/util"
)

const (
	KindDoc            = "doc"
	KindParagraph      = "paragraph"
	KindHeading        = "heading"
	KindBulletList     = "bulletList"
	KindOrderedList    = "orderedList"
	KindListItem       = "listItem"
	KindBlockquote     = "blockquote"
	KindCodeBlock      = "codeBlock"
	KindText           = "text"
	KindHardBreak      = "hardBreak"
	KindHorizontalRule = "horizontalRule"
)

// MaxDepth bounds the node tree. Editor payloads deeper than this are
// rejected as malformed rather than truncated.
const MaxDepth = 32

var knownKinds = map[string]struct{}{
	KindDoc:            {},
	KindParagraph:      {},
	KindHeading:        {},
	KindBulletList:     {},
	KindOrderedList:    {},
	KindListItem:       {},
	KindBlockquote:     {},
	KindCodeBlock:      {},
	KindText:           {},
	KindHardBreak:      {},
	KindHorizontalRule: {},
}

// textBlockKinds hold inline content directly. Anchor ranges always address
// text inside one of these.
var textBlockKinds = map[string]struct{}{
	KindParagraph: {},
	KindHeading:   {},
	KindCodeBlock: {},
}

type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

type Node struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Document is an immutable published or draft page body. Callers must not
// mutate a Document after handing it to the store or the anchor index.
type Document struct {
	Root *Node `json:"root"`
}

// Parse decodes and validates an editor payload. Block nodes missing an id
// are assigned one; ids present in the payload are preserved so identity
// survives round-trips through the editor.
func Parse(raw []byte) (*Document, error) {
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	d := &Document{Root: &root}
	d.EnsureNodeIDs()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Marshal encodes the document in the wire format.
func (d *Document) Marshal() ([]byte, error) {
	if d == nil || d.Root == nil {
		return nil, fmt.Errorf("marshal document: empty document")
	}
	raw, err := json.Marshal(d.Root)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return raw, nil
}

// FromPlainText wraps plain text into a document, one paragraph per line.
// Empty lines become empty paragraphs so structure is preserved.
func FromPlainText(text string) *Document {
	lines := strings.Split(text, "\n")
	content := make([]*Node, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		para := &Node{ID: util.NewID("n"), Type: KindParagraph}
		if trimmed != "" {
			para.Content = []*Node{{Type: KindText, Text: trimmed}}
		}
		content = append(content, para)
	}
	return &Document{Root: &Node{Type: KindDoc, Content: content}}
}

// EnsureNodeIDs assigns ids to block nodes that lack one. Ids are assigned
// once at node creation and preserved across edits that keep the node.
func (d *Document) EnsureNodeIDs() {
	if d == nil || d.Root == nil {
		return
	}
	ensureIDs(d.Root)
}

func ensureIDs(n *Node) {
	if n.Type != KindDoc && n.Type != KindText && n.Type != KindHardBreak && n.ID == "" {
		n.ID = util.NewID("n")
	}
	for _, child := range n.Content {
		ensureIDs(child)
	}
}

// Validate checks structural well-formedness: known kinds, doc root, text
// nodes as leaves, bounded depth, and node-id uniqueness within the version.
func (d *Document) Validate() error {
	if d == nil || d.Root == nil {
		return fmt.Errorf("invalid document: missing root")
	}
	if d.Root.Type != KindDoc {
		return fmt.Errorf("invalid document: root must be %q, got %q", KindDoc, d.Root.Type)
	}
	seen := make(map[string]struct{})
	return validateNode(d.Root, 0, seen)
}

func validateNode(n *Node, depth int, seen map[string]struct{}) error {
	if depth > MaxDepth {
		return fmt.Errorf("invalid document: tree deeper than %d", MaxDepth)
	}
	if _, ok := knownKinds[n.Type]; !ok {
		return fmt.Errorf("invalid document: unknown node kind %q", n.Type)
	}
	if n.Type == KindText {
		if len(n.Content) > 0 {
			return fmt.Errorf("invalid document: text node with children")
		}
		if n.Text == "" {
			return fmt.Errorf("invalid document: empty text node")
		}
	}
	if n.ID != "" {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("invalid document: duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for _, child := range n.Content {
		if err := validateNode(child, depth+1, seen); err != nil {
			return err
		}
	}
	return nil
}

// PlainText returns the in-order concatenation of all text runs, with block
// boundaries rendered as newlines. This is the search space for anchor
// snapshot matching and the text indexed for search.
func (d *Document) PlainText() string {
	return NewIndex(d).Text()
}

// IsTextBlock reports whether kind carries inline content directly.
func IsTextBlock(kind string) bool {
	_, ok := textBlockKinds[kind]
	return ok
}
