package export

import (
	"fmt"
	"html"
	"strings"

	"quill/api/internal/doc"
)

// RenderHTML converts a document tree to an HTML fragment.
func RenderHTML(d *doc.Document) string {
	if d == nil || d.Root == nil {
		return ""
	}
	return renderNode(d.Root)
}

func renderNode(n *doc.Node) string {
	switch n.Type {
	case doc.KindDoc:
		return renderChildren(n)
	case doc.KindParagraph:
		return fmt.Sprintf("<p>%s</p>\n", renderChildren(n))
	case doc.KindHeading:
		level := headingLevel(n)
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderChildren(n), level)
	case doc.KindBulletList:
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderChildren(n))
	case doc.KindOrderedList:
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderChildren(n))
	case doc.KindListItem:
		return fmt.Sprintf("<li>%s</li>\n", renderChildren(n))
	case doc.KindBlockquote:
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderChildren(n))
	case doc.KindCodeBlock:
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", html.EscapeString(plainChildren(n)))
	case doc.KindText:
		return renderTextWithMarks(n.Text, n.Marks)
	case doc.KindHardBreak:
		return "<br>"
	case doc.KindHorizontalRule:
		return "<hr>\n"
	default:
		return renderChildren(n)
	}
}

func renderChildren(n *doc.Node) string {
	var b strings.Builder
	for _, child := range n.Content {
		b.WriteString(renderNode(child))
	}
	return b.String()
}

func plainChildren(n *doc.Node) string {
	var b strings.Builder
	for _, child := range n.Content {
		if child.Type == doc.KindText {
			b.WriteString(child.Text)
		} else if child.Type == doc.KindHardBreak {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func headingLevel(n *doc.Node) int {
	if n.Attrs != nil {
		if lvl, ok := n.Attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
			return int(lvl)
		}
	}
	return 1
}

// renderTextWithMarks applies formatting marks from outside in.
func renderTextWithMarks(text string, marks []doc.Mark) string {
	if text == "" {
		return ""
	}

	htmlText := html.EscapeString(text)

	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			htmlText = fmt.Sprintf("<strong>%s</strong>", htmlText)
		case "italic":
			htmlText = fmt.Sprintf("<em>%s</em>", htmlText)
		case "code":
			htmlText = fmt.Sprintf("<code>%s</code>", htmlText)
		case "link":
			href := ""
			if marks[i].Attrs != nil {
				if hrefVal, ok := marks[i].Attrs["href"].(string); ok {
					href = hrefVal
				}
			}
			htmlText = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), htmlText)
		case "strike":
			htmlText = fmt.Sprintf("<s>%s</s>", htmlText)
		case "underline":
			htmlText = fmt.Sprintf("<u>%s</u>", htmlText)
		}
	}

	return htmlText
}
