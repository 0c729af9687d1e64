// server/markdown/writer.go
package markdown

import (
	"strings"
)

// Encode renders doc as a header block, a heading built from the sanitized
// title and the content.
func Encode(doc Document) string {
	var buf strings.Builder

	buf.WriteString(Marker + "\n")

	buf.WriteString("project: ")
	if p := sanitizeLine(derefString(doc.Project)); p != "" {
		buf.WriteString(`"` + p + `"`)
	} else {
		buf.WriteString("null")
	}
	buf.WriteString("\n")

	buf.WriteString("created: ")
	if doc.Created != nil {
		buf.WriteString(doc.Created.String())
	} else if raw := sanitizeLine(doc.CreatedRaw); raw != "" {
		buf.WriteString(raw)
	} else {
		buf.WriteString("null")
	}
	buf.WriteString("\n")

	if doc.Pinned {
		buf.WriteString("pinned: true\n")
	} else {
		buf.WriteString("pinned: false\n")
	}

	buf.WriteString(Marker + "\n\n")
	buf.WriteString("# " + SanitizeTitle(doc.Title) + "\n\n")
	buf.WriteString(strings.TrimSpace(doc.Content))

	return buf.String()
}

// SanitizeTitle collapses line breaks to spaces and trims the result so a
// title always stays on its heading line.
func SanitizeTitle(title string) string {
	return sanitizeLine(title)
}

func sanitizeLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
