// server/markdown/parser.go
package markdown

import (
	"strings"

	"github.com/ViniZap4/lumi-drive/domain"
)

// Marker opens and closes the header block.
const Marker = "---"

// Header holds the key/value fields stored above the title.
type Header struct {
	Project *string
	Created *domain.Date
	// CreatedRaw keeps a created value that is not a YYYY-MM-DD date so a
	// re-save writes it back unchanged. Empty when Created is set.
	CreatedRaw string
	Pinned     bool
}

// Document is the decoded form of an item file.
type Document struct {
	Header
	Title   string
	Content string
}

// Decode parses text into a Document. It never fails: text without a
// complete header block is treated as body with default header values,
// and unknown or malformed header lines are skipped. fallbackTitle is used
// when the body has no title line.
func Decode(text, fallbackTitle string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	header, body := splitHeader(text)
	title, content := splitBody(body, fallbackTitle)

	return Document{Header: header, Title: title, Content: content}
}

func splitHeader(text string) (Header, string) {
	var h Header
	if !strings.HasPrefix(text, Marker) {
		return h, strings.TrimSpace(text)
	}

	rest := text[len(Marker):]
	end := closingMarker(rest)
	if end < 0 {
		return h, strings.TrimSpace(text)
	}

	for _, line := range strings.Split(rest[:end], "\n") {
		h.parseLine(line)
	}

	return h, strings.TrimSpace(rest[end+1+len(Marker):])
}

// closingMarker returns the index of the newline before the first line that
// is exactly the marker, or -1.
func closingMarker(rest string) int {
	for off := 0; ; {
		i := strings.Index(rest[off:], "\n"+Marker)
		if i < 0 {
			return -1
		}
		i += off
		after := i + 1 + len(Marker)
		if after == len(rest) || rest[after] == '\n' {
			return i
		}
		off = i + 1
	}
}

func (h *Header) parseLine(line string) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	value = strings.Trim(strings.Trim(strings.TrimSpace(value), `"`), "'")

	switch key {
	case "pinned":
		h.Pinned = strings.EqualFold(value, "true")
	case "project", "proje":
		h.Project = nullable(value)
	case "created":
		h.Created, h.CreatedRaw = nil, ""
		v := nullable(value)
		if v == nil {
			return
		}
		if d, err := domain.ParseDate(*v); err == nil {
			h.Created = &d
		} else {
			h.CreatedRaw = *v
		}
	}
}

func nullable(value string) *string {
	switch strings.ToLower(value) {
	case "", "null", "none":
		return nil
	}
	return &value
}

func splitBody(body, fallbackTitle string) (string, string) {
	lines := strings.Split(body, "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return fallbackTitle, ""
	}

	title := stripHeading(lines[i])
	if title == "" {
		title = fallbackTitle
	}
	content := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))

	return title, content
}

func stripHeading(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") {
		return line
	}
	rest := strings.TrimLeft(line, "#")
	if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
		return strings.TrimSpace(rest)
	}
	// "#tag" is text, not a heading
	return line
}
