// server/markdown/slug.go
package markdown

import (
	"strings"
	"time"
	"unicode"

	"github.com/ViniZap4/lumi-drive/domain"
)

const (
	slugMaxRunes    = 50
	SummaryMaxRunes = 200
)

// Slug keeps letters, digits, spaces, hyphens and underscores (everything
// else becomes "_"), cuts to 50 characters, then lowercases and turns
// spaces into hyphens.
func Slug(title string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(truncate(safeName(title), slugMaxRunes)), " ", "-"))
}

// SafeName replaces every character outside [letters digits space - _]
// with "_" and cuts the result to max characters.
func SafeName(name string, max int) string {
	return truncate(safeName(name), max)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

// Filename builds the name of a new item file, e.g. 2026-10-15-buy-milk.md.
func Filename(now time.Time, title string) string {
	return domain.NewDate(now).String() + "-" + Slug(SanitizeTitle(title)) + ".md"
}

// Summary returns the first paragraph of content, cut on a word boundary
// when longer than max characters.
func Summary(content string, max int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	paragraphs := nonEmpty(strings.Split(content, "\n\n"))
	if len(paragraphs) == 0 {
		paragraphs = nonEmpty(strings.Split(content, "\n"))
	}
	if len(paragraphs) == 0 {
		return ""
	}

	summary := []rune(paragraphs[0])
	if len(summary) <= max {
		return string(summary)
	}

	cut := strings.LastIndex(string(summary[:max]), " ")
	head := string(summary[:max])
	if cut >= 0 {
		head = head[:cut]
	}
	return strings.TrimRight(head, ".,;:!?") + "..."
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
