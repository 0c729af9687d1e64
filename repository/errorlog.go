// server/repository/errorlog.go
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/storage"
)

// LogError appends a record to today's error log in the logs folder,
// creating the document when needed. It reports whether the record was
// written and never returns an error of its own.
func (r *Repository) LogError(ctx context.Context, errType, message string, details map[string]any) bool {
	if err := r.appendErrorLog(ctx, errType, message, details); err != nil {
		r.log.Warn().Err(err).Str("type", errType).Msg("error logging failed")
		return false
	}
	return true
}

func (r *Repository) appendErrorLog(ctx context.Context, errType, message string, details map[string]any) error {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	folderID, err := r.folders.GetOrCreate(ctx, domain.FolderLogs)
	if err != nil {
		return err
	}

	now := r.now()
	entry, err := RenderLogEntry(now, errType, message, details)
	if err != nil {
		return err
	}
	day := now.Format(domain.DateLayout)
	filename := "error-log-" + day + ".md"

	page, err := r.backend.List(ctx, storage.Query{ParentID: folderID, Name: filename, FilesOnly: true, PageSize: 1})
	if err != nil {
		return err
	}

	if len(page.Entries) > 0 {
		id := page.Entries[0].ID
		existing, err := r.backend.Content(ctx, id)
		if err != nil {
			return err
		}
		return r.backend.Update(ctx, id, append(existing, entry...))
	}

	header := "# Error Log - " + day + "\n\n"
	_, err = r.backend.Create(ctx, folderID, filename, storage.MarkdownMimeType, []byte(header+entry))
	return err
}

// RenderLogEntry formats one error record. details are rendered as
// indented JSON when present.
func RenderLogEntry(at time.Time, errType, message string, details map[string]any) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s - %s\n\n**Message:** %s\n\n", at.Format("2006-01-02 15:04:05"), errType, message)

	if len(details) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(details); err != nil {
			return "", fmt.Errorf("failed to encode details: %w", err)
		}
		b.WriteString("**Details:**\n```json\n")
		b.WriteString(strings.TrimRight(buf.String(), "\n"))
		b.WriteString("\n```\n")
	}

	b.WriteString("\n---\n\n")
	return b.String(), nil
}
