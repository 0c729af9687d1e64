// server/repository/export.go
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/markdown"
	"github.com/ViniZap4/lumi-drive/storage"
)

const (
	exportPrefix    = "export-"
	exportNameMax   = 30
	pinnedMark      = "📌 "
	projectMark     = " 📁 "
	exportSeparator = "---"
)

// Export writes items into one markdown document in the export folder and
// returns its filename. The document is never read back.
func (r *Repository) Export(ctx context.Context, items []domain.Item, name string) (string, error) {
	folderID, err := r.folders.GetOrCreate(ctx, domain.FolderExport)
	if err != nil {
		return "", err
	}

	now := r.now()
	filename := exportPrefix + now.Format("20060102-1504") + "-" + markdown.SafeName(name, exportNameMax) + ".md"
	body := RenderExport(items, name, now.Format("2006-01-02 15:04"))

	if _, err := r.backend.Create(ctx, folderID, filename, storage.MarkdownMimeType, []byte(body)); err != nil {
		return "", wrapBackend("export", filename, err)
	}

	r.log.Info().Str("filename", filename).Int("items", len(items)).Msg("items exported")
	return filename, nil
}

// RenderExport formats items as a single markdown document.
func RenderExport(items []domain.Item, name, timestamp string) string {
	lines := []string{
		"# Export: " + name,
		"Date: " + timestamp,
		fmt.Sprintf("Total: %d items", len(items)),
		"",
		exportSeparator,
		"",
	}

	for _, it := range items {
		heading := "## "
		if it.Pinned {
			heading += pinnedMark
		}
		heading += it.Title
		if p := it.ProjectName(); p != "" {
			heading += projectMark + p
		}
		lines = append(lines, heading, "")
		if it.Content != "" {
			lines = append(lines, it.Content, "")
		}
		lines = append(lines, exportSeparator, "")
	}

	return strings.Join(lines, "\n")
}
