// Package storage describes the remote file store that holds every item.
//
// A backend exposes a tree of containers (folders) and documents under one
// root. Items are documents; the standard folders are containers directly
// under the root. Adapters register themselves by DSN scheme, see Open.
package storage

import (
	"context"
	"errors"
	"time"
)

const (
	FolderMimeType   = "application/vnd.google-apps.folder"
	MarkdownMimeType = "text/markdown"

	// DefaultPageSize is the listing page size used by the repository.
	DefaultPageSize = 100
)

var (
	ErrNotFound       = errors.New("storage: not found")
	ErrInvalidInput   = errors.New("storage: invalid input")
	ErrUnknownScheme  = errors.New("storage: unknown scheme")
	ErrNotImplemented = errors.New("storage: not implemented")
)

// Entry is one child of a container.
type Entry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

func (e Entry) IsFolder() bool {
	return e.MimeType == FolderMimeType
}

// Query selects children of ParentID. Name, FoldersOnly and FilesOnly narrow
// the selection; PageToken continues a previous listing.
type Query struct {
	ParentID    string
	Name        string
	FoldersOnly bool
	FilesOnly   bool
	PageToken   string
	PageSize    int
}

// Page is one page of a listing, newest modification first.
// An empty NextPageToken ends the listing.
type Page struct {
	Entries       []Entry
	NextPageToken string
}

// Backend is the remote file store.
type Backend interface {
	// Root is the id of the container holding the standard folders.
	Root() string
	List(ctx context.Context, q Query) (*Page, error)
	Content(ctx context.Context, id string) ([]byte, error)
	Create(ctx context.Context, parentID, name, mimeType string, data []byte) (string, error)
	Update(ctx context.Context, id string, data []byte) error
	// Reparent adds addParent and removes removeParent in one call.
	Reparent(ctx context.Context, id, addParent, removeParent string) error
	Delete(ctx context.Context, id string) error
}

// ListAll follows continuation tokens until the listing is exhausted.
func ListAll(ctx context.Context, b Backend, q Query) ([]Entry, error) {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	var all []Entry
	for {
		page, err := b.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)
		if page.NextPageToken == "" {
			return all, nil
		}
		q.PageToken = page.NextPageToken
	}
}
