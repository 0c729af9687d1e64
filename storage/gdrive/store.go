// Package gdrive stores items on a Google Workspace shared drive.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultSharedDriveID is used when the DSN names no drive.
const DefaultSharedDriveID = "0AFbVhvJLQtOHUk9PVA"

const listFields googleapi.Field = "nextPageToken, files(id, name, mimeType, modifiedTime)"

func init() {
	storage.Register(func(ctx context.Context, dsn *url.URL, opts storage.Options) (storage.Backend, error) {
		driveID := strings.TrimSpace(dsn.Host)
		if driveID == "" {
			driveID = DefaultSharedDriveID
		}
		return New(ctx, driveID, opts.Credentials, opts.Logger)
	}, "gdrive", "drive")
}

type Store struct {
	svc     *drive.Service
	driveID string
	log     zerolog.Logger
}

// New authenticates with a service-account JSON document and returns a
// store rooted at the shared drive driveID.
func New(ctx context.Context, driveID string, credentialsJSON []byte, log zerolog.Logger) (*Store, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("%w: drive credentials not set", storage.ErrInvalidInput)
	}
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse drive credentials: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	log.Info().Str("drive_id", driveID).Msg("drive storage ready")
	return &Store{svc: svc, driveID: driveID, log: log}, nil
}

func (s *Store) Root() string {
	return s.driveID
}

func (s *Store) List(ctx context.Context, q storage.Query) (*storage.Page, error) {
	size := q.PageSize
	if size <= 0 {
		size = storage.DefaultPageSize
	}

	call := s.svc.Files.List().
		Q(buildQuery(q)).
		Fields(listFields).
		OrderBy("modifiedTime desc").
		PageSize(int64(size)).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Corpora("drive").
		DriveId(s.driveID).
		Context(ctx)
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	res, err := call.Do()
	if err != nil {
		return nil, wrap("list", q.ParentID, err)
	}

	page := &storage.Page{NextPageToken: res.NextPageToken}
	for _, f := range res.Files {
		modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
		if err != nil {
			s.log.Debug().Str("id", f.Id).Str("modified", f.ModifiedTime).Msg("unparsable modifiedTime")
		}
		page.Entries = append(page.Entries, storage.Entry{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: modified,
		})
	}
	return page, nil
}

func (s *Store) Content(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, wrap("get", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("drive get %s: %w", id, err)
	}
	return data, nil
}

func (s *Store) Create(ctx context.Context, parentID, name, mimeType string, data []byte) (string, error) {
	call := s.svc.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{parentID},
		MimeType: mimeType,
	}).SupportsAllDrives(true).Fields("id").Context(ctx)
	if mimeType != storage.FolderMimeType {
		call = call.Media(bytes.NewReader(data), googleapi.ContentType(mimeType))
	}

	f, err := call.Do()
	if err != nil {
		return "", wrap("create", name, err)
	}
	return f.Id, nil
}

func (s *Store) Update(ctx context.Context, id string, data []byte) error {
	_, err := s.svc.Files.Update(id, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(storage.MarkdownMimeType)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return wrap("update", id, err)
	}
	return nil
}

func (s *Store) Reparent(ctx context.Context, id, addParent, removeParent string) error {
	_, err := s.svc.Files.Update(id, &drive.File{}).
		AddParents(addParent).
		RemoveParents(removeParent).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return wrap("move", id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.svc.Files.Delete(id).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return wrap("delete", id, err)
	}
	return nil
}

func buildQuery(q storage.Query) string {
	parts := []string{
		fmt.Sprintf("'%s' in parents", escape(q.ParentID)),
		"trashed=false",
	}
	if q.Name != "" {
		parts = append(parts, fmt.Sprintf("name='%s'", escape(q.Name)))
	}
	if q.FoldersOnly {
		parts = append(parts, fmt.Sprintf("mimeType='%s'", storage.FolderMimeType))
	}
	if q.FilesOnly {
		parts = append(parts, fmt.Sprintf("mimeType!='%s'", storage.FolderMimeType))
	}
	return strings.Join(parts, " and ")
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func wrap(op, target string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: drive %s %s: %v", storage.ErrNotFound, op, target, err)
	}
	return fmt.Errorf("drive %s %s: %w", op, target, err)
}
