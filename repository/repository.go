// server/repository/repository.go
package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ViniZap4/lumi-drive/cache"
	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/markdown"
	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel content fetches while listing.
const DefaultConcurrency = 5

// Repository reads and writes items on the storage backend. One instance
// is built at startup and shared by every request.
type Repository struct {
	backend     storage.Backend
	folders     *Registry
	cache       *cache.Cache
	ttl         time.Duration
	concurrency int
	now         func() time.Time
	log         zerolog.Logger

	// serializes read-modify-write of the daily error log
	logMu sync.Mutex
}

type Option func(*Repository)

func WithTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithConcurrency(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock sets the clock used for cache expiry and date stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func New(backend storage.Backend, log zerolog.Logger, opts ...Option) *Repository {
	r := &Repository{
		backend:     backend,
		ttl:         cache.DefaultTTL,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = cache.New(cache.WithClock(r.now))
	r.folders = NewRegistry(backend, log)
	return r
}

func (r *Repository) Folders() *Registry {
	return r.folders
}

// List returns the items of folder, pinned items first, otherwise newest
// modification first. Results are cached for the repository TTL.
func (r *Repository) List(ctx context.Context, folder string) ([]domain.Item, error) {
	v, err := r.cache.GetOrLoad(cache.ItemsKey(folder), r.ttl, func() (any, error) {
		return r.fetchItems(ctx, folder)
	})
	if err != nil {
		return nil, err
	}
	items := v.([]domain.Item)
	return append([]domain.Item(nil), items...), nil
}

func (r *Repository) fetchItems(ctx context.Context, folder string) ([]domain.Item, error) {
	folderID, err := r.folders.Resolve(ctx, folder)
	if err != nil {
		return nil, err
	}

	entries, err := storage.ListAll(ctx, r.backend, storage.Query{ParentID: folderID, FilesOnly: true})
	if err != nil {
		return nil, wrapBackend("list", folder, err)
	}

	start := time.Now()
	items := make([]domain.Item, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			data, err := r.backend.Content(gctx, e.ID)
			if err != nil {
				return wrapBackend("get", e.ID, err)
			}
			items[i] = decodeItem(e, data, folder)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	PinnedFirst(items)
	r.log.Debug().
		Str("folder", folder).
		Int("items", len(items)).
		Dur("took", time.Since(start)).
		Msg("folder listed")
	return items, nil
}

func decodeItem(e storage.Entry, data []byte, folder string) domain.Item {
	doc := markdown.Decode(string(data), strings.TrimSuffix(e.Name, ".md"))
	return domain.Item{
		ID:       e.ID,
		Filename: e.Name,
		Title:    doc.Title,
		Content:  doc.Content,
		Summary:  markdown.Summary(doc.Content, markdown.SummaryMaxRunes),
		Project:  doc.Project,
		Created:  doc.Created,
		Modified: e.ModifiedTime,
		Pinned:   doc.Pinned,
		Folder:   folder,
	}
}

// PinnedFirst moves pinned items ahead of unpinned ones and keeps the
// relative order inside each group.
func PinnedFirst(items []domain.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Pinned && !items[j].Pinned
	})
}

// Counts returns the number of items in each standard folder.
func (r *Repository) Counts(ctx context.Context) (map[string]int, error) {
	v, err := r.cache.GetOrLoad(cache.CountsKey, r.ttl, func() (any, error) {
		counts := make(map[string]int, len(domain.StandardFolders))
		for _, folder := range domain.StandardFolders {
			n, err := r.count(ctx, folder)
			if err != nil {
				return nil, err
			}
			counts[folder] = n
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	counts := v.(map[string]int)
	out := make(map[string]int, len(counts))
	for k, n := range counts {
		out[k] = n
	}
	return out, nil
}

// Count returns the number of items in folder, served from Counts.
func (r *Repository) Count(ctx context.Context, folder string) (int, error) {
	if !domain.IsStandardFolder(folder) {
		return r.count(ctx, folder)
	}
	counts, err := r.Counts(ctx)
	if err != nil {
		return 0, err
	}
	return counts[folder], nil
}

func (r *Repository) count(ctx context.Context, folder string) (int, error) {
	folderID, err := r.folders.Resolve(ctx, folder)
	if err != nil {
		return 0, err
	}
	entries, err := storage.ListAll(ctx, r.backend, storage.Query{ParentID: folderID, FilesOnly: true})
	if err != nil {
		return 0, wrapBackend("list", folder, err)
	}
	return len(entries), nil
}

// Filter lists folder and keeps the items matching filter, see FilterItems.
func (r *Repository) Filter(ctx context.Context, folder, filter string) ([]domain.Item, error) {
	items, err := r.List(ctx, folder)
	if err != nil {
		return nil, err
	}
	return FilterItems(items, filter), nil
}

// Item reads a single item by id. Filename, Modified and Folder stay empty.
func (r *Repository) Item(ctx context.Context, id string) (domain.Item, error) {
	doc, err := r.read(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	return domain.Item{
		ID:      id,
		Title:   doc.Title,
		Content: doc.Content,
		Summary: markdown.Summary(doc.Content, markdown.SummaryMaxRunes),
		Project: doc.Project,
		Created: doc.Created,
		Pinned:  doc.Pinned,
	}, nil
}

func (r *Repository) read(ctx context.Context, id string) (markdown.Document, error) {
	data, err := r.backend.Content(ctx, id)
	if err != nil {
		return markdown.Document{}, wrapBackend("get", id, err)
	}
	return markdown.Decode(string(data), ""), nil
}

// SaveRequest describes a create (ID empty) or an in-place update.
type SaveRequest struct {
	ID      string
	Title   string
	Content string
	Folder  string
	Project *string
	Pinned  bool
	// Created overrides the created date. When nil, a new item is stamped
	// with today and an update keeps the value already stored, even one that
	// is not a valid date.
	Created *domain.Date
}

type SaveResult struct {
	ID       string       `json:"id"`
	Filename string       `json:"filename,omitempty"`
	Created  *domain.Date `json:"created"`
}

// Save encodes the item and writes it. Listing caches are dropped afterwards.
func (r *Repository) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	folderID, err := r.folders.Resolve(ctx, req.Folder)
	if err != nil {
		return SaveResult{}, err
	}

	title := markdown.SanitizeTitle(req.Title)
	if req.ID == "" && title == "" {
		return SaveResult{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	created := req.Created
	var createdRaw string
	if created == nil && req.ID != "" {
		existing, err := r.read(ctx, req.ID)
		if err != nil {
			return SaveResult{}, err
		}
		created, createdRaw = existing.Created, existing.CreatedRaw
	}
	if created == nil && createdRaw == "" {
		today := domain.NewDate(r.now())
		created = &today
	}

	data := []byte(markdown.Encode(markdown.Document{
		Header: markdown.Header{
			Project:    req.Project,
			Created:    created,
			CreatedRaw: createdRaw,
			Pinned:     req.Pinned,
		},
		Title:   title,
		Content: req.Content,
	}))

	res := SaveResult{ID: req.ID, Created: created}
	if req.ID != "" {
		if err := r.backend.Update(ctx, req.ID, data); err != nil {
			return SaveResult{}, wrapBackend("update", req.ID, err)
		}
	} else {
		res.Filename = markdown.Filename(r.now(), title)
		id, err := r.backend.Create(ctx, folderID, res.Filename, storage.MarkdownMimeType, data)
		if err != nil {
			return SaveResult{}, wrapBackend("create", res.Filename, err)
		}
		res.ID = id
	}

	r.InvalidateListings()
	r.log.Info().
		Str("id", res.ID).
		Str("folder", req.Folder).
		Bool("created", req.ID == "").
		Msg("item saved")
	return res, nil
}

// Move reparents id from one folder to another in a single backend call.
func (r *Repository) Move(ctx context.Context, id, from, to string) error {
	fromID, err := r.folders.Resolve(ctx, from)
	if err != nil {
		return err
	}
	toID, err := r.folders.Resolve(ctx, to)
	if err != nil {
		return err
	}
	if fromID == toID {
		return nil
	}

	if err := r.backend.Reparent(ctx, id, toID, fromID); err != nil {
		return wrapBackend("move", id, err)
	}

	r.InvalidateListings()
	r.log.Info().Str("id", id).Str("from", from).Str("to", to).Msg("item moved")
	return nil
}

// Delete moves id to the trash, or removes it for good when it is already
// in the trash.
func (r *Repository) Delete(ctx context.Context, id, folder string) error {
	if folder != domain.FolderTrash {
		return r.Move(ctx, id, folder, domain.FolderTrash)
	}

	if _, err := r.folders.Resolve(ctx, folder); err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, id); err != nil {
		return wrapBackend("delete", id, err)
	}

	r.InvalidateListings()
	r.log.Info().Str("id", id).Msg("item deleted")
	return nil
}

// TogglePin flips the pinned flag of id and returns the new value.
func (r *Repository) TogglePin(ctx context.Context, id, folder string) (bool, error) {
	doc, err := r.read(ctx, id)
	if err != nil {
		return false, err
	}
	doc.Pinned = !doc.Pinned
	if err := r.resave(ctx, id, folder, doc); err != nil {
		return false, err
	}
	return doc.Pinned, nil
}

// UpdateProject replaces the project tag of id and returns the stored value.
// Project tags are free text.
func (r *Repository) UpdateProject(ctx context.Context, id, folder string, project *string) (*string, error) {
	doc, err := r.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if project != nil {
		project = domain.StringPtr(strings.TrimSpace(*project))
	}
	doc.Project = project
	if err := r.resave(ctx, id, folder, doc); err != nil {
		return nil, err
	}
	return doc.Project, nil
}

func (r *Repository) resave(ctx context.Context, id, folder string, doc markdown.Document) error {
	_, err := r.Save(ctx, SaveRequest{
		ID:      id,
		Title:   doc.Title,
		Content: doc.Content,
		Folder:  folder,
		Project: doc.Project,
		Pinned:  doc.Pinned,
		Created: doc.Created,
	})
	return err
}

// InvalidateListings drops cached listings and counts.
func (r *Repository) InvalidateListings() {
	r.cache.InvalidatePrefix(cache.ItemsPrefix, cache.CountsKey)
}

// ClearCache drops every cached value including folder ids.
func (r *Repository) ClearCache() {
	r.cache.Clear()
	r.folders.Clear()
	r.log.Info().Msg("cache cleared")
}

func wrapBackend(op, target string, err error) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.NotFoundError{Kind: "item", Name: target}
	}
	var be *domain.BackendError
	if errors.As(err, &be) {
		return err
	}
	return &domain.BackendError{Op: op, Err: err}
}
