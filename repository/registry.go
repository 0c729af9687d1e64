// server/repository/registry.go
package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ViniZap4/lumi-drive/cache"
	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/rs/zerolog"
)

const foldersKey = "folders"

// Registry maps folder names to backend container ids. The root is listed
// once and the mapping kept until Clear.
type Registry struct {
	backend storage.Backend
	cache   *cache.Cache
	// createMu serializes GetOrCreate so two callers cannot create the same folder.
	createMu sync.Mutex
	log      zerolog.Logger
}

func NewRegistry(backend storage.Backend, log zerolog.Logger) *Registry {
	return &Registry{
		backend: backend,
		cache:   cache.New(),
		log:     log,
	}
}

func (r *Registry) ids(ctx context.Context) (map[string]string, error) {
	v, err := r.cache.GetOrLoad(foldersKey, 0, func() (any, error) {
		entries, err := storage.ListAll(ctx, r.backend, storage.Query{
			ParentID:    r.backend.Root(),
			FoldersOnly: true,
		})
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &domain.NotFoundError{Kind: "folder", Name: r.backend.Root()}
		}
		if err != nil {
			return nil, wrapBackend("list folders", r.backend.Root(), err)
		}
		ids := make(map[string]string, len(entries))
		for _, e := range entries {
			ids[e.Name] = e.ID
		}
		r.log.Debug().Int("folders", len(ids)).Msg("folder ids loaded")
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// Resolve returns the container id of name. It never creates folders.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return "", err
	}
	id, ok := ids[name]
	if !ok {
		return "", &domain.NotFoundError{Kind: "folder", Name: name}
	}
	return id, nil
}

// GetOrCreate resolves name, creating it under the root when missing.
// Used for auxiliary folders such as export and logs.
func (r *Registry) GetOrCreate(ctx context.Context, name string) (string, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	ids, err := r.ids(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := ids[name]; ok {
		return id, nil
	}

	id, err := r.backend.Create(ctx, r.backend.Root(), name, storage.FolderMimeType, nil)
	if err != nil {
		return "", wrapBackend("create folder", name, err)
	}

	next := make(map[string]string, len(ids)+1)
	for k, v := range ids {
		next[k] = v
	}
	next[name] = id
	r.cache.Set(foldersKey, next, 0)

	r.log.Info().Str("folder", name).Str("id", id).Msg("folder created")
	return id, nil
}

// EnsureStandard creates whichever standard folders are missing.
func (r *Registry) EnsureStandard(ctx context.Context) error {
	for _, name := range domain.StandardFolders {
		if _, err := r.GetOrCreate(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Folders lists the known folders sorted by name.
func (r *Registry) Folders(ctx context.Context) ([]domain.Folder, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	folders := make([]domain.Folder, 0, len(ids))
	for name, id := range ids {
		folders = append(folders, domain.Folder{ID: id, Name: name})
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})
	return folders, nil
}

// Clear forgets every resolved id.
func (r *Registry) Clear() {
	r.cache.Clear()
}
