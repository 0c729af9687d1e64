// server/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ViniZap4/lumi-drive/config"
	"github.com/ViniZap4/lumi-drive/repository"
	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/ViniZap4/lumi-drive/taxonomy"

	_ "github.com/ViniZap4/lumi-drive/storage/gdrive"
	_ "github.com/ViniZap4/lumi-drive/storage/memory"
	_ "github.com/ViniZap4/lumi-drive/storage/postgres"
)

// Repository opens the configured backend and builds the shared repository.
// The returned close func releases the backend.
func Repository(ctx context.Context, cfg config.Config, log zerolog.Logger) (*repository.Repository, func(), error) {
	backend, err := storage.Open(ctx, cfg.Storage, storage.Options{
		RootID:      cfg.RootID,
		Credentials: cfg.Credentials,
		Logger:      log.With().Str("component", "storage").Logger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	closeFn := func() {
		if c, ok := backend.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("storage close failed")
			}
		}
	}

	repo := repository.New(backend, log.With().Str("component", "repository").Logger(),
		repository.WithTTL(cfg.CacheTTL),
		repository.WithConcurrency(cfg.Concurrency),
	)

	if cfg.InitFolders {
		if err := repo.Folders().EnsureStandard(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("create standard folders: %w", err)
		}
		log.Info().Msg("standard folders ready")
	}
	return repo, closeFn, nil
}

// Taxonomy loads the configured taxonomy file or the embedded default.
func Taxonomy(cfg config.Config) (*taxonomy.Taxonomy, error) {
	return taxonomy.Load(cfg.TaxonomyFile)
}
