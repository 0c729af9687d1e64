package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViniZap4/lumi-drive/config"
	"github.com/ViniZap4/lumi-drive/domain"
)

func TestRepositoryOverMemory(t *testing.T) {
	cfg, err := config.FromEnv(func(k string) string {
		return map[string]string{
			"LUMI_STORAGE":      "memory://local",
			"LUMI_INIT_FOLDERS": "true",
		}[k]
	})
	require.NoError(t, err)

	repo, closeFn, err := Repository(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	counts, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, len(domain.StandardFolders))
}

func TestRepositoryUnknownScheme(t *testing.T) {
	_, _, err := Repository(context.Background(), config.Config{Storage: "ftp://x"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestTaxonomyFromFile(t *testing.T) {
	tax, err := Taxonomy(config.Config{})
	require.NoError(t, err)
	assert.NotEmpty(t, tax.Organizations())

	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- organization: Home\n  projects: [Garden]\n"), 0o600))
	tax, err = Taxonomy(config.Config{TaxonomyFile: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"Home"}, tax.Organizations())
}
