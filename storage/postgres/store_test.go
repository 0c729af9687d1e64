package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/lumi?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/lumi?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/lumi", migrateURL("postgresql://localhost/lumi"))
}

func TestListQuery(t *testing.T) {
	query, args := listQuery(storage.Query{ParentID: "p", Name: "a.md", FilesOnly: true}, 100, 200)
	assert.Equal(t, "SELECT id, name, mime_type, modified_at FROM nodes WHERE parent_id = $1 AND name = $2 AND mime_type <> $3 ORDER BY modified_at DESC, id DESC LIMIT $4 OFFSET $5", query)
	assert.Equal(t, []any{"p", "a.md", storage.FolderMimeType, 101, 200}, args)
}

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr("get", "x", pgx.ErrNoRows), storage.ErrNotFound)
	assert.ErrorIs(t, mapErr("create", "x", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}), storage.ErrNotFound)
	assert.ErrorIs(t, mapErr("create", "x", &pgconn.PgError{Code: pgerrcode.UniqueViolation}), storage.ErrInvalidInput)

	other := errors.New("connection reset")
	assert.ErrorIs(t, mapErr("list", "x", other), other)
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("LUMI_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("LUMI_TEST_POSTGRES not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, "it-root", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	folder, err := s.Create(ctx, s.Root(), "inbox", storage.FolderMimeType, nil)
	require.NoError(t, err)
	defer s.Delete(ctx, folder)

	trash, err := s.Create(ctx, s.Root(), "cop_kutusu", storage.FolderMimeType, nil)
	require.NoError(t, err)
	defer s.Delete(ctx, trash)

	id, err := s.Create(ctx, folder, "2026-10-15-a.md", storage.MarkdownMimeType, []byte("# a"))
	require.NoError(t, err)

	page, err := s.List(ctx, storage.Query{ParentID: folder, FilesOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, id, page.Entries[0].ID)

	require.NoError(t, s.Update(ctx, id, []byte("# b")))
	data, err := s.Content(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "# b", string(data))

	require.NoError(t, s.Reparent(ctx, id, trash, folder))
	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Content(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.List(ctx, storage.Query{ParentID: "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
