// Package postgres is a self-hosted storage backend keeping the folder tree
// in a single PostgreSQL table.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const operationTimeout = 5 * time.Second

func init() {
	storage.Register(func(ctx context.Context, dsn *url.URL, opts storage.Options) (storage.Backend, error) {
		return New(ctx, dsn.String(), opts.RootID, opts.Logger)
	}, "postgres", "postgresql")
}

type Store struct {
	pool *pgxpool.Pool
	root string
	log  zerolog.Logger
}

// New migrates the schema, connects and makes sure the root container exists.
func New(ctx context.Context, dsn, root string, log zerolog.Logger) (*Store, error) {
	if root == "" {
		root = "root"
	}
	if err := Migrate(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{pool: pool, root: root, log: log}
	if err := s.ensureRoot(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Str("root", root).Msg("postgres storage ready")
	return s, nil
}

// Migrate applies the embedded migrations.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// migrateURL points golang-migrate at its pgx v5 driver.
func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) ensureRoot(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nodes (id, parent_id, name, mime_type)
		VALUES ($1, NULL, $1, $2)
		ON CONFLICT (id) DO NOTHING`, s.root, storage.FolderMimeType)
	if err != nil {
		return mapErr("init root", s.root, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, q storage.Query) (*storage.Page, error) {
	size := q.PageSize
	if size <= 0 {
		size = storage.DefaultPageSize
	}
	offset := 0
	if q.PageToken != "" {
		var err error
		if offset, err = strconv.Atoi(q.PageToken); err != nil || offset < 0 {
			return nil, fmt.Errorf("%w: page token %q", storage.ErrInvalidInput, q.PageToken)
		}
	}

	query, args := listQuery(q, size, offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list", q.ParentID, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Entry, error) {
		var e storage.Entry
		err := row.Scan(&e.ID, &e.Name, &e.MimeType, &e.ModifiedTime)
		return e, err
	})
	if err != nil {
		return nil, mapErr("list", q.ParentID, err)
	}

	if len(entries) == 0 && offset == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM nodes WHERE id = $1)`, q.ParentID).Scan(&exists); err != nil {
			return nil, mapErr("list", q.ParentID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: container %s", storage.ErrNotFound, q.ParentID)
		}
	}

	page := &storage.Page{}
	if len(entries) > size {
		entries = entries[:size]
		page.NextPageToken = strconv.Itoa(offset + size)
	}
	page.Entries = entries
	return page, nil
}

// listQuery fetches one row past the page to know whether another page exists.
func listQuery(q storage.Query, size, offset int) (string, []any) {
	var b strings.Builder
	args := []any{q.ParentID}
	b.WriteString(`SELECT id, name, mime_type, modified_at FROM nodes WHERE parent_id = $1`)
	if q.Name != "" {
		args = append(args, q.Name)
		fmt.Fprintf(&b, " AND name = $%d", len(args))
	}
	if q.FoldersOnly {
		args = append(args, storage.FolderMimeType)
		fmt.Fprintf(&b, " AND mime_type = $%d", len(args))
	}
	if q.FilesOnly {
		args = append(args, storage.FolderMimeType)
		fmt.Fprintf(&b, " AND mime_type <> $%d", len(args))
	}
	args = append(args, size+1, offset)
	fmt.Fprintf(&b, " ORDER BY modified_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}

func (s *Store) Content(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT content FROM nodes WHERE id = $1`, id).Scan(&data)
	if err != nil {
		return nil, mapErr("get", id, err)
	}
	return data, nil
}

func (s *Store) Create(ctx context.Context, parentID, name, mimeType string, data []byte) (string, error) {
	if data == nil {
		data = []byte{}
	}
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nodes (id, parent_id, name, mime_type, content)
		VALUES ($1, $2, $3, $4, $5)`, id, parentID, name, mimeType, data)
	if err != nil {
		return "", mapErr("create", name, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, id string, data []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE nodes SET content = $2, modified_at = clock_timestamp()
		WHERE id = $1`, id, data)
	if err != nil {
		return mapErr("update", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Reparent(ctx context.Context, id, addParent, removeParent string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE nodes SET parent_id = $2
		WHERE id = $1 AND ($3 = '' OR parent_id = $3)`, id, addParent, removeParent)
	if err != nil {
		return mapErr("move", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s in %s", storage.ErrNotFound, id, removeParent)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if id == s.root {
		return fmt.Errorf("%w: cannot delete root", storage.ErrInvalidInput)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func mapErr(op, target string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: postgres %s %s", storage.ErrNotFound, op, target)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: postgres %s %s: %s", storage.ErrNotFound, op, target, pgErr.Message)
		case pgerrcode.UniqueViolation, pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			return fmt.Errorf("%w: postgres %s %s: %s", storage.ErrInvalidInput, op, target, pgErr.Message)
		}
	}
	return fmt.Errorf("postgres %s %s: %w", op, target, err)
}
