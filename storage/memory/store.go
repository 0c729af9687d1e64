// Package memory is an in-process storage backend. It behaves like the
// hosted drive closely enough for tests and local development.
package memory

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/google/uuid"
)

func init() {
	storage.Register(func(_ context.Context, dsn *url.URL, opts storage.Options) (storage.Backend, error) {
		root := strings.TrimSpace(dsn.Host)
		if root == "" {
			root = opts.RootID
		}
		return New(root), nil
	}, "memory", "mem", "inmem")
}

type node struct {
	id       string
	parent   string
	name     string
	mimeType string
	data     []byte
	modified time.Time
	seq      uint64
}

type Store struct {
	mu    sync.RWMutex
	root  string
	nodes map[string]*node
	seq   uint64
	now   func() time.Time
	calls map[string]int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store whose root container is root ("root" if empty).
func New(root string, opts ...Option) *Store {
	if root == "" {
		root = "root"
	}
	s := &Store{
		root:  root,
		nodes: make(map[string]*node),
		now:   time.Now,
		calls: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nodes[root] = &node{id: root, name: root, mimeType: storage.FolderMimeType, modified: s.now()}
	return s
}

func (s *Store) Root() string {
	return s.root
}

// Calls reports how many times op was invoked, for assertions on caching.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *Store) List(ctx context.Context, q storage.Query) (*storage.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["list"]++

	if _, ok := s.nodes[q.ParentID]; !ok {
		return nil, fmt.Errorf("%w: container %s", storage.ErrNotFound, q.ParentID)
	}

	var children []*node
	for _, n := range s.nodes {
		if n.parent != q.ParentID || n.id == s.root {
			continue
		}
		isFolder := n.mimeType == storage.FolderMimeType
		if q.FoldersOnly && !isFolder || q.FilesOnly && isFolder {
			continue
		}
		if q.Name != "" && n.name != q.Name {
			continue
		}
		children = append(children, n)
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].seq > children[j].seq
	})

	offset := 0
	if q.PageToken != "" {
		var err error
		if offset, err = strconv.Atoi(q.PageToken); err != nil || offset < 0 {
			return nil, fmt.Errorf("%w: page token %q", storage.ErrInvalidInput, q.PageToken)
		}
	}
	size := q.PageSize
	if size <= 0 {
		size = storage.DefaultPageSize
	}

	page := &storage.Page{}
	for i := offset; i < len(children) && i < offset+size; i++ {
		n := children[i]
		page.Entries = append(page.Entries, storage.Entry{
			ID:           n.id,
			Name:         n.name,
			MimeType:     n.mimeType,
			ModifiedTime: n.modified,
		})
	}
	if offset+size < len(children) {
		page.NextPageToken = strconv.Itoa(offset + size)
	}
	return page, nil
}

func (s *Store) Content(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["content"]++

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

func (s *Store) Create(ctx context.Context, parentID, name, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["create"]++

	if _, ok := s.nodes[parentID]; !ok {
		return "", fmt.Errorf("%w: container %s", storage.ErrNotFound, parentID)
	}
	s.seq++
	n := &node{
		id:       uuid.NewString(),
		parent:   parentID,
		name:     name,
		mimeType: mimeType,
		data:     append([]byte(nil), data...),
		modified: s.now(),
		seq:      s.seq,
	}
	s.nodes[n.id] = n
	return n.id, nil
}

func (s *Store) Update(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["update"]++

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	s.seq++
	n.data = append([]byte(nil), data...)
	n.modified = s.now()
	n.seq = s.seq
	return nil
}

func (s *Store) Reparent(ctx context.Context, id, addParent, removeParent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["reparent"]++

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if _, ok := s.nodes[addParent]; !ok {
		return fmt.Errorf("%w: container %s", storage.ErrNotFound, addParent)
	}
	if removeParent != "" && n.parent != removeParent {
		return fmt.Errorf("%w: %s is not in %s", storage.ErrNotFound, id, removeParent)
	}
	n.parent = addParent
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["delete"]++

	if id == s.root {
		return fmt.Errorf("%w: cannot delete root", storage.ErrInvalidInput)
	}
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	s.deleteTree(id)
	return nil
}

func (s *Store) deleteTree(id string) {
	for childID, n := range s.nodes {
		if n.parent == id {
			s.deleteTree(childID)
		}
	}
	delete(s.nodes, id)
}
