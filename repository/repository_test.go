package repository_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/repository"
	"github.com/ViniZap4/lumi-drive/storage"
	"github.com/ViniZap4/lumi-drive/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	repo  *repository.Repository
	clock *clock
}

func newFixture(t *testing.T, opts ...repository.Option) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)}
	store := memory.New("shared", memory.WithClock(clk.Now))
	repo := repository.New(store, zerolog.Nop(), append([]repository.Option{repository.WithClock(clk.Now)}, opts...)...)
	require.NoError(t, repo.Folders().EnsureStandard(context.Background()))
	return &fixture{ctx: context.Background(), store: store, repo: repo, clock: clk}
}

func (f *fixture) save(t *testing.T, req repository.SaveRequest) string {
	t.Helper()
	res, err := f.repo.Save(f.ctx, req)
	require.NoError(t, err)
	return res.ID
}

func titles(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestSaveNewItemThenList(t *testing.T) {
	f := newFixture(t)

	res, err := f.repo.Save(f.ctx, repository.SaveRequest{Title: "Buy milk", Folder: domain.FolderInbox})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-buy-milk\.md$`), res.Filename)
	assert.Equal(t, "2026-10-15-buy-milk.md", res.Filename)

	items, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, res.ID, it.ID)
	assert.Equal(t, "Buy milk", it.Title)
	assert.Equal(t, "", it.Content)
	assert.False(t, it.Pinned)
	assert.Nil(t, it.Project)
	assert.Equal(t, "2026-10-15", it.Created.String())
	assert.Equal(t, res.Filename, it.Filename)
	assert.Equal(t, domain.FolderInbox, it.Folder)
}

func TestTogglePinTwice(t *testing.T) {
	f := newFixture(t)
	milk := f.save(t, repository.SaveRequest{Title: "Buy milk", Folder: domain.FolderInbox})
	f.save(t, repository.SaveRequest{Title: "Newer", Folder: domain.FolderInbox})

	items, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Equal(t, []string{"Newer", "Buy milk"}, titles(items))

	pinned, err := f.repo.TogglePin(f.ctx, milk, domain.FolderInbox)
	require.NoError(t, err)
	assert.True(t, pinned)

	items, err = f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk", "Newer"}, titles(items))
	assert.True(t, items[0].Pinned)

	pinned, err = f.repo.TogglePin(f.ctx, milk, domain.FolderInbox)
	require.NoError(t, err)
	assert.False(t, pinned)

	items, err = f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	// the second toggle rewrote "Buy milk", which makes it the newest file
	assert.Equal(t, []string{"Buy milk", "Newer"}, titles(items))
	assert.False(t, items[0].Pinned)
	assert.False(t, items[1].Pinned)
}

func TestMoveThenDeleteFromTrash(t *testing.T) {
	f := newFixture(t)
	id := f.save(t, repository.SaveRequest{Title: "Buy milk", Folder: domain.FolderInbox})

	require.NoError(t, f.repo.Move(f.ctx, id, domain.FolderInbox, domain.FolderTrash))

	inbox, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Empty(t, inbox)
	trash, err := f.repo.List(f.ctx, domain.FolderTrash)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, id, trash[0].ID)

	require.NoError(t, f.repo.Delete(f.ctx, id, domain.FolderTrash))

	_, err = f.repo.Item(f.ctx, id)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	trash, err = f.repo.List(f.ctx, domain.FolderTrash)
	require.NoError(t, err)
	assert.Empty(t, trash)
}

func TestDeleteOutsideTrashMovesToTrash(t *testing.T) {
	f := newFixture(t)
	id := f.save(t, repository.SaveRequest{Title: "Draft", Folder: domain.FolderNotes})

	require.NoError(t, f.repo.Delete(f.ctx, id, domain.FolderNotes))
	assert.Equal(t, 0, f.store.Calls("delete"))

	trash, err := f.repo.List(f.ctx, domain.FolderTrash)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, "Draft", trash[0].Title)
}

func TestPinnedFirstIsStable(t *testing.T) {
	items := []domain.Item{
		{Title: "A"},
		{Title: "B", Pinned: true},
		{Title: "C"},
		{Title: "D", Pinned: true},
	}
	repository.PinnedFirst(items)
	assert.Equal(t, []string{"B", "D", "A", "C"}, titles(items))
}

func TestListKeepsModifiedOrderInsideGroups(t *testing.T) {
	f := newFixture(t)
	for _, it := range []struct {
		title  string
		pinned bool
	}{{"A", false}, {"B", true}, {"C", false}, {"D", true}} {
		f.save(t, repository.SaveRequest{Title: it.title, Folder: domain.FolderNotes, Pinned: it.pinned})
	}

	items, err := f.repo.List(f.ctx, domain.FolderNotes)
	require.NoError(t, err)
	// newest first is D C B A; pinned ones move ahead
	assert.Equal(t, []string{"D", "B", "C", "A"}, titles(items))
}

func TestListIsCachedUntilTTL(t *testing.T) {
	f := newFixture(t)
	f.save(t, repository.SaveRequest{Title: "One", Folder: domain.FolderInbox})

	_, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	contentCalls := f.store.Calls("content")

	_, err = f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Equal(t, contentCalls, f.store.Calls("content"))

	f.clock.Advance(31 * time.Second)
	_, err = f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Equal(t, contentCalls+1, f.store.Calls("content"))
}

func TestWritesInvalidateListings(t *testing.T) {
	f := newFixture(t)
	f.save(t, repository.SaveRequest{Title: "One", Folder: domain.FolderInbox})

	counts, err := f.repo.Counts(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.FolderInbox])
	items, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	require.Len(t, items, 1)

	f.save(t, repository.SaveRequest{Title: "Two", Folder: domain.FolderInbox})

	counts, err = f.repo.Counts(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.FolderInbox])
	items, err = f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCounts(t *testing.T) {
	f := newFixture(t)
	f.save(t, repository.SaveRequest{Title: "a", Folder: domain.FolderInbox})
	f.save(t, repository.SaveRequest{Title: "b", Folder: domain.FolderInbox})
	f.save(t, repository.SaveRequest{Title: "c", Folder: domain.FolderTasks})

	counts, err := f.repo.Counts(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		domain.FolderInbox:   2,
		domain.FolderNotes:   0,
		domain.FolderTasks:   1,
		domain.FolderArchive: 0,
		domain.FolderTrash:   0,
	}, counts)

	n, err := f.repo.Count(f.ctx, domain.FolderTasks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, f.store.Calls("content"))
}

func TestUnknownFolderFailsBeforeWrite(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.Save(f.ctx, repository.SaveRequest{Title: "x", Folder: "nowhere"})
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 0, f.store.Calls("create"))

	err = f.repo.Move(f.ctx, "id", domain.FolderInbox, "nowhere")
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 0, f.store.Calls("reparent"))

	_, err = f.repo.List(f.ctx, "nowhere")
	assert.True(t, domain.IsNotFound(err))
}

func TestSaveRejectsEmptyTitleOnCreate(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.Save(f.ctx, repository.SaveRequest{Title: " \n ", Folder: domain.FolderInbox})
	assert.True(t, domain.IsValidation(err))
}

func TestUpdateKeepsCreatedDate(t *testing.T) {
	f := newFixture(t)
	id := f.save(t, repository.SaveRequest{Title: "Plan", Folder: domain.FolderNotes, Project: domain.StringPtr("TIS - EBRD Projesi")})

	f.clock.Advance(72 * time.Hour)
	res, err := f.repo.Save(f.ctx, repository.SaveRequest{ID: id, Title: "Plan v2", Content: "details", Folder: domain.FolderNotes})
	require.NoError(t, err)
	assert.Equal(t, id, res.ID)
	assert.Equal(t, "2026-10-15", res.Created.String())

	it, err := f.repo.Item(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Plan v2", it.Title)
	assert.Equal(t, "details", it.Content)
	assert.Equal(t, "2026-10-15", it.Created.String())
	// project was not passed, so the update clears it
	assert.Nil(t, it.Project)

	explicit, err := domain.ParseDate("2020-01-01")
	require.NoError(t, err)
	_, err = f.repo.Save(f.ctx, repository.SaveRequest{ID: id, Title: "Plan v3", Folder: domain.FolderNotes, Created: &explicit})
	require.NoError(t, err)
	it, err = f.repo.Item(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", it.Created.String())

	items, err := f.repo.List(f.ctx, domain.FolderNotes)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2026-10-15-plan.md", items[0].Filename)
}

func TestUpdateProject(t *testing.T) {
	f := newFixture(t)
	id := f.save(t, repository.SaveRequest{Title: "Call", Content: "body", Folder: domain.FolderTasks, Pinned: true})

	project, err := f.repo.UpdateProject(f.ctx, id, domain.FolderTasks, domain.StringPtr("MIM - Kore KEXIM Tedarik Zinciri Finansmanı Projesi"))
	require.NoError(t, err)
	assert.Equal(t, "MIM - Kore KEXIM Tedarik Zinciri Finansmanı Projesi", *project)

	it, err := f.repo.Item(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, project, it.Project)
	assert.True(t, it.Pinned)
	assert.Equal(t, "body", it.Content)

	project, err = f.repo.UpdateProject(f.ctx, id, domain.FolderTasks, domain.StringPtr("  "))
	require.NoError(t, err)
	assert.Nil(t, project)
}

func TestMalformedFilesStillList(t *testing.T) {
	f := newFixture(t)
	inbox, err := f.repo.Folders().Resolve(f.ctx, domain.FolderInbox)
	require.NoError(t, err)

	_, err = f.store.Create(f.ctx, inbox, "2026-01-01-broken.md", storage.MarkdownMimeType, []byte("---\nproject: \"X\"\nno closing marker"))
	require.NoError(t, err)
	_, err = f.store.Create(f.ctx, inbox, "2026-01-02-empty.md", storage.MarkdownMimeType, nil)
	require.NoError(t, err)
	_, err = f.store.Create(f.ctx, inbox, "sub", storage.FolderMimeType, nil)
	require.NoError(t, err)

	items, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2026-01-02-empty", items[0].Title)
	assert.Equal(t, "---", items[1].Title)
	assert.Nil(t, items[1].Project)
}

func TestFilter(t *testing.T) {
	f := newFixture(t)
	f.save(t, repository.SaveRequest{Title: "none", Folder: domain.FolderNotes})
	f.save(t, repository.SaveRequest{Title: "envex1", Folder: domain.FolderNotes, Project: domain.StringPtr("ENVEX - Kurumsal Kimlik")})
	f.save(t, repository.SaveRequest{Title: "envex2", Folder: domain.FolderNotes, Project: domain.StringPtr("ENVEX - ABD ENVEX Satış Ağı")})
	f.save(t, repository.SaveRequest{Title: "corex", Folder: domain.FolderNotes, Project: domain.StringPtr("COREX - ENVEX - COREX Ortaklık Projesi")})

	testCases := []struct {
		filter   string
		expected []string
	}{
		{"All", []string{"corex", "envex2", "envex1", "none"}},
		{"", []string{"corex", "envex2", "envex1", "none"}},
		{"No Project", []string{"none"}},
		{"ENVEX (All)", []string{"envex2", "envex1"}},
		{"COREX (All)", []string{"corex"}},
		{"ENVEX - Kurumsal Kimlik", []string{"envex1"}},
		{"ENVEX", []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.filter, func(t *testing.T) {
			items, err := f.repo.Filter(f.ctx, domain.FolderNotes, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, titles(items))
		})
	}
}

type slowStore struct {
	*memory.Store
	inFlight int32
	peak     int32
	failID   string
}

func (s *slowStore) Content(ctx context.Context, id string) ([]byte, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if id == s.failID {
		return nil, errors.New("quota exceeded")
	}
	return s.Store.Content(ctx, id)
}

func TestListBoundsParallelFetches(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{Store: memory.New("shared")}
	repo := repository.New(store, zerolog.Nop(), repository.WithConcurrency(3))
	require.NoError(t, repo.Folders().EnsureStandard(ctx))

	for i := 0; i < 12; i++ {
		_, err := repo.Save(ctx, repository.SaveRequest{Title: fmt.Sprintf("item %d", i), Folder: domain.FolderInbox})
		require.NoError(t, err)
	}

	items, err := repo.List(ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Len(t, items, 12)
	assert.Equal(t, "item 11", items[0].Title)
	assert.LessOrEqual(t, atomic.LoadInt32(&store.peak), int32(3))
}

func TestBackendFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{Store: memory.New("shared")}
	repo := repository.New(store, zerolog.Nop())
	require.NoError(t, repo.Folders().EnsureStandard(ctx))

	res, err := repo.Save(ctx, repository.SaveRequest{Title: "x", Folder: domain.FolderInbox})
	require.NoError(t, err)
	store.failID = res.ID

	_, err = repo.List(ctx, domain.FolderInbox)
	require.Error(t, err)
	assert.True(t, domain.IsBackend(err))

	_, err = repo.TogglePin(ctx, res.ID, domain.FolderInbox)
	assert.True(t, domain.IsBackend(err))
}

func TestClearCacheReloadsFolders(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.List(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	lists := f.store.Calls("list")

	_, err = f.repo.List(f.ctx, domain.FolderNotes)
	require.NoError(t, err)
	// folder ids are reused, only the notes listing hits the backend
	assert.Equal(t, lists+1, f.store.Calls("list"))

	f.repo.ClearCache()
	_, err = f.repo.List(f.ctx, domain.FolderNotes)
	require.NoError(t, err)
	assert.Equal(t, lists+3, f.store.Calls("list"))
}

// gatedStore blocks Content calls while gate is set.
type gatedStore struct {
	*memory.Store
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func (s *gatedStore) Content(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.gate, s.entered = nil, nil
	s.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	return s.Store.Content(ctx, id)
}

func TestListAfterSaveSeesTheWrite(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: memory.New("shared")}
	repo := repository.New(store, zerolog.Nop())
	require.NoError(t, repo.Folders().EnsureStandard(ctx))

	_, err := repo.Save(ctx, repository.SaveRequest{Title: "One", Folder: domain.FolderInbox})
	require.NoError(t, err)

	gate, entered := make(chan struct{}), make(chan struct{})
	store.mu.Lock()
	store.gate, store.entered = gate, entered
	store.mu.Unlock()

	stale := make(chan []domain.Item)
	go func() {
		items, _ := repo.List(ctx, domain.FolderInbox)
		stale <- items
	}()
	<-entered

	_, err = repo.Save(ctx, repository.SaveRequest{Title: "Two", Folder: domain.FolderInbox})
	require.NoError(t, err)

	fresh := make(chan []domain.Item)
	go func() {
		items, _ := repo.List(ctx, domain.FolderInbox)
		fresh <- items
	}()

	var after []domain.Item
	select {
	case after = <-fresh:
	case <-time.After(2 * time.Second):
		close(gate)
		t.Fatal("list issued after save waited on the earlier load")
	}
	close(gate)
	assert.Len(t, <-stale, 1)
	assert.ElementsMatch(t, []string{"One", "Two"}, titles(after))

	cached, err := repo.List(ctx, domain.FolderInbox)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestTogglePinKeepsHandEditedCreated(t *testing.T) {
	f := newFixture(t)
	inbox, err := f.repo.Folders().Resolve(f.ctx, domain.FolderInbox)
	require.NoError(t, err)
	text := "---\nproject: null\ncreated: 15.10.2025\npinned: false\n---\n\n# Edited by hand\n\nbody"
	id, err := f.store.Create(f.ctx, inbox, "edited.md", storage.MarkdownMimeType, []byte(text))
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	pinned, err := f.repo.TogglePin(f.ctx, id, domain.FolderInbox)
	require.NoError(t, err)
	assert.True(t, pinned)

	data, err := f.store.Content(f.ctx, id)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\ncreated: 15.10.2025\n")
	assert.Contains(t, string(data), "\npinned: true\n")

	_, err = f.repo.UpdateProject(f.ctx, id, domain.FolderInbox, domain.StringPtr("MIM - X"))
	require.NoError(t, err)
	data, err = f.store.Content(f.ctx, id)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\ncreated: 15.10.2025\n")
}
