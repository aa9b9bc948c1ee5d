package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/connectivity"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/queue"
	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/internal/repository"
	"github.com/nhle/todosync/internal/store"
	"github.com/nhle/todosync/internal/testutil"
)

type harness struct {
	store   *store.SQLiteStore
	remote  *fakeRemote
	monitor *connectivity.Monitor
	queue   *queue.Manager
	todos   *repository.TodoRepository
	tags    *repository.TagRepository
	stats   *repository.DailyStatRepository
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	log := zerolog.Nop()
	s := testutil.NewTestStore(t)
	r := newFakeRemote()
	mon := connectivity.NewMonitor(online)
	q := queue.NewManager(s, repository.NewReplayer(s, r, r, log), log)
	require.NoError(t, q.Load(context.Background()))

	return &harness{
		store:   s,
		remote:  r,
		monitor: mon,
		queue:   q,
		todos:   repository.NewTodoRepository(s, r, mon, q, log),
		tags:    repository.NewTagRepository(s, r, mon, q, log),
		stats:   repository.NewDailyStatRepository(s, r, mon, log),
	}
}

func TestTodoOnlineCreateMirrorsServerCopy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	todo := testutil.Todo("", "u1", "2026-10-14")
	todo.Title = "report"
	created, err := h.todos.Create(ctx, todo)
	require.NoError(t, err)
	assert.Equal(t, "srv-report", created.ID)

	cached, err := h.store.GetTodo(ctx, "srv-report")
	require.NoError(t, err)
	assert.Equal(t, "report", cached.Title)
	assert.Empty(t, h.queue.Operations())
}

func TestTodoOfflineWritesAreQueued(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	created, err := h.todos.Create(ctx, testutil.Todo("", "u1", "2026-10-14"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	toggled, err := h.todos.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)

	cached, err := h.store.GetTodo(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, cached.IsCompleted)

	require.NoError(t, h.todos.Delete(ctx, created.ID))
	_, err = h.store.GetTodo(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ops := h.queue.Pending()
	require.Len(t, ops, 3)
	assert.Equal(t, queue.KindCreateTodo, ops[0].Kind)
	assert.Equal(t, queue.KindUpdateTodo, ops[1].Kind)
	assert.True(t, ops[1].Payload.(queue.UpdateTodo).Todo.IsCompleted)
	assert.Equal(t, queue.KindDeleteTodo, ops[2].Kind)
	assert.Zero(t, h.remote.callCount())
}

func TestOfflineQueueReplaysOnReconnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	created, err := h.todos.Create(ctx, testutil.Todo("", "u1", "2026-10-14"))
	require.NoError(t, err)
	_, err = h.todos.Toggle(ctx, created.ID)
	require.NoError(t, err)

	h.monitor.Set(true)
	res := h.queue.Drain(ctx)
	assert.Equal(t, 2, res.Succeeded)
	assert.Empty(t, h.queue.Operations())

	got, err := h.todos.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
}

func TestReadFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	cached := testutil.Todo("t1", "u1", "2026-10-14")
	require.NoError(t, h.store.UpsertTodo(ctx, cached))
	h.remote.err = &remote.Error{Kind: remote.KindServerError, Code: 500}

	got, err := h.todos.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, cached.Title, got.Title)

	list, err := h.todos.List(ctx, "u1", "2026-10")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.todos.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOnlineListRefreshesCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	h.remote.todos["a"] = testutil.Todo("a", "u1", "2026-10-14")
	h.remote.todos["b"] = testutil.Todo("b", "u1", "2026-11-01")

	list, err := h.todos.List(ctx, "u1", "2026-10")
	require.NoError(t, err)
	require.Len(t, list, 1)

	h.monitor.Set(false)
	offline, err := h.todos.List(ctx, "u1", "2026-10")
	require.NoError(t, err)
	require.Len(t, offline, 1)
	assert.Equal(t, "a", offline[0].ID)
}

func TestOnlineWriteErrorIsReturnedUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.remote.err = &remote.Error{Kind: remote.KindConflict, Code: 409}

	_, err := h.todos.Create(ctx, testutil.Todo("t1", "u1", "2026-10-14"))
	require.Error(t, err)
	assert.Same(t, h.remote.err, err)

	_, err = h.store.GetTodo(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, h.queue.Operations())
}

func TestMirrorFailureReturnsStoreError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	boom := errors.New("disk full")
	repo := repository.NewTodoRepository(failingUpserts{Store: h.store, err: boom}, h.remote, h.monitor, h.queue, zerolog.Nop())

	_, err := repo.Create(ctx, testutil.Todo("t1", "u1", "2026-10-14"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, h.remote.todos, 1)
}

func TestValidationRunsBeforeIO(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	bad := testutil.Todo("t1", "u1", "14/10/2026")
	_, err := h.todos.Create(ctx, bad)
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = h.tags.Create(ctx, model.Tag{UserID: "u1", Name: "Work", Color: "red"})
	assert.ErrorIs(t, err, model.ErrInvalid)

	assert.Empty(t, h.queue.Operations())
}

func TestOfflineToggleNeedsCachedTodo(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.todos.Toggle(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, h.queue.Operations())
}

func TestTagRenameOfflineThenReconnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	work := model.Tag{ID: "t1", UserID: "u1", Name: "Work", Color: "FF0000"}
	created, err := h.tags.Create(ctx, work)
	require.NoError(t, err)
	assert.Equal(t, "t1", created.ID)
	assert.Equal(t, "Work", h.remote.tags["t1"].Name)

	h.monitor.Set(false)
	work.Name = "Office"
	_, err = h.tags.Update(ctx, work)
	require.NoError(t, err)

	cached, err := h.store.GetTag(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Office", cached.Name)

	pending := h.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, queue.KindUpdateTag, pending[0].Kind)
	assert.Equal(t, "t1", pending[0].Payload.EntityID())

	h.monitor.Set(true)
	res := h.queue.Drain(ctx)
	assert.Equal(t, 1, res.Succeeded)
	assert.Empty(t, h.queue.Operations())
	assert.Equal(t, "Office", h.remote.tags["t1"].Name)

	got, err := h.tags.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Office", got.Name)
}

func TestDuplicateTagNameFailsFast(t *testing.T) {
	ctx := context.Background()

	for _, online := range []bool{true, false} {
		h := newHarness(t, online)
		require.NoError(t, h.store.UpsertTag(ctx, testutil.Tag("t1", "u1", "Work")))
		calls := h.remote.callCount()

		_, err := h.tags.Create(ctx, model.Tag{UserID: "u1", Name: "work", Color: "00FF00"})
		require.Error(t, err)
		assert.True(t, repository.IsDuplicateName(err))

		var de *repository.DuplicateNameError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "t1", de.ExistingID)

		assert.Equal(t, calls, h.remote.callCount())
		assert.Empty(t, h.queue.Operations())
		tags, err := h.store.ListTags(ctx, store.TagFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Len(t, tags, 1)
	}
}

func TestTagUpdateKeepsOwnName(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	require.NoError(t, h.store.UpsertTag(ctx, testutil.Tag("t1", "u1", "Work")))
	require.NoError(t, h.store.UpsertTag(ctx, testutil.Tag("t2", "u1", "Home")))

	recolored := testutil.Tag("t1", "u1", "WORK")
	recolored.Color = "ABCDEF"
	_, err := h.tags.Update(ctx, recolored)
	require.NoError(t, err)

	clash := testutil.Tag("t1", "u1", "home")
	_, err = h.tags.Update(ctx, clash)
	assert.True(t, repository.IsDuplicateName(err))

	// Another user may reuse the name.
	_, err = h.tags.Create(ctx, testutil.Tag("", "u2", "Work"))
	require.NoError(t, err)
}

func TestTagDeleteKeepsTodos(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	require.NoError(t, h.store.UpsertTag(ctx, testutil.Tag("t1", "u1", "Work")))
	todo := testutil.Todo("a", "u1", "2026-10-14")
	tagID := "t1"
	todo.TagID = &tagID
	require.NoError(t, h.store.UpsertTodo(ctx, todo))

	require.NoError(t, h.tags.Delete(ctx, "t1"))

	got, err := h.todos.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.TagID)
	require.Len(t, h.queue.Pending(), 1)
	assert.Equal(t, queue.KindDeleteTag, h.queue.Pending()[0].Kind)
}

func TestReplayerMovesServerAssignedIDs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.remote.newID = func(id string) string { return "srv-" + id }

	tag, err := h.tags.Create(ctx, testutil.Tag("local-tag", "u1", "Work"))
	require.NoError(t, err)
	todo := testutil.Todo("local-todo", "u1", "2026-10-14")
	todo.TagID = &tag.ID
	_, err = h.todos.Create(ctx, todo)
	require.NoError(t, err)
	_, err = h.todos.Toggle(ctx, "local-todo")
	require.NoError(t, err)

	h.monitor.Set(true)
	res := h.queue.Drain(ctx)
	require.Equal(t, 3, res.Succeeded)

	_, err = h.store.GetTodo(ctx, "local-todo")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = h.store.GetTag(ctx, "local-tag")
	assert.ErrorIs(t, err, store.ErrNotFound)

	moved, err := h.store.GetTodo(ctx, "srv-local-todo")
	require.NoError(t, err)
	assert.True(t, moved.IsCompleted)
	require.NotNil(t, moved.TagID)
	assert.Equal(t, "srv-local-tag", *moved.TagID)

	srv := h.remote.todos["srv-local-todo"]
	assert.True(t, srv.IsCompleted)
	assert.Equal(t, "srv-local-tag", *srv.TagID)
}

func TestRetryableReplayFailureStaysQueued(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	_, err := h.tags.Create(ctx, testutil.Tag("t1", "u1", "Work"))
	require.NoError(t, err)

	h.monitor.Set(true)
	h.remote.err = &remote.Error{Kind: remote.KindTransport}
	res := h.queue.Drain(ctx)
	assert.Equal(t, 1, res.Retried)
	require.Len(t, h.queue.Pending(), 1)

	h.remote.err = nil
	res = h.queue.Drain(ctx)
	assert.Equal(t, 1, res.Succeeded)
	assert.Contains(t, h.remote.tags, "t1")
}

func TestDailyStatsCacheForOffline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.remote.stats["2026-10-14"] = model.DailyStat{
		Date:              "2026-10-14",
		ProductivityScore: 0.75,
		TagCounts:         []model.TagCount{{TagID: "t1", TagName: "Work", Count: 2}},
	}

	stat, err := h.stats.Get(ctx, "u1", "2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, "u1", stat.UserID)

	list, err := h.stats.List(ctx, "u1", "2026-10")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	h.monitor.Set(false)
	cached, err := h.stats.Get(ctx, "u1", "2026-10-14")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, cached.ProductivityScore, 1e-9)
	require.Len(t, cached.TagCounts, 1)
	assert.Equal(t, 2, cached.TagCounts[0].Count)

	_, err = h.stats.Get(ctx, "u1", "2026-10-15")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
