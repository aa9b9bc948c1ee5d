package repository_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/internal/store"
)

// fakeRemote is an in-memory server for todos, tags and stats.
type fakeRemote struct {
	mu    sync.Mutex
	todos map[string]model.Todo
	tags  map[string]model.Tag
	stats map[string]model.DailyStat
	calls int
	// err, when set, is returned by every call.
	err error
	// newID, when set, renames created entities.
	newID func(string) string
	// dropOwner strips user_id from replies, like a server that leaves it
	// implicit.
	dropOwner bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		todos: make(map[string]model.Todo),
		tags:  make(map[string]model.Tag),
		stats: make(map[string]model.DailyStat),
	}
}

// hit counts a call; mu must be held.
func (f *fakeRemote) hit() error {
	f.calls++
	return f.err
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRemote) replyTodo(t model.Todo) model.Todo {
	if f.dropOwner {
		t.UserID = ""
	}
	return t
}

func (f *fakeRemote) replyTag(t model.Tag) model.Tag {
	if f.dropOwner {
		t.UserID = ""
	}
	return t
}

func notFound() error { return &remote.Error{Kind: remote.KindNotFound, Code: 404} }

func (f *fakeRemote) FetchTodo(_ context.Context, id string) (model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Todo{}, err
	}
	t, ok := f.todos[id]
	if !ok {
		return model.Todo{}, notFound()
	}
	return f.replyTodo(t), nil
}

func (f *fakeRemote) FetchTodos(_ context.Context, prefix string) ([]model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return nil, err
	}
	var out []model.Todo
	for _, t := range f.todos {
		if strings.HasPrefix(t.Deadline, prefix) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) CreateTodo(_ context.Context, t model.Todo) (model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Todo{}, err
	}
	if t.ID == "" {
		t.ID = "srv-" + t.Title
	}
	if f.newID != nil {
		t.ID = f.newID(t.ID)
	}
	f.todos[t.ID] = t
	return f.replyTodo(t), nil
}

func (f *fakeRemote) UpdateTodo(_ context.Context, t model.Todo) (model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Todo{}, err
	}
	if _, ok := f.todos[t.ID]; !ok {
		return model.Todo{}, notFound()
	}
	f.todos[t.ID] = t
	return f.replyTodo(t), nil
}

func (f *fakeRemote) DeleteTodo(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return err
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeRemote) ToggleComplete(_ context.Context, id string) (model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Todo{}, err
	}
	t, ok := f.todos[id]
	if !ok {
		return model.Todo{}, notFound()
	}
	t.IsCompleted = !t.IsCompleted
	f.todos[id] = t
	return f.replyTodo(t), nil
}

func (f *fakeRemote) FetchTag(_ context.Context, id string) (model.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Tag{}, err
	}
	t, ok := f.tags[id]
	if !ok {
		return model.Tag{}, notFound()
	}
	return f.replyTag(t), nil
}

func (f *fakeRemote) FetchTags(context.Context) ([]model.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return nil, err
	}
	var out []model.Tag
	for _, t := range f.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRemote) CreateTag(_ context.Context, t model.Tag) (model.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Tag{}, err
	}
	if t.ID == "" {
		t.ID = "srv-" + t.Name
	}
	if f.newID != nil {
		t.ID = f.newID(t.ID)
	}
	f.tags[t.ID] = t
	return f.replyTag(t), nil
}

func (f *fakeRemote) UpdateTag(_ context.Context, t model.Tag) (model.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.Tag{}, err
	}
	if _, ok := f.tags[t.ID]; !ok {
		return model.Tag{}, notFound()
	}
	f.tags[t.ID] = t
	return f.replyTag(t), nil
}

func (f *fakeRemote) DeleteTag(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return err
	}
	delete(f.tags, id)
	return nil
}

func (f *fakeRemote) FetchDailyStat(_ context.Context, date string) (model.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return model.DailyStat{}, err
	}
	s, ok := f.stats[date]
	if !ok {
		return model.DailyStat{}, notFound()
	}
	return s, nil
}

func (f *fakeRemote) FetchDailyStats(_ context.Context, prefix string) ([]model.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit(); err != nil {
		return nil, err
	}
	var out []model.DailyStat
	for _, s := range f.stats {
		if strings.HasPrefix(s.Date, prefix) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// failingUpserts wraps a store and fails every single-todo upsert.
type failingUpserts struct {
	store.Store
	err error
}

func (f failingUpserts) UpsertTodo(context.Context, model.Todo) error { return f.err }
