// Package repository is the offline-first data layer the rest of the
// application talks to. Reads prefer the server and fall back to the local
// cache; writes go to the server when online and are committed locally and
// queued for replay when not.
package repository

import (
	"context"
	"fmt"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/queue"
)

// Connectivity reports whether the backend is currently reachable.
type Connectivity interface {
	Online() bool
}

// Enqueuer accepts writes that must be replayed once back online.
type Enqueuer interface {
	Enqueue(ctx context.Context, p queue.Payload) (queue.Operation, error)
}

// TodoRemote is the server side of todos.
type TodoRemote interface {
	FetchTodo(ctx context.Context, id string) (model.Todo, error)
	FetchTodos(ctx context.Context, datePrefix string) ([]model.Todo, error)
	CreateTodo(ctx context.Context, todo model.Todo) (model.Todo, error)
	UpdateTodo(ctx context.Context, todo model.Todo) (model.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
	ToggleComplete(ctx context.Context, id string) (model.Todo, error)
}

// TagRemote is the server side of tags.
type TagRemote interface {
	FetchTag(ctx context.Context, id string) (model.Tag, error)
	FetchTags(ctx context.Context) ([]model.Tag, error)
	CreateTag(ctx context.Context, tag model.Tag) (model.Tag, error)
	UpdateTag(ctx context.Context, tag model.Tag) (model.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// DailyStatRemote is the server side of daily stats.
type DailyStatRemote interface {
	FetchDailyStat(ctx context.Context, date string) (model.DailyStat, error)
	FetchDailyStats(ctx context.Context, datePrefix string) ([]model.DailyStat, error)
}

func enqueue(ctx context.Context, q Enqueuer, p queue.Payload) error {
	if _, err := q.Enqueue(ctx, p); err != nil {
		return fmt.Errorf("deferring %s %s: %w", p.Kind(), p.EntityID(), err)
	}
	return nil
}
