package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/todosync/internal/model"
)

// ErrNotFound is returned when a point lookup finds no record.
var ErrNotFound = errors.New("record not found")

// StorageError reports a failed local transaction. The store is left
// unchanged when one is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err (or any error in its chain) is a
// StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// TodoFilter narrows a todo listing. DatePrefix matches the start of the
// deadline, so "2026-10" lists a month and "2026-10-14" a single day.
type TodoFilter struct {
	UserID     string
	DatePrefix string
}

// TagFilter narrows a tag listing to one owner.
type TagFilter struct {
	UserID string
}

// DailyStatFilter narrows a stat listing by owner and date prefix.
type DailyStatFilter struct {
	UserID     string
	DatePrefix string
}

// Tx is the set of entity operations available inside a transaction.
type Tx interface {
	// === Todos ===

	GetTodo(ctx context.Context, id string) (*model.Todo, error)
	ListTodos(ctx context.Context, filter TodoFilter) ([]model.Todo, error)
	UpsertTodo(ctx context.Context, todo model.Todo) error
	DeleteTodo(ctx context.Context, id string) error

	// === Tags ===

	GetTag(ctx context.Context, id string) (*model.Tag, error)
	ListTags(ctx context.Context, filter TagFilter) ([]model.Tag, error)
	UpsertTag(ctx context.Context, tag model.Tag) error
	// DeleteTag removes the tag and clears the relation on every todo
	// pointing at it. Todos themselves are kept.
	DeleteTag(ctx context.Context, id string) error

	// === Daily stats ===

	GetDailyStat(ctx context.Context, userID, date string) (*model.DailyStat, error)
	ListDailyStats(ctx context.Context, filter DailyStatFilter) ([]model.DailyStat, error)
	UpsertDailyStat(ctx context.Context, stat model.DailyStat) error
}

// Store defines the local cache for todos, tags and daily stats. Every
// method runs in its own transaction; RunTransaction groups several
// operations atomically.
type Store interface {
	Tx

	UpsertTodos(ctx context.Context, todos []model.Todo) error
	UpsertTags(ctx context.Context, tags []model.Tag) error
	UpsertDailyStats(ctx context.Context, stats []model.DailyStat) error

	// RunTransaction executes fn atomically. If fn returns an error or
	// panics, every write made through tx is rolled back. fn must not call
	// back into the Store itself.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}
