package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/model"
)

const todoColumns = `id, user_id, title, memo, deadline,
	is_completed, is_important, is_life, difficulty, estimated_minutes,
	tag_id, created_at, updated_at`

// GetTodo retrieves a single todo by ID.
func (t txn) GetTodo(ctx context.Context, id string) (*model.Todo, error) {
	var rec todoRecord
	err := sqlx.GetContext(ctx, t.q, &rec,
		"SELECT "+todoColumns+" FROM todos WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting todo %s: %w", id, err)
	}
	todo := rec.toModel()
	return &todo, nil
}

// ListTodos retrieves todos matching the filter, ordered by deadline then
// creation time.
func (t txn) ListTodos(ctx context.Context, filter TodoFilter) ([]model.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE 1 = 1"
	var args []interface{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.DatePrefix != "" {
		query += " AND substr(deadline, 1, ?) = ?"
		args = append(args, len(filter.DatePrefix), filter.DatePrefix)
	}
	query += " ORDER BY deadline, created_at, id"

	var recs []todoRecord
	if err := sqlx.SelectContext(ctx, t.q, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}

	todos := make([]model.Todo, 0, len(recs))
	for _, r := range recs {
		todos = append(todos, r.toModel())
	}
	return todos, nil
}

// UpsertTodo inserts a todo or overwrites the cached copy with the same ID.
func (t txn) UpsertTodo(ctx context.Context, todo model.Todo) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO todos (
			id, user_id, title, memo, deadline,
			is_completed, is_important, is_life, difficulty, estimated_minutes,
			tag_id, created_at, updated_at
		) VALUES (
			:id, :user_id, :title, :memo, :deadline,
			:is_completed, :is_important, :is_life, :difficulty, :estimated_minutes,
			:tag_id, :created_at, :updated_at
		)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			memo = excluded.memo,
			deadline = excluded.deadline,
			is_completed = excluded.is_completed,
			is_important = excluded.is_important,
			is_life = excluded.is_life,
			difficulty = excluded.difficulty,
			estimated_minutes = excluded.estimated_minutes,
			tag_id = excluded.tag_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		todoToRecord(todo),
	)
	if err != nil {
		return fmt.Errorf("upserting todo %s: %w", todo.ID, err)
	}
	return nil
}

// DeleteTodo removes a todo by ID. Deleting a missing todo is not an error.
func (t txn) DeleteTodo(ctx context.Context, id string) error {
	if _, err := t.q.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting todo %s: %w", id, err)
	}
	return nil
}
