package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/model"
)

// GetTag retrieves a single tag by ID.
func (t txn) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	var rec tagRecord
	err := sqlx.GetContext(ctx, t.q, &rec,
		"SELECT id, user_id, name, color, created_at, updated_at FROM tags WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %s: %w", id, err)
	}
	tag := rec.toModel()
	return &tag, nil
}

// ListTags retrieves tags ordered by name, optionally for one owner.
func (t txn) ListTags(ctx context.Context, filter TagFilter) ([]model.Tag, error) {
	query := "SELECT id, user_id, name, color, created_at, updated_at FROM tags"
	var args []interface{}
	if filter.UserID != "" {
		query += " WHERE user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY name COLLATE NOCASE, id"

	var recs []tagRecord
	if err := sqlx.SelectContext(ctx, t.q, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}

	tags := make([]model.Tag, 0, len(recs))
	for _, r := range recs {
		tags = append(tags, r.toModel())
	}
	return tags, nil
}

// UpsertTag inserts a tag or overwrites the cached copy with the same ID.
func (t txn) UpsertTag(ctx context.Context, tag model.Tag) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `
		INSERT INTO tags (id, user_id, name, color, created_at, updated_at)
		VALUES (:id, :user_id, :name, :color, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			color = excluded.color,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		tagToRecord(tag),
	)
	if err != nil {
		return fmt.Errorf("upserting tag %s: %w", tag.ID, err)
	}
	return nil
}

// DeleteTag removes a tag. Todos pointing at it keep existing with their
// tag relation cleared. Deleting a missing tag is not an error.
func (t txn) DeleteTag(ctx context.Context, id string) error {
	if _, err := t.q.ExecContext(ctx,
		"UPDATE todos SET tag_id = NULL WHERE tag_id = ?", id); err != nil {
		return fmt.Errorf("clearing tag %s from todos: %w", id, err)
	}
	if _, err := t.q.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting tag %s: %w", id, err)
	}
	return nil
}
