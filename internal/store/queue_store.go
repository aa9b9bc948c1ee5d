package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/queue"
)

var _ queue.Persister = (*SQLiteStore)(nil)

// LoadOperations returns every persisted queue record in creation order.
func (s *SQLiteStore) LoadOperations(ctx context.Context) ([]queue.Record, error) {
	var recs []queue.Record
	err := s.withTx(ctx, "load operations", func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &recs, `
			SELECT seq, id, kind, payload, status, retry_count,
				created_at, last_attempt_at, last_error
			FROM sync_queue ORDER BY seq`); err != nil {
			return fmt.Errorf("querying sync queue: %w", err)
		}
		return nil
	})
	return recs, err
}

// InsertOperation appends a record to the persisted queue.
func (s *SQLiteStore) InsertOperation(ctx context.Context, rec queue.Record) error {
	return s.withTx(ctx, "insert operation", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_queue (
				id, kind, payload, status, retry_count,
				created_at, last_attempt_at, last_error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Kind, string(rec.Payload), rec.Status, rec.RetryCount,
			rec.CreatedAt.UTC(), rec.LastAttemptAt, rec.LastError,
		)
		if err != nil {
			return fmt.Errorf("inserting operation %s: %w", rec.ID, err)
		}
		return nil
	})
}

// UpdateOperation stores the mutable state of a record. The payload and its
// position in the queue never change.
func (s *SQLiteStore) UpdateOperation(ctx context.Context, rec queue.Record) error {
	return s.withTx(ctx, "update operation", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sync_queue
			SET status = ?, retry_count = ?, last_attempt_at = ?, last_error = ?
			WHERE id = ?`,
			rec.Status, rec.RetryCount, rec.LastAttemptAt, rec.LastError, rec.ID,
		)
		if err != nil {
			return fmt.Errorf("updating operation %s: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating operation %s: %w", rec.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("operation %s: %w", rec.ID, ErrNotFound)
		}
		return nil
	})
}

// DeleteOperation removes a record. Removing a missing record is not an
// error.
func (s *SQLiteStore) DeleteOperation(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete operation", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting operation %s: %w", id, err)
		}
		return nil
	})
}
