package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/nhle/todosync/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements Store using a local SQLite database.
//
// All transactions go through a single connection and are serialized by mu,
// so concurrent RunTransaction calls queue and run one at a time.
type SQLiteStore struct {
	db   *sqlx.DB
	mu   sync.Mutex
	lock *flock.Flock
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, takes an
// exclusive lock on it, enables WAL mode, and runs any pending schema
// migrations. Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	s := &SQLiteStore{}

	if dbPath != memoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		s.lock = flock.New(dbPath + ".lock")
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("locking store %s: %w", dbPath, err)
		}
		if !locked {
			return nil, fmt.Errorf("store %s is in use by another process", dbPath)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One logical connection; an in-memory database also lives and dies
	// with it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		s.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := s.migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection and releases the file
// lock.
func (s *SQLiteStore) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.unlock()
	return err
}

func (s *SQLiteStore) unlock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

// migrate applies the embedded goose migrations.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// RunTransaction implements Store.RunTransaction.
func (s *SQLiteStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.withTx(ctx, "transaction", func(tx *sqlx.Tx) error {
		return fn(txn{q: tx})
	})
}

// withTx serializes fn against the single connection and commits only if fn
// succeeds. ErrNotFound passes through untouched; every other failure is
// reported as a StorageError.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("beginning transaction: %w", err)}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		return wrapStorage(op, err)
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("committing transaction: %w", err)}
	}
	committed = true
	return nil
}

func wrapStorage(op string, err error) error {
	if errors.Is(err, ErrNotFound) || IsStorageError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// === Single-operation wrappers ===

// GetTodo retrieves a single todo by ID.
func (s *SQLiteStore) GetTodo(ctx context.Context, id string) (*model.Todo, error) {
	var todo *model.Todo
	err := s.RunTransaction(ctx, func(tx Tx) error {
		var err error
		todo, err = tx.GetTodo(ctx, id)
		return err
	})
	return todo, err
}

// ListTodos retrieves todos matching the filter, ordered by deadline.
func (s *SQLiteStore) ListTodos(ctx context.Context, filter TodoFilter) ([]model.Todo, error) {
	var todos []model.Todo
	err := s.RunTransaction(ctx, func(tx Tx) error {
		var err error
		todos, err = tx.ListTodos(ctx, filter)
		return err
	})
	return todos, err
}

// UpsertTodo inserts or replaces a todo.
func (s *SQLiteStore) UpsertTodo(ctx context.Context, todo model.Todo) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.UpsertTodo(ctx, todo)
	})
}

// UpsertTodos inserts or replaces a batch of todos atomically.
func (s *SQLiteStore) UpsertTodos(ctx context.Context, todos []model.Todo) error {
	if len(todos) == 0 {
		return nil
	}
	return s.RunTransaction(ctx, func(tx Tx) error {
		for _, t := range todos {
			if err := tx.UpsertTodo(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTodo removes a todo by ID.
func (s *SQLiteStore) DeleteTodo(ctx context.Context, id string) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.DeleteTodo(ctx, id)
	})
}

// GetTag retrieves a single tag by ID.
func (s *SQLiteStore) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	var tag *model.Tag
	err := s.RunTransaction(ctx, func(tx Tx) error {
		var err error
		tag, err = tx.GetTag(ctx, id)
		return err
	})
	return tag, err
}

// ListTags retrieves a user's tags ordered by name.
func (s *SQLiteStore) ListTags(ctx context.Context, filter TagFilter) ([]model.Tag, error) {
	var tags []model.Tag
	err := s.RunTransaction(ctx, func(tx Tx) error {
		var err error
		tags, err = tx.ListTags(ctx, filter)
		return err
	})
	return tags, err
}

// UpsertTag inserts or replaces a tag.
func (s *SQLiteStore) UpsertTag(ctx context.Context, tag model.Tag) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.UpsertTag(ctx, tag)
	})
}

// UpsertTags inserts or replaces a batch of tags atomically.
func (s *SQLiteStore) UpsertTags(ctx context.Context, tags []model.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return s.RunTransaction(ctx, func(tx Tx) error {
		for _, t := range tags {
			if err := tx.UpsertTag(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTag removes a tag and clears it from referencing todos.
func (s *SQLiteStore) DeleteTag(ctx context.Context, id string) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.DeleteTag(ctx, id)
	})
}

// GetDailyStat retrieves the stat for one user and day.
func (s *SQLiteStore) GetDailyStat(ctx context.Context, userID, date string) (*model.DailyStat, error) {
	var stat *model.DailyStat
	err := s.RunTransaction(ctx, func(tx Tx) error {
		var err error
		stat, err = tx.GetDailyStat(ctx, userID, date)
		return err
	})
	return stat, err
}

// ListDailyStats retrieves stats matching the filter ordered by date.
func (s *SQLiteStore) ListDailyStats(ctx context.Context, filter DailyStatFilter) ([]model.DailyStat, error) {
	var stats []model.DailyStat
	err := s.RunTransaction(ctx, func(tx Tx) error {
		var err error
		stats, err = tx.ListDailyStats(ctx, filter)
		return err
	})
	return stats, err
}

// UpsertDailyStat inserts or replaces a stat.
func (s *SQLiteStore) UpsertDailyStat(ctx context.Context, stat model.DailyStat) error {
	return s.RunTransaction(ctx, func(tx Tx) error {
		return tx.UpsertDailyStat(ctx, stat)
	})
}

// UpsertDailyStats inserts or replaces a batch of stats atomically.
func (s *SQLiteStore) UpsertDailyStats(ctx context.Context, stats []model.DailyStat) error {
	if len(stats) == 0 {
		return nil
	}
	return s.RunTransaction(ctx, func(tx Tx) error {
		for _, st := range stats {
			if err := tx.UpsertDailyStat(ctx, st); err != nil {
				return err
			}
		}
		return nil
	})
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
