package testutil

import (
	"testing"
	"time"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Now is a fixed timestamp for deterministic fixtures.
var Now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

// Todo returns a valid todo owned by userID.
func Todo(id, userID, deadline string) model.Todo {
	return model.Todo{
		ID:               id,
		UserID:           userID,
		Title:            "todo " + id,
		Deadline:         deadline,
		Difficulty:       2,
		EstimatedMinutes: 30,
		CreatedAt:        Now,
		UpdatedAt:        Now,
	}
}

// Tag returns a valid tag owned by userID.
func Tag(id, userID, name string) model.Tag {
	return model.Tag{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Color:     "3366FF",
		CreatedAt: Now,
		UpdatedAt: Now,
	}
}
