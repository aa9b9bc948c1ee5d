package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid entity")

// DateLayout is the wire and storage layout of deadline and stat dates.
const DateLayout = "2006-01-02"

// Difficulty bounds for a todo.
const (
	DifficultyMin = 1
	DifficultyMax = 5
)

// Todo is a single item on a user's list.
type Todo struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Memo             string    `json:"memo,omitempty"`
	Deadline         string    `json:"deadline"`
	IsCompleted      bool      `json:"is_completed"`
	IsImportant      bool      `json:"is_important"`
	IsLife           bool      `json:"is_life"`
	Difficulty       int       `json:"difficulty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	TagID            *string   `json:"tag_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks the invariants a todo must satisfy before it is written
// anywhere.
func (t Todo) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: todo title must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("%w: todo %q has no owner", ErrInvalid, t.ID)
	}
	if _, err := time.Parse(DateLayout, t.Deadline); err != nil {
		return fmt.Errorf("%w: deadline %q is not YYYY-MM-DD", ErrInvalid, t.Deadline)
	}
	if t.Difficulty < DifficultyMin || t.Difficulty > DifficultyMax {
		return fmt.Errorf("%w: difficulty %d out of range %d-%d",
			ErrInvalid, t.Difficulty, DifficultyMin, DifficultyMax)
	}
	if t.EstimatedMinutes < 0 {
		return fmt.Errorf("%w: estimated minutes must not be negative", ErrInvalid)
	}
	return nil
}

// HasTag reports whether the todo references the given tag.
func (t Todo) HasTag(tagID string) bool {
	return t.TagID != nil && *t.TagID == tagID
}
