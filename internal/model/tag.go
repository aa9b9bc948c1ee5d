package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var hexColor = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// Tag is a per-user label a todo may point at.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the name and the 6-hex-digit color.
func (t Tag) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: tag name must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("%w: tag %q has no owner", ErrInvalid, t.Name)
	}
	if !hexColor.MatchString(t.Color) {
		return fmt.Errorf("%w: color %q is not 6 hex digits", ErrInvalid, t.Color)
	}
	return nil
}

// SameName reports whether two tag names collide. Names are unique per
// user regardless of case.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
