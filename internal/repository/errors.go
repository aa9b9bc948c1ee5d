package repository

import (
	"errors"
	"fmt"
)

// DuplicateNameError is returned when a tag name is already used by
// another tag of the same user, ignoring case.
type DuplicateNameError struct {
	Name       string
	ExistingID string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tag name %q is already used by tag %s", e.Name, e.ExistingID)
}

// IsDuplicateName reports whether err (or any error in its chain) is a
// DuplicateNameError.
func IsDuplicateName(err error) bool {
	var de *DuplicateNameError
	return errors.As(err, &de)
}
