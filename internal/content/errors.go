package content

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entry or wm_class is referenced but absent.
var ErrNotFound = errors.New("not found")

// NotFoundError names the missing subject. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	// Kind is "entry" or "wm_class".
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func entryNotFound(name string) error {
	return &NotFoundError{Kind: "entry", Name: name}
}

func wmClassNotFound(wmClass string) error {
	return &NotFoundError{Kind: "wm_class", Name: wmClass}
}
