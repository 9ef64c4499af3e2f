package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrRootInstance is returned when an operation would delete, move or relink the root.
	ErrRootInstance = errors.New("root instance cannot be modified this way")
	// ErrMoveIntoSelf is returned when the move target lies inside the moved subtree.
	ErrMoveIntoSelf = errors.New("cannot move an instance into itself or its descendants")
	ErrDuplicateID  = errors.New("instance id already exists")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
