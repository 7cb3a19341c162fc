package inventory

import (
	"fmt"
)

// ErrInventoryFetch is returned when the inventory could not be retrieved.
// Balancing cannot continue without a complete snapshot.
type ErrInventoryFetch struct {
	error
}

func NewErrInventoryFetch(err error) *ErrInventoryFetch {
	return &ErrInventoryFetch{fmt.Errorf("failed to fetch inventory: %w", err)}
}

func (e *ErrInventoryFetch) Unwrap() error {
	return e.error
}

// ErrIncompleteRecord reports a record excluded from the snapshot.
type ErrIncompleteRecord struct {
	Kind     string
	ID       string
	Property string
	error
}

func NewErrIncompleteRecord(kind, id, property string) *ErrIncompleteRecord {
	return &ErrIncompleteRecord{
		Kind:     kind,
		ID:       id,
		Property: property,
		error:    fmt.Errorf("%s %q is missing property %s", kind, id, property),
	}
}

func NewErrDuplicateRecord(kind, id string) *ErrIncompleteRecord {
	return &ErrIncompleteRecord{
		Kind:  kind,
		ID:    id,
		error: fmt.Errorf("%s %q is listed more than once", kind, id),
	}
}
