package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a single-entity operation addresses a missing id.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a create reuses an existing id.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCatalogKey is returned for a module or verb outside the catalog.
	ErrInvalidCatalogKey = errors.New("invalid catalog key")

	// ErrInconsistentSnapshot is returned when a restored snapshot violates role exclusivity.
	ErrInconsistentSnapshot = errors.New("inconsistent snapshot")
)

// NotFoundError identifies the missing entity
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CatalogKeyError identifies the rejected catalog key
type CatalogKeyError struct {
	Kind string // "module" or "verb"
	Key  string
}

func (e *CatalogKeyError) Error() string {
	return fmt.Sprintf("invalid %s key: %q", e.Kind, e.Key)
}

// Is lets errors.Is(err, ErrInvalidCatalogKey) match
func (e *CatalogKeyError) Is(target error) bool {
	return target == ErrInvalidCatalogKey
}

func roleNotFound(id RoleID) error   { return &NotFoundError{Kind: "role", ID: string(id)} }
func groupNotFound(id GroupID) error { return &NotFoundError{Kind: "group", ID: string(id)} }
func userNotFound(id UserID) error   { return &NotFoundError{Kind: "user", ID: string(id)} }
