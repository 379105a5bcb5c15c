package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingPostType   = errors.New("post type is required")
	ErrMissingName       = errors.New("name is required")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrNoEntityTypes     = errors.New("no entity types selected")
	ErrInvalidAdID       = errors.New("ad id must be greater than zero")
)

// Sentinel errors for entity lookups.
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrGroupNotFound = errors.New("group not found")
)

// ErrNotConfirmed is returned by destructive operations called without confirmation.
var ErrNotConfirmed = errors.New("operation requires confirmation")

// ErrImportInProgress is returned when another import holds the import lock.
var ErrImportInProgress = errors.New("another import is in progress")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
