package core

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an article does not exist or was deleted.
	ErrNotFound = errors.New("article not found")

	// ErrConflict is returned when a create collides with an existing article.
	ErrConflict = errors.New("article already exists")

	// ErrInvalidID is returned for identifiers that are not 24 hex characters.
	ErrInvalidID = errors.New("invalid article ID format")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyEnhanced is returned when enhancement is requested for an enhanced article.
	ErrAlreadyEnhanced = errors.New("article is already enhanced")
)

// ValidationError lists field-level problems with an article payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
