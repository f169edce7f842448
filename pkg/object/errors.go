package object

import "errors"

var (
	// ErrNotFound indicates that no object with the requested hash exists
	// in the store (loose or packed).
	ErrNotFound = errors.New("object not found")
	// ErrCorrupt indicates that stored bytes failed hash or structural
	// validation. A store that reports this cannot be trusted for further
	// reads of the affected object.
	ErrCorrupt = errors.New("object corrupt")
	// ErrMalformed indicates that object bytes do not parse as a valid
	// instance of the claimed kind.
	ErrMalformed = errors.New("malformed object")
	// ErrTypeMismatch indicates that a typed read found an object of a
	// different kind than requested.
	ErrTypeMismatch = errors.New("object type mismatch")
	// ErrObjectMissing indicates a pack build referenced a hash absent
	// from the backing store at finalize time.
	ErrObjectMissing = errors.New("pack object missing from store")
)
