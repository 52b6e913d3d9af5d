package storage

import (
	"errors"
	"fmt"
)

// StorageError reports a failure opening, reading or writing the database.
type StorageError struct {
	// Op is the operation that failed (e.g. "open", "read checkpoint")
	Op string

	// Path is the database file
	Path string

	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// wrap returns err as a StorageError unless it already is one.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Path: path, Err: err}
}
