package provenance

import (
	"errors"
	"fmt"
)

// StorageError reports a provenance store call that failed permanently or
// ran out of retries.
type StorageError struct {
	// Op is the store operation, "put" or "get".
	Op string

	// Attempts is how many times the call was tried.
	Attempts int

	// Err is the last error returned by the store.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("provenance store %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

// Unwrap returns the underlying store error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ErrNilDependency is returned by New when a required collaborator is nil.
var ErrNilDependency = errors.New("provenance: nil dependency")
