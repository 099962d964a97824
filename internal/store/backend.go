package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	bolterrors "go.etcd.io/bbolt/errors"

	"github.com/roach88/provmark/internal/fingerprint"
)

// Supported backend drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Drivers lists the accepted values for the store driver setting.
var Drivers = []string{DriverSQLite, DriverBolt}

// Backend is the full surface shared by both store implementations.
type Backend interface {
	Put(ctx context.Context, fp fingerprint.Fingerprint, prompt string) (inserted bool, err error)
	Get(ctx context.Context, fp fingerprint.Fingerprint) (prompt string, found bool, err error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*BoltStore)(nil)
)

// ErrUnknownDriver is returned by OpenBackend for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown store driver")

// OpenBackend opens the backend named by driver at path.
func OpenBackend(driver, path string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		return Open(path)
	case DriverBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("%w %q: must be one of %v", ErrUnknownDriver, driver, Drivers)
	}
}

// IsTransient reports whether err is a lock-contention failure that may
// succeed if retried: SQLITE_BUSY, SQLITE_LOCKED, or a bbolt lock timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return errors.Is(err, bolterrors.ErrTimeout)
}
