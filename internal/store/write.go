package store

import (
	"context"
	"fmt"

	"github.com/roach88/provmark/internal/fingerprint"
)

// Put records that fp was produced by prompt.
// Uses ON CONFLICT(fingerprint) DO NOTHING - the first write for a
// fingerprint is permanent and later writes are silently ignored.
// inserted reports whether this call created the record.
func (s *Store) Put(ctx context.Context, fp fingerprint.Fingerprint, prompt string) (inserted bool, err error) {
	if !fp.Valid() {
		return false, fmt.Errorf("put: %w: %q", fingerprint.ErrInvalidFingerprint, fp)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO provenance (fingerprint, prompt)
		VALUES (?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fp.String(), prompt)
	if err != nil {
		return false, fmt.Errorf("put: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
