package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/provmark/internal/fingerprint"
)

// Get returns the prompt recorded for fp.
// found is false, with a nil error, when no record exists.
func (s *Store) Get(ctx context.Context, fp fingerprint.Fingerprint) (prompt string, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT prompt FROM provenance WHERE fingerprint = ?
	`, fp.String()).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get: %w", err)
	}
	return prompt, true, nil
}

// Count returns the number of provenance records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM provenance").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
