package store

import (
	"context"
	"fmt"
	"time"
)

// HasRecentContentHash reports whether the same signer submitted content
// with this hash inside the window ending at now. Dedup is deliberately
// scoped per signer: the witness table exists to stop one signer flooding
// with resubmitted content, not to police identical content across signers.
func (s *Store) HasRecentContentHash(ctx context.Context, hash, pubkey string, window time.Duration, now time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM content_hashes
			WHERE hash = ? AND pubkey = ? AND created_at >= ?
		)
	`, hash, pubkey, now.Add(-window).Unix()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("content hash lookup: %w", err)
	}
	return n == 1, nil
}

// UpsertContentHash records a dedup witness, refreshing the timestamp if
// the hash is already present.
func (s *Store) UpsertContentHash(ctx context.Context, hash, pubkey string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_hashes (hash, pubkey, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET pubkey = excluded.pubkey, created_at = excluded.created_at
	`, hash, pubkey, now.Unix())
	if err != nil {
		return fmt.Errorf("upsert content hash: %w", err)
	}
	return nil
}

// DeleteContentHashesBefore removes dedup witnesses older than the cutoff.
// Returns the number of rows removed.
func (s *Store) DeleteContentHashesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM content_hashes WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete content hashes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete content hashes: rows affected: %w", err)
	}
	return n, nil
}
