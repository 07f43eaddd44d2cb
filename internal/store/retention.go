package store

import (
	"context"
	"fmt"
	"strings"
)

// DeleteEventsBefore removes events with created_at strictly below the
// cutoff, excluding protected kinds, in bounded batches so the single
// SQLite writer is never held for one giant transaction. Returns the total
// number of events removed.
//
// Each batch is its own implicit transaction; a failure mid-pass leaves the
// earlier batches applied, which is safe because pruning recomputes its
// cutoff on every run.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff int64, protectedKinds []int, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	query := `DELETE FROM events WHERE id IN (
		SELECT id FROM events WHERE created_at < ?`
	args := []any{cutoff}
	if len(protectedKinds) > 0 {
		query += " AND kind NOT IN (" + placeholders(len(protectedKinds)) + ")"
		for _, k := range protectedKinds {
			args = append(args, k)
		}
	}
	query += " LIMIT ?)"
	args = append(args, batchSize)

	var total int64
	for {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("delete old events: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete old events: rows affected: %w", err)
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}

// DeleteOrphanTagRows removes tag index rows whose parent event is gone.
// The cascade normally prevents orphans; this sweep exists for databases
// written before cascade enforcement was in place.
func (s *Store) DeleteOrphanTagRows(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM event_tags
		WHERE event_id NOT IN (SELECT id FROM events)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete orphan tag rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete orphan tag rows: rows affected: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
