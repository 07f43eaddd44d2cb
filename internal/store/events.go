package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/perchmsg/relaycore/internal/event"
)

// HasEvent reports whether an event row with this id exists.
func (s *Store) HasEvent(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM events WHERE id = ?)", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has event: %w", err)
	}
	return n == 1, nil
}

// IsDeleted reports whether this id is tombstoned. Tombstoned ids can never
// be reinserted, regardless of payload.
func (s *Store) IsDeleted(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM deleted_events WHERE event_id = ?)", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is deleted: %w", err)
	}
	return n == 1, nil
}

// EventOwner returns the pubkey that signed the stored event with this id.
// The second return is false when no such event exists.
func (s *Store) EventOwner(ctx context.Context, id string) (string, bool, error) {
	var pubkey string
	err := s.db.QueryRowContext(ctx,
		"SELECT pubkey FROM events WHERE id = ?", id).Scan(&pubkey)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("event owner: %w", err)
	}
	return pubkey, true, nil
}

// SaveEvent persists the event row together with its tag index rows in one
// transaction. A crash or timeout mid-write leaves neither — an event row
// without its tag rows (or vice versa) would silently break tag queries.
func (s *Store) SaveEvent(ctx context.Context, ev *event.Event) error {
	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return fmt.Errorf("save event %s: marshal tags: %w", ev.ID, err)
	}

	cols := denormalizeTags(ev)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save event %s: begin tx: %w", ev.ID, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
		(id, pubkey, created_at, kind, tags, content, sig,
		 p_tags, e_tags, a_tags, t_tags, d_tag, r_tags, L_tags, s_tags, u_tags,
		 indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.PubKey, ev.CreatedAt, ev.Kind, string(tagsJSON), ev.Content, ev.Sig,
		cols["p"], cols["e"], cols["a"], cols["t"], cols["d"], cols["r"], cols["L"], cols["s"], cols["u"],
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save event %s: %w", ev.ID, err)
	}

	for _, pair := range ev.IndexableTags() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO event_tags (event_id, tag_name, tag_value, created_at)
			VALUES (?, ?, ?, ?)
		`, ev.ID, pair[0], pair[1], ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("save event %s: tag row %q: %w", ev.ID, pair[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save event %s: commit: %w", ev.ID, err)
	}
	return nil
}

// denormalizeTags flattens the reserved single-letter tag values into their
// column representation: comma-joined for the multi-valued columns, first
// value only for d.
func denormalizeTags(ev *event.Event) map[string]string {
	cols := make(map[string]string, len(event.IndexedTagNames))
	for _, name := range event.IndexedTagNames {
		if name == "d" {
			cols[name] = ev.DTag()
			continue
		}
		cols[name] = strings.Join(ev.TagValues(name), ",")
	}
	return cols
}

// DeleteEvent removes the event row (cascading its tag rows) and records a
// permanent tombstone, in one transaction. Tombstoning an id that was never
// stored is legal and still blocks future inserts.
func (s *Store) DeleteEvent(ctx context.Context, id, deletedBy string, deletedAt int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete event %s: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deleted_events (event_id, deleted_by, deleted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, id, deletedBy, deletedAt)
	if err != nil {
		return fmt.Errorf("delete event %s: tombstone: %w", id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete event %s: commit: %w", id, err)
	}
	return nil
}

// EventIDsByAddress returns the ids of events matching an address reference
// (kind, author, d-tag), used by deletion-event processing. Scoping by
// pubkey keeps deletions limited to the signer's own events.
func (s *Store) EventIDsByAddress(ctx context.Context, kind int, pubkey, dTag string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM events WHERE kind = ? AND pubkey = ? AND d_tag = ?",
		kind, pubkey, dTag)
	if err != nil {
		return nil, fmt.Errorf("events by address: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("events by address: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events by address: iterate: %w", err)
	}
	return ids, nil
}

// SupersededBy reports whether a stored event already beats the incoming
// one for a replaceable slot: newer created_at wins, and at equal
// created_at the lexicographically larger id wins. dTag is ignored unless
// addressable is set.
func (s *Store) SupersededBy(ctx context.Context, pubkey string, kind int, createdAt int64, id string, addressable bool, dTag string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM events
		WHERE pubkey = ? AND kind = ?
		  AND (created_at > ? OR (created_at = ? AND id > ?))`
	args := []any{pubkey, kind, createdAt, createdAt, id}
	if addressable {
		query += " AND d_tag = ?"
		args = append(args, dTag)
	}
	query += ")"

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("superseded check: %w", err)
	}
	return n == 1, nil
}

// DeleteSuperseded removes every stored event this incoming replaceable
// event supersedes: same (pubkey, kind) — plus d-tag when addressable —
// with an older created_at, or an equal created_at and a smaller id.
// Returns the number of rows removed. No tombstones: supersession is
// replacement, not deletion, and the ids may legally reappear on resync.
func (s *Store) DeleteSuperseded(ctx context.Context, pubkey string, kind int, createdAt int64, id string, addressable bool, dTag string) (int64, error) {
	query := `DELETE FROM events
		WHERE pubkey = ? AND kind = ?
		  AND (created_at < ? OR (created_at = ? AND id < ?))`
	args := []any{pubkey, kind, createdAt, createdAt, id}
	if addressable {
		query += " AND d_tag = ?"
		args = append(args, dTag)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete superseded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete superseded: rows affected: %w", err)
	}
	return n, nil
}

// QueryEvents runs a compiled filter query and scans the results. The SQL
// must project querysql.EventColumns in order.
func (s *Store) QueryEvents(ctx context.Context, query string, args ...any) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: iterate: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (*event.Event, error) {
	var ev event.Event
	var tagsJSON string
	if err := rows.Scan(&ev.ID, &ev.PubKey, &ev.CreatedAt, &ev.Kind, &tagsJSON, &ev.Content, &ev.Sig); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return nil, fmt.Errorf("scan event %s: tags: %w", ev.ID, err)
	}
	return &ev, nil
}
