package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Payment is one row of the payments table. The table is written by the
// external billing provisioner; this engine only reads it.
type Payment struct {
	PubKey      string
	PaidAt      int64
	ExpiresAt   int64
	AmountUnits int64
	InvoiceID   string
}

// Payment returns the payment record for a signer. The second return is
// false when no record exists.
func (s *Store) Payment(ctx context.Context, pubkey string) (Payment, bool, error) {
	var p Payment
	err := s.db.QueryRowContext(ctx, `
		SELECT pubkey, paid_at, expires_at, amount_units, invoice_id
		FROM payments WHERE pubkey = ?
	`, pubkey).Scan(&p.PubKey, &p.PaidAt, &p.ExpiresAt, &p.AmountUnits, &p.InvoiceID)
	if err == sql.ErrNoRows {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, fmt.Errorf("payment lookup: %w", err)
	}
	return p, true, nil
}

// HasActivePayment reports whether the signer is entitled to write:
// a payment record exists and has not expired. Absence or expiry means
// not entitled; no other invariant is enforced here.
func (s *Store) HasActivePayment(ctx context.Context, pubkey string, now time.Time) (bool, error) {
	p, ok, err := s.Payment(ctx, pubkey)
	if err != nil || !ok {
		return false, err
	}
	return p.ExpiresAt > now.Unix(), nil
}
