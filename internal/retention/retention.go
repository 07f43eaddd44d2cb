// Package retention prunes the store on a schedule: when the database
// outgrows its configured ceiling, events older than the minimum retention
// age are removed (protected kinds excepted), stale index and dedup rows
// are swept, and the backend is asked to compact.
package retention

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/perchmsg/relaycore/internal/store"
)

// Config bounds what a pruning pass may remove.
type Config struct {
	// MaxStoreBytes is the size ceiling; a pass is a no-op below it.
	MaxStoreBytes int64
	// MinRetentionAge protects recent events: the deletion cutoff is
	// now - MinRetentionAge, never later.
	MinRetentionAge time.Duration
	// DedupMaxAge bounds content-hash witness lifetime.
	DedupMaxAge time.Duration
	// ProtectedKinds never expire regardless of age.
	ProtectedKinds []int
	// Interval between scheduled passes.
	Interval time.Duration
	// BatchSize caps each delete statement so the single SQLite writer is
	// released between batches.
	BatchSize int
}

// Service runs pruning passes, timer-driven rather than in response to any
// request.
type Service struct {
	store  *store.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow overrides the wall clock for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a retention Service.
func New(st *store.Store, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg.DedupMaxAge <= 0 {
		cfg.DedupMaxAge = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	s := &Service{store: st, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes Prune every Interval until the context is cancelled.
// A failed pass is logged and the scheduler keeps going — pruning is
// idempotent, the next run re-evaluates from current state.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Prune(ctx); err != nil {
				s.logger.Error("pruning pass failed", "err", err)
			}
		}
	}
}

// Prune performs one maintenance pass. Sub-steps are best-effort: a failure
// is recorded but later steps still run; the pass reports the joined
// failures as a unit.
func (s *Service) Prune(ctx context.Context) error {
	size, err := s.store.SizeBytes(ctx)
	if err != nil {
		return err
	}
	if size < s.cfg.MaxStoreBytes {
		s.logger.Debug("store below size ceiling, skipping prune",
			"size", size, "max", s.cfg.MaxStoreBytes)
		return nil
	}

	now := s.now()
	cutoff := now.Add(-s.cfg.MinRetentionAge)
	var errs []error

	removed, err := s.store.DeleteEventsBefore(ctx, cutoff.Unix(), s.cfg.ProtectedKinds, s.cfg.BatchSize)
	if err != nil {
		errs = append(errs, err)
	}

	orphans, err := s.store.DeleteOrphanTagRows(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	hashes, err := s.store.DeleteContentHashesBefore(ctx, now.Add(-s.cfg.DedupMaxAge))
	if err != nil {
		errs = append(errs, err)
	}

	if err := s.store.Optimize(ctx); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("pruning pass complete",
		"size", size,
		"cutoff", cutoff.Unix(),
		"events_removed", removed,
		"orphan_tag_rows", orphans,
		"stale_hashes", hashes,
		"errors", len(errs))

	return errors.Join(errs...)
}
