// Package ingest implements the event write path: an ordered sequence of
// side-effect-free gates (validation, duplicate id, tombstone, content
// dedup), kind-specific cleanup, and one atomic persist.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/perchmsg/relaycore/internal/event"
	"github.com/perchmsg/relaycore/internal/store"
)

// Rejection reasons surfaced to callers. Idempotent rejections
// (duplicate-id, duplicate-content, blocked-deleted) are statuses, not
// failures; everything unexpected uses the "error: ..." form.
const (
	ReasonDuplicateID      = "duplicate-id"
	ReasonDuplicateContent = "duplicate-content"
	ReasonBlockedDeleted   = "blocked-deleted"
)

// Result is the outcome of one ingest call. Reason is empty when the event
// was accepted (or idempotently superseded on arrival).
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func rejected(reason string) Result { return Result{Accepted: false, Reason: reason} }

func errorResult(detail string) Result {
	return Result{Accepted: false, Reason: "error: " + detail}
}

// Pipeline runs the ingestion gates against one storage backend. It holds
// no state between calls; concurrent Ingest calls interleave freely at the
// store.
type Pipeline struct {
	store       *store.Store
	logger      *slog.Logger
	dedupWindow time.Duration
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNow overrides the wall clock, for tests exercising the dedup window.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. dedupWindow bounds how long a content-hash
// witness blocks resubmission; zero disables content dedup entirely.
func New(s *store.Store, logger *slog.Logger, dedupWindow time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       s,
		logger:      logger,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs the full write path for one event:
//
//  1. signature/id validation (never skipped — done here, not by callers)
//  2. duplicate id check (idempotent resubmission)
//  3. tombstone check (deleted ids never come back)
//  4. per-signer content dedup inside the configured window
//  5. kind-specific cleanup: deletion processing, supersession
//  6. atomic persist of the event row plus its tag index rows
//
// The gate order is strict within one call. No cross-call lock is taken;
// racing ingests for the same replaceable slot are resolved by the
// supersession rules on whichever write lands later.
func (p *Pipeline) Ingest(ctx context.Context, ev *event.Event) Result {
	if err := event.Validate(ev); err != nil {
		// Validation failures are logged and dropped, never stored.
		p.logger.Warn("rejected invalid event",
			"id", ev.ID, "pubkey", ev.PubKey, "err", err)
		return errorResult("invalid event")
	}

	exists, err := p.store.HasEvent(ctx, ev.ID)
	if err != nil {
		return p.storageError(ev, "existence check", err)
	}
	if exists {
		return rejected(ReasonDuplicateID)
	}

	deleted, err := p.store.IsDeleted(ctx, ev.ID)
	if err != nil {
		return p.storageError(ev, "tombstone check", err)
	}
	if deleted {
		return rejected(ReasonBlockedDeleted)
	}

	if res, ok := p.checkContentDedup(ctx, ev); !ok {
		return res
	}

	switch {
	case ev.Kind == event.KindDeletion:
		if err := p.processDeletion(ctx, ev); err != nil {
			return p.storageError(ev, "deletion processing", err)
		}
	case event.IsReplaceable(ev.Kind), event.IsAddressable(ev.Kind):
		superseded, err := p.applySupersession(ctx, ev)
		if err != nil {
			return p.storageError(ev, "supersession", err)
		}
		if superseded {
			// A stored event already wins this slot. The write logically
			// happened and was immediately replaced; treat as accepted
			// without persisting the loser.
			p.logger.Debug("replaceable event superseded on arrival",
				"id", ev.ID, "kind", ev.Kind)
			return Result{Accepted: true}
		}
	}

	if err := p.store.SaveEvent(ctx, ev); err != nil {
		return p.storageError(ev, "persist", err)
	}

	return Result{Accepted: true}
}

// checkContentDedup applies gate 4. Returns ok=false with the result to
// surface when the event is a near-duplicate resubmission.
func (p *Pipeline) checkContentDedup(ctx context.Context, ev *event.Event) (Result, bool) {
	if p.dedupWindow <= 0 || len(ev.Content) == 0 {
		return Result{}, true
	}

	hash := ContentHash(ev.Content)
	now := p.now()

	seen, err := p.store.HasRecentContentHash(ctx, hash, ev.PubKey, p.dedupWindow, now)
	if err != nil {
		return p.storageError(ev, "content dedup", err), false
	}
	if seen {
		return rejected(ReasonDuplicateContent), false
	}

	if err := p.store.UpsertContentHash(ctx, hash, ev.PubKey, now); err != nil {
		return p.storageError(ev, "content dedup witness", err), false
	}
	return Result{}, true
}

// processDeletion handles kind-5 events: every referenced event id and
// address is deleted and tombstoned, but only when the referenced event is
// owned by the deletion's signer. Cross-signer references are ignored.
func (p *Pipeline) processDeletion(ctx context.Context, ev *event.Event) error {
	for _, targetID := range ev.TagValues("e") {
		owner, ok, err := p.store.EventOwner(ctx, targetID)
		if err != nil {
			return err
		}
		if !ok || owner != ev.PubKey {
			continue
		}
		if err := p.store.DeleteEvent(ctx, targetID, ev.ID, ev.CreatedAt); err != nil {
			return err
		}
	}

	for _, addr := range ev.TagValues("a") {
		kind, pubkey, dTag, ok := parseAddress(addr)
		if !ok || pubkey != ev.PubKey {
			continue
		}
		ids, err := p.store.EventIDsByAddress(ctx, kind, pubkey, dTag)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := p.store.DeleteEvent(ctx, id, ev.ID, ev.CreatedAt); err != nil {
				return err
			}
		}
	}

	return nil
}

// applySupersession enforces replace-on-newer for replaceable and
// addressable kinds. Returns superseded=true when a stored event beats the
// incoming one, in which case the caller must not persist it.
//
// Tie-break at equal created_at: the lexicographically larger id wins.
// This replaces the storage-order nondeterminism of earlier designs.
func (p *Pipeline) applySupersession(ctx context.Context, ev *event.Event) (bool, error) {
	addressable := event.IsAddressable(ev.Kind)
	dTag := ""
	if addressable {
		dTag = ev.DTag()
	}

	superseded, err := p.store.SupersededBy(ctx, ev.PubKey, ev.Kind, ev.CreatedAt, ev.ID, addressable, dTag)
	if err != nil || superseded {
		return superseded, err
	}

	n, err := p.store.DeleteSuperseded(ctx, ev.PubKey, ev.Kind, ev.CreatedAt, ev.ID, addressable, dTag)
	if err != nil {
		return false, err
	}
	if n > 0 {
		p.logger.Debug("superseded older events", "id", ev.ID, "kind", ev.Kind, "removed", n)
	}
	return false, nil
}

func (p *Pipeline) storageError(ev *event.Event, stage string, err error) Result {
	p.logger.Error("ingest storage failure", "id", ev.ID, "stage", stage, "err", err)
	return errorResult(stage + " failed")
}

// ContentHash is the dedup witness key: SHA-256 over the NFC-normalized,
// whitespace-trimmed content, so trivially reencoded resubmissions collide.
// Unrelated to event identity.
func ContentHash(content string) string {
	normalized := norm.NFC.String(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// parseAddress splits a "kind:pubkey:dtag" address reference. The d-tag may
// itself contain colons; only the first two separators are structural.
func parseAddress(addr string) (kind int, pubkey, dTag string, ok bool) {
	parts := strings.SplitN(addr, ":", 3)
	if len(parts) < 2 {
		return 0, "", "", false
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", "", false
	}
	pubkey = parts[1]
	if len(parts) == 3 {
		dTag = parts[2]
	}
	return kind, pubkey, dTag, true
}
