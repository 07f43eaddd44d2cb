// Package query answers multi-filter read requests: each filter compiles
// and executes independently, results merge into one id-deduplicated set
// sorted newest first.
package query

import (
	"context"
	"log/slog"
	"sort"

	"github.com/perchmsg/relaycore/internal/event"
	"github.com/perchmsg/relaycore/internal/filter"
	"github.com/perchmsg/relaycore/internal/querysql"
	"github.com/perchmsg/relaycore/internal/store"
)

// Engine executes filter queries against the storage backend. Read-only;
// safe to run fully in parallel with ingestion and with itself.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a query Engine.
func New(s *store.Store, logger *slog.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

// Query runs every filter and merges the results.
//
// Filters combine with OR: an event matching any filter appears once in the
// output. A filter that fails to compile or execute is logged and
// contributes nothing — the other filters in the request still run
// (partial-failure tolerance, not all-or-nothing). Results are sorted by
// created_at descending with ascending id as the deterministic tiebreak,
// truncated to the largest per-filter limit.
func (e *Engine) Query(ctx context.Context, filters []filter.Filter) []*event.Event {
	seen := make(map[string]struct{})
	var merged []*event.Event
	maxLimit := 0

	for i, f := range filters {
		limit := filter.ClampLimit(f.Limit)
		if limit > maxLimit {
			maxLimit = limit
		}

		sqlStr, params, err := querysql.Compile(f)
		if err != nil {
			e.logger.Warn("skipping malformed filter", "index", i, "err", err)
			continue
		}

		events, err := e.store.QueryEvents(ctx, sqlStr, params...)
		if err != nil {
			e.logger.Error("filter query failed", "index", i, "err", err)
			continue
		}

		for _, ev := range events {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt > merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})

	if maxLimit > 0 && len(merged) > maxLimit {
		merged = merged[:maxLimit]
	}

	return merged
}
