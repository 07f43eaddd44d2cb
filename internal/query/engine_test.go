package query

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perchmsg/relaycore/internal/event"
	"github.com/perchmsg/relaycore/internal/filter"
	"github.com/perchmsg/relaycore/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func seed(t *testing.T, s *store.Store, id, pubkey string, createdAt int64, kind int, tags [][]string) {
	t.Helper()
	require.NoError(t, s.SaveEvent(context.Background(), &event.Event{
		ID: id, PubKey: pubkey, CreatedAt: createdAt, Kind: kind,
		Tags: tags, Content: "c-" + id, Sig: "s-" + id,
	}))
}

func ids(events []*event.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func TestQuery_SingleFilter(t *testing.T) {
	e, s := newEngine(t)
	seed(t, s, "id1", "pk1", 100, 1, nil)
	seed(t, s, "id2", "pk1", 200, 1, nil)
	seed(t, s, "id3", "pk2", 300, 1, nil)
	seed(t, s, "id4", "pk1", 400, 7, nil)

	got := e.Query(context.Background(), []filter.Filter{
		{Kinds: []int{1}, Authors: []string{"pk1"}},
	})

	// AND within the filter, newest first.
	assert.Equal(t, []string{"id2", "id1"}, ids(got))
}

func TestQuery_MultipleFiltersUnionDedup(t *testing.T) {
	e, s := newEngine(t)
	seed(t, s, "id1", "pk1", 100, 1, nil)
	seed(t, s, "id2", "pk2", 200, 2, nil)

	got := e.Query(context.Background(), []filter.Filter{
		{Authors: []string{"pk1"}},
		{Kinds: []int{1, 2}}, // also matches id1
	})

	// OR across filters, each event once, sorted desc.
	assert.Equal(t, []string{"id2", "id1"}, ids(got))
}

func TestQuery_TimeBoundsInclusive(t *testing.T) {
	e, s := newEngine(t)
	seed(t, s, "id1", "pk1", 100, 1, nil)
	seed(t, s, "id2", "pk1", 200, 1, nil)
	seed(t, s, "id3", "pk1", 300, 1, nil)

	since, until := int64(100), int64(200)
	got := e.Query(context.Background(), []filter.Filter{{Since: &since, Until: &until}})
	assert.Equal(t, []string{"id2", "id1"}, ids(got))
}

func TestQuery_TagFilters(t *testing.T) {
	e, s := newEngine(t)
	seed(t, s, "id1", "pk1", 100, 1, [][]string{{"e", "target"}})
	seed(t, s, "id2", "pk1", 200, 1, [][]string{{"e", "other"}})
	seed(t, s, "id3", "pk1", 300, 1, [][]string{{"subject", "meeting"}})

	got := e.Query(context.Background(), []filter.Filter{
		{Tags: []filter.TagConstraint{{Name: "e", Values: []string{"target"}, Indexed: true}}},
	})
	assert.Equal(t, []string{"id1"}, ids(got))

	got = e.Query(context.Background(), []filter.Filter{
		{Tags: []filter.TagConstraint{{Name: "subject", Values: []string{"meeting"}}}},
	})
	assert.Equal(t, []string{"id3"}, ids(got))
}

func TestQuery_MalformedFilterIsolated(t *testing.T) {
	e, s := newEngine(t)
	seed(t, s, "id1", "pk1", 100, 1, nil)

	got := e.Query(context.Background(), []filter.Filter{
		{Tags: []filter.TagConstraint{{Name: "", Values: []string{"x"}}}}, // fails to compile
		{Authors: []string{"pk1"}},
	})

	// The broken filter contributes nothing; the healthy one still runs.
	assert.Equal(t, []string{"id1"}, ids(got))
}

func TestQuery_Limit(t *testing.T) {
	e, s := newEngine(t)
	for i := 0; i < 5; i++ {
		seed(t, s, string(rune('a'+i)), "pk1", int64(100+i), 1, nil)
	}

	got := e.Query(context.Background(), []filter.Filter{{Limit: 2}})
	assert.Equal(t, []string{"e", "d"}, ids(got))
}

func TestQuery_SortTieBreak(t *testing.T) {
	e, s := newEngine(t)
	seed(t, s, "bbb", "pk1", 100, 1, nil)
	seed(t, s, "aaa", "pk1", 100, 1, nil)

	got := e.Query(context.Background(), []filter.Filter{{}})
	assert.Equal(t, []string{"aaa", "bbb"}, ids(got))
}

func TestQuery_NoFilters(t *testing.T) {
	e, _ := newEngine(t)
	assert.Empty(t, e.Query(context.Background(), nil))
}
