package retention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perchmsg/relaycore/internal/event"
	"github.com/perchmsg/relaycore/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, id string, createdAt int64, kind int) {
	t.Helper()
	require.NoError(t, s.SaveEvent(context.Background(), &event.Event{
		ID: id, PubKey: "pk1", CreatedAt: createdAt, Kind: kind,
		Content: "c", Sig: "s",
	}))
}

func TestPrune_BelowCeilingIsNoOp(t *testing.T) {
	s := openStore(t)
	seed(t, s, "old", 100, 1)

	svc := New(s, Config{
		MaxStoreBytes:   1 << 40, // effectively unlimited
		MinRetentionAge: time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, svc.Prune(context.Background()))

	ok, err := s.HasEvent(context.Background(), "old")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrune_RemovesOldUnprotectedEvents(t *testing.T) {
	s := openStore(t)
	now := time.Unix(1_000_000, 0)
	old := now.Add(-48 * time.Hour).Unix()
	fresh := now.Add(-time.Hour).Unix()

	for i := 0; i < 5; i++ {
		seed(t, s, fmt.Sprintf("old-%d", i), old, 1)
	}
	seed(t, s, "old-profile", old, 0)
	seed(t, s, "old-contacts", old, 3)
	seed(t, s, "fresh", fresh, 1)

	svc := New(s, Config{
		MaxStoreBytes:   1, // force pruning
		MinRetentionAge: 24 * time.Hour,
		ProtectedKinds:  []int{0, 3},
		BatchSize:       2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithNow(func() time.Time { return now }))

	require.NoError(t, svc.Prune(context.Background()))

	for i := 0; i < 5; i++ {
		ok, err := s.HasEvent(context.Background(), fmt.Sprintf("old-%d", i))
		require.NoError(t, err)
		assert.False(t, ok, "old event %d must be pruned", i)
	}
	for _, id := range []string{"old-profile", "old-contacts", "fresh"} {
		ok, err := s.HasEvent(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, ok, "%s must survive", id)
	}
}

func TestPrune_SweepsStaleContentHashes(t *testing.T) {
	s := openStore(t)
	now := time.Unix(1_000_000, 0)
	ctx := context.Background()

	require.NoError(t, s.UpsertContentHash(ctx, "stale", "pk1", now.Add(-25*time.Hour)))
	require.NoError(t, s.UpsertContentHash(ctx, "recent", "pk1", now.Add(-time.Hour)))

	svc := New(s, Config{
		MaxStoreBytes:   1,
		MinRetentionAge: 24 * time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithNow(func() time.Time { return now }))

	require.NoError(t, svc.Prune(ctx))

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM content_hashes").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPrune_Idempotent(t *testing.T) {
	s := openStore(t)
	now := time.Unix(1_000_000, 0)
	seed(t, s, "old", now.Add(-48*time.Hour).Unix(), 1)

	svc := New(s, Config{
		MaxStoreBytes:   1,
		MinRetentionAge: 24 * time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithNow(func() time.Time { return now }))

	require.NoError(t, svc.Prune(context.Background()))
	require.NoError(t, svc.Prune(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := openStore(t)
	svc := New(s, Config{
		MaxStoreBytes:   1 << 40,
		MinRetentionAge: time.Hour,
		Interval:        time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestConfigDefaults(t *testing.T) {
	s := openStore(t)
	svc := New(s, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 24*time.Hour, svc.cfg.DedupMaxAge)
	assert.Equal(t, time.Hour, svc.cfg.Interval)
}
