package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "relay.db", cfg.DBPath)
	assert.EqualValues(t, 8<<30, cfg.MaxStoreBytes)
	assert.Equal(t, 90*24*time.Hour, cfg.MinRetentionAge)
	assert.Equal(t, 10*time.Minute, cfg.DedupWindow)
	assert.Equal(t, []int{0, 3}, cfg.ProtectedKinds)
	assert.Equal(t, time.Hour, cfg.PruneInterval)
	assert.False(t, cfg.PaymentRequired)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RELAY_LISTEN_ADDR", ":9999")
	t.Setenv("RELAY_ADMIN_SECRET", "hunter2")
	t.Setenv("RELAY_PROTECTED_KINDS", "0,3,10002")
	t.Setenv("RELAY_DEDUP_WINDOW", "5m")
	t.Setenv("RELAY_PAYMENT_REQUIRED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "hunter2", cfg.AdminSecret)
	assert.Equal(t, []int{0, 3, 10002}, cfg.ProtectedKinds)
	assert.Equal(t, 5*time.Minute, cfg.DedupWindow)
	assert.True(t, cfg.PaymentRequired)
}

func TestLoad_BadProtectedKinds(t *testing.T) {
	t.Setenv("RELAY_PROTECTED_KINDS", "0,not-a-kind")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseKinds_Empty(t *testing.T) {
	kinds, err := parseKinds("")
	require.NoError(t, err)
	assert.Nil(t, kinds)
}
