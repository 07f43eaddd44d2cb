// Package config loads the relay's runtime settings from RELAY_* environment
// variables, with defaults suitable for a single-node deployment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every environment input the engine reads.
type Config struct {
	// ListenAddr is the HTTP bind address of the admin/read surface.
	ListenAddr string
	// DBPath locates the SQLite database file.
	DBPath string
	// AdminSecret gates schema-init and maintenance endpoints. When empty,
	// the admin endpoints refuse every request.
	AdminSecret string
	// OperatorPubKey and OperatorContact are advertised in the capability
	// document.
	OperatorPubKey  string
	OperatorContact string
	// MaxStoreBytes is the retention size ceiling.
	MaxStoreBytes int64
	// MinRetentionAge protects recent events from pruning.
	MinRetentionAge time.Duration
	// DedupWindow bounds per-signer content dedup; zero disables it.
	DedupWindow time.Duration
	// ProtectedKinds never expire.
	ProtectedKinds []int
	// PruneInterval is the retention scheduler period.
	PruneInterval time.Duration
	// PaymentRequired gates the write path on the payments table.
	PaymentRequired bool
}

// Load reads the environment. Unset variables take the documented defaults;
// a malformed protected-kind list is the only hard error.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("relay")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "relay.db")
	v.SetDefault("admin_secret", "")
	v.SetDefault("pubkey", "")
	v.SetDefault("contact", "")
	v.SetDefault("max_store_bytes", int64(8<<30))
	v.SetDefault("min_retention_age", (90 * 24 * time.Hour).String())
	v.SetDefault("dedup_window", (10 * time.Minute).String())
	v.SetDefault("protected_kinds", "0,3")
	v.SetDefault("prune_interval", time.Hour.String())
	v.SetDefault("payment_required", false)

	kinds, err := parseKinds(v.GetString("protected_kinds"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		ListenAddr:      v.GetString("listen_addr"),
		DBPath:          v.GetString("db_path"),
		AdminSecret:     v.GetString("admin_secret"),
		OperatorPubKey:  v.GetString("pubkey"),
		OperatorContact: v.GetString("contact"),
		MaxStoreBytes:   v.GetInt64("max_store_bytes"),
		MinRetentionAge: v.GetDuration("min_retention_age"),
		DedupWindow:     v.GetDuration("dedup_window"),
		ProtectedKinds:  kinds,
		PruneInterval:   v.GetDuration("prune_interval"),
		PaymentRequired: v.GetBool("payment_required"),
	}, nil
}

func parseKinds(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var kinds []int
	for _, part := range strings.Split(s, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid protected kind %q: %w", part, err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
