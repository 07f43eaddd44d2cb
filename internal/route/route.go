// Package route maps a connecting client's geography to the partition that
// owns its session. The mapping is a pure function over a static table; the
// stateful session actor behind each partition lives outside this engine
// and is reached through the PartitionLocator interface.
package route

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var regionsYAML []byte

type regionTable struct {
	Default   string            `yaml:"default"`
	Countries map[string]string `yaml:"countries"`
	Overrides map[string]string `yaml:"overrides"`
}

var table regionTable

func init() {
	if err := yaml.Unmarshal(regionsYAML, &table); err != nil {
		panic(fmt.Sprintf("route: bad embedded region table: %v", err))
	}
}

// Region resolves a country code (optionally refined by a state/region
// code) to a region identifier. Codes are case-insensitive; unknown
// geographies fall back to the default region, never an error — every
// client must land somewhere.
func Region(countryCode, regionCode string) string {
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if country == "" {
		return table.Default
	}

	if regionCode != "" {
		key := country + ":" + strings.ToUpper(strings.TrimSpace(regionCode))
		if r, ok := table.Overrides[key]; ok {
			return r
		}
	}
	if r, ok := table.Countries[country]; ok {
		return r
	}
	return table.Default
}

// Partition derives the stable partition name for a region. The session
// actor owning a partition is addressed by this name.
func Partition(region string) string {
	return fmt.Sprintf("relay-%s-primary", region)
}

// Route maps a client's geography straight to its partition name.
func Route(countryCode, regionCode string) string {
	return Partition(Region(countryCode, regionCode))
}

// Conn is a live handle to a partition's session actor. The concrete type
// is owned by the hosting transport layer.
type Conn interface {
	// Send delivers one raw protocol frame to the partition.
	Send(ctx context.Context, frame []byte) error
	// Close releases the handle.
	Close() error
}

// PartitionLocator resolves a partition name to a connection handle. The
// engine never dials anything itself; hosts inject whatever actor, shard
// map, or registry implementation they run on.
type PartitionLocator interface {
	Locate(ctx context.Context, partition string) (Conn, error)
}
