// Package filter defines the query predicate shape clients send and its
// decoding rules: membership tests over ids/authors/kinds, inclusive
// created_at bounds, a clamped result limit, and per-tag value constraints.
//
// Tag constraints arrive as dynamic "#<name>" object keys on the wire. They
// are decoded into a closed TagConstraint form — either one of the nine
// reserved single-letter tags served by denormalized columns, or a generic
// (name, values) fallback served by the tag index — so the SQL translation
// can switch exhaustively instead of interpreting a schema-free map.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perchmsg/relaycore/internal/event"
)

// Limit and tag-constraint bounds. Values past the caps are silently
// dropped, not errors: the goal is bounding query cost, not rejecting
// clients that over-ask.
const (
	DefaultLimit   = 500
	MaxLimit       = 500
	MaxTagValues   = 20
	MaxTagValueLen = 256
)

// Filter is one query predicate. All present fields combine with AND;
// multiple filters in a request combine with OR.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   *int64
	Until   *int64
	Limit   int
	Tags    []TagConstraint
}

// TagConstraint matches events carrying at least one of Values under the
// tag Name. Indexed marks the nine reserved single-letter names that have
// dedicated denormalized columns; everything else goes through the generic
// tag index.
type TagConstraint struct {
	Name    string
	Values  []string
	Indexed bool
}

// UnmarshalJSON decodes the wire shape
//
//	{ids?, authors?, kinds?, since?, until?, limit?, "#<name>"?: [...]}
//
// applying the limit clamp and tag value caps. A limit that is absent,
// non-numeric, zero or negative becomes DefaultLimit.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode filter: %w", err)
	}

	*f = Filter{}

	for key, val := range raw {
		var err error
		switch key {
		case "ids":
			err = json.Unmarshal(val, &f.IDs)
		case "authors":
			err = json.Unmarshal(val, &f.Authors)
		case "kinds":
			err = json.Unmarshal(val, &f.Kinds)
		case "since":
			f.Since, err = decodeBound(val)
		case "until":
			f.Until, err = decodeBound(val)
		case "limit":
			// Tolerate garbage here: a bad limit falls back to the
			// default rather than failing the filter.
			var n int
			if json.Unmarshal(val, &n) == nil {
				f.Limit = n
			}
		default:
			if name, ok := strings.CutPrefix(key, "#"); ok {
				var values []string
				if err = json.Unmarshal(val, &values); err == nil {
					f.Tags = append(f.Tags, newTagConstraint(name, values))
				}
			}
			// Unknown non-tag keys are ignored for forward compatibility.
		}
		if err != nil {
			return fmt.Errorf("decode filter field %q: %w", key, err)
		}
	}

	f.Limit = ClampLimit(f.Limit)
	return nil
}

func decodeBound(val json.RawMessage) (*int64, error) {
	var n int64
	if err := json.Unmarshal(val, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func newTagConstraint(name string, values []string) TagConstraint {
	if len(values) > MaxTagValues {
		values = values[:MaxTagValues]
	}
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if len(v) <= MaxTagValueLen {
			kept = append(kept, v)
		}
	}
	return TagConstraint{
		Name:    name,
		Values:  kept,
		Indexed: event.IsIndexedTag(name),
	}
}

// ClampLimit maps a requested limit into [1, MaxLimit]. Zero, negative and
// out-of-range values become DefaultLimit — a hostile or confused client
// gets the default page, never an unbounded scan.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
