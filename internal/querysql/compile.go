// Package querysql compiles filters into parameterized SQL for the SQLite
// event store.
//
// CRITICAL: all values are parameterized, never interpolated.
// CRITICAL: every query carries ORDER BY created_at DESC, id ASC so result
// order is deterministic even between events sharing a timestamp.
package querysql

import (
	"fmt"
	"strings"

	"github.com/perchmsg/relaycore/internal/filter"
)

// EventColumns is the projection used for every filter query, in the scan
// order the store expects.
const EventColumns = "id, pubkey, created_at, kind, tags, content, sig"

// Compile converts one filter into a SQL query against the events table.
// Returns (sql, params, error).
//
// Reserved single-letter tag constraints hit the denormalized columns
// (comma-joined, substring matched; d_tag is single-valued and matched
// exactly). Any other tag name falls back to an EXISTS probe of the
// event_tags index.
func Compile(f filter.Filter) (string, []any, error) {
	var (
		conds  []string
		params []any
	)

	if len(f.IDs) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			params = append(params, id)
		}
	}
	if len(f.Authors) > 0 {
		conds = append(conds, "pubkey IN ("+placeholders(len(f.Authors))+")")
		for _, pk := range f.Authors {
			params = append(params, pk)
		}
	}
	if len(f.Kinds) > 0 {
		conds = append(conds, "kind IN ("+placeholders(len(f.Kinds))+")")
		for _, k := range f.Kinds {
			params = append(params, k)
		}
	}
	if f.Since != nil {
		conds = append(conds, "created_at >= ?")
		params = append(params, *f.Since)
	}
	if f.Until != nil {
		conds = append(conds, "created_at <= ?")
		params = append(params, *f.Until)
	}

	for _, tc := range f.Tags {
		cond, tagParams, err := compileTagConstraint(tc)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		params = append(params, tagParams...)
	}

	var where string
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	sql := fmt.Sprintf(
		"SELECT %s FROM events%s ORDER BY created_at DESC, id ASC LIMIT ?",
		EventColumns, where)
	params = append(params, filter.ClampLimit(f.Limit))

	return sql, params, nil
}

// compileTagConstraint builds the predicate for one tag constraint.
//
// A constraint whose value list emptied out under the caps is kept but can
// match nothing — the values were dropped, not the constraint.
func compileTagConstraint(tc filter.TagConstraint) (string, []any, error) {
	if tc.Name == "" {
		return "", nil, fmt.Errorf("empty tag name in filter")
	}
	if len(tc.Values) == 0 {
		return "1 = 0", nil, nil
	}

	if tc.Indexed {
		if tc.Name == "d" {
			// d_tag is single-valued: exact membership.
			params := make([]any, len(tc.Values))
			for i, v := range tc.Values {
				params[i] = v
			}
			return "d_tag IN (" + placeholders(len(tc.Values)) + ")", params, nil
		}

		// Multi-valued columns are comma-joined; substring probe per value.
		col, err := indexedColumn(tc.Name)
		if err != nil {
			return "", nil, err
		}
		var ors []string
		var params []any
		for _, v := range tc.Values {
			ors = append(ors, fmt.Sprintf("instr(%s, ?) > 0", col))
			params = append(params, v)
		}
		return "(" + strings.Join(ors, " OR ") + ")", params, nil
	}

	// Generic fallback: exact match through the tag index.
	params := []any{tc.Name}
	for _, v := range tc.Values {
		params = append(params, v)
	}
	cond := "EXISTS (SELECT 1 FROM event_tags WHERE event_tags.event_id = events.id" +
		" AND event_tags.tag_name = ? AND event_tags.tag_value IN (" +
		placeholders(len(tc.Values)) + "))"
	return cond, params, nil
}

// indexedColumn maps a reserved tag letter to its denormalized column.
// The mapping is closed: column identifiers never derive from client input.
func indexedColumn(name string) (string, error) {
	switch name {
	case "p":
		return "p_tags", nil
	case "e":
		return "e_tags", nil
	case "a":
		return "a_tags", nil
	case "t":
		return "t_tags", nil
	case "r":
		return "r_tags", nil
	case "L":
		return "L_tags", nil
	case "s":
		return "s_tags", nil
	case "u":
		return "u_tags", nil
	default:
		return "", fmt.Errorf("tag %q has no denormalized column", name)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
