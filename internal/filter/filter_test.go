package filter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal_AllFields(t *testing.T) {
	var f Filter
	err := json.Unmarshal([]byte(`{
		"ids": ["a1", "b2"],
		"authors": ["pk1"],
		"kinds": [0, 1],
		"since": 100,
		"until": 200,
		"limit": 10,
		"#e": ["ref1", "ref2"],
		"#subject": ["hello"]
	}`), &f)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "b2"}, f.IDs)
	assert.Equal(t, []string{"pk1"}, f.Authors)
	assert.Equal(t, []int{0, 1}, f.Kinds)
	require.NotNil(t, f.Since)
	assert.EqualValues(t, 100, *f.Since)
	require.NotNil(t, f.Until)
	assert.EqualValues(t, 200, *f.Until)
	assert.Equal(t, 10, f.Limit)

	require.Len(t, f.Tags, 2)
	// Map iteration order is not deterministic; find by name.
	byName := map[string]TagConstraint{}
	for _, tc := range f.Tags {
		byName[tc.Name] = tc
	}
	assert.True(t, byName["e"].Indexed)
	assert.Equal(t, []string{"ref1", "ref2"}, byName["e"].Values)
	assert.False(t, byName["subject"].Indexed)
}

func TestUnmarshal_LimitClamping(t *testing.T) {
	cases := map[string]struct {
		body string
		want int
	}{
		"absent":      {`{}`, DefaultLimit},
		"zero":        {`{"limit": 0}`, DefaultLimit},
		"negative":    {`{"limit": -5}`, DefaultLimit},
		"non-numeric": {`{"limit": "many"}`, DefaultLimit},
		"too-large":   {`{"limit": 9000}`, MaxLimit},
		"in-range":    {`{"limit": 42}`, 42},
		"one":         {`{"limit": 1}`, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var f Filter
			require.NoError(t, json.Unmarshal([]byte(tc.body), &f))
			assert.Equal(t, tc.want, f.Limit)
		})
	}
}

func TestUnmarshal_TagValueCaps(t *testing.T) {
	values := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		values = append(values, "v")
	}
	values[3] = strings.Repeat("x", MaxTagValueLen+1)
	body, err := json.Marshal(map[string]any{"#t": values})
	require.NoError(t, err)

	var f Filter
	require.NoError(t, json.Unmarshal(body, &f))
	require.Len(t, f.Tags, 1)

	// 25 values capped to 20, then the oversized one dropped.
	assert.Len(t, f.Tags[0].Values, 19)
}

func TestUnmarshal_UnknownKeysIgnored(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal([]byte(`{"search": "hi", "kinds": [1]}`), &f))
	assert.Equal(t, []int{1}, f.Kinds)
	assert.Empty(t, f.Tags)
}

func TestUnmarshal_BadFieldType(t *testing.T) {
	var f Filter
	err := json.Unmarshal([]byte(`{"ids": 42}`), &f)
	assert.Error(t, err)
}
