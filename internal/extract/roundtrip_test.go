package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelit/statelit/internal/classify"
	"github.com/statelit/statelit/internal/expr"
	"github.com/statelit/statelit/internal/values"
)

// roundTrip serializes a value, extracts the result, and serializes the
// reconstruction again. A faithful grammar makes the two renderings equal.
func roundTrip(t *testing.T, v any, ctx expr.Context) (string, string) {
	t.Helper()
	s := expr.New(classify.New(nil))

	first := s.Serialize(v, ctx)
	lits, err := ExtractString(first)
	require.NoError(t, err, "rendered expression must re-parse: %s", first)
	require.Len(t, lits, 1)

	second := s.Serialize(lits[0].Interface(), ctx)
	return first, second
}

func TestRoundTripValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "string", value: "svc"},
		{name: "string with quote", value: "it's"},
		{name: "multi-line string", value: "line1\nline2"},
		{name: "number", value: json.Number("42")},
		{name: "bool", value: true},
		{name: "flat map", value: values.FromPairs("Name", "svc", "Retries", json.Number("3"))},
		{name: "nested map", value: values.FromPairs(
			"Outer", values.FromPairs("Inner", json.Number("1")),
			"Flag", false,
		)},
		{name: "sequence", value: []any{json.Number("1"), json.Number("2")}},
		{name: "sequence of maps", value: []any{
			values.FromPairs("a", json.Number("1")),
			values.FromPairs("b", json.Number("2")),
		}},
		{name: "empty map", value: values.NewBag()},
		{name: "empty sequence", value: []any{}},
		{name: "singleton", value: []any{"only"}},
		{name: "nested singleton", value: []any{[]any{"x"}}},
		{name: "script block", value: values.ScriptBlock{Source: " restart "}},
		{name: "map with block", value: values.FromPairs(
			"OnApply", values.ScriptBlock{Source: " restart "},
		)},
		{name: "map with comma value", value: values.FromPairs(
			"Tags", []any{"a", "b"},
		)},
	}

	contexts := map[string]func() expr.Context{
		"expanded": expr.DefaultContext,
		"compact": func() expr.Context {
			ctx := expr.DefaultContext()
			ctx.Expand = -1
			return ctx
		},
		"inline": func() expr.Context {
			ctx := expr.DefaultContext()
			ctx.Expand = 1
			return ctx
		},
	}

	for ctxName, mk := range contexts {
		for _, tt := range tests {
			t.Run(ctxName+"/"+tt.name, func(t *testing.T) {
				first, second := roundTrip(t, tt.value, mk())
				assert.Equal(t, first, second)
			})
		}
	}
}

func TestRoundTripPreservesSingletonShape(t *testing.T) {
	ctx := expr.DefaultContext()
	s := expr.New(classify.New(nil))

	first := s.Serialize([]any{"only"}, ctx)
	require.Equal(t, ",'only'", first)

	lits, err := ExtractString(first)
	require.NoError(t, err)
	require.Len(t, lits, 1)

	got, ok := lits[0].Interface().([]any)
	require.True(t, ok, "a singleton stays a one-element collection")
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0])
}

func TestRoundTripStrongCastsAreTransparent(t *testing.T) {
	ctx := expr.DefaultContext()
	ctx.Strong = true
	s := expr.New(classify.New(nil))

	first := s.Serialize(values.FromPairs("a", 1), ctx)
	require.Equal(t, "[ordered]@{'a' = [int]1}", first)

	lits, err := ExtractString(first)
	require.NoError(t, err)
	require.Len(t, lits, 1)

	bag, ok := lits[0].Interface().(*values.Bag)
	require.True(t, ok)
	v, _ := bag.Get("a")
	assert.Equal(t, json.Number("1"), v, "casts are hints, not values")
}

func TestRoundTripBlockDoesNotDoubleWrap(t *testing.T) {
	ctx := expr.DefaultContext()
	s := expr.New(classify.New(nil))
	bag := values.FromPairs("OnApply", values.ScriptBlock{Source: " restart "})

	first := s.Serialize(bag, ctx)
	lits, err := ExtractString(first)
	require.NoError(t, err)

	out, ok := lits[0].Interface().(*values.Bag)
	require.True(t, ok)
	v, _ := out.Get("OnApply")
	sb, ok := v.(values.ScriptBlock)
	require.True(t, ok)
	assert.Equal(t, " restart ", sb.Source)

	second := s.Serialize(out, ctx)
	assert.Equal(t, first, second)
}
