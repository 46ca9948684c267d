package expr

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/statelit/statelit/internal/secure"
	"github.com/statelit/statelit/internal/values"
)

func TestSerializeScalars(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: "null"},
		{name: "true", input: true, want: "true"},
		{name: "false", input: false, want: "false"},
		{name: "int", input: 42, want: "42"},
		{name: "float", input: 2.5, want: "2.5"},
		{name: "json number", input: json.Number("17"), want: "17"},
		{name: "string", input: "svc", want: "'svc'"},
		{name: "string with quote", input: "it's", want: "'it''s'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Serialize(tt.input, ctx))
		})
	}
}

func TestSerializeMultiLineStringUsesHereString(t *testing.T) {
	s := New(nil)
	got := s.Serialize("line1\nline2", DefaultContext())
	assert.Equal(t, "@'\nline1\nline2\n'@", got)
}

// Serializing the map {"Name":"svc","Retries":3} with weak typing, expand
// depth 2 and tab indent must produce two lines inside braces, each prefixed
// by one tab.
func TestSerializeMapExpandedScenario(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Expand = 2

	bag := values.FromPairs("Name", "svc", "Retries", 3)
	got := s.Serialize(bag, ctx)

	assert.Equal(t, "@{\n\t'Name' = 'svc'\n\t'Retries' = 3\n}", got)
}

func TestSerializeMapInlineWhenSinglePair(t *testing.T) {
	s := New(nil)
	got := s.Serialize(values.FromPairs("Name", "svc"), DefaultContext())
	assert.Equal(t, "@{'Name' = 'svc'}", got)
}

func TestSerializeMapInlineWhenDepthExhausted(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Expand = 1 // depth 0 is already past the threshold

	got := s.Serialize(values.FromPairs("a", 1, "b", 2), ctx)
	assert.Equal(t, "@{'a' = 1; 'b' = 2}", got)
}

func TestSerializeMapCompact(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Expand = -1

	got := s.Serialize(values.FromPairs("a", 1, "b", 2), ctx)
	assert.Equal(t, "@{'a'=1;'b'=2}", got)
}

func TestSerializeEmptyContainers(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	assert.Equal(t, "@{}", s.Serialize(values.NewBag(), ctx))
	assert.Equal(t, "@()", s.Serialize([]any{}, ctx))
}

func TestSerializeSingletonSequence(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	// Standalone position uses the unary comma.
	assert.Equal(t, ",'a'", s.Serialize([]any{"a"}, ctx))

	// List-item position wraps in parentheses.
	assert.Equal(t, ",(,'a')", s.Serialize([]any{[]any{"a"}}, ctx))
}

func TestSerializePrimitiveSequenceInline(t *testing.T) {
	s := New(nil)
	got := s.Serialize([]any{1, 2, 3}, DefaultContext())
	assert.Equal(t, "@(1, 2, 3)", got)
}

func TestSerializeSequenceCompact(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Expand = -1

	got := s.Serialize([]any{1, 2, 3}, ctx)
	assert.Equal(t, "@(1,2,3)", got)
}

func TestSerializeSequenceExpanded(t *testing.T) {
	s := New(nil)
	// Two maps are not primitive elements, so the list expands.
	seq := []any{
		values.FromPairs("a", 1),
		values.FromPairs("b", 2),
	}
	got := s.Serialize(seq, DefaultContext())
	assert.Equal(t, "@(\n\t@{'a' = 1}\n\t@{'b' = 2}\n)", got)
}

func TestSerializeNestedIndentation(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	bag := values.FromPairs(
		"Outer", values.FromPairs("InnerA", 1, "InnerB", 2),
		"Flag", true,
	)
	got := s.Serialize(bag, ctx)

	want := "@{\n" +
		"\t'Outer' = @{\n" +
		"\t\t'InnerA' = 1\n" +
		"\t\t'InnerB' = 2\n" +
		"\t}\n" +
		"\t'Flag' = true\n" +
		"}"
	assert.Equal(t, want, got)
}

func TestSerializeDepthTruncation(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.MaxDepth = 1

	bag := values.FromPairs("a", values.FromPairs("b", values.FromPairs("c", 1)))
	got := s.Serialize(bag, ctx)

	assert.Equal(t, "@{'a' = '...'}", got, "descent stops exactly at the depth limit")
}

func TestSerializeIdempotent(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	bag := values.FromPairs("a", []any{1, 2}, "b", values.FromPairs("c", "x"))

	first := s.Serialize(bag, ctx)
	second := s.Serialize(bag, ctx)
	assert.Equal(t, first, second)
}

func TestSerializeStrongTyping(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Strong = true

	assert.Equal(t, "[string]'svc'", s.Serialize("svc", ctx))
	assert.Equal(t, "[int]3", s.Serialize(3, ctx))
	assert.Equal(t, "[ordered]@{'a' = [int]1}", s.Serialize(values.FromPairs("a", 1), ctx))

	ts := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "[time.Time]'2026-08-25T10:30:00Z'", s.Serialize(ts, ctx))
}

func TestSerializeWeakTypingKeepsAmbiguityCasts(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	// A plain Go map is not the literal default, so its cast survives weak
	// mode; the bag's does not.
	assert.Equal(t, "[hashtable]@{'a' = 1}", s.Serialize(map[string]any{"a": 1}, ctx))
	assert.Equal(t, "@{'a' = 1}", s.Serialize(values.FromPairs("a", 1), ctx))
	assert.Equal(t, "[array]@('a', 'b')", s.Serialize([]string{"a", "b"}, ctx))
	assert.Equal(t, "@('a', 'b')", s.Serialize([]any{"a", "b"}, ctx))
}

func TestSerializeExploreSuppressesCasts(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Explore = true

	assert.Equal(t, "@{'a' = 1}", s.Serialize(map[string]any{"a": 1}, ctx))

	// Unless strong typing is simultaneously requested.
	ctx.Strong = true
	assert.Equal(t, "[hashtable]@{'a' = [int]1}", s.Serialize(map[string]any{"a": 1}, ctx))
}

func TestSerializeSecureString(t *testing.T) {
	s := New(nil)
	keeper := secure.ProcessKeeper()
	sec, err := values.NewSecureString("hunter2", keeper)
	require.NoError(t, err)

	got := s.Serialize(sec, DefaultContext())
	assert.Equal(t, "(protect 'hunter2')", got, "plaintext only appears inside the protect wrapper")
}

func TestSerializeCredential(t *testing.T) {
	s := New(nil)
	keeper := secure.ProcessKeeper()
	cred, err := values.NewCredential("alice", "pw", keeper)
	require.NoError(t, err)

	got := s.Serialize(cred, DefaultContext())
	assert.Equal(t, "(credential 'alice' (protect 'pw'))", got)
}

func TestSerializeZeroValueSecrets(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	// A zero-value secret has no keeper; rendering degrades to the
	// placeholder payload instead of failing.
	assert.Equal(t, "(protect '...')", s.Serialize(values.SecureString{}, ctx))
	assert.Equal(t, "(credential 'x' (protect '...'))",
		s.Serialize(values.Credential{Username: "x"}, ctx))
}

func TestSerializeScriptBlock(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()

	assert.Equal(t, "{ restart }", s.Serialize(values.ScriptBlock{Source: " restart "}, ctx))

	// A comment would swallow the closing brace without a newline.
	got := s.Serialize(values.ScriptBlock{Source: " restart # later"}, ctx)
	assert.Equal(t, "{ restart # later\n}", got)
}

func TestSerializeStruct(t *testing.T) {
	type service struct {
		Name    string
		Retries int
	}

	s := New(nil)
	got := s.Serialize(service{Name: "svc", Retries: 3}, DefaultContext())
	assert.Equal(t, "@{\n\t'Name' = 'svc'\n\t'Retries' = 3\n}", got)
}

func TestSerializeMarkupDocument(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("name: svc\nport: 8080\n"), &node))

	s := New(nil)
	got := s.Serialize(&node, DefaultContext())

	assert.Contains(t, got, "name: svc")
	assert.Contains(t, got, "port: 8080")
	assert.True(t, len(got) > 4 && got[:2] == "@'", "markup renders as a here-string")
}

func TestSerializeTable(t *testing.T) {
	s := New(nil)
	table := values.Table{Rows: []*values.Bag{
		values.FromPairs("id", 1),
		values.FromPairs("id", 2),
	}}

	got := s.Serialize(table, DefaultContext())
	assert.Equal(t, "@(\n\t@{'id' = 1}\n\t@{'id' = 2}\n)", got)
}

func TestSerializeTrimsTrailingWhitespace(t *testing.T) {
	s := New(nil)
	got := s.Serialize("x", DefaultContext())
	assert.Equal(t, "'x'", got)
	assert.NotRegexp(t, `\s$`, got)
}

func TestSerializeCRLFNewline(t *testing.T) {
	s := New(nil)
	ctx := DefaultContext()
	ctx.Newline = "\r\n"
	ctx.Expand = 2

	got := s.Serialize(values.FromPairs("a", 1, "b", 2), ctx)
	assert.Equal(t, "@{\r\n\t'a' = 1\r\n\t'b' = 2\r\n}", got)
}
