package classify

import (
	"encoding/json"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statelit/statelit/internal/secure"
	"github.com/statelit/statelit/internal/values"
)

// weekday is a symbolic enumeration for tests.
type weekday int

func (w weekday) String() string {
	return [...]string{"Sunday", "Monday", "Tuesday"}[w]
}

// handle is a named integer without a symbolic form.
type handle int

func TestClassifyScalars(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name     string
		input    any
		wantCat  Category
		wantText string
	}{
		{name: "nil", input: nil, wantCat: CatNull},
		{name: "true", input: true, wantCat: CatBool},
		{name: "int", input: 42, wantCat: CatNumber, wantText: "42"},
		{name: "negative int", input: -7, wantCat: CatNumber, wantText: "-7"},
		{name: "float", input: 2.5, wantCat: CatNumber, wantText: "2.5"},
		{name: "json number", input: json.Number("3"), wantCat: CatNumber, wantText: "3"},
		{name: "string", input: "hello", wantCat: CatString, wantText: "hello"},
		{name: "uintptr handle", input: uintptr(88), wantCat: CatNumber, wantText: "88"},
		{name: "named int without stringer", input: handle(5), wantCat: CatNumber, wantText: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := c.Classify(tt.input)
			assert.Equal(t, tt.wantCat, cl.Cat)
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, cl.Text)
			}
		})
	}
}

func TestClassifyTaggedStrings(t *testing.T) {
	c := New(nil)
	addr, err := mail.ParseAddress("ops@example.com")
	require.NoError(t, err)
	u, err := url.Parse("https://example.com/x")
	require.NoError(t, err)
	ver := semver.MustParse("1.2.3")
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name     string
		input    any
		wantTag  string
		wantText string
	}{
		{name: "mail address", input: addr, wantTag: "mail.Address", wantText: "ops@example.com"},
		{name: "regexp", input: regexp.MustCompile(`^a+$`), wantTag: "regexp", wantText: "^a+$"},
		{name: "semver", input: ver, wantTag: "semver.Version", wantText: "1.2.3"},
		{name: "type reference", input: reflect.TypeOf(0), wantTag: "type", wantText: "int"},
		{name: "uuid", input: id, wantTag: "uuid.UUID", wantText: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "url", input: u, wantTag: "url.URL", wantText: "https://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := c.Classify(tt.input)
			assert.Equal(t, CatTagged, cl.Cat)
			assert.Equal(t, tt.wantTag, cl.Tag)
			assert.Equal(t, tt.wantText, cl.Text)
		})
	}
}

func TestClassifyDateTime(t *testing.T) {
	c := New(nil)
	ts := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	cl := c.Classify(ts)
	assert.Equal(t, CatDateTime, cl.Cat)
	assert.Equal(t, "time.Time", cl.Tag)
	assert.Equal(t, "2026-08-25T10:30:00Z", cl.Text)
}

func TestClassifyEnum(t *testing.T) {
	c := New(nil)

	cl := c.Classify(weekday(1))
	assert.Equal(t, CatEnum, cl.Cat)
	assert.Equal(t, "Monday", cl.Text)
	assert.Contains(t, cl.Tag, "weekday")
}

func TestClassifySecureAndCredential(t *testing.T) {
	c := New(nil)
	keeper := secure.ProcessKeeper()

	s, err := values.NewSecureString("pw", keeper)
	require.NoError(t, err)
	assert.Equal(t, CatSecure, c.Classify(s).Cat)

	cred, err := values.NewCredential("alice", "pw", keeper)
	require.NoError(t, err)
	cl := c.Classify(cred)
	assert.Equal(t, CatCredential, cl.Cat)
	assert.Equal(t, "alice", cl.Cred.Username)
}

func TestClassifyScriptBlock(t *testing.T) {
	c := New(nil)
	cl := c.Classify(values.ScriptBlock{Source: " restart "})
	assert.Equal(t, CatBlock, cl.Cat)
	assert.Equal(t, " restart ", cl.Block.Source)
}

func TestClassifyBagIsOrderedMap(t *testing.T) {
	c := New(nil)
	bag := values.FromPairs("z", 1, "a", 2)

	cl := c.Classify(bag)
	require.Equal(t, CatMap, cl.Cat)
	assert.Equal(t, "ordered", cl.Tag)
	assert.False(t, cl.Cast, "the bag is the literal's natural default")
	require.Len(t, cl.Entries, 2)
	assert.Equal(t, "z", cl.Entries[0].Key)
	assert.Equal(t, "a", cl.Entries[1].Key)
}

func TestClassifyPlainMapSortsKeysAndCasts(t *testing.T) {
	c := New(nil)
	cl := c.Classify(map[string]any{"b": 2, "a": 1})

	require.Equal(t, CatMap, cl.Cat)
	assert.Equal(t, "hashtable", cl.Tag)
	assert.True(t, cl.Cast, "plain maps keep their cast even in weak mode")
	require.Len(t, cl.Entries, 2)
	assert.Equal(t, "a", cl.Entries[0].Key)
	assert.Equal(t, "b", cl.Entries[1].Key)
}

func TestClassifySequences(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name          string
		input         any
		wantLen       int
		wantPrimitive bool
		wantCast      bool
	}{
		{name: "any slice of scalars", input: []any{1, "a"}, wantLen: 2, wantPrimitive: true, wantCast: false},
		{name: "typed slice", input: []string{"a", "b"}, wantLen: 2, wantPrimitive: true, wantCast: true},
		{name: "slice with container", input: []any{1, map[string]any{"a": 1}}, wantLen: 2, wantPrimitive: false, wantCast: false},
		{name: "empty", input: []any{}, wantLen: 0, wantPrimitive: true, wantCast: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := c.Classify(tt.input)
			require.Equal(t, CatSequence, cl.Cat)
			assert.Len(t, cl.Items, tt.wantLen)
			assert.Equal(t, tt.wantPrimitive, cl.PrimitiveItems)
			assert.Equal(t, tt.wantCast, cl.Cast)
		})
	}
}

func TestClassifyTableFlattensToRows(t *testing.T) {
	c := New(nil)
	table := values.Table{Rows: []*values.Bag{
		values.FromPairs("id", 1),
		values.FromPairs("id", 2),
	}}

	cl := c.Classify(table)
	require.Equal(t, CatSequence, cl.Cat)
	assert.Len(t, cl.Items, 2)
}

func TestClassifyStructFallback(t *testing.T) {
	type service struct {
		Name    string
		Retries int
		hidden  bool
	}

	c := New(nil)
	cl := c.Classify(service{Name: "svc", Retries: 3})

	require.Equal(t, CatMap, cl.Cat)
	require.Len(t, cl.Entries, 2, "unexported fields are not enumerated")
	assert.Equal(t, "Name", cl.Entries[0].Key)
	assert.Equal(t, "Retries", cl.Entries[1].Key)
}

func TestClassifyStructWithNamer(t *testing.T) {
	type service struct {
		ServiceName string
	}

	c := New(strcase.ToSnake)
	cl := c.Classify(service{ServiceName: "svc"})

	require.Len(t, cl.Entries, 1)
	assert.Equal(t, "service_name", cl.Entries[0].Key)
}

func TestClassifyStructScalarWithStringer(t *testing.T) {
	c := New(nil)
	cl := c.Classify(5 * time.Second)

	assert.Equal(t, CatEnum, cl.Cat, "a named integer with a symbolic form")
	assert.Equal(t, "5s", cl.Text)
}

func TestClassifyPointerDereference(t *testing.T) {
	c := New(nil)
	s := "hello"

	cl := c.Classify(&s)
	assert.Equal(t, CatString, cl.Cat)
	assert.Equal(t, "hello", cl.Text)

	var nilPtr *string
	assert.Equal(t, CatNull, c.Classify(nilPtr).Cat)
}

func TestClassifyUnreadableDegradesToEmptyMap(t *testing.T) {
	c := New(nil)

	cl := c.Classify(struct{}{})
	assert.Equal(t, CatMap, cl.Cat)
	assert.Empty(t, cl.Entries)

	ch := make(chan int)
	cl = c.Classify(ch)
	assert.Equal(t, CatMap, cl.Cat)
	assert.Empty(t, cl.Entries)
}
