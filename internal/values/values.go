// Package values defines the domain types the serializer, extractor and
// comparator exchange: the ordered property bag plus the handful of special
// leaf types (secure strings, credentials, script blocks, tables) that need
// their own rendering and comparison rules.
package values

import (
	"sort"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/statelit/statelit/internal/secure"
)

// Bag is an ordered map from property name to an arbitrary value. It is the
// common interchange shape for configuration state: keys are unique, key
// order is irrelevant for comparison but preserved for serialization.
type Bag struct {
	om *orderedmap.OrderedMap
}

// NewBag creates an empty property bag.
func NewBag() *Bag {
	return &Bag{om: orderedmap.New()}
}

// FromMap builds a Bag from a plain Go map. Keys are sorted so the result is
// deterministic regardless of map iteration order.
func FromMap(m map[string]any) *Bag {
	b := NewBag()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Set(k, m[k])
	}
	return b
}

// FromPairs builds a Bag from alternating key, value arguments, preserving
// the given order. Panics on an odd argument count or a non-string key; it is
// intended for literal construction in code and tests.
func FromPairs(pairs ...any) *Bag {
	if len(pairs)%2 != 0 {
		panic("values.FromPairs: odd number of arguments")
	}
	b := NewBag()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("values.FromPairs: key is not a string")
		}
		b.Set(key, pairs[i+1])
	}
	return b
}

// Set stores value under key, appending the key if it is new.
func (b *Bag) Set(key string, value any) {
	b.om.Set(key, value)
}

// Get returns the value stored under key and whether it exists.
func (b *Bag) Get(key string) (any, bool) {
	return b.om.Get(key)
}

// Has reports whether key exists in the bag.
func (b *Bag) Has(key string) bool {
	_, ok := b.om.Get(key)
	return ok
}

// Delete removes key from the bag if present.
func (b *Bag) Delete(key string) {
	b.om.Delete(key)
}

// Keys returns the property names in insertion order.
func (b *Bag) Keys() []string {
	return b.om.Keys()
}

// Len returns the number of properties.
func (b *Bag) Len() int {
	return len(b.om.Keys())
}

// Clone returns a shallow copy of the bag. Nested bags and slices are shared
// with the original.
func (b *Bag) Clone() *Bag {
	out := NewBag()
	for _, k := range b.om.Keys() {
		v, _ := b.om.Get(k)
		out.Set(k, v)
	}
	return out
}

// MarshalJSON serializes the bag as a JSON object preserving key order.
func (b *Bag) MarshalJSON() ([]byte, error) {
	return b.om.MarshalJSON()
}

// UnmarshalJSON parses a JSON object into the bag, preserving the source key
// order. Nested objects become nested *Bag values.
func (b *Bag) UnmarshalJSON(data []byte) error {
	om := orderedmap.New()
	if err := om.UnmarshalJSON(data); err != nil {
		return err
	}
	b.om = orderedmap.New()
	for _, k := range om.Keys() {
		v, _ := om.Get(k)
		b.om.Set(k, normalizeJSON(v))
	}
	return nil
}

// normalizeJSON converts the orderedmap decoding shapes into bag shapes.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case orderedmap.OrderedMap:
		return fromOrderedMap(&t)
	case *orderedmap.OrderedMap:
		return fromOrderedMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeJSON(e)
		}
		return out
	default:
		return v
	}
}

func fromOrderedMap(om *orderedmap.OrderedMap) *Bag {
	b := NewBag()
	for _, k := range om.Keys() {
		v, _ := om.Get(k)
		b.Set(k, normalizeJSON(v))
	}
	return b
}

// SecureString is an encrypted textual value. The plaintext is recoverable
// only through the Keeper it was sealed under; rendering always wraps the
// revealed text in a protect expression, never emits it bare.
type SecureString struct {
	box    []byte
	keeper *secure.Keeper
}

// NewSecureString seals plain under the given keeper.
func NewSecureString(plain string, keeper *secure.Keeper) (SecureString, error) {
	box, err := keeper.Seal(plain)
	if err != nil {
		return SecureString{}, err
	}
	return SecureString{box: box, keeper: keeper}, nil
}

// Reveal decrypts and returns the plaintext.
func (s SecureString) Reveal() (string, error) {
	return s.keeper.Open(s.box)
}

// String implements fmt.Stringer without exposing the plaintext.
func (s SecureString) String() string {
	return "(protect ...)"
}

// Credential pairs a username with a secret. Comparison only ever considers
// the username component; the secret is carried for reconstruction.
type Credential struct {
	Username string
	Secret   SecureString
}

// NewCredential builds a credential, sealing the secret under keeper.
func NewCredential(username, secret string, keeper *secure.Keeper) (Credential, error) {
	s, err := NewSecureString(secret, keeper)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Username: username, Secret: s}, nil
}

// ScriptBlock is a fragment of executable source carried as text. It is never
// evaluated by this module; it only round-trips through serialization and is
// normalized to its source text for comparison.
type ScriptBlock struct {
	Source string `json:"script"`
}

// Trimmed returns the source with surrounding whitespace removed, the form
// used when a block is compared against a plain string.
func (s ScriptBlock) Trimmed() string {
	return strings.TrimSpace(s.Source)
}

// HasComment reports whether the source contains a line comment. A block with
// a trailing comment needs a newline before its closing brace, otherwise the
// brace is swallowed by the comment.
func (s ScriptBlock) HasComment() bool {
	return strings.Contains(s.Source, "#")
}

// Table is a tabular container. Serialization flattens it to its row
// collection.
type Table struct {
	Rows []*Bag
}
