// Package classify inspects a value's runtime shape and routes it to the
// textual rendering rule the serializer should apply. Classification is a
// closed set of categories evaluated in a fixed order; the order matters
// because some categories are subsets of others (a time.Time is also a
// struct, a named integer is also a number).
package classify

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/statelit/statelit/internal/values"
)

// Category identifies the rendering rule for a classified value.
type Category int

const (
	CatNull Category = iota
	CatBool
	CatNumber
	CatString
	CatTagged // quoted string carrying a type tag
	CatSecure
	CatCredential
	CatDateTime
	CatEnum // symbolic enumeration name, quoted and tagged
	CatBlock
	CatMarkup
	CatSequence
	CatMap
)

// String returns the category name, for traces and tests.
func (c Category) String() string {
	switch c {
	case CatNull:
		return "null"
	case CatBool:
		return "bool"
	case CatNumber:
		return "number"
	case CatString:
		return "string"
	case CatTagged:
		return "tagged"
	case CatSecure:
		return "secure"
	case CatCredential:
		return "credential"
	case CatDateTime:
		return "datetime"
	case CatEnum:
		return "enum"
	case CatBlock:
		return "block"
	case CatMarkup:
		return "markup"
	case CatSequence:
		return "sequence"
	case CatMap:
		return "map"
	default:
		return "unknown"
	}
}

// Entry is one ordered key/value pair of a classified map.
type Entry struct {
	Key   string
	Value any
}

// Class is the classification result the serializer consumes. Only the
// fields relevant to Cat are populated.
type Class struct {
	Cat  Category
	Tag  string // type tag emitted in strong mode
	Cast bool   // emit Tag even in weak mode: container type differs from the literal default
	Text string // scalar payload (string, number text, tag payload, date text)
	Bool bool

	Secure values.SecureString
	Cred   values.Credential
	Block  values.ScriptBlock
	Node   *yaml.Node

	Entries []Entry
	Items   []any
	// PrimitiveItems is true when every sequence element is a bare scalar;
	// such sequences render inline regardless of the expansion threshold.
	PrimitiveItems bool
}

// Namer converts a struct field name to a property key.
type Namer func(string) string

// Classifier classifies runtime values. The zero value uses field names
// verbatim as property keys.
type Classifier struct {
	Name Namer
}

// New creates a Classifier with the given field-naming rule. A nil namer
// keeps field names unchanged.
func New(name Namer) *Classifier {
	if name == nil {
		name = func(s string) string { return s }
	}
	return &Classifier{Name: name}
}

// Classify determines the rendering category of v. It is pure and never
// fails: unknown shapes fall through to the generic structured-object rule,
// and a value with no readable properties classifies as an empty map.
func (c *Classifier) Classify(v any) Class {
	if v == nil {
		return Class{Cat: CatNull}
	}

	switch t := v.(type) {
	case bool:
		return Class{Cat: CatBool, Bool: t, Tag: "bool"}
	case *mail.Address:
		return Class{Cat: CatTagged, Tag: "mail.Address", Text: t.Address}
	case *regexp.Regexp:
		return Class{Cat: CatTagged, Tag: "regexp", Text: t.String()}
	case *semver.Version:
		return Class{Cat: CatTagged, Tag: "semver.Version", Text: t.String()}
	case reflect.Type:
		return Class{Cat: CatTagged, Tag: "type", Text: t.String()}
	case uuid.UUID:
		return Class{Cat: CatTagged, Tag: "uuid.UUID", Text: t.String()}
	case *url.URL:
		return Class{Cat: CatTagged, Tag: "url.URL", Text: t.String()}
	case json.Number:
		return Class{Cat: CatNumber, Text: string(t), Tag: "number"}
	case string:
		return Class{Cat: CatString, Text: t, Tag: "string"}
	case values.SecureString:
		return Class{Cat: CatSecure, Secure: t}
	case values.Credential:
		return Class{Cat: CatCredential, Cred: t}
	case time.Time:
		return Class{Cat: CatDateTime, Tag: "time.Time", Text: t.Format(time.RFC3339Nano)}
	case values.ScriptBlock:
		return Class{Cat: CatBlock, Block: t}
	case *yaml.Node:
		return Class{Cat: CatMarkup, Node: t}
	case values.Table:
		// Tabular containers flatten to their row collection.
		items := make([]any, len(t.Rows))
		for i, r := range t.Rows {
			items[i] = r
		}
		return Class{Cat: CatSequence, Items: items, Tag: "array"}
	case *values.Bag:
		entries := make([]Entry, 0, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			entries = append(entries, Entry{Key: k, Value: val})
		}
		return Class{Cat: CatMap, Tag: "ordered", Entries: entries}
	}

	return c.classifyReflect(reflect.ValueOf(v))
}

func (c *Classifier) classifyReflect(rv reflect.Value) Class {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if cl, ok := c.classifyNamedInt(rv); ok {
			return cl
		}
		return Class{Cat: CatNumber, Text: strconv.FormatInt(rv.Int(), 10), Tag: rv.Type().String()}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		// Handle-like uintptr values always render numerically.
		if rv.Kind() != reflect.Uintptr {
			if cl, ok := c.classifyNamedInt(rv); ok {
				return cl
			}
		}
		return Class{Cat: CatNumber, Text: strconv.FormatUint(rv.Uint(), 10), Tag: rv.Type().String()}
	case reflect.Float32, reflect.Float64:
		return Class{Cat: CatNumber, Text: formatFloat(rv.Float()), Tag: rv.Type().String()}
	case reflect.String:
		return Class{Cat: CatString, Text: rv.String(), Tag: "string"}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Class{Cat: CatNull}
		}
		return c.Classify(rv.Elem().Interface())
	case reflect.Map:
		return c.classifyMap(rv)
	case reflect.Slice, reflect.Array:
		return c.classifySequence(rv)
	case reflect.Struct:
		return c.classifyStruct(rv)
	default:
		// No enumerable properties and no indexable values: degrade to an
		// empty map literal rather than failing.
		return Class{Cat: CatMap}
	}
}

// classifyNamedInt applies the enumeration rule: a defined integer type that
// implements fmt.Stringer renders its symbolic name; defined integer types
// without a symbolic form (flags, opaque handles) render numerically via the
// generic number rule.
func (c *Classifier) classifyNamedInt(rv reflect.Value) (Class, bool) {
	t := rv.Type()
	if t.PkgPath() == "" {
		return Class{}, false
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return Class{Cat: CatEnum, Tag: t.String(), Text: s.String()}, true
	}
	return Class{}, false
}

func (c *Classifier) classifyMap(rv reflect.Value) Class {
	keys := make([]string, 0, rv.Len())
	byKey := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := fmt.Sprint(iter.Key().Interface())
		keys = append(keys, k)
		byKey[k] = iter.Value().Interface()
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: byKey[k]})
	}
	// A plain Go map is not the literal's natural ordered default, so the
	// hashtable cast survives even in weak typing mode.
	return Class{Cat: CatMap, Tag: "hashtable", Cast: true, Entries: entries}
}

func (c *Classifier) classifySequence(rv reflect.Value) Class {
	items := make([]any, rv.Len())
	primitive := true
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		items[i] = item
		if !isPrimitive(item) {
			primitive = false
		}
	}
	cl := Class{Cat: CatSequence, Tag: "array", Items: items, PrimitiveItems: primitive}
	// []any is the natural sequence default; element-typed slices keep an
	// explicit array cast so the literal does not silently widen.
	if rv.Type() != reflect.TypeOf([]any(nil)) && rv.Kind() == reflect.Slice {
		cl.Cast = true
	}
	if rv.Kind() == reflect.Array {
		cl.Cast = true
	}
	return cl
}

func (c *Classifier) classifyStruct(rv reflect.Value) Class {
	t := rv.Type()
	// A value-type scalar with its own textual form renders as a quoted,
	// tagged string (netip.Addr and friends).
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return Class{Cat: CatTagged, Tag: t.String(), Text: s.String()}
	}

	// Generic structured object: enumerate exported fields in declaration
	// order and treat as an ordered map.
	entries := make([]Entry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		entries = append(entries, Entry{Key: c.Name(f.Name), Value: rv.Field(i).Interface()})
	}
	return Class{Cat: CatMap, Entries: entries}
}

// isPrimitive reports whether v is a bare scalar for the purpose of the
// inline-sequence rule.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64:
		return true
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
