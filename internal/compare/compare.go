// Package compare decides whether two property bags describe the same state.
// Mismatch is data, not failure: the comparator only errors when an input is
// not a property-bag-like shape. Every evaluated key emits one trace line so
// a single pass surfaces every difference, which is why a false verdict does
// not stop evaluation of the remaining keys.
package compare

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/statelit/statelit/internal/errors"
	"github.com/statelit/statelit/internal/expr"
	"github.com/statelit/statelit/internal/values"
)

// Options controls one comparison call. The options are not mutated during
// traversal; recursive calls on nested maps derive fresh copies.
type Options struct {
	// RestrictTo limits the working key set; empty means all desired keys.
	RestrictTo []string
	// Exclude removes keys from the working key set.
	Exclude []string
	// SkipTypeCheck disables the runtime type comparison before value
	// comparison.
	SkipTypeCheck bool
	// SortArrays sorts both arrays independently before element-wise
	// comparison.
	SortArrays bool
	// Reverse additionally runs the whole comparison with current and
	// desired swapped and ANDs the verdicts.
	Reverse bool
}

// Catalog supplies the trace line templates. Each template receives the key,
// the current value and the desired value. An explicit catalog value replaces
// any ambient message state; construct one per comparator.
type Catalog struct {
	Match   string
	NoMatch string
}

// DefaultCatalog returns the built-in English templates.
func DefaultCatalog() Catalog {
	return Catalog{
		Match:   "match: '%s' current=%v desired=%v",
		NoMatch: "no-match: '%s' current=%v desired=%v",
	}
}

// Comparator compares property bags. Construct it once with a catalog and a
// logger; Equal is then safe for repeated use.
type Comparator struct {
	catalog Catalog
	log     *zap.Logger
	ser     *expr.Serializer
}

// New creates a Comparator. A nil logger disables tracing.
func New(catalog Catalog, log *zap.Logger) *Comparator {
	if log == nil {
		log = zap.NewNop()
	}
	if catalog.Match == "" {
		catalog.Match = DefaultCatalog().Match
	}
	if catalog.NoMatch == "" {
		catalog.NoMatch = DefaultCatalog().NoMatch
	}
	return &Comparator{catalog: catalog, log: log, ser: expr.New(nil)}
}

// Equal reports whether current and desired describe the same state under
// opts. Both inputs must be property-bag-like: a *values.Bag, a
// map[string]any, or a plain struct. A struct-backed desired state cannot be
// safely fully enumerated and therefore requires an explicit RestrictTo list.
func (c *Comparator) Equal(current, desired any, opts Options) (bool, error) {
	cur, _, err := toBag(current)
	if err != nil {
		return false, errors.NewCompareError("current state is not comparable", err)
	}
	des, desFromStruct, err := toBag(desired)
	if err != nil {
		return false, errors.NewCompareError("desired state is not comparable", err)
	}
	if desFromStruct && len(opts.RestrictTo) == 0 {
		return false, errors.NewCompareError(
			"desired state is a structured object; pass an explicit property list",
			errors.ErrMissingPropertyList)
	}

	forward := c.equalBags(cur, des, opts)
	if !opts.Reverse {
		return forward, nil
	}

	// The reverse pass always runs, even when the forward verdict is
	// already false, so the trace covers both directions.
	rev := opts
	rev.Reverse = false
	backward := c.equalBags(des, cur, rev)
	return forward && backward, nil
}

// equalBags is the per-key forward algorithm. The verdict, once false,
// cannot become true again, but evaluation continues for the trace.
func (c *Comparator) equalBags(cur, des *values.Bag, opts Options) bool {
	keys := opts.RestrictTo
	if len(keys) == 0 {
		keys = des.Keys()
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, k := range opts.Exclude {
		excluded[k] = struct{}{}
	}

	result := true
	for _, key := range keys {
		if _, skip := excluded[key]; skip {
			continue
		}
		curVal, _ := cur.Get(key)
		desVal, desHas := des.Get(key)
		curVal = normalizeStructured(curVal)
		desVal = normalizeStructured(desVal)

		// Credential special case: only the username component is compared;
		// secret material never is. A mismatch does not short-circuit.
		if cred, ok := desVal.(values.Credential); ok {
			ok := credentialMatch(curVal, cred)
			c.trace(ok, key, curVal, desVal)
			if !ok {
				result = false
			}
			continue
		}

		// Type check: differing runtime types settle the key without
		// comparing values.
		if !opts.SkipTypeCheck && curVal != nil && desVal != nil {
			if reflect.TypeOf(curVal) != reflect.TypeOf(desVal) {
				c.trace(false, key, curVal, desVal)
				result = false
				continue
			}
		}

		// Fast path for scalar equality.
		if !isArray(desVal) && scalarEqual(curVal, desVal) {
			c.trace(true, key, curVal, desVal)
			continue
		}

		// Absence of a constraint is not a mismatch: a restricted property
		// list may name keys the desired bag does not carry.
		if !desHas {
			c.trace(true, key, curVal, desVal)
			continue
		}

		if isArray(desVal) {
			ok := c.arraysEqual(curVal, desVal, opts)
			c.trace(ok, key, curVal, desVal)
			if !ok {
				result = false
			}
			continue
		}

		if curBag, ok := asBag(curVal); ok {
			if desBag, ok := asBag(desVal); ok {
				sub := opts
				sub.RestrictTo = nil
				sub.Reverse = false
				ok := c.equalBags(curBag, desBag, sub)
				c.trace(ok, key, curVal, desVal)
				if !ok {
					result = false
				}
				continue
			}
		}

		a := normalizeBlockAgainst(curVal, desVal)
		b := normalizeBlockAgainst(desVal, curVal)
		ok := scalarEqual(a, b)
		c.trace(ok, key, curVal, desVal)
		if !ok {
			result = false
		}
	}
	return result
}

// arraysEqual compares two array values element-wise. Recursive calls on
// nested maps still execute after the element verdict has gone false; their
// trace output is the point, the discarded boolean is not.
func (c *Comparator) arraysEqual(curVal, desVal any, opts Options) bool {
	des := toSlice(desVal)
	cur, curIsArray := toSliceOk(curVal)

	switch {
	case len(des) == 0 && (curVal == nil || (curIsArray && len(cur) == 0)):
		return true
	case curVal == nil:
		return false
	case !curIsArray:
		return false
	case len(cur) != len(des):
		return false
	}

	if opts.SortArrays {
		cur = c.sorted(cur)
		des = c.sorted(des)
	}

	result := true
	for i := range des {
		a := normalizeStructured(cur[i])
		b := normalizeStructured(des[i])

		if !opts.SkipTypeCheck && a != nil && b != nil {
			if reflect.TypeOf(a) != reflect.TypeOf(b) {
				result = false
				continue
			}
		}

		// Code blocks are not structurally comparable; normalize to text.
		a = normalizeBlockAgainst(a, b)
		b = normalizeBlockAgainst(b, a)

		if aBag, ok := asBag(a); ok {
			if bBag, ok := asBag(b); ok {
				sub := opts
				sub.RestrictTo = nil
				sub.Reverse = false
				ok := c.equalBags(aBag, bBag, sub)
				if !ok {
					result = false
				}
				continue
			}
		}

		if !scalarEqual(a, b) {
			result = false
		}
	}
	return result
}

// sorted returns a copy of items ordered by their compact rendered
// expression, which gives a deterministic order even for mixed-type arrays.
func (c *Comparator) sorted(items []any) []any {
	out := make([]any, len(items))
	copy(out, items)
	ctx := expr.DefaultContext()
	ctx.Expand = -1
	ctx.Strong = true
	sort.SliceStable(out, func(i, j int) bool {
		return c.ser.Serialize(out[i], ctx) < c.ser.Serialize(out[j], ctx)
	})
	return out
}

func (c *Comparator) trace(match bool, key string, cur, des any) {
	tpl := c.catalog.NoMatch
	if match {
		tpl = c.catalog.Match
	}
	c.log.Info(fmt.Sprintf(tpl, key, cur, des))
}

// credentialMatch compares a current value against a desired credential.
// The current side may be a bare username string or a credential; only the
// username component is ever consulted.
func credentialMatch(cur any, des values.Credential) bool {
	switch t := cur.(type) {
	case string:
		return t == des.Username
	case values.Credential:
		return t.Username == des.Username
	default:
		return false
	}
}

// normalizeBlockAgainst converts a script block to comparable text. Against
// a string counterpart the trimmed source is used; otherwise the raw source.
func normalizeBlockAgainst(v, other any) any {
	block, ok := v.(values.ScriptBlock)
	if !ok {
		return v
	}
	if _, isStr := other.(string); isStr {
		return block.Trimmed()
	}
	return block.Source
}

// scalarEqual compares two leaf values by their canonical textual form. Type
// disagreement is the type check's business, not this function's.
func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isContainer(a) || isContainer(b) {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func isContainer(v any) bool {
	if _, ok := asBag(v); ok {
		return true
	}
	return isArray(v)
}

func isArray(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func toSlice(v any) []any {
	s, _ := toSliceOk(v)
	return s
}

func toSliceOk(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asBag(v any) (*values.Bag, bool) {
	switch t := v.(type) {
	case *values.Bag:
		return t, true
	case map[string]any:
		return values.FromMap(t), true
	default:
		return nil, false
	}
}

// toBag normalizes a comparator input to a property bag. The second return
// reports whether the bag came from a plain struct.
func toBag(v any) (*values.Bag, bool, error) {
	if v == nil {
		return nil, false, errors.ErrInvalidInputShape
	}
	if b, ok := asBag(v); ok {
		return b, false, nil
	}
	if b, ok := structToBag(v); ok {
		return b, true, nil
	}
	return nil, false, errors.ErrInvalidInputShape
}

// normalizeStructured converts structured-object-like values to bags before
// comparison. Leaf types with their own comparison rules pass through.
func normalizeStructured(v any) any {
	if b, ok := structToBag(v); ok {
		return b
	}
	if m, ok := v.(map[string]any); ok {
		return values.FromMap(m)
	}
	return v
}

// structToBag converts a plain struct to a bag of its exported fields in
// declaration order. Recognized leaf types are not structs for this purpose.
func structToBag(v any) (*values.Bag, bool) {
	switch v.(type) {
	case nil, *values.Bag, values.Credential, values.SecureString,
		values.ScriptBlock, values.Table, time.Time:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	if _, ok := rv.Interface().(fmt.Stringer); ok {
		// A struct scalar with its own textual form compares as a scalar.
		return nil, false
	}
	bag := values.NewBag()
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		bag.Set(f.Name, rv.Field(i).Interface())
	}
	return bag, true
}
