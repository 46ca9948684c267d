// Package expr renders an in-memory value tree into a textual, re-parseable
// literal expression. Rendering is recursive and depth-bounded: each descent
// increments the context depth, and once the depth limit is reached the
// subtree is replaced by a placeholder literal.
package expr

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/statelit/statelit/internal/classify"
)

// Placeholder is emitted where the depth limit cuts off descent.
const Placeholder = "'...'"

// Context carries the rendering settings for one serialize call. It is
// immutable per recursive call except Depth, which increases by one per
// descent, and ListItem, which each child overrides for its own subtree.
type Context struct {
	Depth      int
	MaxDepth   int
	Expand     int // expansion threshold; negative requests compact output
	IndentUnit int
	IndentChar rune
	Strong     bool
	Explore    bool
	Newline    string
	ListItem   bool
}

// DefaultContext returns the rendering defaults: depth limit 10, expansion
// threshold 4, one tab per indent level, LF newlines, weak typing.
func DefaultContext() Context {
	return Context{
		MaxDepth:   10,
		Expand:     4,
		IndentUnit: 1,
		IndentChar: '\t',
		Newline:    "\n",
	}
}

func (c Context) compact() bool {
	return c.Expand < 0
}

// exhausted reports whether this depth is past the expansion threshold,
// which forces containers to render inline.
func (c Context) exhausted() bool {
	return c.compact() || c.Depth >= c.Expand-1
}

func (c Context) indent(depth int) string {
	return strings.Repeat(string(c.IndentChar), c.IndentUnit*depth)
}

// child derives the context for a descent into a child value.
func (c Context) child(listItem bool) Context {
	c.Depth++
	c.ListItem = listItem
	return c
}

// Serializer renders values classified by its Classifier.
type Serializer struct {
	classifier *classify.Classifier
}

// New creates a Serializer around the given classifier. A nil classifier
// gets default field naming.
func New(c *classify.Classifier) *Serializer {
	if c == nil {
		c = classify.New(nil)
	}
	return &Serializer{classifier: c}
}

// Serialize renders v as a literal expression under ctx. It does not fail on
// well-formed values; objects with no readable properties render as an empty
// map literal. The result is trimmed of trailing whitespace.
func (s *Serializer) Serialize(v any, ctx Context) string {
	return strings.TrimRight(s.render(v, ctx), " \t\r\n")
}

func (s *Serializer) render(v any, ctx Context) string {
	if ctx.Depth >= ctx.MaxDepth {
		return Placeholder
	}

	cl := s.classifier.Classify(v)
	switch cl.Cat {
	case classify.CatNull:
		return "null"
	case classify.CatBool:
		if cl.Bool {
			return "true"
		}
		return "false"
	case classify.CatNumber:
		return s.prefix(cl, ctx) + cl.Text
	case classify.CatString:
		return s.prefix(cl, ctx) + s.quote(cl.Text, ctx)
	case classify.CatTagged, classify.CatDateTime, classify.CatEnum:
		return s.prefix(cl, ctx) + quoteSingle(cl.Text)
	case classify.CatSecure:
		return s.renderSecure(cl, ctx)
	case classify.CatCredential:
		return s.renderCredential(cl, ctx)
	case classify.CatBlock:
		return s.renderBlock(cl, ctx)
	case classify.CatMarkup:
		return s.renderMarkup(cl, ctx)
	case classify.CatSequence:
		return s.renderSequence(cl, ctx)
	case classify.CatMap:
		return s.renderMap(cl, ctx)
	default:
		return "null"
	}
}

// prefix returns the type-cast prefix for a classified value. Strong mode
// always emits the classifier's tag; weak mode emits it only where the
// literal would otherwise be ambiguous about its container type. Explore
// mode suppresses casts entirely unless strong typing is also requested.
func (s *Serializer) prefix(cl classify.Class, ctx Context) string {
	if ctx.Explore && !ctx.Strong {
		return ""
	}
	if cl.Tag == "" {
		return ""
	}
	if ctx.Strong || cl.Cast {
		return "[" + cl.Tag + "]"
	}
	return ""
}

func (s *Serializer) renderSecure(cl classify.Class, ctx Context) string {
	plain, err := cl.Secure.Reveal()
	if err != nil {
		// An unopenable secret still round-trips as a protect expression;
		// the placeholder marks the unreadable payload.
		return "(protect " + Placeholder + ")"
	}
	return "(protect " + s.quote(plain, ctx) + ")"
}

func (s *Serializer) renderCredential(cl classify.Class, ctx Context) string {
	secret, err := cl.Cred.Secret.Reveal()
	inner := "(protect " + Placeholder + ")"
	if err == nil {
		inner = "(protect " + s.quote(secret, ctx) + ")"
	}
	return "(credential " + quoteSingle(cl.Cred.Username) + " " + inner + ")"
}

func (s *Serializer) renderBlock(cl classify.Class, ctx Context) string {
	src := cl.Block.Source
	if cl.Block.HasComment() {
		// A trailing comment would swallow the closing brace.
		return "{" + src + ctx.Newline + "}"
	}
	return "{" + src + "}"
}

func (s *Serializer) renderMarkup(cl classify.Class, ctx Context) string {
	indent := ctx.IndentUnit
	if indent < 2 {
		indent = 2
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(cl.Node); err != nil {
		return "@{}"
	}
	_ = enc.Close()
	text := strings.TrimRight(buf.String(), "\n")
	return heredoc(text, ctx)
}

func (s *Serializer) renderSequence(cl classify.Class, ctx Context) string {
	pre := s.prefix(cl, ctx)

	switch len(cl.Items) {
	case 0:
		return pre + "@()"
	case 1:
		// Singleton wrapper: round-tripping must not collapse a one-element
		// sequence to a scalar. The punctuation differs between list-item
		// and standalone position.
		inner := s.render(cl.Items[0], ctx.child(true))
		if ctx.ListItem {
			return pre + "(," + inner + ")"
		}
		return pre + "," + inner
	}

	if ctx.exhausted() || cl.PrimitiveItems {
		sep := ", "
		if ctx.compact() {
			sep = ","
		}
		parts := make([]string, len(cl.Items))
		for i, item := range cl.Items {
			parts[i] = s.render(item, ctx.child(true))
		}
		return pre + "@(" + strings.Join(parts, sep) + ")"
	}

	var b strings.Builder
	b.WriteString(pre)
	b.WriteString("@(")
	for _, item := range cl.Items {
		b.WriteString(ctx.Newline)
		b.WriteString(ctx.indent(ctx.Depth + 1))
		b.WriteString(s.render(item, ctx.child(true)))
	}
	b.WriteString(ctx.Newline)
	b.WriteString(ctx.indent(ctx.Depth))
	b.WriteString(")")
	return b.String()
}

func (s *Serializer) renderMap(cl classify.Class, ctx Context) string {
	pre := s.prefix(cl, ctx)

	if len(cl.Entries) == 0 {
		return pre + "@{}"
	}

	if ctx.compact() {
		parts := make([]string, len(cl.Entries))
		for i, e := range cl.Entries {
			parts[i] = quoteSingle(e.Key) + "=" + s.render(e.Value, ctx.child(false))
		}
		return pre + "@{" + strings.Join(parts, ";") + "}"
	}

	if len(cl.Entries) == 1 || ctx.exhausted() {
		parts := make([]string, len(cl.Entries))
		for i, e := range cl.Entries {
			parts[i] = quoteSingle(e.Key) + " = " + s.render(e.Value, ctx.child(false))
		}
		return pre + "@{" + strings.Join(parts, "; ") + "}"
	}

	var b strings.Builder
	b.WriteString(pre)
	b.WriteString("@{")
	for _, e := range cl.Entries {
		b.WriteString(ctx.Newline)
		b.WriteString(ctx.indent(ctx.Depth + 1))
		b.WriteString(quoteSingle(e.Key))
		b.WriteString(" = ")
		b.WriteString(s.render(e.Value, ctx.child(false)))
	}
	b.WriteString(ctx.Newline)
	b.WriteString(ctx.indent(ctx.Depth))
	b.WriteString("}")
	return b.String()
}

// quote renders a string literal. Multi-line strings use the raw here-string
// form, preserving embedded newlines verbatim instead of escaping them.
func (s *Serializer) quote(text string, ctx Context) string {
	if strings.Contains(text, "\n") {
		return heredoc(text, ctx)
	}
	return quoteSingle(text)
}

func quoteSingle(text string) string {
	return "'" + strings.ReplaceAll(text, "'", "''") + "'"
}

func heredoc(text string, ctx Context) string {
	return "@'" + ctx.Newline + text + ctx.Newline + "'@"
}
