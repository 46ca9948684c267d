// Package extract reconstructs literal values from a textual argument
// fragment. The fragment is treated as the argument list of a synthetic
// command that is never invoked: a restricted grammar parser produces a
// literal tree and nothing is ever evaluated. Anything that is not a string,
// number, boolean, null, map, collection or code-block literal — a variable
// reference, a command substitution — is a hard error.
package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/statelit/statelit/internal/errors"
	"github.com/statelit/statelit/internal/values"
)

// Kind discriminates the literal variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindBlock
	KindMap
	KindCollection
)

// Literal is one reconstructed literal value.
type Literal struct {
	Kind    Kind
	Bool    bool
	Num     json.Number
	Str     string // string payload, or block source text
	Entries []Entry
	Items   []*Literal
}

// Entry is one ordered key/value pair of a map literal.
type Entry struct {
	Key   string
	Value *Literal
}

// Interface converts the literal tree into the domain value shapes: maps
// become property bags, collections become []any, blocks become script
// blocks.
func (l *Literal) Interface() any {
	switch l.Kind {
	case KindNull:
		return nil
	case KindBool:
		return l.Bool
	case KindNumber:
		return l.Num
	case KindString:
		return l.Str
	case KindBlock:
		return values.ScriptBlock{Source: l.Str}
	case KindMap:
		bag := values.NewBag()
		for _, e := range l.Entries {
			bag.Set(e.Key, e.Value.Interface())
		}
		return bag
	case KindCollection:
		items := make([]any, len(l.Items))
		for i, item := range l.Items {
			items[i] = item.Interface()
		}
		return items
	default:
		return nil
	}
}

// Extract reads an argument fragment from r and reconstructs its literals.
func Extract(r io.Reader) ([]*Literal, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInputError("failed to read input", err)
	}
	return ExtractString(string(data))
}

// ExtractString parses text as an argument list of literals. A parse failure
// yields no literals and a MalformedLiteral error; a structurally valid
// argument of an unsupported shape yields an UnsupportedArgument error.
func ExtractString(text string) ([]*Literal, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	p := &parser{src: text}
	lits, err := p.arguments()
	if err != nil {
		return nil, err
	}
	return lits, nil
}

// ExtractFile parses an argument fragment from a file.
func ExtractFile(path string) ([]*Literal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", path), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", path), err)
	}
	if stat.Size() == 0 {
		return nil, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", path), errors.ErrFileEmpty)
	}

	return Extract(file)
}

// parser is a recursive-descent parser over the literal grammar. It walks
// the source once; position only ever advances.
type parser struct {
	src string
	pos int
}

func (p *parser) malformed(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errors.NewExtractError(
		fmt.Sprintf("%s at offset %d", msg, p.pos), errors.ErrMalformedLiteral)
}

func (p *parser) unsupported(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return errors.NewExtractError(
		fmt.Sprintf("%s at offset %d", msg, p.pos), errors.ErrUnsupportedArgument)
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

// skipSpace advances over whitespace and comments. Newlines are consumed
// when newlines is true; container parsers keep them as separators.
func (p *parser) skipSpace(newlines bool) {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '\n' && newlines:
			p.pos++
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// arguments parses the top-level argument list: whitespace-separated values,
// with comma-adjacent values folding into a single collection argument.
func (p *parser) arguments() ([]*Literal, error) {
	var out []*Literal
	for {
		p.skipSpace(true)
		if p.eof() {
			return out, nil
		}
		lit, err := p.valueList(true)
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
}

// valueList parses one value followed by any comma-joined siblings. Two or
// more comma-joined values form a collection; a single value stays itself.
// When newlines is true a comma may be followed by a line break before the
// next element.
func (p *parser) valueList(newlines bool) (*Literal, error) {
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	items := []*Literal{first}
	for {
		p.skipSpace(false)
		if p.peek() != ',' {
			break
		}
		p.pos++
		p.skipSpace(newlines)
		next, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
	}
	if len(items) == 1 {
		return first, nil
	}
	return &Literal{Kind: KindCollection, Items: items}, nil
}

// value parses a single literal value, including any leading type casts and
// the unary-comma singleton form.
func (p *parser) value() (*Literal, error) {
	p.skipSpace(false)
	if p.eof() {
		return nil, p.malformed("unexpected end of input")
	}

	switch c := p.peek(); {
	case c == '[':
		// Type cast prefix: consumed as a re-parse hint, the literal shape
		// that follows carries the value.
		if err := p.skipCast(); err != nil {
			return nil, err
		}
		return p.value()
	case c == ',':
		// Unary comma: a one-element collection.
		p.pos++
		p.skipSpace(false)
		inner, err := p.value()
		if err != nil {
			return nil, err
		}
		return &Literal{Kind: KindCollection, Items: []*Literal{inner}}, nil
	case c == '@':
		switch p.peekAt(1) {
		case '{':
			return p.mapLiteral()
		case '(':
			return p.collection()
		case '\'':
			return p.hereString()
		default:
			return nil, p.malformed("unexpected '@'")
		}
	case c == '\'':
		return p.quotedString()
	case c == '{':
		return p.block()
	case c == '(':
		return p.paren()
	case c == '$':
		return nil, p.unsupported("variable references cannot be extracted")
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		return p.keyword()
	default:
		return nil, p.malformed("unexpected character %q", c)
	}
}

func (p *parser) skipCast() error {
	start := p.pos
	p.pos++ // '['
	for !p.eof() && p.src[p.pos] != ']' {
		p.pos++
	}
	if p.eof() {
		p.pos = start
		return p.malformed("unterminated type cast")
	}
	p.pos++ // ']'
	return nil
}

// mapLiteral parses @{ 'key' = value; ... }. Entries are separated by
// semicolons or line breaks. A code-block entry value is normalized: if its
// source is fully wrapped in one extra pair of braces they are stripped, so
// later re-serialization does not double-wrap it.
func (p *parser) mapLiteral() (*Literal, error) {
	p.pos += 2 // '@{'
	lit := &Literal{Kind: KindMap}
	for {
		p.skipSeparators(";")
		if p.eof() {
			return nil, p.malformed("unterminated map literal")
		}
		if p.peek() == '}' {
			p.pos++
			return lit, nil
		}

		key, err := p.mapKey()
		if err != nil {
			return nil, err
		}
		p.skipSpace(false)
		if p.peek() != '=' {
			return nil, p.malformed("expected '=' after map key %q", key)
		}
		p.pos++
		p.skipSpace(false)
		val, err := p.valueList(false)
		if err != nil {
			return nil, err
		}
		if val.Kind == KindBlock {
			val.Str = normalizeBlockSource(val.Str)
		}
		lit.Entries = append(lit.Entries, Entry{Key: key, Value: val})
	}
}

func (p *parser) mapKey() (string, error) {
	if p.peek() == '\'' {
		lit, err := p.quotedString()
		if err != nil {
			return "", err
		}
		return lit.Str, nil
	}
	if isIdentStart(p.peek()) {
		start := p.pos
		for !p.eof() && isIdentChar(p.src[p.pos]) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	}
	return "", p.malformed("expected map key")
}

// collection parses @( value, ... ). Elements are separated by commas or
// line breaks.
func (p *parser) collection() (*Literal, error) {
	p.pos += 2 // '@('
	lit := &Literal{Kind: KindCollection, Items: []*Literal{}}
	for {
		p.skipSeparators(",")
		if p.eof() {
			return nil, p.malformed("unterminated collection literal")
		}
		if p.peek() == ')' {
			p.pos++
			return lit, nil
		}
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		lit.Items = append(lit.Items, item)
	}
}

// paren handles a parenthesized argument. The only literal shape it admits
// is the singleton collection (,value); anything else inside parentheses is
// a grouping or command substitution, which extraction must reject.
func (p *parser) paren() (*Literal, error) {
	p.pos++ // '('
	p.skipSpace(true)
	if p.peek() != ',' {
		return nil, p.unsupported("parenthesized expressions cannot be extracted")
	}
	p.pos++
	p.skipSpace(true)
	inner, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace(true)
	if p.peek() != ')' {
		return nil, p.malformed("expected ')' to close singleton")
	}
	p.pos++
	return &Literal{Kind: KindCollection, Items: []*Literal{inner}}, nil
}

// block scans a { ... } code block as raw text, honouring nested braces,
// single-quoted strings and line comments. The block is carried as source
// text only.
func (p *parser) block() (*Literal, error) {
	start := p.pos
	p.pos++ // '{'
	depth := 1
	for !p.eof() {
		switch p.src[p.pos] {
		case '{':
			depth++
			p.pos++
		case '}':
			depth--
			p.pos++
			if depth == 0 {
				return &Literal{Kind: KindBlock, Str: p.src[start+1 : p.pos-1]}, nil
			}
		case '\'':
			if err := p.skipQuoted(); err != nil {
				return nil, err
			}
		case '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			p.pos++
		}
	}
	p.pos = start
	return nil, p.malformed("unterminated code block")
}

func (p *parser) quotedString() (*Literal, error) {
	start := p.pos
	var b strings.Builder
	p.pos++ // opening quote
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\'' {
			if p.peekAt(1) == '\'' {
				b.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return &Literal{Kind: KindString, Str: b.String()}, nil
		}
		b.WriteByte(c)
		p.pos++
	}
	p.pos = start
	return nil, p.malformed("unterminated string literal")
}

// skipQuoted advances over a single-quoted string without collecting it.
func (p *parser) skipQuoted() error {
	start := p.pos
	p.pos++
	for !p.eof() {
		if p.src[p.pos] == '\'' {
			if p.peekAt(1) == '\'' {
				p.pos += 2
				continue
			}
			p.pos++
			return nil
		}
		p.pos++
	}
	p.pos = start
	return p.malformed("unterminated string literal")
}

// hereString parses the raw multi-line form @' NL text NL '@.
func (p *parser) hereString() (*Literal, error) {
	start := p.pos
	p.pos += 2 // @'
	if p.peek() == '\r' {
		p.pos++
	}
	if p.peek() != '\n' {
		return nil, p.malformed("here-string must start on a new line")
	}
	p.pos++
	end := strings.Index(p.src[p.pos:], "\n'@")
	if end < 0 {
		p.pos = start
		return nil, p.malformed("unterminated here-string")
	}
	text := strings.TrimSuffix(p.src[p.pos:p.pos+end], "\r")
	p.pos += end + len("\n'@")
	return &Literal{Kind: KindString, Str: text}, nil
}

func (p *parser) number() (*Literal, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	digits := 0
	for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
		digits++
	}
	if digits == 0 {
		return nil, p.malformed("malformed number")
	}
	if p.peek() == '.' {
		p.pos++
		for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		p.pos++
		if c := p.peek(); c == '-' || c == '+' {
			p.pos++
		}
		for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
	}
	return &Literal{Kind: KindNumber, Num: json.Number(p.src[start:p.pos])}, nil
}

// keyword parses the bare tokens null, true and false. Any other bare word
// looks like a command name or parameter, which extraction cannot honour.
func (p *parser) keyword() (*Literal, error) {
	start := p.pos
	for !p.eof() && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "null":
		return &Literal{Kind: KindNull}, nil
	case "true":
		return &Literal{Kind: KindBool, Bool: true}, nil
	case "false":
		return &Literal{Kind: KindBool, Bool: false}, nil
	default:
		p.pos = start
		return nil, p.unsupported("bare word %q cannot be extracted", word)
	}
}

// skipSeparators advances over whitespace, comments, newlines and the given
// explicit separator character.
func (p *parser) skipSeparators(seps string) {
	for !p.eof() {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || strings.IndexByte(seps, c) >= 0 {
			p.pos++
			continue
		}
		if c == '#' {
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		return
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// normalizeBlockSource strips one redundant pair of enclosing braces from a
// block's source text. Without this, re-serializing an extracted block would
// wrap it a second time.
func normalizeBlockSource(src string) string {
	t := strings.TrimSpace(src)
	if len(t) < 2 || t[0] != '{' || t[len(t)-1] != '}' {
		return src
	}
	if !wrappedOnce(t) {
		return src
	}
	return strings.TrimSpace(t[1 : len(t)-1])
}

// wrappedOnce reports whether the opening brace at position 0 matches the
// closing brace at the end, i.e. the whole text is one braced region.
func wrappedOnce(t string) bool {
	depth := 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i == len(t)-1
			}
		}
	}
	return false
}
