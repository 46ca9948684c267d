package values

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DecodeJSON reads one JSON value and converts it to the bag shapes: objects
// become *Bag with source key order preserved, arrays become []any, numbers
// become json.Number. It is the interchange decoder at the CLI edge; the
// core never touches files itself.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	// Reject trailing data after the first value.
	if dec.More() {
		return nil, fmt.Errorf("multiple JSON values found at the root, only one is allowed")
	}
	return v, nil
}

// DecodeJSONString decodes a JSON document from a string.
func DecodeJSONString(s string) (any, error) {
	return DecodeJSON(strings.NewReader(s))
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		// string, json.Number, bool or nil
		return tok, nil
	}
}

func decodeObject(dec *json.Decoder) (*Bag, error) {
	bag := NewBag()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		bag.Set(key, val)
	}
	// consume '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return bag, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	items := make([]any, 0)
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		items = append(items, val)
	}
	// consume ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return items, nil
}
