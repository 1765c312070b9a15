package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Arg is a single named tool argument.
type Arg struct {
	Key   string
	Value any
}

// Args is an ordered mapping of tool arguments. Wire order of the top-level
// keys is preserved through JSON round trips.
type Args []Arg

// Get returns the value stored under key.
func (a Args) Get(key string) (any, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return nil, false
}

// String returns the value under key rendered as a string, or def when absent.
// JSON numbers are rendered without a trailing fraction when integral.
func (a Args) String(key, def string) string {
	v, ok := a.Get(key)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Map returns the arguments as an unordered map.
func (a Args) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Key] = arg.Value
	}
	return m
}

// MarshalJSON encodes the arguments as a JSON object in insertion order.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(arg.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", arg.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the order of its keys.
func (a *Args) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("args: expected JSON object")
	}

	out := Args{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("args: expected object key")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("args %s: %w", key, err)
		}
		out = append(out, Arg{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*a = out
	return nil
}
