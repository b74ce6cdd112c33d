package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decode turns raw phase output into the generic JSON data model
// (map[string]any, []any, json.Number, string, bool, nil).
//
// Byte slices and strings are parsed as JSON; a string wrapped in a
// Markdown code fence is unwrapped first. Any other Go value is
// round-tripped through encoding/json.
func Decode(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return decodeBytes(v)
	case []byte:
		return decodeBytes(v)
	case string:
		return decodeBytes([]byte(stripFence(v)))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("output is not representable as JSON: %w", err)
		}
		return decodeBytes(b)
	}
}

func decodeBytes(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("output is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("output is not valid JSON: trailing data after top-level value")
	}
	return v, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	body := strings.TrimSpace(t[nl+1:])
	body = strings.TrimSuffix(body, "```")
	return body
}
