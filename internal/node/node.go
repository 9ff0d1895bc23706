// Package node provides optional lookups over loosely typed JSON documents.
//
// Registry responses are decoded into a Node instead of fixed structs.
// The upstream contract is not owned by us, and a missing or unexpectedly
// shaped field must degrade to "absent" rather than fail decoding.
package node

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nao1215/bankrotscan/internal/normalize"
)

// Node wraps one decoded JSON value. The zero Node is absent.
type Node struct {
	value   any
	present bool
}

// Decode parses a JSON document. Numbers are kept as json.Number so that
// identifiers like OGRN never pass through float64.
func Decode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return Node{}, fmt.Errorf("decode json: trailing data after top-level value")
	}
	return Node{value: v, present: true}, nil
}

// Of wraps an already decoded value.
func Of(v any) Node {
	return Node{value: v, present: true}
}

// Present reports whether the node holds a value. A JSON null is present
// but has no scalar form.
func (n Node) Present() bool {
	return n.present
}

// Raw returns the underlying decoded value.
func (n Node) Raw() any {
	return n.value
}

// IsObject reports whether the node is a JSON object.
func (n Node) IsObject() bool {
	_, ok := n.value.(map[string]any)
	return ok
}

// Lookup walks nested object keys. It reports false as soon as an
// intermediate value is missing or is not an object.
func (n Node) Lookup(keys ...string) (Node, bool) {
	if !n.present {
		return Node{}, false
	}
	cur := n.value
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return Node{}, false
		}
		next, ok := obj[k]
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return Node{value: cur, present: true}, true
}

// Get is Lookup without the presence flag.
func (n Node) Get(keys ...string) Node {
	child, _ := n.Lookup(keys...)
	return child
}

// String returns the normalized scalar at keys, or "".
func (n Node) String(keys ...string) string {
	return normalize.Scalar(n.Get(keys...).value)
}

// Array returns the elements of the array at keys. The second result is
// false when the value is absent or not an array.
func (n Node) Array(keys ...string) ([]Node, bool) {
	child, ok := n.Lookup(keys...)
	if !ok {
		return nil, false
	}
	raw, ok := child.value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Node, len(raw))
	for i, v := range raw {
		out[i] = Node{value: v, present: true}
	}
	return out, true
}

// Empty reports whether the node carries no usable data: absent, null,
// an empty object or an empty array.
func (n Node) Empty() bool {
	if !n.present || n.value == nil {
		return true
	}
	switch v := n.value.(type) {
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}
