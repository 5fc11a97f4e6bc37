// Package jsontree provides read-only navigation over decoded JSON documents.
//
// A Node wraps any value produced by encoding/json (maps, slices, strings,
// numbers, booleans, nil). Navigation never panics: stepping into a missing
// key or a value of the wrong shape yields a missing node, so lookups can be
// chained and checked once.
//
//	doc, err := jsontree.Parse(body)
//	server, ok := doc.Path("rest").FindChild("mode", "server")
package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node is a position in a decoded JSON document.
type Node struct {
	value   any
	present bool
}

// Parse decodes a JSON document into its root node.
func Parse(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, fmt.Errorf("failed to decode JSON document: %w", err)
	}
	return Wrap(v), nil
}

// Wrap returns a present node for an already decoded value.
func Wrap(v any) Node {
	return Node{value: v, present: true}
}

// Missing reports whether the node does not exist in the document.
// An explicit JSON null is treated as missing.
func (n Node) Missing() bool {
	return !n.present || n.value == nil
}

// Value returns the underlying decoded value.
func (n Node) Value() any {
	return n.value
}

// Path returns the child stored under key, or a missing node if n is not an
// object or has no such key.
func (n Node) Path(key string) Node {
	obj, ok := n.value.(map[string]any)
	if !ok {
		return Node{}
	}
	v, ok := obj[key]
	if !ok {
		return Node{}
	}
	return Node{value: v, present: true}
}

// Children returns the elements of an array node, or the values of an object
// node in unspecified order. Any other node has no children.
func (n Node) Children() []Node {
	switch v := n.value.(type) {
	case []any:
		out := make([]Node, 0, len(v))
		for _, e := range v {
			out = append(out, Node{value: e, present: true})
		}
		return out
	case map[string]any:
		out := make([]Node, 0, len(v))
		for _, e := range v {
			out = append(out, Node{value: e, present: true})
		}
		return out
	default:
		return nil
	}
}

// FindChild returns the first child of n whose field key is the string value.
// For arrays the first match in document order is returned.
func (n Node) FindChild(key, value string) (Node, bool) {
	for _, child := range n.Children() {
		if s, ok := child.Path(key).String(); ok && s == value {
			return child, true
		}
	}
	return Node{}, false
}

// String returns the node's value if it is a JSON string.
func (n Node) String() (string, bool) {
	s, ok := n.value.(string)
	return s, ok
}
