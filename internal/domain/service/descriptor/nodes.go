package descriptor

import (
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Lookup returns the value for key in mapping m, or nil. m may be nil.
func Lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// Set replaces the value of key in mapping m, appending the pair when absent.
func Set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, StringNode(key), value)
}

// SetDefault sets key only when it is absent. It reports whether it did.
func SetDefault(m *yaml.Node, key string, value *yaml.Node) bool {
	if Lookup(m, key) != nil {
		return false
	}
	m.Content = append(m.Content, StringNode(key), value)
	return true
}

// Delete removes key from mapping m and reports whether it was present.
func Delete(m *yaml.Node, key string) bool {
	if m == nil || m.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

// StringNode returns a string scalar.
func StringNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

var decimal = regexp.MustCompile(`^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// NumberOrStringNode returns a plain number scalar when v is a decimal
// number, otherwise a string scalar.
func NumberOrStringNode(v string) *yaml.Node {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v}
	}
	if decimal.MatchString(v) {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v}
	}
	return StringNode(v)
}

// SequenceNode returns a block sequence of strings.
func SequenceNode(items ...string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, item := range items {
		n.Content = append(n.Content, StringNode(item))
	}
	return n
}

// MappingNode returns an empty block mapping.
func MappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}
