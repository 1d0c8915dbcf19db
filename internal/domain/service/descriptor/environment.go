package descriptor

import (
	"fmt"
	"strings"

	"appdeck/internal/domain/model"

	"gopkg.in/yaml.v3"
)

// EnvForm is the representation an environment was written in.
type EnvForm int

const (
	EnvNone EnvForm = iota
	EnvMapping
	EnvList
)

// EnvEntry is one variable. KeyNode and ValueNode are set for the mapping
// form, ItemNode for the list form.
type EnvEntry struct {
	Key   string
	Value string
	// Null is set for YAML null values; Value then holds the source text
	// ("", "null" or "~").
	Null bool

	KeyNode   *yaml.Node
	ValueNode *yaml.Node
	ItemNode  *yaml.Node
}

// Environment is a service environment in either representation.
type Environment struct {
	Form    EnvForm
	Node    *yaml.Node
	Entries []EnvEntry
}

// Flow reports whether the environment is written in flow style.
func (e Environment) Flow() bool {
	return e.Node != nil && e.Node.Style&yaml.FlowStyle != 0
}

// Map returns the uniform key to value mapping. Later list entries win.
func (e Environment) Map() map[string]string {
	m := make(map[string]string, len(e.Entries))
	for _, entry := range e.Entries {
		m[entry.Key] = entry.Value
	}
	return m
}

// Values is Map with null values marked. Later list entries win.
func (e Environment) Values() map[string]model.EnvValue {
	m := make(map[string]model.EnvValue, len(e.Entries))
	for _, entry := range e.Entries {
		m[entry.Key] = model.EnvValue{Value: entry.Value, Null: entry.Null}
	}
	return m
}

// NormalizeEnvironment accepts either representation of a service
// environment and returns key to value. Values keep their source text, so
// "1e3", "0x1F", "yes" and oversized integers are returned verbatim.
// List items without "=" and merge keys are left out.
func NormalizeEnvironment(node *yaml.Node) (map[string]string, error) {
	env, err := parseEnvironment(node)
	if err != nil {
		return nil, err
	}
	return env.Map(), nil
}

func parseEnvironment(node *yaml.Node) (Environment, error) {
	if node == nil || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return Environment{}, nil
	}
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	switch node.Kind {
	case yaml.MappingNode:
		env := Environment{Form: EnvMapping, Node: node}
		seen := make(map[string]bool, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Environment{}, fmt.Errorf("environment key at line %d is not a scalar", k.Line)
			}
			if k.ShortTag() == "!!merge" {
				continue
			}
			if seen[k.Value] {
				return Environment{}, fmt.Errorf("duplicate environment key %q at line %d", k.Value, k.Line)
			}
			seen[k.Value] = true
			value, null, err := scalarText(v)
			if err != nil {
				return Environment{}, fmt.Errorf("environment %q: %w", k.Value, err)
			}
			env.Entries = append(env.Entries, EnvEntry{Key: k.Value, Value: value, Null: null, KeyNode: k, ValueNode: v})
		}
		return env, nil

	case yaml.SequenceNode:
		env := Environment{Form: EnvList, Node: node}
		for _, item := range node.Content {
			text, null, err := scalarText(item)
			if err != nil {
				return Environment{}, fmt.Errorf("environment item at line %d: %w", item.Line, err)
			}
			if null {
				continue
			}
			key, value, ok := strings.Cut(text, "=")
			if !ok || key == "" {
				continue
			}
			env.Entries = append(env.Entries, EnvEntry{Key: key, Value: value, ItemNode: item})
		}
		return env, nil

	default:
		return Environment{}, fmt.Errorf("environment at line %d must be a mapping or a list", node.Line)
	}
}

func scalarText(n *yaml.Node) (string, bool, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		return "", false, fmt.Errorf("value at line %d is not a scalar", n.Line)
	}
	return n.Value, n.ShortTag() == "!!null", nil
}
