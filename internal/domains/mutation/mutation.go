// Package mutation describes localized changes to a form value so both copies
// of it (server and renderer) can be kept in sync without resending it whole.
//
// Values are handled in their generic JSON shape: map[string]any for objects,
// []any for sequences. Use Normalize to bring a typed Go value into it.
package mutation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"remote-ui/go-backend/internal/domains/contracts"
)

const TypeAssign = "mut_assign"

// Mutation sets Key to Value on the container reached by descending Path
// from the root.
type Mutation struct {
	Type  string   `json:"type"`
	Path  []string `json:"path"`
	Key   string   `json:"key"`
	Value any      `json:"value"`
}

func Assign(path []string, key string, value any) Mutation {
	return Mutation{
		Type:  TypeAssign,
		Path:  append([]string{}, path...),
		Key:   key,
		Value: value,
	}
}

// PathError reports a mutation whose path does not exist in the target.
type PathError struct {
	Path   []string
	Depth  int
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("mutation path /%s at depth %d: %s", strings.Join(e.Path, "/"), e.Depth, e.Reason)
}

func (e *PathError) Unwrap() error {
	return contracts.ErrProtocol
}

// Normalize converts v into its generic JSON shape.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// Lookup returns the value found by descending path from root.
func Lookup(root any, path []string) (any, error) {
	current := root
	for depth, segment := range path {
		next, err := child(current, segment)
		if err != nil {
			return nil, &PathError{Path: path, Depth: depth, Reason: err.Error()}
		}
		current = next
	}
	return current, nil
}

// Apply performs m in place on root. Every path segment must exist. The final
// key may add a new entry to a mapping, or append to a sequence when it
// equals the sequence length and the sequence is not the root itself.
func Apply(root any, m Mutation) error {
	if m.Type != "" && m.Type != TypeAssign {
		return fmt.Errorf("%w: unsupported mutation type %q", contracts.ErrProtocol, m.Type)
	}
	full := append(append([]string{}, m.Path...), m.Key)
	fail := func(depth int, reason string) error {
		return &PathError{Path: full, Depth: depth, Reason: reason}
	}

	var parent any
	parentKey := ""
	current := root
	for depth, segment := range m.Path {
		next, err := child(current, segment)
		if err != nil {
			return fail(depth, err.Error())
		}
		parent, parentKey, current = current, segment, next
	}

	depth := len(m.Path)
	switch target := current.(type) {
	case map[string]any:
		target[m.Key] = m.Value
		return nil
	case []any:
		index, err := strconv.Atoi(m.Key)
		if err != nil || index < 0 {
			return fail(depth, fmt.Sprintf("%q is not a sequence index", m.Key))
		}
		if index < len(target) {
			target[index] = m.Value
			return nil
		}
		if index > len(target) || parent == nil {
			return fail(depth, fmt.Sprintf("index %d out of range", index))
		}
		return replaceChild(parent, parentKey, append(target, m.Value))
	default:
		return fail(depth, fmt.Sprintf("cannot assign into %T", current))
	}
}

// ApplyAll applies mutations in order and stops at the first failure.
func ApplyAll(root any, mutations []Mutation) error {
	for i, m := range mutations {
		if err := Apply(root, m); err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
	}
	return nil
}

func child(container any, segment string) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[segment]
		if !ok {
			return nil, fmt.Errorf("missing key %q", segment)
		}
		return v, nil
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil {
			return nil, fmt.Errorf("%q is not a sequence index", segment)
		}
		if index < 0 || index >= len(c) {
			return nil, fmt.Errorf("index %d out of range", index)
		}
		return c[index], nil
	default:
		return nil, fmt.Errorf("cannot descend into %T with %q", container, segment)
	}
}

func replaceChild(container any, segment string, value any) error {
	switch c := container.(type) {
	case map[string]any:
		c[segment] = value
		return nil
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil {
			return err
		}
		c[index] = value
		return nil
	default:
		return fmt.Errorf("cannot replace %q in %T", segment, container)
	}
}
