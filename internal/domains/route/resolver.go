package route

// IndexSegment is the route name consulted when a route ends on a nested
// resolver without naming a component.
const IndexSegment = "index"

// Node is either a nested resolver or a terminal handler.
type Node[H any] struct {
	resolver Resolver[H]
	handler  H
	terminal bool
}

func Nested[H any](r Resolver[H]) Node[H] {
	return Node[H]{resolver: r}
}

func Terminal[H any](handler H) Node[H] {
	return Node[H]{handler: handler, terminal: true}
}

func (n Node[H]) IsTerminal() bool {
	return n.terminal
}

// Resolver maps one route segment to the next node, and component names to
// handlers at its own level. Lookups must be free of side effects.
type Resolver[H any] interface {
	Route(name string) (Node[H], bool)
	Component(name string) (H, bool)
}

// Static is a Resolver backed by fixed tables. A zero Static resolves nothing.
type Static[H any] struct {
	Routes     map[string]Node[H]
	Components map[string]H
}

func (s *Static[H]) Route(name string) (Node[H], bool) {
	if s == nil {
		return Node[H]{}, false
	}
	node, ok := s.Routes[name]
	return node, ok
}

func (s *Static[H]) Component(name string) (H, bool) {
	if s == nil {
		var zero H
		return zero, false
	}
	handler, ok := s.Components[name]
	return handler, ok
}

// Resolve walks r from root. Matches must be exact: a terminal reached with
// segments left over, or a component addressed on a terminal, is a miss.
func Resolve[H any](root Resolver[H], r Route) (H, bool) {
	return resolveAt(Nested(root), r, 0)
}

func resolveAt[H any](node Node[H], r Route, offset int) (H, bool) {
	var zero H
	if node.terminal {
		if offset != len(r.Segments) || r.Component != "" {
			return zero, false
		}
		return node.handler, true
	}
	if node.resolver == nil {
		return zero, false
	}
	if offset < len(r.Segments) {
		next, ok := node.resolver.Route(r.Segments[offset])
		if !ok {
			return zero, false
		}
		return resolveAt(next, r, offset+1)
	}
	if r.Component != "" {
		return node.resolver.Component(r.Component)
	}
	index, ok := node.resolver.Route(IndexSegment)
	if !ok || !index.terminal {
		return zero, false
	}
	return index.handler, true
}
