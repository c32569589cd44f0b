// Package route implements the hierarchical addresses used to open remote UI
// sessions: a path, an optional component slot and a query, with relative
// parsing against a base route.
package route

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"remote-ui/go-backend/internal/domains/contracts"
)

// Route addresses one screen. The zero value is the root route "/".
type Route struct {
	Segments  []string
	Query     map[string]string
	Component string
}

// Root is the route "/".
var Root = Route{}

// ParseError reports a malformed route string.
type ParseError struct {
	Input   string
	Index   int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("route %q: %s at %d", e.Input, e.Message, e.Index)
}

func (e *ParseError) Unwrap() error {
	return contracts.ErrRouteParse
}

// Parse reads input as a route. With a non-nil base, relative forms ("..",
// "./x", "?k=v") start from a copy of base; a leading "/" is always absolute.
func Parse(input string, base *Route) (Route, error) {
	p := parser{input: input, hasBase: base != nil}
	if base != nil {
		p.route = base.Clone()
	}
	if err := p.run(); err != nil {
		return Route{}, err
	}
	return p.route, nil
}

// MustParse is Parse without a base that panics on error. It is meant for
// route literals in setup code.
func MustParse(input string) Route {
	r, err := Parse(input, nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Clone returns a deep copy.
func (r Route) Clone() Route {
	out := Route{Component: r.Component}
	if len(r.Segments) > 0 {
		out.Segments = append([]string(nil), r.Segments...)
	}
	if len(r.Query) > 0 {
		out.Query = make(map[string]string, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = v
		}
	}
	return out
}

// Path renders only the segments, e.g. "/a/b".
func (r Route) Path() string {
	encoded := make([]string, len(r.Segments))
	for i, segment := range r.Segments {
		encoded[i] = encodeComponent(segment)
	}
	return "/" + strings.Join(encoded, "/")
}

func (r Route) String() string {
	var b strings.Builder
	b.WriteString(r.Path())
	if r.Component != "" {
		b.WriteByte('@')
		b.WriteString(encodeComponent(r.Component))
	}
	if len(r.Query) > 0 {
		keys := make([]string, 0, len(r.Query))
		for k := range r.Query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('?')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(encodeComponent(k))
			b.WriteByte('=')
			b.WriteString(encodeComponent(r.Query[k]))
		}
	}
	return b.String()
}

// Equal compares segments, query and component. A nil and an empty query are
// equal.
func (r Route) Equal(other Route) bool {
	if r.Component != other.Component {
		return false
	}
	if len(r.Segments) != len(other.Segments) || len(r.Query) != len(other.Query) {
		return false
	}
	for i := range r.Segments {
		if r.Segments[i] != other.Segments[i] {
			return false
		}
	}
	for k, v := range r.Query {
		if ov, ok := other.Query[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Route) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text), nil)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r *Route) pop() bool {
	if len(r.Segments) == 0 {
		return false
	}
	r.Segments = r.Segments[:len(r.Segments)-1]
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '%', c == '.':
		return true
	}
	return false
}

// encodeComponent escapes every byte the parser would not accept inside a
// token, so rendered routes always re-parse.
func encodeComponent(value string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isTokenChar(c) && c != '%' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

type parser struct {
	input        string
	index        int
	hasBase      bool
	route        Route
	inQuery      bool
	didComponent bool
}

func (p *parser) fail(format string, args ...any) error {
	return &ParseError{Input: p.input, Index: p.index, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) rest() string {
	return p.input[p.index:]
}

func (p *parser) consumeToken() (string, error) {
	start := p.index
	end := start
	for end < len(p.input) && isTokenChar(p.input[end]) {
		end++
	}
	p.index = end
	decoded, err := url.PathUnescape(p.input[start:end])
	if err != nil {
		p.index = start
		return "", p.fail("invalid escape in %q", p.input[start:end])
	}
	return decoded, nil
}

func (p *parser) run() error {
	for p.index < len(p.input) {
		var err error
		if p.inQuery {
			err = p.queryEntry()
		} else {
			err = p.pathToken()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) queryEntry() error {
	name, err := p.consumeToken()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(p.rest(), "=") {
		if p.index >= len(p.input) {
			return p.fail(`unexpected end, expected "="`)
		}
		return p.fail(`unexpected %q, expected "="`, p.input[p.index])
	}
	p.index++
	value, err := p.consumeToken()
	if err != nil {
		return err
	}
	if value == "" {
		delete(p.route.Query, name)
	} else {
		if p.route.Query == nil {
			p.route.Query = make(map[string]string)
		}
		p.route.Query[name] = value
	}
	if p.index < len(p.input) {
		if p.input[p.index] != '&' {
			return p.fail(`unexpected %q, expected "&" or end`, p.input[p.index])
		}
		p.index++
	}
	return nil
}

func (p *parser) pathToken() error {
	rest := p.rest()
	switch {
	case strings.HasPrefix(rest, "?"):
		p.index++
		p.inQuery = true
		return nil
	case p.didComponent:
		return p.fail(`unexpected %q, expected "?" or end`, p.input[p.index])
	case strings.HasPrefix(rest, ".."):
		if !p.route.pop() {
			return p.fail(`unexpected "..", route is already at root`)
		}
		p.index += 2
		p.route.Component = ""
		p.route.Query = nil
		return nil
	case strings.HasPrefix(rest, "/"):
		if p.index == 0 {
			p.route = Route{}
		}
		p.index++
		segment, err := p.consumeToken()
		if err != nil {
			return err
		}
		if segment == ".." {
			if !p.route.pop() {
				return p.fail(`unexpected "..", route is already at root`)
			}
			return nil
		}
		if segment != "" {
			p.route.Segments = append(p.route.Segments, segment)
		}
		return nil
	case strings.HasPrefix(rest, "./"):
		if p.index != 0 {
			return p.fail(`unexpected "./", it is only allowed at the start of a route`)
		}
		if !p.hasBase {
			return p.fail(`unexpected "./", it cannot be used without a base route`)
		}
		p.index++
		return nil
	case strings.HasPrefix(rest, "@"):
		p.index++
		component, err := p.consumeToken()
		if err != nil {
			return err
		}
		if component == "" {
			return p.fail("expected component name")
		}
		p.route.Component = component
		p.route.Query = nil
		p.didComponent = true
		return nil
	}
	return p.fail("unexpected %q", p.input[p.index])
}
