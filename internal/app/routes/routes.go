// Package routes holds the demo screens served by the daemon.
package routes

import (
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/internal/domains/route"
)

// Set is the demo application: one controller per screen.
type Set struct {
	Index *remoteui.Controller
	Form  *remoteui.Controller
	Table *remoteui.Controller
	Embed *remoteui.Controller
}

func New() *Set {
	return &Set{
		Index: newIndex(),
		Form:  newPersonForm(),
		Table: newPeopleTable(),
		Embed: newEmbed(),
	}
}

// Resolver maps "/" to the index screen and "/form", "/table" and "/embed"
// to the others.
func (s *Set) Resolver() route.Resolver[*remoteui.Controller] {
	return &route.Static[*remoteui.Controller]{
		Routes: map[string]route.Node[*remoteui.Controller]{
			route.IndexSegment: route.Terminal(s.Index),
			"form":             route.Terminal(s.Form),
			"table":            route.Terminal(s.Table),
			"embed":            route.Terminal(s.Embed),
		},
	}
}

// Dispose closes every session of every screen.
func (s *Set) Dispose() {
	for _, c := range []*remoteui.Controller{s.Index, s.Form, s.Table, s.Embed} {
		c.Dispose()
	}
}
