package remoteui

import (
	"remote-ui/go-backend/internal/domains/mutation"
	"remote-ui/go-backend/pkg/models"
)

// Push event methods, server to client.
const (
	MethodSessionUpdate = "onSessionUpdate"
	MethodFormSet       = "onFormSet"
	MethodFormUpdate    = "onFormUpdate"
	MethodSessionClosed = "onSessionClosed"
)

// EventSink is the outbound side of the transport. Emit must not block on
// slow consumers.
type EventSink interface {
	Emit(method string, payload any)
}

type discardSink struct{}

func (discardSink) Emit(string, any) {}

// SessionScoped is implemented by every push payload so transports can route
// events to the connection that owns the session.
type SessionScoped interface {
	SessionID() string
}

type SessionUpdateEvent struct {
	Session string           `json:"session"`
	Root    models.UIElement `json:"root"`
	Digest  string           `json:"digest,omitempty"`
}

type FormSetEvent struct {
	Session string `json:"session"`
	Form    string `json:"form"`
	Data    any    `json:"data"`
}

type FormUpdateEvent struct {
	Session   string              `json:"session"`
	Form      string              `json:"form"`
	Mutations []mutation.Mutation `json:"mutations"`
}

// SessionClosedEvent carries the route the client should reopen at, or nil
// when the session is simply terminated.
type SessionClosedEvent struct {
	Session  string  `json:"session"`
	Redirect *string `json:"redirect"`
}

func (e SessionUpdateEvent) SessionID() string { return e.Session }
func (e FormSetEvent) SessionID() string       { return e.Session }
func (e FormUpdateEvent) SessionID() string    { return e.Session }
func (e SessionClosedEvent) SessionID() string { return e.Session }
