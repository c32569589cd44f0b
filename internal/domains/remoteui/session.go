package remoteui

import (
	"go.uber.org/atomic"

	"remote-ui/go-backend/internal/domains/mutation"
	"remote-ui/go-backend/internal/domains/route"
)

// Session is one open remote view of a Controller. It borrows its controller
// and is closed before the controller is disposed. Once closed it never
// reopens and emits nothing further.
type Session struct {
	id         string
	route      route.Route
	owner      string
	engine     *Engine
	controller *Controller
	closed     *atomic.Bool
}

func newSession(engine *Engine, id, owner string, r route.Route, controller *Controller) *Session {
	return &Session{
		id:         id,
		route:      r.Clone(),
		owner:      owner,
		engine:     engine,
		controller: controller,
		closed:     atomic.NewBool(false),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Route returns a copy of the route the session was opened for.
func (s *Session) Route() route.Route {
	return s.route.Clone()
}

// Owner identifies the transport connection that opened the session.
func (s *Session) Owner() string {
	return s.owner
}

func (s *Session) Controller() *Controller {
	return s.controller
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// markClosed flips the liveness flag and reports whether this call did it.
func (s *Session) markClosed() bool {
	return s.closed.CompareAndSwap(false, true)
}

func (s *Session) emit(method string, payload any) {
	if s.Closed() {
		return
	}
	s.engine.emit(method, payload)
}

// Update re-renders the default slot and pushes it to the client.
func (s *Session) Update() {
	if s.Closed() {
		return
	}
	root, err := s.controller.Render(s, route.Root)
	if err != nil {
		s.engine.logError("session_update", s.id, "render failed", err)
		return
	}
	s.emit(MethodSessionUpdate, SessionUpdateEvent{
		Session: s.id,
		Root:    root,
		Digest:  s.engine.digest(s.id, root),
	})
}

// SetForm replaces the client's copy of form with data.
func (s *Session) SetForm(form string, data any) {
	s.emit(MethodFormSet, FormSetEvent{Session: s.id, Form: form, Data: data})
}

// UpdateForm sends mutations for the client to apply, in order, to its copy
// of form.
func (s *Session) UpdateForm(form string, mutations []mutation.Mutation) {
	if len(mutations) == 0 {
		return
	}
	s.emit(MethodFormUpdate, FormUpdateEvent{Session: s.id, Form: form, Mutations: mutations})
}

// Redirect closes the session and tells the client to reopen at target. A
// nil target closes the session without a redirect.
func (s *Session) Redirect(target *route.Route) {
	reason := closeReasonRedirect
	if target == nil {
		reason = closeReasonClosed
	}
	s.terminate(target, reason)
}

func (s *Session) terminate(target *route.Route, reason string) {
	if !s.markClosed() {
		return
	}
	var redirect *string
	if target != nil {
		rendered := target.String()
		redirect = &rendered
	}
	s.engine.emit(MethodSessionClosed, SessionClosedEvent{Session: s.id, Redirect: redirect})
	s.engine.forget(s, reason)
}

// RedirectTo parses target relative to the session route and redirects.
func (s *Session) RedirectTo(target string) error {
	base := s.route
	next, err := route.Parse(target, &base)
	if err != nil {
		return err
	}
	s.Redirect(&next)
	return nil
}

// Close terminates the session with no redirect.
func (s *Session) Close() {
	s.Redirect(nil)
}
