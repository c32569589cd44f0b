package remoteui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"remote-ui/go-backend/internal/domains/actionid"
	"remote-ui/go-backend/internal/domains/mutation"
	"remote-ui/go-backend/internal/domains/route"
	"remote-ui/go-backend/pkg/models"
)

// ActionEvent is passed to action callbacks. Sender is the model reference
// of the element that triggered the action, or empty.
type ActionEvent struct {
	Session *Session
	Sender  string
}

type ActionFunc func(ctx context.Context, event ActionEvent) error

type RenderFunc func(session *Session) models.UIElement

type SlotFunc func(session *Session, slot route.Route) models.UIElement

type actionOptions struct {
	waitForCompletion bool
}

type ActionOption func(*actionOptions)

// WaitForCompletion makes callers of the action block until its callback
// returns, so its error reaches them.
func WaitForCompletion() ActionOption {
	return func(o *actionOptions) {
		o.waitForCompletion = true
	}
}

func applyActionOptions(opts []ActionOption) actionOptions {
	var out actionOptions
	for _, opt := range opts {
		opt(&out)
	}
	return out
}

// Target selects which sessions a form push goes to.
type Target struct {
	session *Session
}

// All targets every live session of the controller.
var All = Target{}

// To targets a single session.
func To(session *Session) Target {
	return Target{session: session}
}

type formDefinition interface {
	formName() string
	initialValue(session *Session) (any, error)
	prepare(action string, payload json.RawMessage, event ActionEvent) (func(ctx context.Context) error, error)
}

// Controller serves one logical screen: its actions, forms, default render
// and slots, plus the set of sessions currently viewing it.
//
// The session set holds closed sessions until the next iteration notices and
// drops them; nothing else keeps a closed session reachable.
type Controller struct {
	actions map[string]ActionFunc
	forms   map[string]formDefinition
	render  RenderFunc
	slots   map[string]SlotFunc
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
	disposed bool
}

// Setup is handed to the function passed to Define. Names registered through
// it must be non-empty; form names must not contain "_".
type Setup struct {
	controller *Controller
}

// Define builds a controller. setup registers actions, forms and slots and
// returns the default render function.
func Define(setup func(s *Setup) RenderFunc) *Controller {
	c := &Controller{
		actions:  make(map[string]ActionFunc),
		forms:    make(map[string]formDefinition),
		slots:    make(map[string]SlotFunc),
		sessions: make(map[*Session]struct{}),
		logger:   slog.Default(),
	}
	render := setup(&Setup{controller: c})
	if render == nil {
		panic("remoteui: setup returned a nil render function")
	}
	c.render = render
	return c
}

// Controller returns the controller being defined. It is usable from
// callbacks once Define has returned.
func (s *Setup) Controller() *Controller {
	return s.controller
}

// Action registers a top-level action and returns its id.
func (s *Setup) Action(name string, fn ActionFunc, opts ...ActionOption) string {
	mustName("action", name, false)
	if fn == nil {
		panic(fmt.Sprintf("remoteui: action %q has a nil callback", name))
	}
	if _, exists := s.controller.actions[name]; exists {
		panic(fmt.Sprintf("remoteui: action %q defined twice", name))
	}
	s.controller.actions[name] = fn
	return actionid.Action(name, applyActionOptions(opts).waitForCompletion)
}

// Slot registers a named render region addressed as "/name".
func (s *Setup) Slot(name string, fn SlotFunc) {
	mustName("slot", name, false)
	if fn == nil {
		panic(fmt.Sprintf("remoteui: slot %q has a nil render function", name))
	}
	path := route.Route{Segments: []string{name}}.Path()
	if _, exists := s.controller.slots[path]; exists {
		panic(fmt.Sprintf("remoteui: slot %q defined twice", name))
	}
	s.controller.slots[path] = fn
}

// Meta returns the id of a renderer-side meta action.
func (s *Setup) Meta(name string) string {
	return actionid.Meta(name)
}

func mustName(kind, name string, forbidUnderscore bool) {
	if name == "" {
		panic(fmt.Sprintf("remoteui: empty %s name", kind))
	}
	if forbidUnderscore && strings.Contains(name, "_") {
		panic(fmt.Sprintf("remoteui: %s name %q must not contain \"_\"", kind, name))
	}
}

func (c *Controller) attach(session *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.sessions[session] = struct{}{}
	return true
}

// Sessions returns a snapshot of the live sessions, dropping closed ones
// from the set as it goes.
func (c *Controller) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Session, 0, len(c.sessions))
	for session := range c.sessions {
		if session.Closed() {
			delete(c.sessions, session)
			continue
		}
		out = append(out, session)
	}
	return out
}

// Update pushes a fresh render to every live session.
func (c *Controller) Update() {
	for _, session := range c.Sessions() {
		session.Update()
	}
}

// UpdateForm pushes value to the targeted sessions: a Mutation or a slice of
// them is sent as an update, anything else replaces the form value.
func (c *Controller) UpdateForm(form string, target Target, value any) {
	switch v := value.(type) {
	case mutation.Mutation:
		c.pushFormUpdate(form, target, []mutation.Mutation{v})
	case []mutation.Mutation:
		c.pushFormUpdate(form, target, v)
	default:
		c.pushFormSet(form, target, value)
	}
}

func (c *Controller) targets(target Target) []*Session {
	if target.session != nil {
		return []*Session{target.session}
	}
	return c.Sessions()
}

func (c *Controller) pushFormSet(form string, target Target, data any) {
	for _, session := range c.targets(target) {
		session.SetForm(form, data)
	}
}

func (c *Controller) pushFormUpdate(form string, target Target, mutations []mutation.Mutation) {
	for _, session := range c.targets(target) {
		session.UpdateForm(form, mutations)
	}
}

// Dispose closes every live session. Disposing twice is logged and ignored.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.logger.Warn("controller already disposed", "component", componentName, "operation", "dispose")
		return
	}
	c.disposed = true
	c.mu.Unlock()

	for _, session := range c.Sessions() {
		session.Close()
	}
}

// Render renders slot for session. The root slot is the default render; an
// unknown slot renders a placeholder label.
func (c *Controller) Render(session *Session, slot route.Route) (models.UIElement, error) {
	var out models.UIElement
	err := guard("render "+slot.String(), func() error {
		path := slot.Path()
		if path == "/" {
			out = c.render(session)
			return nil
		}
		fn, ok := c.slots[path]
		if !ok {
			out = models.Label("Invalid slot: "+slot.String()).With("monospace", true)
			return nil
		}
		out = fn(session, slot)
		return nil
	})
	return out, err
}

func (c *Controller) initialForms(session *Session) (map[string]any, error) {
	forms := make(map[string]any, len(c.forms))
	for name, form := range c.forms {
		value, err := form.initialValue(session)
		if err != nil {
			return nil, err
		}
		forms[name] = value
	}
	return forms, nil
}

// prepare resolves an action id to a runnable callback without running it.
func (c *Controller) prepare(id actionid.ID, raw string, payload json.RawMessage, event ActionEvent) (func(ctx context.Context) error, error) {
	switch id.Kind {
	case actionid.KindAction:
		fn, ok := c.actions[id.Action]
		if !ok {
			return nil, &UnknownActionError{ActionID: raw}
		}
		return func(ctx context.Context) error { return fn(ctx, event) }, nil
	case actionid.KindForm:
		form, ok := c.forms[id.Form]
		if !ok {
			return nil, &UnknownActionError{ActionID: raw}
		}
		run, err := form.prepare(id.Action, payload, event)
		if err != nil {
			if _, unknown := err.(*UnknownActionError); unknown {
				return nil, &UnknownActionError{ActionID: raw}
			}
			return nil, err
		}
		return run, nil
	case actionid.KindMeta:
		return nil, protocolError("cannot trigger meta action %q on the backend", raw)
	default:
		return nil, protocolError("invalid action kind %q", id.Kind)
	}
}
