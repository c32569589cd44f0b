package remoteui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"remote-ui/go-backend/internal/domains/actionid"
	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/route"
	"remote-ui/go-backend/internal/platform/canonjson"
	"remote-ui/go-backend/pkg/models"
)

var ErrDisposed = errors.New("remoteui: disposed")

const outcomeOK = "ok"

// Engine is the backend side of the session protocol. It resolves routes to
// controllers, owns the table of open sessions and dispatches actions.
type Engine struct {
	routes   route.Resolver[*Controller]
	sink     EventSink
	logger   *slog.Logger
	metrics  *Metrics
	newID    func() string
	notFound *Controller

	mu       sync.Mutex
	sessions map[string]*Session
	owners   map[string]map[string]struct{}
	disposed bool
	inflight int
	idle     []chan struct{}
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithIDGenerator replaces the ULID session id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithNotFound replaces the controller used for routes that resolve to
// nothing.
func WithNotFound(controller *Controller) Option {
	return func(e *Engine) {
		if controller != nil {
			e.notFound = controller
		}
	}
}

func NewEngine(routes route.Resolver[*Controller], sink EventSink, opts ...Option) *Engine {
	if sink == nil {
		sink = discardSink{}
	}
	e := &Engine{
		routes:   routes,
		sink:     sink,
		logger:   slog.Default(),
		newID:    func() string { return ulid.Make().String() },
		notFound: notFoundController(),
		sessions: make(map[string]*Session),
		owners:   make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func notFoundController() *Controller {
	return Define(func(s *Setup) RenderFunc {
		return func(session *Session) models.UIElement {
			r := session.Route()
			return models.Frame(models.AxisColumn,
				models.Label("Not found"),
				models.Label(r.String()).With("monospace", true),
				models.LinkButton("Home", route.Root.String()),
			)
		}
	})
}

// OpenResult is the state snapshot a new remote view starts from.
type OpenResult struct {
	Session string           `json:"session"`
	Root    models.UIElement `json:"root"`
	Forms   map[string]any   `json:"forms"`
	Digest  string           `json:"digest,omitempty"`
}

// OpenSession resolves r and opens a session on the matching controller,
// or on the not-found controller when nothing matches. owner ties the
// session to a transport connection and may be empty.
func (e *Engine) OpenSession(ctx context.Context, owner string, r route.Route) (OpenResult, error) {
	if err := ctx.Err(); err != nil {
		return OpenResult{}, err
	}
	controller, ok := route.Resolve(e.routes, r)
	if !ok || controller == nil {
		controller = e.notFound
	}

	session := newSession(e, e.newID(), owner, r, controller)
	if err := e.register(session); err != nil {
		return OpenResult{}, err
	}
	if !controller.attach(session) {
		session.markClosed()
		e.forget(session, closeReasonFailed)
		return OpenResult{}, fmt.Errorf("%w: controller for %s", ErrDisposed, r.String())
	}

	forms, err := controller.initialForms(session)
	if err == nil {
		var root models.UIElement
		root, err = controller.Render(session, route.Root)
		if err == nil {
			e.logInfo("open_session", session.id, "session opened", "route", r.String())
			return OpenResult{
				Session: session.id,
				Root:    root,
				Forms:   forms,
				Digest:  e.digest(session.id, root),
			}, nil
		}
	}
	session.markClosed()
	e.forget(session, closeReasonFailed)
	e.logError("open_session", session.id, "open session failed", err, "route", r.String())
	return OpenResult{}, err
}

func (e *Engine) register(session *Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}
	e.sessions[session.id] = session
	if session.owner != "" {
		owned := e.owners[session.owner]
		if owned == nil {
			owned = make(map[string]struct{})
			e.owners[session.owner] = owned
		}
		owned[session.id] = struct{}{}
	}
	e.metrics.sessionOpened()
	return nil
}

// Session returns the open session with id.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	session, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok || session.Closed() {
		return nil, false
	}
	return session, true
}

// IsOpen reports whether id names an open session.
func (e *Engine) IsOpen(id string) bool {
	_, ok := e.Session(id)
	return ok
}

func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) lookup(id string) (*Session, error) {
	session, ok := e.Session(id)
	if !ok {
		return nil, &UnknownSessionError{SessionID: id}
	}
	return session, nil
}

// RenderSession renders one slot of an open session.
func (e *Engine) RenderSession(ctx context.Context, id string, slot route.Route) (models.UIElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return session.controller.Render(session, slot)
}

// CloseSession closes a session at the client's request. No event is sent
// back since the client initiated it.
func (e *Engine) CloseSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	session, err := e.lookup(id)
	if err != nil {
		return err
	}
	if session.markClosed() {
		e.forget(session, closeReasonClient)
		e.logInfo("close_session", id, "session closed by client")
	}
	return nil
}

// TriggerRequest is one inbound action. Form holds the raw form payload for
// form actions and is ignored otherwise.
type TriggerRequest struct {
	Session string
	Action  string
	Form    json.RawMessage
	Sender  string
}

// TriggerAction dispatches an action to the session's controller. The
// callback always runs to completion; the call waits for it only when the
// action id carries the wait flag. Errors from callbacks that nobody waits
// for are logged and counted.
func (e *Engine) TriggerAction(ctx context.Context, req TriggerRequest) error {
	id, err := actionid.Parse(req.Action)
	if err != nil {
		e.metrics.action("invalid", contracts.ErrorCategory(err))
		return err
	}
	session, err := e.lookup(req.Session)
	if err != nil {
		e.metrics.action(string(id.Kind), contracts.ErrorCategory(err))
		return err
	}
	run, err := session.controller.prepare(id, req.Action, req.Form, ActionEvent{Session: session, Sender: req.Sender})
	if err != nil {
		e.metrics.action(string(id.Kind), contracts.ErrorCategory(err))
		return err
	}

	kind := string(id.Kind)
	if err := e.beginAction(); err != nil {
		e.metrics.action(kind, contracts.ErrorCategory(err))
		return err
	}
	finish := func(err error) {
		defer e.endAction()
		if err == nil {
			e.metrics.action(kind, outcomeOK)
			return
		}
		e.metrics.action(kind, contracts.ErrorCategory(err))
		if !id.WaitForCompletion {
			e.logError("trigger_action", req.Session, "action failed", err, "action_id", req.Action, "sender", req.Sender)
		}
	}
	t := startTask(ctx, "action "+req.Action, run, finish)
	if !id.WaitForCompletion {
		return nil
	}
	return t.wait(ctx)
}

func (e *Engine) beginAction() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}
	e.inflight++
	return nil
}

func (e *Engine) endAction() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--
	if e.inflight > 0 {
		return
	}
	for _, ch := range e.idle {
		close(ch)
	}
	e.idle = nil
}

// Wait blocks until no action is running, or ctx is done. Actions started
// while Wait blocks are waited for too.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	if e.inflight == 0 {
		e.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	e.idle = append(e.idle, done)
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReleaseOwner closes every session opened by owner and returns how many
// were closed.
func (e *Engine) ReleaseOwner(owner string) int {
	if owner == "" {
		return 0
	}
	e.mu.Lock()
	owned := make([]*Session, 0, len(e.owners[owner]))
	for id := range e.owners[owner] {
		if session, ok := e.sessions[id]; ok {
			owned = append(owned, session)
		}
	}
	e.mu.Unlock()

	for _, session := range owned {
		session.terminate(nil, closeReasonOwner)
	}
	if len(owned) > 0 {
		e.logInfo("release_owner", "", "owner sessions closed", "owner", owner, "count", len(owned))
	}
	return len(owned)
}

// Dispose closes every open session and rejects later opens. Disposing twice
// is logged and ignored.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		e.logger.Warn("engine already disposed", "component", componentName, "operation", "dispose")
		return
	}
	e.disposed = true
	open := make([]*Session, 0, len(e.sessions))
	for _, session := range e.sessions {
		open = append(open, session)
	}
	e.mu.Unlock()

	for _, session := range open {
		session.terminate(nil, closeReasonDisposed)
	}
	e.notFound.Dispose()
}

func (e *Engine) emit(method string, payload any) {
	e.metrics.event(method)
	e.sink.Emit(method, payload)
}

func (e *Engine) forget(session *Session, reason string) {
	e.mu.Lock()
	current, ok := e.sessions[session.id]
	if ok && current == session {
		delete(e.sessions, session.id)
		if owned := e.owners[session.owner]; owned != nil {
			delete(owned, session.id)
			if len(owned) == 0 {
				delete(e.owners, session.owner)
			}
		}
	}
	e.mu.Unlock()
	if ok && current == session {
		e.metrics.sessionClosed(reason)
	}
}

func (e *Engine) digest(sessionID string, root models.UIElement) string {
	sum, err := canonjson.Digest(root)
	if err != nil {
		e.logError("digest", sessionID, "render digest failed", err)
		return ""
	}
	return sum
}
