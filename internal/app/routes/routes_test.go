package routes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/internal/domains/route"
)

type sink struct {
	mu     sync.Mutex
	events []string
	last   any
}

func (s *sink) Emit(method string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, method)
	s.last = payload
}

func (s *sink) snapshot() ([]string, any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...), s.last
}

func newDemo(t *testing.T) (*Set, *remoteui.Engine, *sink) {
	t.Helper()
	previous := incrementDelay
	incrementDelay = 0
	t.Cleanup(func() { incrementDelay = previous })

	set := New()
	events := &sink{}
	engine := remoteui.NewEngine(set.Resolver(), events)
	t.Cleanup(engine.Dispose)
	return set, engine, events
}

func openRoute(t *testing.T, engine *remoteui.Engine, raw string) remoteui.OpenResult {
	t.Helper()
	result, err := engine.OpenSession(context.Background(), "", route.MustParse(raw))
	if err != nil {
		t.Fatalf("open %s: %v", raw, err)
	}
	return result
}

func rendered(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func TestResolverMapsScreens(t *testing.T) {
	set := New()
	resolver := set.Resolver()
	cases := map[string]*remoteui.Controller{
		"/":      set.Index,
		"/form":  set.Form,
		"/table": set.Table,
		"/embed": set.Embed,
	}
	for raw, want := range cases {
		got, ok := route.Resolve(resolver, route.MustParse(raw))
		if !ok || got != want {
			t.Fatalf("%s resolved to the wrong controller", raw)
		}
	}
	if _, ok := route.Resolve(resolver, route.MustParse("/form/extra")); ok {
		t.Fatal("expected /form/extra to miss")
	}
}

func TestIndexIncrementWaitsAndRerenders(t *testing.T) {
	_, engine, events := newDemo(t)
	result := openRoute(t, engine, "/")
	if !strings.Contains(rendered(t, result.Root), "Count: 0") {
		t.Fatalf("unexpected initial render: %s", rendered(t, result.Root))
	}

	err := engine.TriggerAction(context.Background(), remoteui.TriggerRequest{Session: result.Session, Action: "action_increment*"})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	methods, last := events.snapshot()
	if len(methods) != 1 || methods[0] != remoteui.MethodSessionUpdate {
		t.Fatalf("unexpected events: %v", methods)
	}
	if !strings.Contains(rendered(t, last), "Count: 1") {
		t.Fatalf("unexpected update: %s", rendered(t, last))
	}
}

func TestIndexThrowIsClientError(t *testing.T) {
	_, engine, _ := newDemo(t)
	session := openRoute(t, engine, "/").Session

	err := engine.TriggerAction(context.Background(), remoteui.TriggerRequest{Session: session, Action: "action_throwError*"})
	var clientErr *contracts.ClientError
	if !errors.As(err, &clientErr) || clientErr.Message != "This is an error!" {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestIndexSubmitUppercases(t *testing.T) {
	_, engine, events := newDemo(t)
	session := openRoute(t, engine, "/").Session

	err := engine.TriggerAction(context.Background(), remoteui.TriggerRequest{
		Session: session,
		Action:  "form_form_submit*",
		Form:    json.RawMessage(`{"hello":"hi there","output":""}`),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, last := events.snapshot()
	set, ok := last.(remoteui.FormSetEvent)
	if !ok || set.Data.(greeting).Output != "HI THERE" {
		t.Fatalf("unexpected form set: %#v", last)
	}
}

func TestFormEchoesToAllSessions(t *testing.T) {
	_, engine, events := newDemo(t)
	first := openRoute(t, engine, "/form")
	openRoute(t, engine, "/form")
	if _, ok := first.Forms["form"].(personForm); !ok {
		t.Fatalf("unexpected initial form: %#v", first.Forms)
	}
	if !strings.Contains(rendered(t, first.Root), `"model":"form_person.home.address"`) {
		t.Fatalf("nested field missing from render: %s", rendered(t, first.Root))
	}

	err := engine.TriggerAction(context.Background(), remoteui.TriggerRequest{
		Session: first.Session,
		Action:  "form_form_submit*",
		Form:    json.RawMessage(`{"person":{"name":"Bar","status":"there","exists":true,"home":{"address":"here","available":true}}}`),
		Sender:  "form_person.home.address",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	methods, last := events.snapshot()
	if len(methods) != 2 {
		t.Fatalf("expected echo to both sessions, got %v", methods)
	}
	update := last.(remoteui.FormUpdateEvent)
	if len(update.Mutations) != 1 || update.Mutations[0].Key != "address" || update.Mutations[0].Value != "here" {
		t.Fatalf("unexpected echo: %#v", update.Mutations)
	}

	err = engine.TriggerAction(context.Background(), remoteui.TriggerRequest{
		Session: first.Session,
		Action:  "form_form_submit*",
		Form:    json.RawMessage(`{"person":{"status":"nowhere"}}`),
	})
	if !errors.Is(err, contracts.ErrValidation) {
		t.Fatalf("expected schema rejection, got %v", err)
	}
}

func TestTableAddBroadcasts(t *testing.T) {
	_, engine, events := newDemo(t)
	openRoute(t, engine, "/table")
	session := openRoute(t, engine, "/table").Session

	if err := engine.TriggerAction(context.Background(), remoteui.TriggerRequest{Session: session, Action: "action_add"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := engine.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	methods, _ := events.snapshot()
	updates := 0
	for _, m := range methods {
		if m == remoteui.MethodFormUpdate {
			updates++
		}
	}
	if updates != 2 {
		t.Fatalf("expected add on both sessions, got %v", methods)
	}
}

func TestEmbedRendersTwoPanels(t *testing.T) {
	_, engine, _ := newDemo(t)
	root := rendered(t, openRoute(t, engine, "/embed").Root)
	if strings.Count(root, `"route":"../form"`) != 2 {
		t.Fatalf("expected two embeds: %s", root)
	}
}

func TestSetDisposeClosesSessions(t *testing.T) {
	set, engine, _ := newDemo(t)
	openRoute(t, engine, "/")
	openRoute(t, engine, "/table")
	set.Dispose()
	if engine.SessionCount() != 0 {
		t.Fatalf("expected no sessions, got %d", engine.SessionCount())
	}
}
