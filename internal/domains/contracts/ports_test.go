package contracts_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"testing"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
)

// The engine emits through its own sink interface; any notification bus must
// be usable there without an adapter.
var _ remoteui.EventSink = contracts.EventPublisher(nil)

func TestNotificationEventRoutesPushPayloadsBySession(t *testing.T) {
	redirect := "/login"
	payloads := map[string]any{
		remoteui.MethodSessionUpdate: remoteui.SessionUpdateEvent{Session: "s1"},
		remoteui.MethodFormSet:       remoteui.FormSetEvent{Session: "s1", Form: "person"},
		remoteui.MethodFormUpdate:    remoteui.FormUpdateEvent{Session: "s1", Form: "person"},
		remoteui.MethodSessionClosed: remoteui.SessionClosedEvent{Session: "s1", Redirect: &redirect},
	}
	for method, payload := range payloads {
		evt := contracts.NotificationEvent{Seq: 1, Method: method, Payload: payload}
		if got := evt.SessionID(); got != "s1" {
			t.Fatalf("%s: session = %q, want s1", method, got)
		}
	}
	unscoped := contracts.NotificationEvent{Method: "onSessionUpdate", Payload: map[string]any{"session": "s1"}}
	if got := unscoped.SessionID(); got != "" {
		t.Fatalf("payloads without SessionID must not be routed, got %q", got)
	}
}

func TestNotificationPortsMethodSets(t *testing.T) {
	cases := []struct {
		name    string
		iface   reflect.Type
		methods []string
	}{
		{"EventPublisher", reflect.TypeOf((*contracts.EventPublisher)(nil)).Elem(), []string{"Emit"}},
		{"NotificationSource", reflect.TypeOf((*contracts.NotificationSource)(nil)).Elem(), []string{"LastSeq", "Subscribe"}},
		{"NotificationBus", reflect.TypeOf((*contracts.NotificationBus)(nil)).Elem(), []string{"Emit", "LastSeq", "Subscribe"}},
	}
	for _, tc := range cases {
		got := make([]string, 0, tc.iface.NumMethod())
		for i := 0; i < tc.iface.NumMethod(); i++ {
			got = append(got, tc.iface.Method(i).Name)
		}
		if !slices.Equal(got, tc.methods) {
			t.Fatalf("%s methods = %v, want %v", tc.name, got, tc.methods)
		}
	}

	subscribe, _ := reflect.TypeOf((*contracts.NotificationSource)(nil)).Elem().MethodByName("Subscribe")
	events := subscribe.Type.Out(1)
	if events.Kind() != reflect.Chan || events.ChanDir() != reflect.RecvDir {
		t.Fatalf("Subscribe must hand out a receive-only channel, got %v", events)
	}
}

func TestNotificationPortsImportStandardLibraryOnly(t *testing.T) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve current file path")
	}
	files, err := filepath.Glob(filepath.Join(filepath.Dir(currentFile), "ports", "*.go"))
	if err != nil || len(files) == 0 {
		t.Fatalf("list ports sources: %v (%d files)", err, len(files))
	}
	fset := token.NewFileSet()
	for _, path := range files {
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", filepath.Base(path), err)
		}
		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			first, _, _ := strings.Cut(importPath, "/")
			if strings.Contains(first, ".") || first == "remote-ui" {
				t.Fatalf("%s imports %q; ports depend on the standard library only", filepath.Base(path), importPath)
			}
		}
	}
}
