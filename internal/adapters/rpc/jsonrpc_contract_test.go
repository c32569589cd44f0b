package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

func openSessionCall(t *testing.T, h *testHarness, headers map[string]string) models.OpenSessionResult {
	t.Helper()
	rec := rpcCallWithHeaders(t, h.server, `{"jsonrpc":"2.0","id":1,"method":"openSession","params":{"route":"/"}}`, headers)
	resp := decodeRPCResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("open session: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var result models.OpenSessionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode open result: %v", err)
	}
	return result
}

func callError(t *testing.T, h *testHarness, body string) *rpcError {
	t.Helper()
	resp := decodeRPCResponse(t, rpcCall(t, h.server, body, ""))
	if resp.Error == nil {
		t.Fatalf("expected rpc error for %s, got result %#v", body, resp.Result)
	}
	return resp.Error
}

func TestRPCOpenSessionSnapshot(t *testing.T) {
	h := newTestHarness(t, Options{})
	result := openSessionCall(t, h, nil)

	if result.Session == "" || result.Digest == "" {
		t.Fatalf("expected session id and digest: %#v", result)
	}
	if result.Root["text"] != "bumped " {
		t.Fatalf("unexpected root: %#v", result.Root)
	}
	if _, ok := result.Forms["note"]; !ok {
		t.Fatalf("expected note form in snapshot: %#v", result.Forms)
	}
}

func TestRPCOpenSessionPositionalParams(t *testing.T) {
	h := newTestHarness(t, Options{})
	resp := decodeRPCResponse(t, rpcCall(t, h.server, `{"jsonrpc":"2.0","id":1,"method":"openSession","params":["/"]}`, ""))
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
}

func TestRPCTriggerActionAndRender(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session

	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"triggerAction","params":{"session":%q,"action":%q}}`, session, h.screen.bump)
	if resp := decodeRPCResponse(t, rpcCall(t, h.server, body, "")); resp.Error != nil {
		t.Fatalf("trigger: %+v", resp.Error)
	}

	body = fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"renderSession","params":[%q]}`, session)
	resp := decodeRPCResponse(t, rpcCall(t, h.server, body, ""))
	if resp.Error != nil {
		t.Fatalf("render: %+v", resp.Error)
	}
	root := resp.Result.(map[string]any)["root"].(map[string]any)
	if root["text"] != "bumped +" {
		t.Fatalf("unexpected render after bump: %#v", root)
	}

	body = fmt.Sprintf(`{"jsonrpc":"2.0","id":4,"method":"renderSession","params":{"session":%q,"slot":"/footer"}}`, session)
	resp = decodeRPCResponse(t, rpcCall(t, h.server, body, ""))
	if resp.Error != nil {
		t.Fatalf("render slot: %+v", resp.Error)
	}
	if got := resp.Result.(map[string]any)["root"].(map[string]any)["text"]; got != "footer" {
		t.Fatalf("unexpected slot render: %v", got)
	}
}

func TestRPCFormAction(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session

	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"triggerAction","params":[%q,%q,{"text":"hello"},"note_text"]}`, session, h.screen.save)
	if resp := decodeRPCResponse(t, rpcCall(t, h.server, body, "")); resp.Error != nil {
		t.Fatalf("trigger form action: %+v", resp.Error)
	}
	h.screen.mu.Lock()
	saved := append([]string(nil), h.screen.saved...)
	h.screen.mu.Unlock()
	if len(saved) != 1 || saved[0] != "hello" {
		t.Fatalf("unexpected saved notes: %#v", saved)
	}

	body = fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"triggerAction","params":{"session":%q,"action":%q,"form":{"text":7}}}`, session, h.screen.save)
	if rpcErr := callError(t, h, body); rpcErr.Code != codeValidation {
		t.Fatalf("expected validation code, got %+v", rpcErr)
	}
}

func TestRPCEngineErrorCodes(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session

	cases := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{
			name: "unknown session",
			body: fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"triggerAction","params":{"session":"missing","action":%q}}`, h.screen.bump),
			code: codeUnknownSession,
		},
		{
			name: "unknown action",
			body: fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"triggerAction","params":{"session":%q,"action":"action_nope"}}`, session),
			code: codeUnknownAction,
		},
		{
			name: "malformed action id",
			body: fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"triggerAction","params":{"session":%q,"action":"bogus"}}`, session),
			code: codeProtocol,
		},
		{
			name:    "client error",
			body:    fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"triggerAction","params":{"session":%q,"action":%q}}`, session, h.screen.fail),
			code:    codeHandler,
			message: "try again later",
		},
		{
			name: "handler returning a route error",
			body: fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"triggerAction","params":{"session":%q,"action":%q}}`, session, h.screen.jump),
			code: codeHandler,
		},
		{
			name: "route parse",
			body: `{"jsonrpc":"2.0","id":1,"method":"openSession","params":{"route":"/a$"}}`,
			code: codeRouteParse,
		},
		{
			name: "render unknown session",
			body: `{"jsonrpc":"2.0","id":1,"method":"renderSession","params":{"session":"missing"}}`,
			code: codeUnknownSession,
		},
		{
			name: "method not found",
			body: `{"jsonrpc":"2.0","id":1,"method":"nope","params":{}}`,
			code: codeMethodNotFound,
		},
		{
			name: "invalid params",
			body: `{"jsonrpc":"2.0","id":1,"method":"closeSession","params":{"sesion":"typo"}}`,
			code: codeInvalidParams,
		},
		{
			name: "invalid request",
			body: `{"jsonrpc":"1.0","id":1,"method":"health_check"}`,
			code: codeInvalidRequest,
		},
		{
			name: "parse error",
			body: `{"jsonrpc":`,
			code: codeParseError,
		},
		{
			name: "future api version",
			body: `{"jsonrpc":"2.0","id":1,"method":"health_check","api_version":999,"params":{}}`,
			code: codeVersionUnsupported,
		},
		{
			name: "deprecated api version",
			body: `{"jsonrpc":"2.0","id":1,"method":"health_check","api_version":0,"params":{}}`,
			code: codeVersionDeprecated,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rpcErr := callError(t, h, tc.body)
			if rpcErr.Code != tc.code {
				t.Fatalf("expected code %d, got %+v", tc.code, rpcErr)
			}
			if tc.message != "" && rpcErr.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, rpcErr.Message)
			}
		})
	}
}

func TestRPCRouteParseErrorCarriesIndex(t *testing.T) {
	h := newTestHarness(t, Options{})
	rpcErr := callError(t, h, `{"jsonrpc":"2.0","id":1,"method":"openSession","params":{"route":"/a$"}}`)
	data, ok := rpcErr.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected error data, got %#v", rpcErr.Data)
	}
	if data["category"] != "route" || data["index"] != float64(2) {
		t.Fatalf("unexpected error data: %#v", data)
	}
}

func TestRPCCloseSession(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session

	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"closeSession","params":{"session":%q}}`, session)
	if resp := decodeRPCResponse(t, rpcCall(t, h.server, body, "")); resp.Error != nil {
		t.Fatalf("close: %+v", resp.Error)
	}
	if h.engine.SessionCount() != 0 {
		t.Fatalf("expected no open sessions, got %d", h.engine.SessionCount())
	}
	if rpcErr := callError(t, h, body); rpcErr.Code != codeUnknownSession {
		t.Fatalf("closing twice must report an unknown session, got %+v", rpcErr)
	}
}

func TestRPCVersionMethod(t *testing.T) {
	h := newTestHarness(t, Options{})
	resp := decodeRPCResponse(t, rpcCall(t, h.server, `{"jsonrpc":"2.0","id":1,"method":"rpc.version","params":{}}`, ""))
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var info models.ProtocolInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatalf("decode protocol info: %v", err)
	}
	if info.CurrentVersion != protocolVersion || info.NotificationVersion != rpcNotificationVersion {
		t.Fatalf("unexpected versions: %+v", info)
	}
	if len(info.Methods) != 4 || info.Methods[0] != models.MethodOpenSession {
		t.Fatalf("unexpected methods: %v", info.Methods)
	}
	want := map[string]string{
		remoteui.MethodSessionUpdate: "session,root,digest",
		remoteui.MethodFormSet:       "session,form,data",
		remoteui.MethodFormUpdate:    "session,form,mutations",
		remoteui.MethodSessionClosed: "session,redirect",
	}
	if len(info.Events) != len(want) {
		t.Fatalf("unexpected events: %+v", info.Events)
	}
	for _, event := range info.Events {
		if got := strings.Join(event.Fields, ","); got != want[event.Method] {
			t.Fatalf("event %s fields = %q, want %q", event.Method, got, want[event.Method])
		}
	}
	if strings.Join(info.ActionKinds, ",") != "action,form,meta" {
		t.Fatalf("unexpected action kinds: %v", info.ActionKinds)
	}
}

func TestRPCVersionErrorsCarryBounds(t *testing.T) {
	h := newTestHarness(t, Options{})
	rpcErr := callError(t, h, `{"jsonrpc":"2.0","id":1,"method":"openSession","params":{"route":"/","api_version":7}}`)
	data, ok := rpcErr.Data.(map[string]any)
	if rpcErr.Code != codeVersionUnsupported || !ok || data["current_version"] != float64(protocolVersion) {
		t.Fatalf("unexpected version error: %+v", rpcErr)
	}
}

func TestNotificationFrameRejectsUnknownEvents(t *testing.T) {
	if _, err := notificationFrame(contracts.NotificationEvent{Method: "tick"}); err == nil {
		t.Fatal("expected unknown push events to be rejected")
	}
	frame, err := notificationFrame(contracts.NotificationEvent{
		Seq:     3,
		Method:  remoteui.MethodSessionClosed,
		Payload: remoteui.SessionClosedEvent{Session: "s1"},
	})
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if frame.Params.Seq != 3 || string(frame.Params.Payload) != `{"session":"s1","redirect":null}` {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestRPCRequestIDHeader(t *testing.T) {
	h := newTestHarness(t, Options{})

	rec := rpcCallWithHeaders(t, h.server, `{"jsonrpc":"2.0","id":1,"method":"rpc.version","params":{}}`, map[string]string{
		rpcRequestIDHeader: "ui.42.version",
	})
	if got := rec.Header().Get(rpcRequestIDHeader); got != "ui.42.version" {
		t.Fatalf("unexpected echoed request id: %q", got)
	}

	rec = rpcCall(t, h.server, `{"jsonrpc":"2.0","id":"abc-1","method":"rpc.version","params":{}}`, "")
	if got := rec.Header().Get(rpcRequestIDHeader); got != "rpc._abc-1_" {
		t.Fatalf("unexpected fallback request id: %q", got)
	}
}

func TestRPCIdempotentTrigger(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"triggerAction","params":{"session":%q,"action":%q}}`, session, h.screen.bump)
	headers := map[string]string{rpcIdempotencyHeader: "bump-1"}

	for i := 0; i < 3; i++ {
		if resp := decodeRPCResponse(t, rpcCallWithHeaders(t, h.server, body, headers)); resp.Error != nil {
			t.Fatalf("trigger %d: %+v", i, resp.Error)
		}
	}
	h.screen.mu.Lock()
	count := h.screen.count
	h.screen.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected a single dispatch for a repeated key, got %d", count)
	}

	// The key is scoped to the action, so another action may reuse it.
	other := fmt.Sprintf(`{"jsonrpc":"2.0","id":3,"method":"triggerAction","params":{"session":%q,"action":%q}}`, session, h.screen.fail)
	if resp := decodeRPCResponse(t, rpcCallWithHeaders(t, h.server, other, headers)); resp.Error == nil || resp.Error.Code != codeHandler {
		t.Fatalf("expected the other action to be dispatched, got %+v", resp.Error)
	}
}

func TestRPCIdempotentFormTrigger(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session
	headers := map[string]string{rpcIdempotencyHeader: "save-1"}
	call := func(form string) *rpcError {
		body := fmt.Sprintf(`{"jsonrpc":"2.0","id":4,"method":"triggerAction","params":{"session":%q,"action":%q,"form":%s,"sender":"note_text"}}`, session, h.screen.save, form)
		return decodeRPCResponse(t, rpcCallWithHeaders(t, h.server, body, headers)).Error
	}

	if rpcErr := call(`{"text":"hi"}`); rpcErr != nil {
		t.Fatalf("save: %+v", rpcErr)
	}
	if rpcErr := call(`{ "text" : "hi" }`); rpcErr != nil {
		t.Fatalf("retry with reformatted payload: %+v", rpcErr)
	}
	if rpcErr := call(`{"text":"changed"}`); rpcErr == nil || rpcErr.Code != codeInvalidRequest {
		t.Fatalf("expected key reuse with another payload to be rejected, got %+v", rpcErr)
	}
	h.screen.mu.Lock()
	saved := append([]string(nil), h.screen.saved...)
	h.screen.mu.Unlock()
	if len(saved) != 1 || saved[0] != "hi" {
		t.Fatalf("expected one save, got %v", saved)
	}
}

func TestRPCIdempotentTriggerAfterClose(t *testing.T) {
	h := newTestHarness(t, Options{})
	session := openSessionCall(t, h, nil).Session
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":5,"method":"triggerAction","params":{"session":%q,"action":%q}}`, session, h.screen.bump)
	headers := map[string]string{rpcIdempotencyHeader: "bump-2"}

	if resp := decodeRPCResponse(t, rpcCallWithHeaders(t, h.server, body, headers)); resp.Error != nil {
		t.Fatalf("trigger: %+v", resp.Error)
	}
	if got := h.server.replays.len(); got != 1 {
		t.Fatalf("expected one stored response, got %d", got)
	}
	closeBody := fmt.Sprintf(`{"jsonrpc":"2.0","id":6,"method":"closeSession","params":{"session":%q}}`, session)
	if resp := decodeRPCResponse(t, rpcCall(t, h.server, closeBody, "")); resp.Error != nil {
		t.Fatalf("close: %+v", resp.Error)
	}
	if got := h.server.replays.len(); got != 0 {
		t.Fatalf("closing the session must drop its stored responses, got %d", got)
	}
	if resp := decodeRPCResponse(t, rpcCallWithHeaders(t, h.server, body, headers)); resp.Error == nil || resp.Error.Code != codeUnknownSession {
		t.Fatalf("retry after close must report the closed session, got %+v", resp.Error)
	}
}

func TestTriggerReplayCacheDropsClosedSessions(t *testing.T) {
	open := map[string]bool{"s1": true}
	cache := newTriggerReplayCache(func(id string) bool { return open[id] })
	replay := newTriggerReplay("k", "token", json.RawMessage(`{"session":"s1","action":"action_go"}`))
	now := time.Now()
	cache.store(replay, rpcResponse{JSONRPC: "2.0", Result: "ok"}, now)

	if _, hit, _ := cache.lookup(replay, now); !hit {
		t.Fatal("expected a hit while the session is open")
	}
	open["s1"] = false
	if _, hit, _ := cache.lookup(replay, now); hit {
		t.Fatal("expected a miss once the session is gone")
	}
	if got := cache.len(); got != 0 {
		t.Fatalf("expected the entry to be dropped, got %d", got)
	}

	cache.store(replay, rpcResponse{JSONRPC: "2.0"}, now)
	if _, hit, _ := cache.lookup(replay, now.Add(triggerReplayTTL+time.Second)); hit {
		t.Fatal("expected expired entries to miss")
	}
	if newTriggerReplay("", "token", json.RawMessage(`{"session":"s1","action":"action_go"}`)) != nil {
		t.Fatal("a request without a key must not be replayed")
	}
}

func TestRPCRateLimit(t *testing.T) {
	h := newTestHarness(t, Options{RateLimit: RateLimitOptions{Enabled: true, RPS: 0.001, Burst: 2}})
	body := `{"jsonrpc":"2.0","id":1,"method":"health_check","params":{}}`

	for i := 0; i < 2; i++ {
		if resp := decodeRPCResponse(t, rpcCall(t, h.server, body, "")); resp.Error != nil {
			t.Fatalf("request %d: %+v", i, resp.Error)
		}
	}
	resp := decodeRPCResponse(t, rpcCall(t, h.server, body, ""))
	if resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit error, got %+v", resp.Error)
	}
}

func TestRPCRateLimitWeighsOpenSession(t *testing.T) {
	h := newTestHarness(t, Options{RateLimit: RateLimitOptions{Enabled: true, RPS: 0.5, Burst: 3}})
	open := `{"jsonrpc":"2.0","id":1,"method":"openSession","params":{"route":"/"}}`
	if resp := decodeRPCResponse(t, rpcCall(t, h.server, open, "")); resp.Error != nil {
		t.Fatalf("first open: %+v", resp.Error)
	}
	rec := rpcCall(t, h.server, open, "")
	resp := decodeRPCResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected a second open to exhaust the budget, got %+v", resp.Error)
	}
	data, ok := resp.Error.Data.(map[string]any)
	if !ok || data["retry_after_ms"] != float64(6000) {
		t.Fatalf("expected a retry hint, got %#v", resp.Error.Data)
	}
	if got := rec.Header().Get("Retry-After"); got != "6" {
		t.Fatalf("unexpected Retry-After header: %q", got)
	}
}

func TestRPCRejectsOversizedBody(t *testing.T) {
	h := newTestHarness(t, Options{})
	padding := make([]byte, maxRPCBodyBytes+1)
	for i := range padding {
		padding[i] = ' '
	}
	rec := rpcCall(t, h.server, string(padding)+`{}`, "")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected %d, got %d", http.StatusRequestEntityTooLarge, rec.Code)
	}
}

func TestRPCClientIDOwnsSessions(t *testing.T) {
	h := newTestHarness(t, Options{})
	result := openSessionCall(t, h, map[string]string{rpcClientIDHeader: "tab-1"})
	session, ok := h.engine.Session(result.Session)
	if !ok || session.Owner() != "http:tab-1" {
		t.Fatalf("expected session owned by the client id, got %#v", session)
	}
	if n := h.engine.ReleaseOwner("http:tab-1"); n != 1 {
		t.Fatalf("expected one released session, got %d", n)
	}
}
