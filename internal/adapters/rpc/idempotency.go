package rpc

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"remote-ui/go-backend/internal/platform/canonjson"
)

const (
	rpcIdempotencyHeader = "X-RUI-Idempotency-Key"
	triggerReplayTTL     = 10 * time.Minute
	triggerReplayMax     = 1024
)

// triggerReplayKey scopes a client retry key to one action on one session.
// The same client key may be reused for a different action or session.
type triggerReplayKey struct {
	principal string
	session   string
	action    string
	key       string
}

type triggerReplayEntry struct {
	fingerprint string
	response    rpcResponse
	createdAt   time.Time
}

// triggerReplay is the lookup state for one triggerAction request that
// carries a retry key.
type triggerReplay struct {
	key         triggerReplayKey
	fingerprint string
}

// newTriggerReplay returns nil when the request has no retry key or its
// params do not decode; dispatch reports the latter.
func newTriggerReplay(header, principal string, params json.RawMessage) *triggerReplay {
	key := strings.TrimSpace(header)
	if key == "" {
		return nil
	}
	decoded, err := decodeTriggerActionParams(params)
	if err != nil {
		return nil
	}
	sender := ""
	if decoded.Sender != nil {
		sender = *decoded.Sender
	}
	return &triggerReplay{
		key: triggerReplayKey{
			principal: principal,
			session:   decoded.Session,
			action:    decoded.Action,
			key:       key,
		},
		fingerprint: payloadFingerprint(decoded.Form, sender),
	}
}

// payloadFingerprint identifies the form payload and sender of a trigger.
// Canonical JSON makes key order and whitespace irrelevant.
func payloadFingerprint(form json.RawMessage, sender string) string {
	sum, err := canonjson.Digest(struct {
		Form   json.RawMessage `json:"form,omitempty"`
		Sender string          `json:"sender"`
	}{Form: form, Sender: sender})
	if err != nil {
		return "raw:" + sender + "|" + string(form)
	}
	return sum
}

// triggerReplayCache remembers successful triggerAction responses so a client
// retrying after a lost response does not run the action twice.
type triggerReplayCache struct {
	mu      sync.Mutex
	entries map[triggerReplayKey]triggerReplayEntry
	live    func(session string) bool
}

func newTriggerReplayCache(live func(session string) bool) *triggerReplayCache {
	return &triggerReplayCache{
		entries: make(map[triggerReplayKey]triggerReplayEntry),
		live:    live,
	}
}

// lookup returns the stored response for a retry. conflict is set when the
// key was used for the same action with a different payload. Entries for
// sessions that are no longer open are dropped so the retry reaches the
// engine and reports the closed session.
func (c *triggerReplayCache) lookup(r *triggerReplay, now time.Time) (resp rpcResponse, hit, conflict bool) {
	if c == nil || r == nil {
		return rpcResponse{}, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(now)
	entry, ok := c.entries[r.key]
	if !ok {
		return rpcResponse{}, false, false
	}
	if c.live != nil && !c.live(r.key.session) {
		c.forgetSessionLocked(r.key.session)
		return rpcResponse{}, false, false
	}
	if entry.fingerprint != r.fingerprint {
		return rpcResponse{}, false, true
	}
	return entry.response, true, false
}

func (c *triggerReplayCache) store(r *triggerReplay, resp rpcResponse, now time.Time) {
	if c == nil || r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(now)
	c.entries[r.key] = triggerReplayEntry{
		fingerprint: r.fingerprint,
		response:    resp,
		createdAt:   now,
	}
	if len(c.entries) > triggerReplayMax {
		c.evictOldestLocked()
	}
}

// forgetSession drops every retry entry recorded for session.
func (c *triggerReplayCache) forgetSession(session string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.forgetSessionLocked(session)
	c.mu.Unlock()
}

func (c *triggerReplayCache) forgetSessionLocked(session string) {
	for key := range c.entries {
		if key.session == session {
			delete(c.entries, key)
		}
	}
}

func (c *triggerReplayCache) evictOldestLocked() {
	var oldest triggerReplayKey
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.createdAt.Before(oldestAt) {
			oldest, oldestAt, first = key, entry.createdAt, false
		}
	}
	if !first {
		delete(c.entries, oldest)
	}
}

func (c *triggerReplayCache) prune(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > triggerReplayTTL {
			delete(c.entries, key)
		}
	}
}

func (c *triggerReplayCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
