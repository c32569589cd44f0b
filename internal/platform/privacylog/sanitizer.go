// Package privacylog keeps client identity and user-entered data out of
// logs. Credentials and form payloads are redacted, client identifiers become
// per-boot fingerprints, route query values and deep model reference
// segments are masked. Session and action ids stay verbatim.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const (
	redactedValue = "[REDACTED]"
	maskedValue   = "*"
)

type rule int

const (
	ruleKeep rule = iota
	ruleRedact
	ruleFingerprint
	ruleRoute
	ruleModelRef
)

var (
	bootNonce = randomNonce()

	keyRules = map[string]rule{
		"client_id":    ruleFingerprint,
		"owner":        ruleFingerprint,
		"remote_addr":  ruleFingerprint,
		"idem_key":     ruleFingerprint,
		"form_payload": ruleRedact,
		"form_data":    ruleRedact,
		"route":        ruleRoute,
		"redirect":     ruleRoute,
		"slot":         ruleRoute,
		"sender":       ruleModelRef,
	}
	credentialKeyParts = []string{"token", "secret", "password", "passphrase", "authorization"}
)

func classify(key string) rule {
	if r, ok := keyRules[key]; ok {
		return r
	}
	for _, part := range credentialKeyParts {
		if strings.Contains(key, part) {
			return ruleRedact
		}
	}
	if strings.HasSuffix(key, "_client_id") {
		return ruleFingerprint
	}
	return ruleKeep
}

// SanitizingHandler applies the attribute rules before records reach next.
type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(out)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr rewrites one attribute. Group members are sanitized in place.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	key := strings.TrimSpace(attr.Key)
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		out := make([]any, 0, len(members))
		for _, member := range members {
			out = append(out, SanitizeAttr(member))
		}
		return slog.Group(key, out...)
	}

	switch classify(strings.ToLower(key)) {
	case ruleRedact:
		return slog.String(key, redactedValue)
	case ruleFingerprint:
		name := key
		if !strings.HasSuffix(strings.ToLower(key), "_fp") {
			name += "_fp"
		}
		return slog.String(name, FingerprintID(valueString(attr.Value)))
	case ruleRoute:
		return slog.String(key, MaskRouteQuery(valueString(attr.Value)))
	case ruleModelRef:
		return slog.String(key, MaskModelRef(valueString(attr.Value)))
	default:
		return attr
	}
}

// MaskRouteQuery keeps the path and slot of a route string and masks every
// query value: "/people@card?id=42" logs as "/people@card?id=*".
func MaskRouteQuery(raw string) string {
	path, query, ok := strings.Cut(raw, "?")
	if !ok {
		return raw
	}
	pairs := strings.Split(query, "&")
	for i, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		pairs[i] = key + "=" + maskedValue
	}
	return path + "?" + strings.Join(pairs, "&")
}

// MaskModelRef keeps the form and top-level property of a model reference
// and numeric sequence indexes below it. Other nested segments may be map
// keys chosen by users, so they are masked: "table_rows.alice.name" logs as
// "table_rows.*.*".
func MaskModelRef(ref string) string {
	head, rest, ok := strings.Cut(ref, ".")
	if !ok {
		return ref
	}
	segments := strings.Split(rest, ".")
	for i, segment := range segments {
		if !isIndex(segment) {
			segments[i] = maskedValue
		}
	}
	return head + "." + strings.Join(segments, ".")
}

func isIndex(segment string) bool {
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FingerprintID hashes value with a nonce chosen at process start, so
// fingerprints correlate within one run only.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func valueString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return fmt.Sprint(v.Any())
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
