package rpc

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"remote-ui/go-backend/internal/platform/ratelimiter"
	"remote-ui/go-backend/pkg/models"
)

// rpcCallCost weighs a call by the server state it creates. openSession
// allocates and renders a session; triggerAction starts application code.
func rpcCallCost(method string) int {
	switch method {
	case models.MethodOpenSession:
		return 3
	case models.MethodTriggerAction:
		return 2
	default:
		return 1
	}
}

// spendRPC charges one call against the caller's budget. It returns nil when
// the call may proceed.
func (s *Server) spendRPC(key, method string) *rpcError {
	decision := s.rpcLimiter.Spend(key, rpcCallCost(method), time.Now())
	if decision.Allowed {
		return nil
	}
	return rpcRateLimited(decision)
}

// retryAfterSeconds rounds a wait up to whole seconds for the Retry-After
// header.
func retryAfterSeconds(err *rpcError) (string, bool) {
	data, ok := err.Data.(map[string]any)
	if !ok {
		return "", false
	}
	ms, ok := data["retry_after_ms"].(int64)
	if !ok || ms <= 0 {
		return "", false
	}
	return strconv.FormatInt(int64(math.Ceil(float64(ms)/1000)), 10), true
}

func rpcRateLimited(decision ratelimiter.Decision) *rpcError {
	err := &rpcError{Code: codeRateLimited, Message: "rate limit exceeded"}
	if decision.RetryAfter > 0 {
		err.Data = map[string]any{"retry_after_ms": decision.RetryAfter.Milliseconds()}
	}
	return err
}

// rpcRateLimitKey buckets callers by token when one is presented and by
// remote host otherwise.
func rpcRateLimitKey(r *http.Request, token string) string {
	if strings.TrimSpace(token) != "" {
		return "token:" + token
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if strings.TrimSpace(host) == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}
