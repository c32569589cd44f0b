package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"remote-ui/go-backend/internal/domains/route"
	"remote-ui/go-backend/pkg/models"
)

type rpcRequest struct {
	JSONRPC    string          `json:"jsonrpc"`
	ID         json.RawMessage `json:"id"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params"`
	APIVersion *int            `json:"api_version,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

const (
	rpcClientIDHeader  = "X-RUI-Client-ID"
	rpcTokenHeader     = "X-RUI-RPC-Token"
	rpcRequestIDHeader = "X-RUI-Request-ID"
)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.authorizeRPC(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := s.extractRPCToken(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	if rpcErr := s.spendRPC(rpcRateLimitKey(r, token), req.Method); rpcErr != nil {
		if seconds, ok := retryAfterSeconds(rpcErr); ok {
			w.Header().Set("Retry-After", seconds)
		}
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}

	requestID := strings.TrimSpace(r.Header.Get(rpcRequestIDHeader))
	if requestID == "" {
		requestID = correlationID("rpc", req.ID)
	}
	w.Header().Set(rpcRequestIDHeader, requestID)

	var replay *triggerReplay
	if req.Method == models.MethodTriggerAction {
		replay = newTriggerReplay(r.Header.Get(rpcIdempotencyHeader), token, req.Params)
	}
	cached, hit, conflict := s.replays.lookup(replay, time.Now())
	if conflict {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeInvalidRequest, Message: "idempotency key reused with a different form payload"},
		})
		return
	}
	if hit {
		cached.ID = req.ID
		writeRPC(w, cached)
		return
	}

	resp := s.serveRPC(r.Context(), httpOwner(r), requestID, req)
	if resp.Error == nil {
		s.replays.store(replay, resp, time.Now())
	}
	writeRPC(w, resp)
}

// serveRPC validates and dispatches one decoded request. It is shared by the
// HTTP and WebSocket transports.
func (s *Server) serveRPC(ctx context.Context, owner, requestID string, req rpcRequest) rpcResponse {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid request"},
		}
	}
	if rpcErr := checkAPIVersion(req.APIVersion); rpcErr != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	started := time.Now()
	s.logger.Info("rpc request", "request_id", requestID, "method", req.Method, "rpc_id", string(req.ID))

	result, rpcErr := s.dispatchRPC(ctx, owner, req.Method, req.Params)
	if rpcErr != nil {
		s.logger.Error("rpc failed", "request_id", requestID, "method", req.Method, "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		s.logger.Info("rpc response", "request_id", requestID, "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}
	return rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}
}

func (s *Server) dispatchRPC(ctx context.Context, owner, method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case models.MethodHealthCheck:
		return models.StatusResult{Status: "ok"}, nil
	case models.MethodRPCVersion:
		return protocolInfo(), nil
	case models.MethodOpenSession:
		params, err := decodeOpenSessionParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if rpcErr := checkAPIVersion(params.APIVersion); rpcErr != nil {
			return nil, rpcErr
		}
		target, err := route.Parse(params.Route, nil)
		if err != nil {
			return nil, mapEngineError(err)
		}
		result, err := s.engine.OpenSession(ctx, owner, target)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return models.OpenSessionResult{
			Session: result.Session,
			Root:    result.Root,
			Forms:   result.Forms,
			Digest:  result.Digest,
		}, nil
	case models.MethodRenderSession:
		params, err := decodeRenderSessionParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		slot, err := route.Parse(params.Slot, nil)
		if err != nil {
			return nil, mapEngineError(err)
		}
		root, err := s.engine.RenderSession(ctx, params.Session, slot)
		if err != nil {
			return nil, mapEngineError(err)
		}
		return models.RenderSessionResult{Root: root}, nil
	case models.MethodCloseSession:
		params, err := decodeCloseSessionParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if err := s.engine.CloseSession(ctx, params.Session); err != nil {
			return nil, mapEngineError(err)
		}
		s.replays.forgetSession(params.Session)
		return models.StatusResult{Status: "closed"}, nil
	case models.MethodTriggerAction:
		params, err := decodeTriggerActionParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		sender := ""
		if params.Sender != nil {
			sender = *params.Sender
		}
		err = s.engine.TriggerAction(ctx, triggerRequest(params, sender))
		if err != nil {
			return nil, mapEngineError(err)
		}
		return models.StatusResult{Status: "ok"}, nil
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
	}
}

func httpOwner(r *http.Request) string {
	clientID := strings.TrimSpace(r.Header.Get(rpcClientIDHeader))
	if clientID == "" {
		return ""
	}
	return "http:" + clientID
}

// correlationID derives a log-safe request id from the JSON-RPC id.
func correlationID(prefix string, id json.RawMessage) string {
	raw := strings.TrimSpace(string(id))
	if raw == "" || raw == "null" {
		return prefix + "." + ulid.Make().String()
	}
	return prefix + "." + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, raw)
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: codeInvalidRequest, Message: "invalid request"},
	})
}
