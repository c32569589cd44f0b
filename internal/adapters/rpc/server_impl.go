package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/internal/platform/ratelimiter"
)

const DefaultRPCAddr = "127.0.0.1:8787"

type RateLimitOptions struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type StreamOptions struct {
	MaxGlobal    int
	MaxPerClient int
}

// Options configures the transport. Zero values fall back to defaults;
// a nil Gatherer disables /metrics.
type Options struct {
	Addr            string
	Token           string
	RequireToken    bool
	AllowNullOrigin bool
	RateLimit       RateLimitOptions
	Stream          StreamOptions
	Gatherer        prometheus.Gatherer
	Logger          *slog.Logger
}

type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	engine          *remoteui.Engine
	notifications   contracts.NotificationSource
	logger          *slog.Logger
	initErr         error
	rpcToken        string
	requireRPC      bool
	allowNullOrigin bool
	rpcLimiter      *ratelimiter.Limiter
	streams         *streamSlots
	replays         *triggerReplayCache
}

func NewServer(opts Options, engine *remoteui.Engine, notifications contracts.NotificationSource) *Server {
	if engine == nil || notifications == nil {
		return &Server{initErr: errors.New("rpc server requires an engine and a notification source")}
	}
	token := strings.TrimSpace(opts.Token)
	if opts.RequireToken && token == "" {
		return &Server{initErr: errors.New("an rpc token is required unless the environment is test/development/local")}
	}
	if opts.Addr == "" {
		opts.Addr = DefaultRPCAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		handler:         mux,
		engine:          engine,
		notifications:   notifications,
		logger:          logger,
		rpcToken:        token,
		requireRPC:      opts.RequireToken,
		allowNullOrigin: opts.AllowNullOrigin,
		streams:         newStreamSlots(opts.Stream),
		replays:         newTriggerReplayCache(engine.IsOpen),
	}
	if opts.RateLimit.Enabled {
		s.rpcLimiter = ratelimiter.New(opts.RateLimit.RPS, opts.RateLimit.Burst, 10*time.Minute)
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.rpcToken == "" && !s.requireRPC {
		logger.Warn("rpc token is not set; RPC auth disabled")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/rpc/stream", s.handleRPCStream)
	mux.HandleFunc("/rpc/ws", s.handleRPCWebSocket)
	if opts.Gatherer != nil {
		metrics := promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
		mux.Handle("/metrics", s.guard(metrics))
	}
	return s
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Handler exposes the route table so it can be served by a test server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Run(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.engine.SessionCount(),
		"streams":  s.streams.counts(),
	})
}

// handleRPCStream serves push events as server-sent events. The cursor query
// parameter resumes after a sequence number; session narrows the stream to
// one session.
func (s *Server) handleRPCStream(w http.ResponseWriter, r *http.Request) {
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
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clientKey := rpcRateLimitKey(r, s.extractRPCToken(r))
	release, err := s.streams.acquire(clientKey, transportSSE)
	if err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	defer release()
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming is not supported", http.StatusInternalServerError)
		return
	}

	cursor := int64(0)
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = v
	}
	session := strings.TrimSpace(r.URL.Query().Get("session"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	replay, ch, cancel := s.notifications.Subscribe(cursor)
	defer cancel()

	for _, evt := range replay {
		if session != "" && evt.SessionID() != session {
			continue
		}
		if err := writeSSEEvent(w, evt); err != nil {
			return
		}
		flusher.Flush()
	}

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if !isPushEvent(evt.Method) || (session != "" && evt.SessionID() != session) {
				continue
			}
			if err := writeSSEEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt contracts.NotificationEvent) error {
	frame, err := notificationFrame(evt)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\n", evt.Seq); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(data)); err != nil {
		return err
	}
	return nil
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin != "" && !isAllowedOrigin(origin, s.allowNullOrigin) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return false
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, "+
		rpcTokenHeader+", "+rpcClientIDHeader+", "+rpcIdempotencyHeader)
	return true
}

func (s *Server) authorizeRPC(w http.ResponseWriter, r *http.Request) bool {
	if s.rpcToken == "" && !s.requireRPC {
		return true
	}
	token := s.extractRPCToken(r)
	if token != s.rpcToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) extractRPCToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get(rpcTokenHeader))
	if token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	// Browsers cannot set headers on a WebSocket handshake.
	if r.URL.Path == "/rpc/ws" {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

func isAllowedOrigin(raw string, allowNull bool) bool {
	if raw == "null" {
		return allowNull
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimSpace(u.Hostname())
	if host == "" {
		return false
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
