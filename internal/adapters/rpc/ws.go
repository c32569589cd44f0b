package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

// wsConn is one WebSocket client. Requests and push events share the socket;
// a connection only sees events for sessions it opened, and its sessions are
// closed when it goes away.
type wsConn struct {
	server *Server
	conn   *websocket.Conn
	owner  string
	key    string

	writeMu sync.Mutex

	mu    sync.Mutex
	owned map[string]struct{}
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			return origin == "" || isAllowedOrigin(origin, s.allowNullOrigin)
		},
	}
}

func (s *Server) handleRPCWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRPC(w, r) {
		return
	}
	key := rpcRateLimitKey(r, s.extractRPCToken(r))
	release, err := s.streams.acquire(key, transportWS)
	if err != nil {
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	defer release()

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsConn{
		server: s,
		conn:   conn,
		owner:  "ws:" + ulid.Make().String(),
		key:    key,
		owned:  make(map[string]struct{}),
	}
	c.serve(r.Context())
}

func (c *wsConn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer func() {
		_ = c.conn.Close()
		if n := c.server.engine.ReleaseOwner(c.owner); n > 0 {
			c.server.logger.Info("websocket closed; sessions released", "owner", c.owner, "sessions", n)
		}
	}()

	_, events, unsubscribe := c.server.notifications.Subscribe(c.server.notifications.LastSeq())
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.pushLoop(ctx, events)
		cancel()
		_ = c.conn.Close()
	}()

	c.readLoop(ctx)
	cancel()
	<-done
}

func (c *wsConn) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(maxRPCBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		if messageType != websocket.TextMessage {
			continue
		}
		if err := c.writeJSON(c.handle(ctx, data)); err != nil {
			return
		}
	}
}

func (c *wsConn) handle(ctx context.Context, data []byte) rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}}
	}
	if rpcErr := c.server.spendRPC(c.key, req.Method); rpcErr != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	resp := c.server.serveRPC(ctx, c.owner, correlationID("ws", req.ID), req)
	if opened, ok := resp.Result.(models.OpenSessionResult); ok && resp.Error == nil {
		c.own(opened.Session)
	}
	return resp
}

func (c *wsConn) pushLoop(ctx context.Context, events <-chan contracts.NotificationEvent) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				// The hub dropped this subscriber for falling behind.
				c.writeClose(websocket.CloseTryAgainLater, "event backlog overflow")
				return
			}
			if !c.wants(evt) {
				continue
			}
			frame, err := notificationFrame(evt)
			if err != nil {
				c.server.logger.Error("encode notification failed", "method", evt.Method, "error", err)
				continue
			}
			if err := c.writeJSON(frame); err != nil {
				return
			}
		case <-ping.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// wants reports whether evt belongs to a session this connection owns.
func (c *wsConn) wants(evt contracts.NotificationEvent) bool {
	id := evt.SessionID()
	if id == "" || !isPushEvent(evt.Method) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, owned := c.owned[id]
	if !owned {
		session, ok := c.server.engine.Session(id)
		if !ok || session.Owner() != c.owner {
			return false
		}
		c.owned[id] = struct{}{}
	}
	if evt.Method == remoteui.MethodSessionClosed {
		delete(c.owned, id)
	}
	return true
}

func (c *wsConn) own(id string) {
	c.mu.Lock()
	c.owned[id] = struct{}{}
	c.mu.Unlock()
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeClose(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteTimeout))
}
