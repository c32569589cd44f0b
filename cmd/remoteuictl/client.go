package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"

	"remote-ui/go-backend/pkg/models"
)

const defaultRPCURL = "http://127.0.0.1:8787"

// rpcClient is a minimal JSON-RPC client for the daemon's HTTP transport.
type rpcClient struct {
	baseURL  string
	token    string
	clientID string
	http     *http.Client
	nextID   *atomic.Int64
}

type rpcCallError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcCallError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newRPCClient(baseURL, token, clientID string) *rpcClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultRPCURL
	}
	return &rpcClient{
		baseURL:  baseURL,
		token:    strings.TrimSpace(token),
		clientID: strings.TrimSpace(clientID),
		http:     &http.Client{Timeout: 30 * time.Second},
		nextID:   atomic.NewInt64(0),
	}
}

func (c *rpcClient) Call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Inc(),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rpc http status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcCallError   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, result)
}

// Watch follows the event stream and calls fn per notification until fn
// returns false, the stream ends or ctx is done.
func (c *rpcClient) Watch(ctx context.Context, session string, cursor int64, fn func(models.Notification) bool) error {
	query := url.Values{}
	query.Set("cursor", strconv.FormatInt(cursor, 10))
	if session != "" {
		query.Set("session", session)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rpc/stream?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	stream := &http.Client{}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream http status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var n models.Notification
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if !fn(n) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *rpcClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("X-RUI-RPC-Token", c.token)
	}
	if c.clientID != "" {
		req.Header.Set("X-RUI-Client-ID", c.clientID)
	}
}
