package rpc

import (
	"errors"
	"sync"
)

const (
	defaultStreamMaxGlobal    = 128
	defaultStreamMaxPerClient = 8
)

// streamTransport names how a client receives push events. Server-sent event
// streams only observe sessions; WebSocket connections also own the sessions
// they open.
type streamTransport string

const (
	transportSSE streamTransport = "sse"
	transportWS  streamTransport = "ws"
)

var (
	errStreamGlobalCap = errors.New("too many push streams on this server")
	errStreamClientCap = errors.New("too many push streams for this client")
)

type streamClient struct {
	key       string
	transport streamTransport
}

// streamSlots caps concurrent push streams. The global cap covers every
// transport; the per-client cap is counted separately for each transport so
// an SSE observer does not starve the same client's WebSocket.
type streamSlots struct {
	maxGlobal    int
	maxPerClient int

	mu       sync.Mutex
	open     map[streamTransport]int
	byClient map[streamClient]int
}

func newStreamSlots(cfg StreamOptions) *streamSlots {
	if cfg.MaxGlobal <= 0 {
		cfg.MaxGlobal = defaultStreamMaxGlobal
	}
	if cfg.MaxPerClient <= 0 {
		cfg.MaxPerClient = defaultStreamMaxPerClient
	}
	return &streamSlots{
		maxGlobal:    cfg.MaxGlobal,
		maxPerClient: cfg.MaxPerClient,
		open:         make(map[streamTransport]int),
		byClient:     make(map[streamClient]int),
	}
}

// acquire reserves a slot. The returned release may be called more than once.
func (l *streamSlots) acquire(clientKey string, transport streamTransport) (func(), error) {
	client := streamClient{key: clientKey, transport: transport}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.totalLocked() >= l.maxGlobal {
		return nil, errStreamGlobalCap
	}
	if l.byClient[client] >= l.maxPerClient {
		return nil, errStreamClientCap
	}
	l.open[transport]++
	l.byClient[client]++

	var once sync.Once
	return func() {
		once.Do(func() { l.release(client) })
	}, nil
}

func (l *streamSlots) release(client streamClient) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[client.transport]--; l.open[client.transport] <= 0 {
		delete(l.open, client.transport)
	}
	if l.byClient[client]--; l.byClient[client] <= 0 {
		delete(l.byClient, client)
	}
}

func (l *streamSlots) totalLocked() int {
	total := 0
	for _, n := range l.open {
		total += n
	}
	return total
}

// counts reports open streams per transport.
func (l *streamSlots) counts() map[streamTransport]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[streamTransport]int{
		transportSSE: l.open[transportSSE],
		transportWS:  l.open[transportWS],
	}
}
