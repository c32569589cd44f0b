// Package app holds the application-level pieces that sit between the
// remote UI engine and its transports.
//
// NotificationHub buffers engine events with monotonic sequence numbers so
// that stream subscribers can resume from a cursor. The routes subpackage
// holds the screens the daemon serves.
//
// JSON-RPC, SSE and WebSocket handling live in internal/adapters/rpc.
package app
