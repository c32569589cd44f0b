package models

import "encoding/json"

// JSON-RPC method names served by the daemon.
const (
	MethodOpenSession   = "openSession"
	MethodRenderSession = "renderSession"
	MethodCloseSession  = "closeSession"
	MethodTriggerAction = "triggerAction"
	MethodHealthCheck   = "health_check"
	MethodRPCVersion    = "rpc.version"
)

type OpenSessionParams struct {
	Route      string `json:"route"`
	APIVersion *int   `json:"api_version,omitempty"`
}

type OpenSessionResult struct {
	Session string         `json:"session"`
	Root    UIElement      `json:"root"`
	Forms   map[string]any `json:"forms"`
	Digest  string         `json:"digest,omitempty"`
}

// RenderSessionParams addresses a slot of an open session. An empty slot is
// the default render.
type RenderSessionParams struct {
	Session string `json:"session"`
	Slot    string `json:"slot,omitempty"`
}

type RenderSessionResult struct {
	Root UIElement `json:"root"`
}

type CloseSessionParams struct {
	Session string `json:"session"`
}

// TriggerActionParams carries one user action. Form is the raw form value for
// form actions; Sender is the model reference of the triggering field.
type TriggerActionParams struct {
	Session string          `json:"session"`
	Action  string          `json:"action"`
	Form    json.RawMessage `json:"form,omitempty"`
	Sender  *string         `json:"sender,omitempty"`
}

// ProtocolInfo answers rpc.version: the protocol versions the server accepts
// and the push events it may send.
type ProtocolInfo struct {
	CurrentVersion      int             `json:"current_version"`
	MinSupportedVersion int             `json:"min_supported_version"`
	NotificationVersion int             `json:"notification_version"`
	Methods             []string        `json:"methods"`
	Events              []PushEventInfo `json:"events"`
	ActionKinds         []string        `json:"action_kinds"`
}

type PushEventInfo struct {
	Method string   `json:"method"`
	Fields []string `json:"fields"`
}

type StatusResult struct {
	Status string `json:"status"`
}

// Notification is the JSON-RPC notification pushed over the event stream.
type Notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

type NotificationParams struct {
	Version   int             `json:"version"`
	Seq       int64           `json:"seq"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
