package ports

import "time"

// NotificationEvent is one sequenced push event as stored by the hub and
// replayed to stream subscribers.
type NotificationEvent struct {
	Seq       int64
	Method    string
	Payload   any
	Timestamp time.Time
}

// SessionID returns the session the payload belongs to, or "" for events
// that are not session scoped.
func (e NotificationEvent) SessionID() string {
	scoped, ok := e.Payload.(interface{ SessionID() string })
	if !ok {
		return ""
	}
	return scoped.SessionID()
}

// EventPublisher is the engine-facing side of the notification bus.
type EventPublisher interface {
	Emit(method string, payload any)
}

// NotificationSource is the transport-facing side of the notification bus.
type NotificationSource interface {
	Subscribe(fromSeq int64) ([]NotificationEvent, <-chan NotificationEvent, func())
	LastSeq() int64
}

type NotificationBus interface {
	EventPublisher
	NotificationSource
}
