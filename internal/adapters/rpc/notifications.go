package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/pkg/models"
)

// notificationFrame wraps a push event for the wire. Only the engine's push
// events are framed.
func notificationFrame(evt contracts.NotificationEvent) (models.Notification, error) {
	if !isPushEvent(evt.Method) {
		return models.Notification{}, fmt.Errorf("unknown push event %q", evt.Method)
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return models.Notification{}, err
	}
	return models.Notification{
		JSONRPC: "2.0",
		Method:  evt.Method,
		Params: models.NotificationParams{
			Version:   rpcNotificationVersion,
			Seq:       evt.Seq,
			Timestamp: evt.Timestamp.UTC().Format(time.RFC3339Nano),
			Payload:   payload,
		},
	}, nil
}
