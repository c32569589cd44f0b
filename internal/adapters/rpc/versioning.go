package rpc

import (
	"reflect"
	"strings"

	"remote-ui/go-backend/internal/domains/actionid"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

// Protocol version 1 is the four session methods plus the four push events
// below. A payload field change bumps rpcNotificationVersion; a method or
// parameter change bumps the protocol version.
const (
	protocolVersion             = 1
	protocolMinSupportedVersion = 1
	rpcNotificationVersion      = 1

	codeVersionUnsupported = -32080
	codeVersionDeprecated  = -32081
)

var sessionMethods = []string{
	models.MethodOpenSession,
	models.MethodRenderSession,
	models.MethodCloseSession,
	models.MethodTriggerAction,
}

// pushEvents maps every event method the engine emits to its payload type.
var pushEvents = map[string]reflect.Type{
	remoteui.MethodSessionUpdate: reflect.TypeFor[remoteui.SessionUpdateEvent](),
	remoteui.MethodFormSet:       reflect.TypeFor[remoteui.FormSetEvent](),
	remoteui.MethodFormUpdate:    reflect.TypeFor[remoteui.FormUpdateEvent](),
	remoteui.MethodSessionClosed: reflect.TypeFor[remoteui.SessionClosedEvent](),
}

func isPushEvent(method string) bool {
	_, ok := pushEvents[method]
	return ok
}

// checkAPIVersion accepts a missing version as the current one.
func checkAPIVersion(v *int) *rpcError {
	switch {
	case v == nil:
		return nil
	case *v < protocolMinSupportedVersion:
		return &rpcError{
			Code:    codeVersionDeprecated,
			Message: "remote ui protocol version is no longer supported",
			Data:    map[string]any{"min_supported_version": protocolMinSupportedVersion},
		}
	case *v > protocolVersion:
		return &rpcError{
			Code:    codeVersionUnsupported,
			Message: "remote ui protocol version is newer than this server",
			Data:    map[string]any{"current_version": protocolVersion},
		}
	}
	return nil
}

func protocolInfo() models.ProtocolInfo {
	events := make([]models.PushEventInfo, 0, len(pushEvents))
	for _, method := range []string{
		remoteui.MethodSessionUpdate,
		remoteui.MethodFormSet,
		remoteui.MethodFormUpdate,
		remoteui.MethodSessionClosed,
	} {
		events = append(events, models.PushEventInfo{
			Method: method,
			Fields: payloadFields(pushEvents[method]),
		})
	}
	return models.ProtocolInfo{
		CurrentVersion:      protocolVersion,
		MinSupportedVersion: protocolMinSupportedVersion,
		NotificationVersion: rpcNotificationVersion,
		Methods:             append([]string(nil), sessionMethods...),
		Events:              events,
		ActionKinds: []string{
			string(actionid.KindAction),
			string(actionid.KindForm),
			string(actionid.KindMeta),
		},
	}
}

func payloadFields(typ reflect.Type) []string {
	fields := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}
