package rpc

import (
	"encoding/json"
	"errors"
	"strings"

	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/pkg/models"
)

var errInvalidParams = errors.New("invalid params")

// Params are accepted either as a named object or as a positional array in
// the order the fields are declared.

func decodeOpenSessionParams(raw json.RawMessage) (models.OpenSessionParams, error) {
	var params models.OpenSessionParams
	if err := decodeObjectParams(raw, &params); err == nil {
		return params, nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 {
		return models.OpenSessionParams{Route: arr[0]}, nil
	}
	return models.OpenSessionParams{}, errInvalidParams
}

func decodeRenderSessionParams(raw json.RawMessage) (models.RenderSessionParams, error) {
	var params models.RenderSessionParams
	if err := decodeObjectParams(raw, &params); err == nil && strings.TrimSpace(params.Session) != "" {
		return params, nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && (len(arr) == 1 || len(arr) == 2) && arr[0] != "" {
		params = models.RenderSessionParams{Session: arr[0]}
		if len(arr) == 2 {
			params.Slot = arr[1]
		}
		return params, nil
	}
	return models.RenderSessionParams{}, errInvalidParams
}

func decodeCloseSessionParams(raw json.RawMessage) (models.CloseSessionParams, error) {
	var params models.CloseSessionParams
	if err := decodeObjectParams(raw, &params); err == nil && strings.TrimSpace(params.Session) != "" {
		return params, nil
	}
	session, err := decodeSingleStringParam(raw)
	if err != nil {
		return models.CloseSessionParams{}, err
	}
	return models.CloseSessionParams{Session: session}, nil
}

func decodeTriggerActionParams(raw json.RawMessage) (models.TriggerActionParams, error) {
	var params models.TriggerActionParams
	if err := decodeObjectParams(raw, &params); err == nil {
		if params.Session == "" || params.Action == "" {
			return models.TriggerActionParams{}, errInvalidParams
		}
		return params, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 || len(arr) > 4 {
		return models.TriggerActionParams{}, errInvalidParams
	}
	if json.Unmarshal(arr[0], &params.Session) != nil || json.Unmarshal(arr[1], &params.Action) != nil {
		return models.TriggerActionParams{}, errInvalidParams
	}
	if params.Session == "" || params.Action == "" {
		return models.TriggerActionParams{}, errInvalidParams
	}
	if len(arr) > 2 {
		params.Form = arr[2]
	}
	if len(arr) > 3 && json.Unmarshal(arr[3], &params.Sender) != nil {
		return models.TriggerActionParams{}, errInvalidParams
	}
	return params, nil
}

func triggerRequest(params models.TriggerActionParams, sender string) remoteui.TriggerRequest {
	return remoteui.TriggerRequest{
		Session: params.Session,
		Action:  params.Action,
		Form:    params.Form,
		Sender:  sender,
	}
}

// decodeObjectParams decodes a JSON object strictly into dst.
func decodeObjectParams(raw json.RawMessage, dst any) error {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return errInvalidParams
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidParams
	}
	return nil
}

func decodeSingleStringParam(raw json.RawMessage) (string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && arr[0] != "" {
		return arr[0], nil
	}
	return "", errInvalidParams
}
