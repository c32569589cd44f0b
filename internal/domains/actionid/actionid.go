// Package actionid encodes which action a rendered element triggers as a
// plain string token, so it survives any render tree serialization.
//
// Grammar:
//
//	action_<name>[*]
//	form_<form>_<action>[*]
//	meta_<name>
//
// A trailing "*" asks the caller to wait for the handler to finish.
package actionid

import (
	"fmt"
	"strings"

	"remote-ui/go-backend/internal/domains/contracts"
)

type Kind string

const (
	KindAction Kind = "action"
	KindForm   Kind = "form"
	KindMeta   Kind = "meta"
)

const (
	MetaCancel = "cancel"
	MetaReload = "reload"
)

const waitSuffix = "*"

// ID is a decoded action id. Form is empty unless Kind is KindForm.
type ID struct {
	Kind              Kind
	Form              string
	Action            string
	WaitForCompletion bool
}

func Action(name string, waitForCompletion bool) string {
	return string(KindAction) + "_" + name + suffix(waitForCompletion)
}

func Form(form, action string, waitForCompletion bool) string {
	return string(KindForm) + "_" + form + "_" + action + suffix(waitForCompletion)
}

func Meta(name string) string {
	return string(KindMeta) + "_" + name
}

func suffix(waitForCompletion bool) string {
	if waitForCompletion {
		return waitSuffix
	}
	return ""
}

func (id ID) String() string {
	switch id.Kind {
	case KindForm:
		return Form(id.Form, id.Action, id.WaitForCompletion)
	case KindMeta:
		return Meta(id.Action)
	default:
		return Action(id.Action, id.WaitForCompletion)
	}
}

func structural(raw, format string, args ...any) error {
	return fmt.Errorf("%w: action id %q: %s", contracts.ErrProtocol, raw, fmt.Sprintf(format, args...))
}

// Parse decodes raw. The form name ends at the first underscore after the
// "form_" prefix; the action name takes the rest.
func Parse(raw string) (ID, error) {
	kind, rest, ok := strings.Cut(raw, "_")
	if !ok {
		return ID{}, structural(raw, "missing action type separator")
	}

	var id ID
	switch Kind(kind) {
	case KindForm:
		form, action, ok := strings.Cut(rest, "_")
		if form == "" {
			return ID{}, structural(raw, "missing form name")
		}
		if !ok {
			return ID{}, structural(raw, "missing form action name")
		}
		id = ID{Kind: KindForm, Form: form, Action: action}
	case KindAction, KindMeta:
		id = ID{Kind: Kind(kind), Action: rest}
	default:
		return ID{}, structural(raw, "invalid action type %q", kind)
	}

	if strings.HasSuffix(id.Action, waitSuffix) {
		id.Action = strings.TrimSuffix(id.Action, waitSuffix)
		id.WaitForCompletion = true
	}
	if id.Action == "" {
		return ID{}, structural(raw, "missing action name")
	}
	if id.Kind == KindMeta && id.WaitForCompletion {
		return ID{}, structural(raw, "meta actions do not take a completion flag")
	}
	return id, nil
}
