package remoteui

import (
	"strings"

	"remote-ui/go-backend/internal/domains/mutation"
)

// ModelPath builds the model reference of a form property: the form name,
// "_", then the property path joined with ".".
func ModelPath(form string, props ...string) string {
	return form + "_" + strings.Join(props, ".")
}

// ParseModelRef splits a model reference into the form name and the property
// path.
func ParseModelRef(ref string) (string, []string, error) {
	form, rest, ok := strings.Cut(ref, "_")
	if !ok || form == "" || rest == "" {
		return "", nil, protocolError("invalid model reference %q", ref)
	}
	path := strings.Split(rest, ".")
	for _, segment := range path {
		if segment == "" {
			return "", nil, protocolError("invalid model reference %q", ref)
		}
	}
	return form, path, nil
}

// FormEventMutation builds the assign mutation that carries the sender
// field's new value, so other sessions can be brought in line with it.
func FormEventMutation[T any](event FormEvent[T]) (mutation.Mutation, error) {
	form, path, err := ParseModelRef(event.Sender)
	if err != nil {
		return mutation.Mutation{}, err
	}
	if form != event.Form {
		return mutation.Mutation{}, protocolError("sender %q does not belong to form %q", event.Sender, event.Form)
	}
	root, err := mutation.Normalize(event.Data)
	if err != nil {
		return mutation.Mutation{}, err
	}
	value, err := mutation.Lookup(root, path)
	if err != nil {
		return mutation.Mutation{}, err
	}
	return mutation.Assign(path[:len(path)-1], path[len(path)-1], value), nil
}
