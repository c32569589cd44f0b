package remoteui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"remote-ui/go-backend/internal/domains/actionid"
	"remote-ui/go-backend/internal/domains/mutation"
)

var errMissingPayload = errors.New("missing form payload")

// FormEvent is passed to form action callbacks with the decoded payload.
type FormEvent[T any] struct {
	ActionEvent
	Form string
	Data T
}

type FormActionFunc[T any] func(ctx context.Context, event FormEvent[T]) error

type formConfig[T any] struct {
	defaultValue func(session *Session) T
	schema       []byte
}

type FormOption[T any] func(*formConfig[T])

// WithDefault sets the per-session factory for the form's initial value.
// Without it the initial value is the zero value of T.
func WithDefault[T any](fn func(session *Session) T) FormOption[T] {
	return func(c *formConfig[T]) {
		c.defaultValue = fn
	}
}

// WithSchema attaches a JSON Schema that payloads must satisfy before they
// are decoded into T.
func WithSchema[T any](schema []byte) FormOption[T] {
	return func(c *formConfig[T]) {
		c.schema = schema
	}
}

// FormHandle is a typed form registered on a controller. T must be a struct
// or a map with string keys.
type FormHandle[T any] struct {
	name         string
	controller   *Controller
	actions      map[string]FormActionFunc[T]
	defaultValue func(session *Session) T
	schema       *jsonschema.Schema
}

// DefineForm registers a form named name on the controller being set up.
// It panics on an invalid name, a duplicate form, an unsupported T or a
// schema that does not compile.
func DefineForm[T any](s *Setup, name string, opts ...FormOption[T]) *FormHandle[T] {
	mustName("form", name, true)
	if _, exists := s.controller.forms[name]; exists {
		panic(fmt.Sprintf("remoteui: form %q defined twice", name))
	}
	switch kind := reflect.TypeFor[T]().Kind(); kind {
	case reflect.Struct:
	case reflect.Map:
		if reflect.TypeFor[T]().Key().Kind() != reflect.String {
			panic(fmt.Sprintf("remoteui: form %q must use string map keys", name))
		}
	default:
		panic(fmt.Sprintf("remoteui: form %q has unsupported type %s", name, kind))
	}

	var cfg formConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &FormHandle[T]{
		name:         name,
		controller:   s.controller,
		actions:      make(map[string]FormActionFunc[T]),
		defaultValue: cfg.defaultValue,
	}
	if len(cfg.schema) > 0 {
		compiled, err := jsonschema.NewCompiler().Compile(cfg.schema)
		if err != nil {
			panic(fmt.Sprintf("remoteui: form %q: compile schema: %v", name, err))
		}
		h.schema = compiled
	}
	s.controller.forms[name] = h
	return h
}

func (h *FormHandle[T]) Name() string {
	return h.name
}

// Action registers a form action and returns its id. Registering after the
// controller is serving sessions is not supported.
func (h *FormHandle[T]) Action(name string, fn FormActionFunc[T], opts ...ActionOption) string {
	mustName("form action", name, false)
	if fn == nil {
		panic(fmt.Sprintf("remoteui: form action %q has a nil callback", name))
	}
	if _, exists := h.actions[name]; exists {
		panic(fmt.Sprintf("remoteui: form %q action %q defined twice", h.name, name))
	}
	h.actions[name] = fn
	return actionid.Form(h.name, name, applyActionOptions(opts).waitForCompletion)
}

// Model maps each top-level JSON property of a struct form to its model
// reference. Map forms have no fixed properties; use Ref instead.
func (h *FormHandle[T]) Model() map[string]string {
	out := make(map[string]string)
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < typ.NumField(); i++ {
		name, ok := jsonFieldName(typ.Field(i))
		if !ok {
			continue
		}
		out[name] = ModelPath(h.name, name)
	}
	return out
}

// Ref returns the model reference of a nested property.
func (h *FormHandle[T]) Ref(props ...string) string {
	return ModelPath(h.name, props...)
}

// Set replaces the form value on the targeted sessions.
func (h *FormHandle[T]) Set(target Target, value T) {
	h.controller.pushFormSet(h.name, target, value)
}

// Update sends mutations to the targeted sessions.
func (h *FormHandle[T]) Update(target Target, mutations ...mutation.Mutation) {
	h.controller.pushFormUpdate(h.name, target, mutations)
}

// UpdateDiff sends the mutations that turn before into after.
func (h *FormHandle[T]) UpdateDiff(target Target, before, after T) error {
	mutations, err := mutation.Diff(before, after)
	if err != nil {
		return err
	}
	h.controller.pushFormUpdate(h.name, target, mutations)
	return nil
}

func (h *FormHandle[T]) formName() string {
	return h.name
}

func (h *FormHandle[T]) initialValue(session *Session) (any, error) {
	if h.defaultValue == nil {
		return zeroForm[T](), nil
	}
	var value T
	err := guard("default "+h.name, func() error {
		value = h.defaultValue(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (h *FormHandle[T]) prepare(action string, payload json.RawMessage, event ActionEvent) (func(ctx context.Context) error, error) {
	fn, ok := h.actions[action]
	if !ok {
		return nil, &UnknownActionError{ActionID: actionid.Form(h.name, action, false)}
	}
	data, err := h.decode(payload)
	if err != nil {
		return nil, err
	}
	formEvent := FormEvent[T]{ActionEvent: event, Form: h.name, Data: data}
	return func(ctx context.Context) error { return fn(ctx, formEvent) }, nil
}

func (h *FormHandle[T]) decode(payload json.RawMessage) (T, error) {
	var data T
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return data, &ValidationError{Form: h.name, Err: errMissingPayload}
	}
	if h.schema != nil {
		result := h.schema.ValidateJSON(trimmed)
		if !result.IsValid() {
			return data, &ValidationError{Form: h.name, Err: fmt.Errorf("schema validation failed: %v", result.Errors)}
		}
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&data); err != nil {
		return data, &ValidationError{Form: h.name, Err: err}
	}
	if decoder.More() {
		return data, &ValidationError{Form: h.name, Err: errors.New("trailing data after form payload")}
	}
	return data, nil
}

func zeroForm[T any]() T {
	var value T
	if typ := reflect.TypeFor[T](); typ.Kind() == reflect.Map {
		return reflect.MakeMap(typ).Interface().(T)
	}
	return value
}

func jsonFieldName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, true
}
