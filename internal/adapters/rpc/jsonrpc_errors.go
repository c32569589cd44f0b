package rpc

import (
	"context"
	"errors"

	"remote-ui/go-backend/internal/domains/contracts"
	"remote-ui/go-backend/internal/domains/remoteui"
	"remote-ui/go-backend/internal/domains/route"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602

	codeRouteParse     = -32010
	codeUnknownSession = -32011
	codeUnknownAction  = -32012
	codeValidation     = -32013
	codeHandler        = -32014
	codeProtocol       = -32015
	codeRateLimited    = -32029
	codeInternal       = -32099
)

var categoryCodes = map[string]int{
	contracts.ErrorCategoryRoute:      codeRouteParse,
	contracts.ErrorCategorySession:    codeUnknownSession,
	contracts.ErrorCategoryAction:     codeUnknownAction,
	contracts.ErrorCategoryValidation: codeValidation,
	contracts.ErrorCategoryHandler:    codeHandler,
	contracts.ErrorCategoryProtocol:   codeProtocol,
}

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: "invalid params"}
}

// mapEngineError turns an engine error into a JSON-RPC error. Client errors
// raised by handlers keep their message; internal failures are not echoed.
func mapEngineError(err error) *rpcError {
	category := contracts.ErrorCategory(err)
	data := map[string]any{"category": category}

	var parseErr *route.ParseError
	if category == contracts.ErrorCategoryRoute && errors.As(err, &parseErr) {
		data["index"] = parseErr.Index
	}
	var clientErr *contracts.ClientError
	if errors.As(err, &clientErr) {
		data["client"] = true
		return &rpcError{Code: codeHandler, Message: clientErr.Message, Data: data}
	}

	code, ok := categoryCodes[category]
	if !ok {
		message := "internal error"
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			message = err.Error()
		case errors.Is(err, remoteui.ErrDisposed):
			message = "server is shutting down"
		}
		return &rpcError{Code: codeInternal, Message: message, Data: data}
	}
	return &rpcError{Code: code, Message: err.Error(), Data: data}
}
