package remoteui

import (
	"strings"

	"remote-ui/go-backend/internal/domains/contracts"
)

const componentName = "remoteui"

func (e *Engine) logInfo(operation, sessionID, message string, attrs ...any) {
	base := []any{
		"component", componentName,
		"operation", strings.TrimSpace(operation),
		"session_id", strings.TrimSpace(sessionID),
	}
	e.logger.Info(message, append(base, attrs...)...)
}

func (e *Engine) logError(operation, sessionID, message string, err error, attrs ...any) {
	if err == nil {
		return
	}
	base := []any{
		"component", componentName,
		"operation", strings.TrimSpace(operation),
		"category", contracts.ErrorCategory(err),
		"session_id", strings.TrimSpace(sessionID),
		"error", err.Error(),
	}
	e.logger.Error(message, append(base, attrs...)...)
}
