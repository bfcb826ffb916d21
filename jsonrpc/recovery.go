package jsonrpc

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
)

// newRecoveryHandler turns a panicking call into a 500 and logs the stack through logger.
func newRecoveryHandler(logger *slog.Logger) func(http.Handler) http.Handler {
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)
}

// NewRecoveryHandler wraps any handler of the server the same way the rpc endpoint is wrapped.
func NewRecoveryHandler(logger *slog.Logger, next http.Handler) http.Handler {
	return newRecoveryHandler(logger)(next)
}
