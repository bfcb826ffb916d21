package jsonrpc

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/jcooky/go-din"

	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/auth"
	"github.com/habiliai/lodgechat/internal/mylog"
)

const (
	// Application error codes, in the JSON-RPC server error range. data.kind carries
	// the same class as a string.
	CodeNotFound          json2.ErrorCode = -32004
	CodePermissionDenied  json2.ErrorCode = -32003
	CodeInvalidState      json2.ErrorCode = -32009
	CodeDependencyFailure json2.ErrorCode = -32010
	CodeConflictRetryable json2.ErrorCode = -32011
)

type (
	StartTimeCtxKey string

	ErrorData struct {
		Kind string `json:"kind"`
	}
)

var (
	startTimeCtxKey StartTimeCtxKey = "jsonrpc.startTime"
)

func WithMessaging() ServerOption {
	return func(c *din.Container, s *rpc.Server) {
		if err := RegisterMessagingService(c, s); err != nil {
			panic(err)
		}
	}
}

func newRPCServer(c *din.Container, opts ...ServerOption) *rpc.Server {
	logger := din.MustGet[*mylog.Logger](c, mylog.Key)

	server := rpc.NewServer()
	for _, opt := range opts {
		opt(c, server)
	}
	server.RegisterInterceptFunc(func(i *rpc.RequestInfo) *http.Request {
		ctx := context.WithValue(i.Request.Context(), startTimeCtxKey, time.Now())
		if userId, err := auth.Caller(i.Request); err == nil {
			ctx = auth.WithCaller(ctx, userId)
		}
		return i.Request.WithContext(ctx)
	})
	server.RegisterAfterFunc(func(i *rpc.RequestInfo) {
		logger := logger.WithGroup("jsonrpc")
		if startTime, ok := i.Request.Context().Value(startTimeCtxKey).(time.Time); ok {
			duration := time.Since(startTime)
			logger = logger.With(slog.Duration("duration", duration))
		}
		if i.Error != nil {
			logger = logger.With(mylog.Err(i.Error))
		}
		logger.Info("[JSON-RPC] call",
			slog.Int("statusCode", i.StatusCode),
			slog.String("method", i.Method),
			slog.Bool("error", i.Error != nil),
		)
	})
	server.RegisterCodec(json2.NewCustomCodecWithErrorMapper(rpc.DefaultEncoderSelector, errorMapper(logger)), "application/json")

	return server
}

// errorMapper turns taxonomy errors into JSON-RPC errors. Internal errors are logged
// and reach the client only as a generic message.
func errorMapper(logger *slog.Logger) func(error) error {
	return func(err error) error {
		if err == nil {
			return nil
		}

		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			return rpcErr
		}

		kind := errors.Kind(err)
		message := err.Error()
		if kind == "internal" {
			logger.Error("[JSON-RPC] error", mylog.Err(err))
			message = "internal error"
		}

		return &json2.Error{
			Code:    errorCode(kind),
			Message: message,
			Data:    ErrorData{Kind: kind},
		}
	}
}

func errorCode(kind string) json2.ErrorCode {
	switch kind {
	case "invalid_params":
		return json2.E_BAD_PARAMS
	case "not_found":
		return CodeNotFound
	case "permission_denied":
		return CodePermissionDenied
	case "invalid_state":
		return CodeInvalidState
	case "dependency_failure":
		return CodeDependencyFailure
	case "conflict_retryable":
		return CodeConflictRetryable
	default:
		return json2.E_INTERNAL
	}
}
