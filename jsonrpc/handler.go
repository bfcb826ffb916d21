package jsonrpc

import (
	"context"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/jcooky/go-din"

	"github.com/habiliai/lodgechat/internal/mylog"
)

type ServerOption = func(c *din.Container, server *rpc.Server)

func NewHandler(c *din.Container, opts ...ServerOption) http.Handler {
	logger := din.MustGet[*mylog.Logger](c, mylog.Key)

	rpcServer := newRPCServer(c, opts...)

	return newRecoveryHandler(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithCancel(r.Context())
			defer cancel()

			rpcServer.ServeHTTP(w, r.WithContext(ctx))
		}),
	)
}

func NewHealthHandler(c *din.Container) http.Handler {
	logger := din.MustGet[*mylog.Logger](c, mylog.Key)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Warn("failed to write health response", mylog.Err(err))
		}
	})
}

// NewHandlerWithHealth serves the rpc endpoint at /rpc and a liveness probe at /health.
func NewHandlerWithHealth(c *din.Container, opts ...ServerOption) http.Handler {
	mainHandler := NewHandler(c, opts...)
	healthHandler := NewHealthHandler(c)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			healthHandler.ServeHTTP(w, r)
		case "/rpc":
			mainHandler.ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
