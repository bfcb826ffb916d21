package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jcooky/go-din"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/habiliai/lodgechat/attachment"
	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/delivery"
	"github.com/habiliai/lodgechat/internal/auth"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/jsonrpc"
	"github.com/habiliai/lodgechat/message"
	"github.com/habiliai/lodgechat/realtime"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the messaging rpc, realtime and file endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			cfg := din.MustGetT[*config.ServerConfig](c)
			logger := din.MustGet[*mylog.Logger](c, mylog.Key)

			logger.Debug("start lodgechat", "config", cfg)

			handler, err := newRouter(c)
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
				Handler: withCORS(cfg.Origins())(handler),
				BaseContext: func(l net.Listener) context.Context {
					return c
				},
			}

			go func() {
				<-c.Done()
				if err := server.Shutdown(context.WithoutCancel(c)); err != nil {
					logger.Error("failed to shutdown server", mylog.Err(err))
				}
			}()

			logger.Info("Starting server", "addr", cfg.Host, "port", cfg.Port)
			defer logger.Info("server stopped")

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func newRouter(c *din.Container) (http.Handler, error) {
	logger := din.MustGet[*mylog.Logger](c, mylog.Key)

	storage, err := din.GetT[attachment.Storage](c)
	if err != nil {
		return nil, err
	}
	realtimeHandler, err := din.GetT[*realtime.Handler](c)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(delivery.Collectors()...)
	registry.MustRegister(message.Collectors()...)

	router := mux.NewRouter()
	router.Handle("/rpc", jsonrpc.NewHandler(c, jsonrpc.WithMessaging())).Methods(http.MethodPost)
	router.Handle("/health", jsonrpc.NewHealthHandler(c)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Handle("/realtime", realtimeHandler).Methods(http.MethodGet)

	// the supabase backend serves its own public urls
	if files, ok := storage.(*attachment.PebbleStorage); ok {
		router.PathPrefix("/files/").Handler(http.StripPrefix("/files/", files)).Methods(http.MethodGet, http.MethodHead)
	}

	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)

	return recovery(router), nil
}

func withCORS(origins []string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "HEAD", "OPTIONS"}),
		handlers.AllowedHeaders([]string{
			"Content-Type",
			"Authorization",
			"Accept",
			"Origin",
			auth.UserHeader,
		}),
		handlers.ExposedHeaders([]string{"Content-Length", "Content-Type"}),
		handlers.MaxAge(86400),
	)
}
