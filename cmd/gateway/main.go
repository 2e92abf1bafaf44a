// Command gateway runs the operation runtime as a standalone HTTP service:
// the registry mounted on the host router, the bridge serving the
// page-framework base path, and Prometheus metrics on /metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/apilink/apilink/internal/bridge"
	"github.com/apilink/apilink/internal/config"
	"github.com/apilink/apilink/internal/metrics"
	"github.com/apilink/apilink/internal/middleware"
	"github.com/apilink/apilink/internal/route"
	"github.com/apilink/apilink/internal/server"
	"github.com/apilink/apilink/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	reg, err := buildRegistry(cfg)
	if err != nil {
		log.Error("build registry", logger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	apiRouter := server.NewRouter(reg, log)

	// The bridge fronts the same router the registry is mounted on, so
	// page-framework requests under the base path are served without a
	// second network stack.
	br := bridge.New(apiRouter, bridge.Config{BasePath: cfg.BasePath, Logger: log})

	root := mux.NewRouter()
	root.Use(middleware.RequestID)
	root.Use(middleware.Metrics())
	root.Use(middleware.Logging(log))
	root.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.JWTSecret != "" {
		auth := middleware.NewAuth([]byte(cfg.JWTSecret), log, []string{"/healthz", "/metrics"})
		root.Use(auth.Handler)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, log)
	root.Use(limiter.Handler)

	root.Handle("/metrics", metrics.Handler())
	root.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.PathPrefix(cfg.BasePath + "/").Handler(br)
	server.Mount(root, reg, log)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      root,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		log.Info("gateway listening", logger.Fields{"addr": cfg.ListenAddr, "base_path": cfg.BasePath})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", logger.Fields{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", logger.Fields{"error": err.Error()})
	}
}

// buildRegistry loads the configured route manifest, falling back to the
// built-in system routes.
func buildRegistry(cfg *config.Config) (*route.Registry, error) {
	if cfg.RouteManifest != "" {
		return route.LoadManifest(cfg.RouteManifest, systemHandlers())
	}

	reg := route.NewRegistry()
	reg.MustRegister(&route.Route{
		Method:    route.MethodGet,
		Path:      "/health",
		Resource:  "system",
		Operation: "health",
		Handler:   systemHandlers()["system.health"],
	})
	reg.MustRegister(&route.Route{
		Method:    route.MethodPost,
		Path:      "/echo",
		Resource:  "system",
		Operation: "echo",
		Handler:   systemHandlers()["system.echo"],
	})
	return reg, nil
}

// systemHandlers are the handlers a manifest may bind by name.
func systemHandlers() map[string]route.Handler {
	return map[string]route.Handler{
		"system.health": func(req *route.Request, reply route.Reply) (interface{}, error) {
			return map[string]interface{}{"status": "ok"}, nil
		},
		"system.echo": func(req *route.Request, reply route.Reply) (interface{}, error) {
			reply.Code(http.StatusOK).Type("application/json")
			return map[string]interface{}{"body": req.Body, "query": req.Query}, nil
		},
	}
}
