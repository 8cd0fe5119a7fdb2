// Package main runs the LifeLog desktop host: the sync core behind a
// localhost REST and WebSocket API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/viper"

	"github.com/kimhsiao/lifelog/backend/cmd/desktop/handlers"
	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/config"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

// Version is set at build time.
var Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lifelog-desktop:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies LIFELOG_* environment
// overrides: LIFELOG_CONFIG, LIFELOG_CONFIG_DIR, LIFELOG_DATA_DIR and
// LIFELOG_LISTEN_ADDR.
func loadConfig() (*config.Config, error) {
	env := viper.New()
	env.SetEnvPrefix("LIFELOG")
	env.AutomaticEnv()

	loader, err := config.NewLoader(env.GetString("config_dir"))
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load(env.GetString("config"))
	if err != nil {
		return nil, err
	}
	if dir := env.GetString("data_dir"); dir != "" {
		cfg.DataDir = dir
	}
	if addr := env.GetString("listen_addr"); addr != "" {
		cfg.Desktop.ListenAddr = addr
	}
	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			fmt.Fprintln(os.Stderr, "lifelog-desktop: close:", err)
		}
	}()

	hub := NewWSHub(a.Engine)
	defer hub.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Desktop.ListenAddr,
		Handler:           newRouter(a, hub),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Desktop server listening", map[string]interface{}{
			"addr":    srv.Addr,
			"version": Version,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down desktop server")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// newRouter mounts the REST handlers and the status socket under /api.
func newRouter(a *app.App, hub http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health(a.Engine))
		handlers.NewRecordHandler(a.Store, a.Config.UserID).Routes(r)
		handlers.NewSyncHandler(a.Engine).Routes(r)
		r.Handle("/ws", hub)
	})
	return r
}

// healthBody reports liveness plus the sync engine's in-flight flag and
// its number of status listeners.
type healthBody struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Syncing   bool   `json:"syncing"`
	Listeners int    `json:"listeners"`
}

func health(engine *syncpkg.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := healthBody{
			Status:    "ok",
			Service:   "lifelog-desktop",
			Version:   Version,
			Syncing:   engine.IsSyncing(),
			Listeners: engine.Broadcaster().Len(),
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logging.Warn("Failed to encode health response", map[string]interface{}{"error": err.Error()})
		}
	}
}

// requestLogger logs every request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}
