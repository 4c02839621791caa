package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astralfield/realtime/internal/config"
	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/internal/metrics"
	"github.com/astralfield/realtime/pkg/auth"
	"github.com/astralfield/realtime/pkg/bus"
	"github.com/astralfield/realtime/pkg/hub"
	"github.com/astralfield/realtime/pkg/notify"
	"github.com/astralfield/realtime/pkg/persist"
	"github.com/astralfield/realtime/pkg/ratelimit"
	ws "github.com/astralfield/realtime/pkg/transport/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	archive := persist.NewAsyncWriter(store, logger, cfg.Notify.BufferSize)
	defer archive.Stop()

	pubsub, err := buildBus(cfg, logger)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	window := metrics.NewWindow(time.Minute)
	window.Start(ctx)
	defer window.Stop()

	h := hub.New(hub.Options{
		Config:      cfg.Hub,
		TopicPrefix: cfg.Bus.TopicPrefix,
		Verifier:    auth.NewJWTVerifier(cfg.Auth.JWTSecret),
		Bus:         pubsub,
		Logger:      logger,
		Window:      window,
		Limiter:     buildLimiter(cfg),
		Archive:     archive,
	})
	if err := h.Run(ctx); err != nil {
		return err
	}

	queue := notify.NewQueue(h.DeliverNotification, func(n notify.Notification) {
		archive.SaveNotification(persist.NotificationRecord{
			ID:         n.ID,
			UserID:     n.UserID,
			Category:   n.Category,
			Payload:    n.Payload,
			Status:     string(n.Status),
			Attempts:   n.Attempts,
			EnqueuedAt: n.EnqueuedAt,
		})
	}, logger, notify.Options{
		Interval:    cfg.Notify.Interval,
		MaxAttempts: cfg.Notify.MaxAttempts,
		Backoff:     cfg.Notify.Backoff,
		Retention:   cfg.Notify.Retention,
		BufferSize:  cfg.Notify.BufferSize,
	})
	h.AttachNotifications(queue)
	queue.Start(ctx)
	defer queue.Stop()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	wsServer := ws.NewServer(h, logger, ws.WithSessionOptions(ws.SessionOptionsFromConfig(cfg.Hub)))
	router.Get("/ws", wsServer.ServeHTTP)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(h))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "node_id", h.NodeID())
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")

	// Announce shutdown and drop connections before the listener closes.
	h.Stop(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, cfg *config.Config) (persist.Store, error) {
	if !cfg.Persist.Enabled {
		return persist.Noop{}, nil
	}
	return persist.NewPostgres(ctx, cfg.Persist.PostgresURL)
}

func buildBus(cfg *config.Config, logger *logging.Logger) (bus.PubSub, error) {
	var inner bus.PubSub
	switch cfg.Bus.Kind {
	case "redis":
		inner = bus.NewRedis(bus.RedisOptions{
			Addr:     cfg.Bus.RedisAddr,
			Password: cfg.Bus.RedisPassword,
			DB:       cfg.Bus.RedisDB,
		})
	case "nats":
		conn, err := bus.NewNATS(cfg.Bus.NATSURL)
		if err != nil {
			return nil, err
		}
		inner = conn
	default:
		return bus.NewMemory(), nil
	}

	return bus.NewResilient(inner, logger, cfg.Bus.ReconnectMin, cfg.Bus.ReconnectMax), nil
}

func buildLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxEvents)
}

// requestLogger makes the service logger available to handlers through
// the request context.
func requestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
		})
	}
}

func healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := h.Health()
		w.Header().Set("Content-Type", "application/json")
		if snapshot.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logging.FromContext(r.Context()).Error("health encode failed", "error", err)
		}
	}
}
