package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wspush/internal/adapter/httpserver"
	"github.com/pscheid92/wspush/internal/adapter/metrics"
	"github.com/pscheid92/wspush/internal/adapter/redis"
	"github.com/pscheid92/wspush/internal/domain"
	"github.com/pscheid92/wspush/internal/geo"
	"github.com/pscheid92/wspush/internal/platform/config"
	"github.com/pscheid92/wspush/internal/platform/logging"
	"github.com/pscheid92/wspush/internal/platform/token"
	"github.com/pscheid92/wspush/internal/websocket"
	goredis "github.com/redis/go-redis/v9"
)

type relayResult struct {
	client *goredis.Client
	relay  *redis.Relay
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRelay(ctx context.Context, cfg *config.Config, registry *websocket.Registry, m *metrics.RedisMetrics) relayResult {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	deliver := func(ctx context.Context, message string) {
		registry.Broadcast(ctx, message)
	}
	return relayResult{client: client, relay: redis.NewRelay(client, deliver, m)}
}

func runGracefulShutdown(srv *httpserver.Server, registry *websocket.Registry, stopRelay context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		// Hijacked WebSocket connections outlive srv.Shutdown. The registry
		// refuses Opens from upgrades still in flight once this runs.
		if err := registry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to close WebSocket connections", "error", err)
		}
		stopRelay()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.EffectiveLogLevel(), cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	reg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)
	limitMetrics := metrics.NewLimitMetrics(reg)
	geoMetrics := metrics.NewGeocoderMetrics(reg)
	redisMetrics := metrics.NewRedisMetrics(reg)

	registry := websocket.NewRegistry(
		websocket.WithGreeting(cfg.WebSocketGreeting),
		websocket.WithMetrics(wsMetrics),
	)
	wsHandler := websocket.NewHandler(registry, websocket.NewCheckOrigin(cfg.WebSocketAllowedOrigins, cfg.IsDevelopment()), clock)

	limits := httpserver.NewConnectionLimits(
		int64(cfg.MaxWebSocketConnections),
		cfg.MaxConnectionsPerIP,
		cfg.ConnectionRate,
		cfg.ConnectionBurst,
		clock,
	)

	tokens, err := token.NewHelper(cfg.TokenSecret, cfg.TokenTTL, clock)
	if err != nil {
		slog.Error("Failed to create token helper", "error", err)
		os.Exit(1)
	}

	geocoder := geo.NewClient(cfg.GeocoderURL, cfg.GeocoderKey, geo.WithClock(clock), geo.WithMetrics(geoMetrics))
	if cfg.GeocoderKey == "" {
		slog.Warn("GEOCODER_KEY not set, upstream lookups will likely be refused")
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	var (
		publisher    domain.Publisher = websocket.NewLocalPublisher(registry)
		healthChecks []httpserver.HealthCheck
	)
	if cfg.RedisURL != "" {
		rr := setupRelay(relayCtx, cfg, registry, redisMetrics)
		defer func() { _ = rr.client.Close() }()

		go func() {
			if err := rr.relay.Run(relayCtx); err != nil {
				slog.Error("Broadcast relay stopped", "error", err)
			}
		}()

		publisher = rr.relay
		healthChecks = append(healthChecks,
			httpserver.HealthCheck{Name: "redis", Check: redis.HealthCheck(rr.client)},
			httpserver.HealthCheck{Name: "relay", Check: rr.relay.ReadyCheck},
		)
		slog.Info("Broadcasts relayed through Redis", "channel", redis.BroadcastChannel)
	}

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		Connections:      registry,
		Publisher:        publisher,
		Tokens:           tokens,
		WebSocketHandler: wsHandler,
		Limits:           limits,
		Geocoder:         geocoder,
		HTTPMetrics:      httpMetrics,
		LimitMetrics:     limitMetrics,
		MetricsHandler:   metrics.Handler(reg),
		HealthChecks:     healthChecks,
	})

	done := runGracefulShutdown(srv, registry, stopRelay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
