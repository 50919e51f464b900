package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/announce"
	"github.com/shamadu25/rave-queue-sub001/internal/config"
	"github.com/shamadu25/rave-queue-sub001/internal/feed"
	"github.com/shamadu25/rave-queue-sub001/internal/httpapi"
	"github.com/shamadu25/rave-queue-sub001/internal/hub"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
	"github.com/shamadu25/rave-queue-sub001/internal/store"
	"github.com/shamadu25/rave-queue-sub001/internal/store/postgres"
	"github.com/shamadu25/rave-queue-sub001/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type eventEnvelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("queue-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	entryStore := postgres.NewStore(pool, postgres.Options{})

	var settingsValue atomic.Value
	initial, err := entryStore.LoadSettings(context.Background())
	if err != nil {
		log.Printf("settings load error, using defaults: %v", err)
		initial = settings.Defaults()
	}
	settingsValue.Store(initial)
	currentSettings := func() settings.Settings {
		return settingsValue.Load().(settings.Settings)
	}

	displayHub := hub.New()
	coordinator := announce.NewCoordinator(displayHub, initial, announce.Options{})

	cache := feed.NewCache()
	entries, err := entryStore.ListEntries(context.Background(), store.ListFilter{})
	if err != nil {
		log.Printf("initial entry fetch error: %v", err)
	}
	cache.Load(entries)

	poller := feed.NewPoller(entryStore, "queue-service", cfg.FeedPollInterval, cfg.FeedBatchSize)
	poller.Subscribe(feed.ApplyToCache(cache))
	poller.Subscribe(func(event store.OutboxEvent) {
		coordinator.Observe(cache.Snapshot())
	})
	poller.Subscribe(func(event store.OutboxEvent) {
		entry, err := store.DecodeEntryPayload(event.Payload)
		if err != nil {
			return
		}
		envelope, err := json.Marshal(eventEnvelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt})
		if err != nil {
			return
		}
		displayHub.Broadcast(envelope, entry.Department)
	})

	handler := httpapi.NewHandler(entryStore, currentSettings)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		KioskPerMinute: cfg.KioskRateLimitPerMinute,
		KioskBurst:     cfg.KioskRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())
	sockjsHandler := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		displayHub.Register(client)
		defer displayHub.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				displayHub.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			displayHub.UpdateSubscription(client, hub.Subscription{
				Department: parsed.Department,
				AudioReady: parsed.AudioReady,
			})
		}
	})
	mux.Handle("/realtime/", sockjsHandler)

	otelHandler := otelhttp.NewHandler(
		httpapi.LoggingMiddleware(limiter.Middleware(httpapi.AuthMiddleware(entryStore, mux))),
		"queue-service",
	)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go poller.Run(ctx)

	go func() {
		if cfg.SettingsRefreshInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.SettingsRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
			loaded, err := entryStore.LoadSettings(loadCtx)
			loadCancel()
			if err != nil {
				log.Printf("settings refresh error: %v", err)
				continue
			}
			settingsValue.Store(loaded)
			coordinator.UpdateSettings(loaded)
		}
	}()

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
