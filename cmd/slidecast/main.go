package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/slidecast/slidecast/internal/config"
	"github.com/slidecast/slidecast/internal/control"
	"github.com/slidecast/slidecast/internal/gateway"
	"github.com/slidecast/slidecast/internal/ingest"
	"github.com/slidecast/slidecast/internal/realtime"
	"github.com/slidecast/slidecast/internal/store"
	"github.com/slidecast/slidecast/internal/store/memstore"
)

// storage is the union of what the services need from a backing store.
type storage interface {
	gateway.Store
	control.SessionStore
	ingest.Store
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(getEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backing store
	var st storage
	switch cfg.Storage {
	case "postgres":
		pg, err := store.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure schema")
		}
		log.Info().
			Str("database", cfg.Database.Database).
			Str("host", cfg.Database.Host).
			Msg("connected to database")
		st = pg
	case "memory":
		log.Warn().Msg("using in-memory storage, all data is lost on restart")
		st = memstore.New()
	}

	// Push bus
	var bus realtime.Bus
	if cfg.NATSURL != "" {
		natsCfg := realtime.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsBus, err := realtime.NewNATSBus(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsBus.Close()
		log.Info().Str("nats_url", cfg.NATSURL).Msg("using NATS push bus")
		bus = natsBus
	} else {
		bus = realtime.NewMemoryBus()
	}

	// Postgres NOTIFY bridge, for writers outside this process
	if cfg.PGListener && cfg.Storage == "postgres" {
		listenerCfg := realtime.DefaultListenerConfig()
		listenerCfg.DatabaseURL = cfg.Database.DSN()
		listener, err := realtime.NewPGListener(bus, listenerCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start notification listener")
		}
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("notification listener stopped")
			}
		}()
	}

	// Services
	controlSvc := control.NewService(st, bus)
	ingestSvc := ingest.NewService(st, bus)

	// WebSocket fanout
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go cm.Start(ctx)

	forwarder := gateway.NewEventForwarder(bus, cm)
	go func() {
		if err := forwarder.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("event forwarder stopped")
		}
	}()

	// HTTP routes
	mux := http.NewServeMux()
	gateway.NewAPI(st, controlSvc, ingestSvc).RegisterRoutes(mux)
	gateway.NewWebSocketHandler(cm).RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("slidecast shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
