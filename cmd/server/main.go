package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/domino-drop/internal/api"
	"github.com/domino-drop/internal/config"
	"github.com/domino-drop/internal/game"
	"github.com/domino-drop/internal/kafka"
	"github.com/domino-drop/internal/lobby"
	"github.com/domino-drop/internal/session"
	"github.com/domino-drop/internal/storage"
	"github.com/domino-drop/internal/websocket"
)

var configPath = flag.String("config", "config.yaml", "path to the configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Match history is optional; without it matches are still played but not kept
	var history api.Store
	store, err := storage.NewPostgresStore(ctx, storage.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}, logger)
	if err != nil {
		logger.Warn("database not available, match history disabled", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
		history = store
	}

	producer, consumer := startKafka(cfg.Kafka, logger)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}()
	var analytics api.Analytics
	if consumer != nil {
		defer consumer.Stop()
		analytics = consumer
	}

	rooms := openDirectory(ctx, cfg.Redis, logger)

	hub := websocket.NewHub(logger)
	sessions := session.NewManager(session.Defaults{
		Clock: game.ClockConfig{
			Timed:     cfg.Game.Timed,
			Initial:   cfg.Game.InitialSeconds,
			Increment: cfg.Game.IncrementSecs,
		},
		Budget: cfg.Game.MaxBlocks,
	}, hub, logger)

	// Hooks run on the session goroutine, so anything doing I/O is handed off
	sessions.SetOnMatchStart(func(ms session.MatchStart) {
		go producer.EmitMatchStart(ms)
	})
	sessions.SetOnMove(func(mi session.MoveInfo) {
		go producer.EmitMove(mi)
	})
	sessions.SetOnMatchEnd(func(rec session.Record) {
		go func() {
			producer.EmitMatchEnd(rec)
			if store == nil {
				return
			}
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveMatch(saveCtx, rec); err != nil {
				logger.Error("failed to save match", zap.String("match", rec.ID), zap.Error(err))
			}
		}()
	})
	listings := lobby.NewPublisher(rooms, logger)
	go listings.Run(ctx)
	sessions.SetOnRoomChange(listings.Open, listings.Close)

	handler := websocket.NewHandler(hub, sessions, logger)
	hub.SetOnDisconnect(handler.Disconnect)
	go hub.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		api.NewHandlers(api.Options{
			Store:        history,
			Rooms:        rooms,
			Sessions:     sessions,
			Analytics:    analytics,
			KafkaEnabled: producer.IsEnabled(),
		}, logger).RegisterRoutes(r)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("websocket", "/ws"),
			zap.String("api", "/api"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	sessions.CloseAll(shutdownCtx)
	stop()
	<-listings.Done()

	logger.Info("server exited properly")
	return nil
}

// startKafka returns a disabled producer and no consumer when kafka is off
// or unreachable.
func startKafka(cfg config.KafkaConfig, logger *zap.Logger) (*kafka.Producer, *kafka.Consumer) {
	kcfg := kafka.Config{Brokers: cfg.Brokers, Topic: cfg.Topic}
	if !cfg.Enabled {
		logger.Info("kafka disabled by configuration")
		return kafka.NewDisabledProducer(logger), nil
	}

	producer := kafka.NewProducer(kcfg, logger)
	if !producer.IsEnabled() {
		return producer, nil
	}

	consumer, err := kafka.NewConsumer(kcfg, cfg.Group, logger)
	if err != nil {
		logger.Warn("kafka consumer not available", zap.Error(err))
		return producer, nil
	}
	consumer.Start()
	return producer, consumer
}

// openDirectory falls back to an in-process listing when redis is off or
// unreachable.
func openDirectory(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) lobby.Directory {
	if !cfg.Enabled {
		return lobby.NewMemoryDirectory()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available, using in-memory room listing", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return lobby.NewMemoryDirectory()
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	return lobby.NewRedisDirectory(client, cfg.RoomTTL)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.With(zap.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}
