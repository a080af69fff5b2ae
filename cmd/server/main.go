package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tradesight/tradesight/internal/analysis"
	"github.com/tradesight/tradesight/internal/api"
	"github.com/tradesight/tradesight/internal/cache"
	"github.com/tradesight/tradesight/internal/config"
	"github.com/tradesight/tradesight/internal/database"
	"github.com/tradesight/tradesight/internal/inference"
	"github.com/tradesight/tradesight/internal/ingest"
	"github.com/tradesight/tradesight/internal/kafka"
	"github.com/tradesight/tradesight/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	users, journal, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer cleanup()

	ingestor, err := ingest.New(cfg.Storage.UploadsDir, cfg.Server.PublicBaseURL+"/uploads")
	if err != nil {
		log.Fatal("failed to initialize upload storage", zap.Error(err))
	}

	// Optional response cache: enabled only when a Redis address is set.
	var responses analysis.ResponseCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer client.Close()
		responses = cache.New(client, cfg.Redis.TTL)
		log.Info("response cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	// Optional event stream.
	var events analysis.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
		log.Info("kafka producer enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	adapter := inference.NewGemini(cfg.Inference.Model)
	orchestrator := analysis.New(users, journal, ingestor, adapter, responses, events, log)
	handler := api.NewHandler(users, journal, orchestrator, cfg.Inference.Timeout, log)
	router := api.SetupRoutes(handler, cfg.Storage.UploadsDir)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // analyze requests wait on the model provider
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("backend", cfg.Storage.Backend),
			zap.String("model", cfg.Inference.Model))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// buildStores wires the persistence backend selected by STORAGE_BACKEND.
// The returned cleanup closes whatever the backend holds open.
func buildStores(cfg *config.Config, log *zap.Logger) (store.UserStore, store.Journal, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.RunMigrations("db/migrations"); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		log.Info("using postgres storage", zap.String("host", cfg.Database.Host))
		return db, db, func() { db.Close() }, nil

	default:
		users, err := store.NewFileUserStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		journal, err := store.NewFileJournal(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("using file storage", zap.String("dir", cfg.Storage.DataDir))
		return users, journal, func() {}, nil
	}
}
