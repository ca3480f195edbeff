package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fitting-room-server/modules/common/config"
	"fitting-room-server/modules/common/gemini"
	"fitting-room-server/modules/common/logger"
	"fitting-room-server/modules/common/model"
	"fitting-room-server/modules/common/realtime"
	"fitting-room-server/modules/common/redis"
	"fitting-room-server/modules/common/utils"
	"fitting-room-server/modules/crop"
	"fitting-room-server/modules/tryon"
)

var startTime = time.Now()

// enableCORS - allow the page to be served from another origin during development
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthCheck - liveness
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Service: "fitting-room",
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Time:    time.Now(),
	})
}

// metricsHandler - session, operation and websocket counters
func metricsHandler(manager *tryon.Manager, hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"uptime":   time.Since(startTime).String(),
			"tryon":    manager.Metrics(),
			"realtime": hub.Stats(),
		})
	}
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (tryon.Store, func(), error) {
	if cfg.SessionStore != config.StoreRedis {
		log.Info("💾 [Store] Using in-memory session store", zap.Duration("ttl", cfg.SessionTTL))
		return tryon.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}

	rdb, err := redis.Connect(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("💾 [Store] Using Redis session store", zap.Duration("ttl", cfg.SessionTTL))
	return tryon.NewRedisStore(rdb, cfg.SessionTTL), func() { rdb.Close() }, nil
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	if !cfg.EnvFileLoaded {
		log.Info("ℹ️ [Config] No .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := gemini.NewClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	store, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	examples, err := tryon.LoadExamples(cfg.ExamplesFile)
	if err != nil {
		return err
	}

	service := tryon.NewService(client.Models, cfg.GeminiModel, log)

	var manager *tryon.Manager
	hub := realtime.NewHub(func(ctx context.Context, id string) (any, error) {
		s, err := manager.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return tryon.NewSnapshot(s), nil
	}, log)
	manager = tryon.NewManager(store, service, examples, hub, log)

	manager.StartCleanupRoutine(ctx, 5*time.Minute)
	hub.StartCleanupRoutine(ctx, 5*time.Minute)

	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(manager, hub)).Methods("GET")
	r.HandleFunc("/ws", hub.ServeWS)

	limits := crop.Limits{MaxBytes: cfg.MaxUploadSize, MaxPixels: cfg.MaxImagePixels}
	crop.NewHandler(limits, log).RegisterRoutes(r)
	tryon.NewHandler(manager, crop.Format(cfg.CropOutputFormat), limits, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("🚀 Fitting room server starting", zap.String("port", cfg.Port))
	log.Info("📡 WebSocket endpoint", zap.String("url", "ws://localhost:"+cfg.Port+"/ws"))
	log.Info("❤️  Health check", zap.String("url", "http://localhost:"+cfg.Port+"/health"))
	log.Info("📊 Metrics", zap.String("url", "http://localhost:"+cfg.Port+"/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("🛑 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
