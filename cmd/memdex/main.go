package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memdex/internal/config"
	"github.com/kailas-cloud/memdex/internal/db"
	dbMemory "github.com/kailas-cloud/memdex/internal/db/memory"
	dbValkey "github.com/kailas-cloud/memdex/internal/db/valkey"
	"github.com/kailas-cloud/memdex/internal/domain"
	logpkg "github.com/kailas-cloud/memdex/internal/logger"
	"github.com/kailas-cloud/memdex/internal/metrics"
	"github.com/kailas-cloud/memdex/internal/persist"
	"github.com/kailas-cloud/memdex/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/memdex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/memdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/memdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/memdex/internal/usecase/health"
	"github.com/kailas-cloud/memdex/internal/usecase/knowledge"
	"github.com/kailas-cloud/memdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting memdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("storage_dir", cfg.Storage.Dir),
		zap.String("write_mode", cfg.Storage.WriteMode),
	)

	// Embedding cache backend
	ctx := context.Background()
	kv := newCacheKV(ctx, cfg.Cache, logger)
	defer kv.Close()

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// Build embedder chain — composition root
	// Take the first vectorizer config
	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]

	docEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.DocumentInstruction, kv, logger)
	queryEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.QueryInstruction, kv, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	writeMode, err := knowledge.ParseWriteMode(cfg.Storage.WriteMode)
	if err != nil {
		logger.Fatal("Invalid write mode", zap.Error(err))
	}

	persister := persist.New(cfg.Storage.Dir, logger)

	knowledgeSvc := knowledge.New(knowledge.Config{
		Dim:           vecCfg.Dimensions,
		DocEmbedder:   docEmbedder,
		QueryEmbedder: queryEmbedder,
		Persister:     persister,
		WriteMode:     writeMode,
		Logger:        logger,
	})

	// Restore the previous snapshot. A missing snapshot means a fresh start.
	if err := knowledgeSvc.Load(ctx); err != nil {
		logger.Fatal("Failed to load snapshot", zap.Error(err))
	}
	stats := knowledgeSvc.Stats()
	logger.Info("Snapshot loaded",
		zap.Int("documents", stats.DocumentCount),
		zap.Int("vectors", stats.VectorCount),
		zap.Int("tags", stats.TagCount),
	)

	// Health service
	healthSvc := healthuc.New(kv, newEmbeddingHealthChecker(docEmbedder))

	// Create chi server
	server := chiTransport.NewServer(knowledgeSvc, healthSvc, logger).
		WithSearchDefaults(cfg.Search.DefaultTopK, cfg.Search.BoostFactor)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Deferred mode accumulates inserts in memory; flush them before exit.
	if knowledgeSvc.Dirty() {
		if err := knowledgeSvc.Save(shutdownCtx); err != nil {
			logger.Error("Failed to save snapshot on shutdown", zap.Error(err))
		} else {
			logger.Info("Snapshot saved on shutdown")
		}
	}

	logger.Info("Server stopped gracefully")
}

// newCacheKV creates the embedding cache backend for the configured driver.
func newCacheKV(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) db.KV {
	switch cfg.Driver {
	case "valkey":
		kv, err := dbValkey.New(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			TTL:      time.Duration(cfg.TTLSec) * time.Second,
		})
		if err != nil {
			logger.Fatal("Failed to create valkey cache", zap.Error(err))
		}
		if err := kv.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Valkey cache not ready", zap.Error(err))
		}
		logger.Info("Connected to valkey cache", zap.Strings("addrs", cfg.Addrs))
		return kv
	case "memory":
		return dbMemory.New(0)
	default:
		logger.Fatal("Unknown cache driver", zap.String("driver", cfg.Driver))
		return nil
	}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Retrying -> Instrumented -> Instruction
func buildEmbedder(
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	instruction string,
	kv db.KV,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Timeout:    time.Duration(provCfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if kv != nil {
		embedder = embcache.New(base, kv, vecCfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	// Retrying (transient provider failures only)
	embedder = embeddinguc.NewRetryingEmbedder(embedder, embeddinguc.DefaultRetryConfig(), logger)

	// Instrumented (logging + request-scoped usage)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
