// Package embedding contains decorators around the embedding provider:
// retrying with backoff and request-scoped usage accounting.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memdex/internal/domain"
)

// RetryConfig configures retry behavior for embedding calls.
type RetryConfig struct {
	MaxRetries      int           // max retry attempts after the first call
	InitialInterval time.Duration // initial backoff interval
	MaxInterval     time.Duration // backoff ceiling
}

// DefaultRetryConfig returns sensible defaults for embedding API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// RetryingEmbedder retries transient provider failures with exponential backoff.
// Only domain.ErrEmbeddingProvider is considered retryable; validation and
// context errors fail immediately.
type RetryingEmbedder struct {
	inner  domain.Embedder
	cfg    RetryConfig
	logger *zap.Logger

	// sleep hook for tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryingEmbedder wraps an embedder with retry on provider errors.
func NewRetryingEmbedder(inner domain.Embedder, cfg RetryConfig, logger *zap.Logger) *RetryingEmbedder {
	return &RetryingEmbedder{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Embed delegates to the inner embedder, retrying provider errors.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error
	delay := r.cfg.InitialInterval

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !errors.Is(err, domain.ErrEmbeddingProvider) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		r.logger.Warn("Retrying embedding after provider error",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := r.sleep(ctx, delay); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("retry wait: %w", err)
		}
		delay = min(delay*2, r.cfg.MaxInterval)
	}

	return domain.EmbeddingResult{}, fmt.Errorf("embed after %d retries: %w", r.cfg.MaxRetries, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
