package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memdex/internal/domain"
)

type flakyEmbedder struct {
	failures int
	errVal   error
	calls    int
	result   domain.EmbeddingResult
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.EmbeddingResult{}, f.errVal
	}
	return f.result, nil
}

func newTestRetrier(inner domain.Embedder, maxRetries int) *RetryingEmbedder {
	r := NewRetryingEmbedder(inner, RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}, zap.NewNop())
	r.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return r
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 2,
		errVal:   fmt.Errorf("api down: %w", domain.ErrEmbeddingProvider),
		result:   domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}},
	}
	r := newTestRetrier(inner, 3)

	result, err := r.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 10,
		errVal:   fmt.Errorf("api down: %w", domain.ErrEmbeddingProvider),
	}
	r := newTestRetrier(inner, 2)

	_, err := r.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", inner.calls)
	}
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 10,
		errVal:   domain.ErrInvalidDocument,
	}
	r := newTestRetrier(inner, 3)

	_, err := r.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected exactly 1 call for non-retryable error, got %d", inner.calls)
	}
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 10,
		errVal:   fmt.Errorf("api down: %w", domain.ErrEmbeddingProvider),
	}
	r := newTestRetrier(inner, 3)
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call before canceled backoff, got %d", inner.calls)
	}
}

func TestInstrumented_RecordsUsage(t *testing.T) {
	inner := &flakyEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1},
		TotalTokens: 7,
	}}
	ie := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := ie.Embed(ctx, "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TotalTokens != 7 {
		t.Errorf("expected 7 tokens recorded, got %d", usage.TotalTokens)
	}
	if !usage.Used {
		t.Error("expected usage.Used to be set")
	}
}
