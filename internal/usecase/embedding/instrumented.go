package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/domain"
	logpkg "github.com/viola622/Flowise/internal/logger"
)

// InstrumentedEmbedder wraps an Embedder with request-scoped logging.
// Transport metrics (requests, duration, tokens) are recorded in the provider packages.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, provider: provider, model: model}
}

// EmbedQuery delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	log := logpkg.FromContext(ctx)
	start := time.Now()

	vec, err := p.inner.EmbedQuery(ctx, text)
	duration := time.Since(start)

	if err != nil {
		log.Error("Query embedding failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	log.Debug("Query embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(vec)),
		zap.Int("query_len", len(text)),
	)
	return vec, nil
}

// EmbedDocuments delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := logpkg.FromContext(ctx)
	start := time.Now()

	vecs, err := p.inner.EmbedDocuments(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		log.Error("Document embedding failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	log.Debug("Document embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Int("batch_size", len(texts)),
		zap.Duration("duration", duration),
	)
	return vecs, nil
}

// HealthCheck forwards to the inner embedder when it supports probing.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}
