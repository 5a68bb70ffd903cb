// Package ollama adapts langchaingo's Ollama client to the embedding contract,
// adding metrics and provider error wrapping.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/domain"
	"github.com/viola622/Flowise/internal/metrics"
)

const provider = "ollama"

// Config holds the settings for constructing an Embedder.
type Config struct {
	// ServerURL is the Ollama base URL (e.g. "http://localhost:11434").
	ServerURL string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model     string
	BatchSize int
	Logger    *zap.Logger
}

// Embedder embeds text through a local Ollama server.
type Embedder struct {
	inner     embeddings.Embedder
	serverURL string
	model     string
	http      *http.Client
	logger    *zap.Logger
}

// NewEmbedder builds the langchaingo client chain. No request is made.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%w: ollama server url is required", domain.ErrInvalidSchema)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: ollama model is required", domain.ErrInvalidSchema)
	}

	llm, err := ollama.New(ollama.WithServerURL(cfg.ServerURL), ollama.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	inner, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		inner:     inner,
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		model:     cfg.Model,
		http:      &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
	}, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	metrics.EmbeddingTextsTotal.WithLabelValues(provider, "query").Inc()

	var vec []float32
	err := e.observe(func() error {
		var err error
		vec, err = e.inner.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedDocuments embeds texts; the result is parallel to texts.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	metrics.EmbeddingTextsTotal.WithLabelValues(provider, "document").Add(float64(len(texts)))

	var vecs [][]float32
	err := e.observe(func() error {
		var err error
		vecs, err = e.inner.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "count_mismatch").Inc()
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(vecs), domain.ErrEmbeddingProviderError)
	}
	return vecs, nil
}

func (e *Embedder) observe(call func() error) error {
	start := time.Now()
	err := call()
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, "api_error").Inc()
		e.logger.Warn("Embedding request failed",
			zap.String("provider", provider),
			zap.String("model", e.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return fmt.Errorf("ollama embed: %w: %w", err, domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, e.model).Observe(duration.Seconds())
	return nil
}

// HealthCheck calls GET /api/version on the Ollama server.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+"/api/version", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health: HTTP %d", resp.StatusCode)
	}
	return nil
}
