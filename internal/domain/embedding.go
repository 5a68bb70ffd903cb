package domain

import (
	"context"
	"fmt"
)

// Embedder is the text vectorization contract shared between layers.
// The method set matches langchaingo's embeddings.Embedder.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// InstructionEmbedder prepends an instruction to query text before embedding.
// Documents are embedded as-is.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text to queries.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// EmbedQuery prepends instruction and delegates to the inner embedder.
func (e *InstructionEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.inner.EmbedQuery(ctx, e.instruction+text)
	if err != nil {
		return nil, fmt.Errorf("instruction embed: %w", err)
	}
	return vec, nil
}

// EmbedDocuments delegates to the inner embedder unchanged.
func (e *InstructionEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("instruction embed documents: %w", err)
	}
	return vecs, nil
}

// HealthCheck forwards to the inner embedder when it supports probing.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
