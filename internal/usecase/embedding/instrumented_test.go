package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/viola622/Flowise/internal/logger"
)

type mockEmbedder struct {
	vec       []float32
	err       error
	healthErr error
	docCalls  int
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return m.vec, m.err
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.docCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, nil
}

func (m *mockEmbedder) HealthCheck(_ context.Context) error { return m.healthErr }

type plainEmbedder struct{}

func (plainEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) { return nil, nil }
func (plainEmbedder) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}

func TestInstrumentedEmbedder_EmbedQuery(t *testing.T) {
	p := NewInstrumentedEmbedder(&mockEmbedder{vec: []float32{0.1, 0.2, 0.3}}, "test", "m")

	vec, err := p.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vec))
	}
}

func TestInstrumentedEmbedder_ErrorIsLoggedAndWrapped(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := logpkg.ContextWithLogger(context.Background(), zap.New(core))
	innerErr := errors.New("provider down")
	p := NewInstrumentedEmbedder(&mockEmbedder{err: innerErr}, "test", "m")

	_, err := p.EmbedQuery(ctx, "hello")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
	if logs.FilterMessage("Query embedding failed").Len() != 1 {
		t.Errorf("expected one error log, got %v", logs.All())
	}
}

func TestInstrumentedEmbedder_EmbedDocuments(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{1}}
	p := NewInstrumentedEmbedder(inner, "test", "m")

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Errorf("expected 2 vectors, got %d", len(vecs))
	}

	if _, err := p.EmbedDocuments(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error for empty input: %v", err)
	}
	if inner.docCalls != 1 {
		t.Errorf("empty input should not reach the provider, calls=%d", inner.docCalls)
	}
}

func TestInstrumentedEmbedder_HealthCheck(t *testing.T) {
	p := NewInstrumentedEmbedder(&mockEmbedder{healthErr: errors.New("down")}, "test", "m")
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health error")
	}

	p = NewInstrumentedEmbedder(plainEmbedder{}, "test", "m")
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected nil for inner without HealthCheck, got %v", err)
	}
}
