package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	vec     []float32
	err     error
	got     string
	gotDocs []string
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.got = text
	return s.vec, s.err
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.gotDocs = texts
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	vec, err := emb.EmbedQuery(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "search_query: hello world" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(vec))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &stubEmbedder{err: innerErr}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	_, err := emb.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_DocumentsUntouched(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{0.5}}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	vecs, err := emb.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if inner.gotDocs[0] != "a" || inner.gotDocs[1] != "b" {
		t.Errorf("documents should pass through unchanged, got %v", inner.gotDocs)
	}
}

func TestInstructionEmbedder_HealthCheckWithoutSupport(t *testing.T) {
	emb := NewInstructionEmbedder(&stubEmbedder{}, "")
	if err := emb.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil for inner without HealthCheck, got %v", err)
	}
}
