package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/db"
)

type mockEmbedder struct {
	vec        []float32
	err        error
	queryCalls int
	docCalls   [][]string
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	m.queryCalls++
	return m.vec, m.err
}

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.docCalls = append(m.docCalls, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

// mockHashStore keeps hashes in memory; fn fields override behaviour.
type mockHashStore struct {
	data    map[string]map[string]string
	getFn   func(ctx context.Context, keys []string) ([]map[string]string, error)
	setFn   func(ctx context.Context, items []db.HashSetItem) error
	setKeys []string
}

func (m *mockHashStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.setFn != nil {
		return m.setFn(ctx, items)
	}
	for _, it := range items {
		m.data[it.Key] = it.Fields
		m.setKeys = append(m.setKeys, it.Key)
	}
	return nil
}

func (m *mockHashStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, keys)
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
		if out[i] == nil {
			out[i] = map[string]string{}
		}
	}
	return out, nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockHashStore) {
	t.Helper()
	ms := &mockHashStore{data: map[string]map[string]string{}}
	return New(inner, ms, "flowise:", "nomic-embed-text", nil, zap.NewNop()), ms
}
