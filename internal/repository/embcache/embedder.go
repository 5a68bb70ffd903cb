// Package embcache memoizes embedding vectors in the key/value store so that
// reprocessing a loader does not re-embed unchanged chunks.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/db"
	"github.com/viola622/Flowise/internal/domain"
)

const vectorField = "v"

// store is the consumer interface for the embedding cache.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// CachedEmbedder caches embeddings keyed by model and text hash.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	keyPrefix  string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. Keys live under {prefix}emb_cache:{model}:.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	prefix, model string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		keyPrefix:  prefix + "emb_cache:" + model + ":",
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// EmbedQuery returns a cached vector or calls the inner embedder.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, func(ctx context.Context, texts []string) ([][]float32, error) {
		vec, err := c.inner.EmbedQuery(ctx, texts[0])
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		return [][]float32{vec}, nil
	})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments embeds only the texts missing from the cache. The result is parallel to texts.
func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.embed(ctx, texts, func(ctx context.Context, missing []string) ([][]float32, error) {
		vecs, err := c.inner.EmbedDocuments(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("embed documents: %w", err)
		}
		if len(vecs) != len(missing) {
			return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
				len(missing), len(vecs), domain.ErrEmbeddingProviderError)
		}
		return vecs, nil
	})
}

// HealthCheck forwards to the inner embedder when it supports probing.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) embed(
	ctx context.Context, texts []string, fetch func(context.Context, []string) ([][]float32, error),
) ([][]float32, error) {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	out := c.lookup(ctx, keys)

	var missIdx []int
	var missTexts []string
	for i, v := range out {
		if v == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	c.count("hit", len(texts)-len(missIdx))
	c.count("miss", len(missIdx))
	if len(missIdx) == 0 {
		return out, nil
	}

	vecs, err := fetch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	items := make([]db.HashSetItem, len(missIdx))
	for j, i := range missIdx {
		out[i] = vecs[j]
		items[j] = db.HashSetItem{Key: keys[i], Fields: map[string]string{vectorField: string(vectorToCacheBytes(vecs[j]))}}
	}
	if err := c.store.HSetMulti(ctx, items); err != nil {
		c.logger.Warn("Failed to cache embeddings", zap.Int("count", len(items)), zap.Error(err))
	}
	return out, nil
}

// lookup returns cached vectors parallel to keys; misses and read failures are nil.
func (c *CachedEmbedder) lookup(ctx context.Context, keys []string) [][]float32 {
	out := make([][]float32, len(keys))
	hashes, err := c.store.HGetAllMulti(ctx, keys)
	if err != nil {
		c.logger.Warn("Failed to read embedding cache", zap.Error(err))
		return out
	}
	for i, h := range hashes {
		raw, ok := h[vectorField]
		if !ok || raw == "" {
			continue
		}
		vec, err := bytesToVector([]byte(raw))
		if err != nil {
			c.logger.Warn("Failed to parse cached embedding", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[i] = vec
	}
	return out
}

func (c *CachedEmbedder) count(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
