package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/domain"
	"github.com/viola622/Flowise/internal/domain/searchindex"
	logpkg "github.com/viola622/Flowise/internal/logger"
	"github.com/viola622/Flowise/internal/metrics"
)

// FallbackPageContent is the content of the single placeholder document
// returned when hits cannot be mapped.
const FallbackPageContent = "mock page"

// MetadataSourceID is the metadata key carrying the hit identifier.
const MetadataSourceID = "sourceId"

var errHitMapping = errors.New("hit mapping")

var _ schema.Retriever = (*Service)(nil)

// Service is a hybrid keyword + vector retriever over one search index.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	index    SearchIndex
	embedder Embedder
	cfg      settings
}

// New validates cfg, opens the search index and returns a retriever.
// The embedder is borrowed; its lifecycle stays with the caller.
func New(cfg Config, embedder Embedder, open IndexOpener) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", domain.ErrInvalidSchema)
	}
	if open == nil {
		return nil, fmt.Errorf("%w: index opener is required", domain.ErrInvalidSchema)
	}
	s, err := normalize(cfg)
	if err != nil {
		return nil, fmt.Errorf("retriever config: %w", err)
	}
	idx, err := open(cfg.Host, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Service{index: idx, embedder: embedder, cfg: s}, nil
}

// TopK returns the normalized result bound.
func (s *Service) TopK() int { return s.cfg.topK }

// SemanticRatio returns the normalized keyword/vector blend.
func (s *Service) SemanticRatio() float64 { return s.cfg.semanticRatio }

// IndexUID returns the target index.
func (s *Service) IndexUID() string { return s.cfg.indexUID }

// GetRelevantDocuments implements schema.Retriever.
func (s *Service) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	return s.Retrieve(ctx, query)
}

// Retrieve embeds the query, runs one hybrid search and maps hits in index order.
// If any hit is malformed the whole batch is replaced by a single placeholder document.
func (s *Service) Retrieve(ctx context.Context, query string) ([]schema.Document, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.record("embedding_error")
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Search(ctx, s.cfg.indexUID, searchindex.Request{
		Query:                query,
		Vector:               vector,
		Limit:                s.cfg.topK,
		AttributesToRetrieve: searchindex.AllAttributes,
		Hybrid: &searchindex.Hybrid{
			SemanticRatio: s.cfg.semanticRatio,
			Embedder:      s.cfg.embedder,
		},
	})
	if err != nil {
		s.record("search_error")
		return nil, fmt.Errorf("search index %s: %w", s.cfg.indexUID, err)
	}
	metrics.RetrievalHits.WithLabelValues(s.cfg.indexUID).Observe(float64(len(hits)))

	docs, err := s.toDocuments(hits)
	if err != nil {
		logpkg.FromContext(ctx).Warn("Discarding search hits",
			zap.String("index", s.cfg.indexUID),
			zap.Int("hits", len(hits)),
			zap.Error(err),
		)
		s.record("fallback")
		return fallbackDocuments(), nil
	}

	s.record("ok")
	return docs, nil
}

func (s *Service) toDocuments(hits []searchindex.Hit) ([]schema.Document, error) {
	docs := make([]schema.Document, 0, len(hits))
	for i, hit := range hits {
		raw, ok := hit[s.cfg.contentField]
		if !ok {
			return nil, fmt.Errorf("%w: hit %d has no %q", errHitMapping, i, s.cfg.contentField)
		}
		content, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: hit %d %q is %T, not string", errHitMapping, i, s.cfg.contentField, raw)
		}
		id, ok := hit[s.cfg.idField]
		if !ok || id == nil {
			return nil, fmt.Errorf("%w: hit %d has no %q", errHitMapping, i, s.cfg.idField)
		}
		docs = append(docs, schema.Document{
			PageContent: content,
			Metadata:    map[string]any{MetadataSourceID: id},
		})
	}
	return docs, nil
}

func (s *Service) record(outcome string) {
	metrics.RetrievalRequestsTotal.WithLabelValues(s.cfg.indexUID, outcome).Inc()
}

func fallbackDocuments() []schema.Document {
	return []schema.Document{{PageContent: FallbackPageContent, Metadata: map[string]any{}}}
}
