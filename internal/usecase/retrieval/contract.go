package retrieval

import (
	"context"

	"github.com/viola622/Flowise/internal/domain/searchindex"
)

// Embedder vectorizes the query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex issues hybrid searches against a named index.
type SearchIndex interface {
	Search(ctx context.Context, indexUID string, req searchindex.Request) ([]searchindex.Hit, error)
}

// IndexOpener binds a SearchIndex to a host and credential.
type IndexOpener func(host, apiKey string) (SearchIndex, error)
