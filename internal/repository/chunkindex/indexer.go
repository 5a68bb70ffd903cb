// Package chunkindex mirrors document store chunks into the Meilisearch index
// that the hybrid retriever reads from.
package chunkindex

import (
	"context"
	"fmt"

	domds "github.com/viola622/Flowise/internal/domain/docstore"
	"github.com/viola622/Flowise/internal/transport/meilisearch"
)

// DefaultBatchSize caps documents per add request.
const DefaultBatchSize = 500

type documentWriter interface {
	AddDocuments(ctx context.Context, indexUID, primaryKey string, docs []map[string]any) (meilisearch.Task, error)
	DeleteDocuments(ctx context.Context, indexUID string, ids []string) (meilisearch.Task, error)
}

type embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Config names the target index and the document fields the retriever maps.
type Config struct {
	IndexUID     string
	Embedder     string // Meilisearch embedder name the vectors are stored under
	ContentField string
	IDField      string
	BatchSize    int
}

// Indexer implements usecase/docstore.Indexer.
type Indexer struct {
	writer   documentWriter
	embedder embedder
	cfg      Config
}

// New creates an Indexer. With a nil embedder no vectors are sent and
// Meilisearch's own embedder is expected to generate them.
func New(w documentWriter, e embedder, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Indexer{writer: w, embedder: e, cfg: cfg}
}

// IndexChunks upserts chunks keyed by chunk id.
func (ix *Indexer) IndexChunks(ctx context.Context, chunks []domds.Chunk) error {
	for start := 0; start < len(chunks); start += ix.cfg.BatchSize {
		batch := chunks[start:min(start+ix.cfg.BatchSize, len(chunks))]
		docs, err := ix.documents(ctx, batch)
		if err != nil {
			return err
		}
		if _, err := ix.writer.AddDocuments(ctx, ix.cfg.IndexUID, ix.cfg.IDField, docs); err != nil {
			return fmt.Errorf("index chunks: %w", err)
		}
	}
	return nil
}

// RemoveChunks deletes chunks by id.
func (ix *Indexer) RemoveChunks(ctx context.Context, ids []string) error {
	if _, err := ix.writer.DeleteDocuments(ctx, ix.cfg.IndexUID, ids); err != nil {
		return fmt.Errorf("remove chunks: %w", err)
	}
	return nil
}

func (ix *Indexer) documents(ctx context.Context, chunks []domds.Chunk) ([]map[string]any, error) {
	var vectors [][]float32
	if ix.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.PageContent
		}
		var err error
		if vectors, err = ix.embedder.EmbedDocuments(ctx, texts); err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}
	}

	docs := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		doc := map[string]any{
			ix.cfg.IDField:      c.ID,
			ix.cfg.ContentField: c.PageContent,
			"storeId":           c.StoreID,
			"docId":             c.DocID,
			"chunkNo":           c.ChunkNo,
			"metadata":          c.Metadata,
		}
		if vectors != nil {
			doc["_vectors"] = map[string]any{
				ix.cfg.Embedder: map[string]any{"embeddings": vectors[i], "regenerate": false},
			}
		}
		docs[i] = doc
	}
	return docs, nil
}
