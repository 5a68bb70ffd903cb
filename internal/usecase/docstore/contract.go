package docstore

import (
	"context"
	"io"

	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

// Repository persists stores and their chunks.
//
//nolint:interfacebloat // store + chunk lifecycle share one transaction boundary
type Repository interface {
	CreateStore(ctx context.Context, s domds.Store) error
	GetStore(ctx context.Context, id string) (domds.Store, error)
	ListStores(ctx context.Context) ([]domds.Store, error)
	UpdateStore(ctx context.Context, s domds.Store) error

	// ReplaceChunks atomically swaps every chunk of one loader.
	ReplaceChunks(ctx context.Context, storeID, docID string, chunks []domds.Chunk) error
	DeleteChunksByDoc(ctx context.Context, storeID, docID string) error
	// ListChunks pages chunks ordered by (docID, chunkNo). An empty docID lists the whole store.
	ListChunks(ctx context.Context, storeID, docID string, offset, limit int) ([]domds.Chunk, int, error)
	GetChunk(ctx context.Context, storeID, docID, chunkID string) (domds.Chunk, error)
	UpdateChunk(ctx context.Context, c domds.Chunk) error
	DeleteChunk(ctx context.Context, storeID, docID, chunkID string) error
}

// FolderManager owns the per-store datasource folders.
type FolderManager interface {
	CreateStoreDir(name string) (string, error)
	RemoveStoreDir(name string) error
	OpenFile(storeName, fileName string) (io.ReadSeekCloser, error)
}

// Indexer mirrors chunks into the search index the retriever reads from.
type Indexer interface {
	IndexChunks(ctx context.Context, chunks []domds.Chunk) error
	RemoveChunks(ctx context.Context, ids []string) error
}
