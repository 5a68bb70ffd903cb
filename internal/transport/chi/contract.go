package chi

import (
	"context"

	"github.com/tmc/langchaingo/schema"

	domds "github.com/viola622/Flowise/internal/domain/docstore"
	docstoreuc "github.com/viola622/Flowise/internal/usecase/docstore"
	healthuc "github.com/viola622/Flowise/internal/usecase/health"
)

// DocumentStores is the document store use case consumed by the handlers.
//
//nolint:interfacebloat // mirrors the document store HTTP surface one-to-one
type DocumentStores interface {
	Create(ctx context.Context, name, description string) (domds.Store, error)
	List(ctx context.Context) ([]domds.Store, error)
	Get(ctx context.Context, id string) (domds.Store, error)
	Update(ctx context.Context, id string, patch domds.Patch) (domds.Store, error)
	DeleteLoader(ctx context.Context, storeID, loaderID string) (domds.Store, error)
	GetFileChunks(ctx context.Context, storeID, fileID string, page int) (docstoreuc.ChunkPage, error)
	DeleteChunk(ctx context.Context, storeID, loaderID, chunkID string) (docstoreuc.ChunkPage, error)
	EditChunk(
		ctx context.Context, storeID, loaderID, chunkID, pageContent string, metadata map[string]any,
	) (docstoreuc.ChunkPage, error)
	PreviewChunks(ctx context.Context, req docstoreuc.ProcessRequest) (docstoreuc.Preview, error)
	ProcessAndSaveChunks(ctx context.Context, req docstoreuc.ProcessRequest) (domds.Loader, error)
	ListLoaders() []docstoreuc.Component
}

// Retriever answers hybrid search queries.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]schema.Document, error)
}

// HealthChecker aggregates dependency probes.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
