package chi

import (
	"time"

	"github.com/tmc/langchaingo/schema"

	domds "github.com/viola622/Flowise/internal/domain/docstore"
	docstoreuc "github.com/viola622/Flowise/internal/usecase/docstore"
)

// --- Requests ---

// CreateStoreRequest is the body of POST /document-store/store.
type CreateStoreRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description"`
}

// UpdateStoreRequest is the body of PUT /document-store/store/{id}. Absent fields are kept.
type UpdateStoreRequest struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=128"`
	Description *string  `json:"description"`
	Status      *string  `json:"status" validate:"omitnil,oneof=EMPTY NEW SYNCING SYNC STALE"`
	WhereUsed   []string `json:"whereUsed"`
}

// ProcessRequest is the body of the process and preview endpoints.
type ProcessRequest struct {
	StoreID           string         `json:"storeId" validate:"required"`
	ID                string         `json:"id"`
	LoaderID          string         `json:"loaderId" validate:"required"`
	LoaderName        string         `json:"loaderName"`
	LoaderConfig      map[string]any `json:"loaderConfig"`
	SplitterID        string         `json:"splitterId"`
	SplitterName      string         `json:"splitterName"`
	SplitterConfig    map[string]any `json:"splitterConfig"`
	PreviewChunkCount int            `json:"previewChunkCount" validate:"gte=0,lte=1000"`
}

// EditChunkRequest is the body of PUT /document-store/chunks/...
type EditChunkRequest struct {
	PageContent string         `json:"pageContent" validate:"required"`
	Metadata    map[string]any `json:"metadata"`
}

// RetrieveRequest is the body of POST /retriever/query.
type RetrieveRequest struct {
	Query string `json:"query" validate:"required"`
}

// --- Responses ---

// StoreResponse is the wire shape of a document store.
type StoreResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Loaders     []domds.Loader `json:"loaders"`
	WhereUsed   []string       `json:"whereUsed"`
	Status      string         `json:"status"`
	TotalChunks int            `json:"totalChunks"`
	TotalChars  int            `json:"totalChars"`
	CreatedDate time.Time      `json:"createdDate"`
	UpdatedDate time.Time      `json:"updatedDate"`
}

// ChunkResponse is the wire shape of a persisted chunk.
type ChunkResponse struct {
	ID          string         `json:"id"`
	DocID       string         `json:"docId"`
	StoreID     string         `json:"storeId"`
	ChunkNo     int            `json:"chunkNo"`
	PageContent string         `json:"pageContent"`
	Metadata    map[string]any `json:"metadata"`
}

// ChunkPageResponse is one page of chunks with its loader and store context.
type ChunkPageResponse struct {
	Chunks      []ChunkResponse `json:"chunks"`
	Count       int             `json:"count"`
	File        *domds.Loader   `json:"file,omitempty"`
	CurrentPage int             `json:"currentPage"`
	StoreName   string          `json:"storeName"`
	Description string          `json:"description"`
}

// DocumentResponse is an unsaved or retrieved document.
type DocumentResponse struct {
	PageContent string         `json:"pageContent"`
	Metadata    map[string]any `json:"metadata"`
}

// PreviewResponse is the output of a preview run.
type PreviewResponse struct {
	Chunks            []DocumentResponse `json:"chunks"`
	TotalChunks       int                `json:"totalChunks"`
	PreviewChunkCount int                `json:"previewChunkCount"`
}

// RetrieveResponse lists retrieved documents in index order.
type RetrieveResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// --- Mapping ---

func storeToResponse(s domds.Store) StoreResponse {
	loaders := s.Loaders()
	if loaders == nil {
		loaders = []domds.Loader{}
	}
	whereUsed := s.WhereUsed()
	if whereUsed == nil {
		whereUsed = []string{}
	}
	return StoreResponse{
		ID:          s.ID(),
		Name:        s.Name(),
		Description: s.Description(),
		Loaders:     loaders,
		WhereUsed:   whereUsed,
		Status:      string(s.Status()),
		TotalChunks: s.TotalChunks(),
		TotalChars:  s.TotalChars(),
		CreatedDate: s.CreatedAt(),
		UpdatedDate: s.UpdatedAt(),
	}
}

func chunkPageToResponse(p docstoreuc.ChunkPage) ChunkPageResponse {
	chunks := make([]ChunkResponse, len(p.Chunks))
	for i, c := range p.Chunks {
		chunks[i] = ChunkResponse{
			ID:          c.ID,
			DocID:       c.DocID,
			StoreID:     c.StoreID,
			ChunkNo:     c.ChunkNo,
			PageContent: c.PageContent,
			Metadata:    c.Metadata,
		}
	}
	return ChunkPageResponse{
		Chunks:      chunks,
		Count:       p.Count,
		File:        p.File,
		CurrentPage: p.CurrentPage,
		StoreName:   p.StoreName,
		Description: p.Description,
	}
}

func documentsToResponse(docs []schema.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		meta := d.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		out[i] = DocumentResponse{PageContent: d.PageContent, Metadata: meta}
	}
	return out
}

func (r ProcessRequest) toUsecase() docstoreuc.ProcessRequest {
	return docstoreuc.ProcessRequest{
		StoreID:           r.StoreID,
		ID:                r.ID,
		LoaderID:          r.LoaderID,
		LoaderName:        r.LoaderName,
		LoaderConfig:      r.LoaderConfig,
		SplitterID:        r.SplitterID,
		SplitterName:      r.SplitterName,
		SplitterConfig:    r.SplitterConfig,
		PreviewChunkCount: r.PreviewChunkCount,
	}
}

func (r UpdateStoreRequest) toPatch() domds.Patch {
	p := domds.Patch{Name: r.Name, Description: r.Description, WhereUsed: r.WhereUsed}
	if r.Status != nil {
		st := domds.Status(*r.Status)
		p.Status = &st
	}
	return p
}
