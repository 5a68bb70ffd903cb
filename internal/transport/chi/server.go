package chi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tmc/langchaingo/schema"

	"github.com/viola622/Flowise/internal/domain"
	docstoreuc "github.com/viola622/Flowise/internal/usecase/docstore"
	healthuc "github.com/viola622/Flowise/internal/usecase/health"
)

// Server serves the document store and retriever HTTP API.
type Server struct {
	docs          DocumentStores
	retriever     Retriever
	health        HealthChecker
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. A nil retriever makes the query
// endpoint answer 501.
func NewServer(docs DocumentStores, retriever Retriever, health HealthChecker) *Server {
	return &Server{
		docs:          docs,
		retriever:     retriever,
		health:        health,
		errorHandlers: defaultErrorHandlers(),
	}
}

// CreateStore handles POST /document-store/store.
func (s *Server) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req CreateStoreRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	store, err := s.docs.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, storeToResponse(store))
}

// ListStores handles GET /document-store/stores.
func (s *Server) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.docs.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out := make([]StoreResponse, len(stores))
	for i, st := range stores {
		out[i] = storeToResponse(st)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetStore handles GET /document-store/store/{id}.
func (s *Server) GetStore(w http.ResponseWriter, r *http.Request) {
	store, err := s.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeToResponse(store))
}

// UpdateStore handles PUT /document-store/store/{id}.
func (s *Server) UpdateStore(w http.ResponseWriter, r *http.Request) {
	var req UpdateStoreRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	store, err := s.docs.Update(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeToResponse(store))
}

// DeleteLoader handles DELETE /document-store/loader/{id}/{loaderId}.
func (s *Server) DeleteLoader(w http.ResponseWriter, r *http.Request) {
	store, err := s.docs.DeleteLoader(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "loaderId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeToResponse(store))
}

// GetFileChunks handles GET /document-store/chunks/{storeId}/{fileId}.
func (s *Server) GetFileChunks(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "page must be an integer")
			return
		}
		page = n
	}
	out, err := s.docs.GetFileChunks(r.Context(), chi.URLParam(r, "storeId"), chi.URLParam(r, "fileId"), page)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunkPageToResponse(out))
}

// DeleteChunk handles DELETE /document-store/chunks/{storeId}/{loaderId}/{chunkId}.
func (s *Server) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	out, err := s.docs.DeleteChunk(r.Context(),
		chi.URLParam(r, "storeId"), chi.URLParam(r, "loaderId"), chi.URLParam(r, "chunkId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunkPageToResponse(out))
}

// EditChunk handles PUT /document-store/chunks/{storeId}/{loaderId}/{chunkId}.
func (s *Server) EditChunk(w http.ResponseWriter, r *http.Request) {
	var req EditChunkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	out, err := s.docs.EditChunk(r.Context(),
		chi.URLParam(r, "storeId"), chi.URLParam(r, "loaderId"), chi.URLParam(r, "chunkId"),
		req.PageContent, req.Metadata)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunkPageToResponse(out))
}

// ProcessChunks handles POST /document-store/process.
func (s *Server) ProcessChunks(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	loader, err := s.docs.ProcessAndSaveChunks(r.Context(), req.toUsecase())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loader)
}

// PreviewChunks handles POST /document-store/loader/preview.
func (s *Server) PreviewChunks(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	preview, err := s.docs.PreviewChunks(r.Context(), req.toUsecase())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Chunks:            documentsToResponse(preview.Chunks),
		TotalChunks:       preview.TotalChunks,
		PreviewChunkCount: preview.PreviewChunkCount,
	})
}

// ListLoaders handles GET /document-store/components/loaders.
func (s *Server) ListLoaders(w http.ResponseWriter, _ *http.Request) {
	loaders := s.docs.ListLoaders()
	if loaders == nil {
		loaders = []docstoreuc.Component{}
	}
	writeJSON(w, http.StatusOK, loaders)
}

// Retrieve handles POST /retriever/query.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		s.handleDomainError(w, r, errors.Join(domain.ErrNotImplemented, errRetrieverDisabled))
		return
	}
	var req RetrieveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	docs, err := s.retriever.Retrieve(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if docs == nil {
		docs = []schema.Document{}
	}
	writeJSON(w, http.StatusOK, RetrieveResponse{Documents: documentsToResponse(docs)})
}

var errRetrieverDisabled = errors.New("retriever is not configured")

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}
