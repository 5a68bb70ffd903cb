package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/schema"

	domds "github.com/viola622/Flowise/internal/domain/docstore"
	docstoreuc "github.com/viola622/Flowise/internal/usecase/docstore"
	healthuc "github.com/viola622/Flowise/internal/usecase/health"
)

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errBoom = errors.New("boom")
)

type mockDocs struct {
	createFn        func(ctx context.Context, name, description string) (domds.Store, error)
	listFn          func(ctx context.Context) ([]domds.Store, error)
	getFn           func(ctx context.Context, id string) (domds.Store, error)
	updateFn        func(ctx context.Context, id string, patch domds.Patch) (domds.Store, error)
	deleteLoaderFn  func(ctx context.Context, storeID, loaderID string) (domds.Store, error)
	getFileChunksFn func(ctx context.Context, storeID, fileID string, page int) (docstoreuc.ChunkPage, error)
	deleteChunkFn   func(ctx context.Context, storeID, loaderID, chunkID string) (docstoreuc.ChunkPage, error)
	editChunkFn     func(
		ctx context.Context, storeID, loaderID, chunkID, content string, metadata map[string]any,
	) (docstoreuc.ChunkPage, error)
	previewFn func(ctx context.Context, req docstoreuc.ProcessRequest) (docstoreuc.Preview, error)
	processFn func(ctx context.Context, req docstoreuc.ProcessRequest) (domds.Loader, error)
}

func (m *mockDocs) Create(ctx context.Context, name, description string) (domds.Store, error) {
	return m.createFn(ctx, name, description)
}

func (m *mockDocs) List(ctx context.Context) ([]domds.Store, error) { return m.listFn(ctx) }

func (m *mockDocs) Get(ctx context.Context, id string) (domds.Store, error) { return m.getFn(ctx, id) }

func (m *mockDocs) Update(ctx context.Context, id string, patch domds.Patch) (domds.Store, error) {
	return m.updateFn(ctx, id, patch)
}

func (m *mockDocs) DeleteLoader(ctx context.Context, storeID, loaderID string) (domds.Store, error) {
	return m.deleteLoaderFn(ctx, storeID, loaderID)
}

func (m *mockDocs) GetFileChunks(ctx context.Context, storeID, fileID string, page int) (docstoreuc.ChunkPage, error) {
	return m.getFileChunksFn(ctx, storeID, fileID, page)
}

func (m *mockDocs) DeleteChunk(ctx context.Context, storeID, loaderID, chunkID string) (docstoreuc.ChunkPage, error) {
	return m.deleteChunkFn(ctx, storeID, loaderID, chunkID)
}

func (m *mockDocs) EditChunk(
	ctx context.Context, storeID, loaderID, chunkID, content string, metadata map[string]any,
) (docstoreuc.ChunkPage, error) {
	return m.editChunkFn(ctx, storeID, loaderID, chunkID, content, metadata)
}

func (m *mockDocs) PreviewChunks(ctx context.Context, req docstoreuc.ProcessRequest) (docstoreuc.Preview, error) {
	return m.previewFn(ctx, req)
}

func (m *mockDocs) ProcessAndSaveChunks(ctx context.Context, req docstoreuc.ProcessRequest) (domds.Loader, error) {
	return m.processFn(ctx, req)
}

func (m *mockDocs) ListLoaders() []docstoreuc.Component { return docstoreuc.LoaderComponents() }

type mockRetriever struct {
	retrieveFn func(ctx context.Context, query string) ([]schema.Document, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string) ([]schema.Document, error) {
	return m.retrieveFn(ctx, query)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func healthyReport() healthuc.Report {
	return healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
	}
}

func newTestRouter(docs DocumentStores, retriever Retriever) http.Handler {
	return NewRouter(NewServer(docs, retriever, &mockHealth{report: healthyReport()}), RouterConfig{})
}

func testStore(t *testing.T, name string) domds.Store {
	t.Helper()
	s, err := domds.New(name, "desc", testNow)
	if err != nil {
		t.Fatalf("domds.New: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
