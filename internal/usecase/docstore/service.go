package docstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/domain"
	domds "github.com/viola622/Flowise/internal/domain/docstore"
	logpkg "github.com/viola622/Flowise/internal/logger"
)

// Paging and preview bounds.
const (
	ChunksPageSize           = 50
	DefaultPreviewChunkCount = 20
	// AllFiles selects chunks of every loader in GetFileChunks.
	AllFiles = "all"
)

const idScanBatch = 1000

// ProcessRequest describes one loader + splitter run against a store.
// ID is empty for a new loader.
type ProcessRequest struct {
	StoreID           string
	ID                string
	LoaderID          string
	LoaderName        string
	LoaderConfig      map[string]any
	SplitterID        string
	SplitterName      string
	SplitterConfig    map[string]any
	PreviewChunkCount int
}

// Preview is the unsaved output of a loader run.
type Preview struct {
	Chunks            []schema.Document
	TotalChunks       int
	PreviewChunkCount int
}

// ChunkPage is one page of persisted chunks. File is nil when listing all loaders.
type ChunkPage struct {
	Chunks      []domds.Chunk
	Count       int
	File        *domds.Loader
	CurrentPage int
	StoreName   string
	Description string
}

// Service handles document store CRUD, chunk editing and loader runs.
type Service struct {
	repo    Repository
	folders FolderManager
	indexer Indexer
	now     func() time.Time
}

// New creates a document store service.
func New(repo Repository, folders FolderManager) *Service {
	return &Service{repo: repo, folders: folders, now: time.Now}
}

// WithIndexer mirrors saved chunks into a search index.
func (s *Service) WithIndexer(ix Indexer) *Service {
	s.indexer = ix
	return s
}

// Create validates the store, creates its datasource folder and persists it.
func (s *Service) Create(ctx context.Context, name, description string) (domds.Store, error) {
	st, err := domds.New(name, description, s.now())
	if err != nil {
		return domds.Store{}, fmt.Errorf("validate store: %w: %w", domain.ErrInvalidSchema, err)
	}
	if _, err := s.folders.CreateStoreDir(st.Name()); err != nil {
		return domds.Store{}, fmt.Errorf("create store: %w", err)
	}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		if rmErr := s.folders.RemoveStoreDir(st.Name()); rmErr != nil {
			logpkg.FromContext(ctx).Warn("Failed to remove store folder", zap.String("store", st.Name()), zap.Error(rmErr))
		}
		return domds.Store{}, fmt.Errorf("create store: %w", err)
	}
	return st, nil
}

// List returns all stores, newest first.
func (s *Service) List(ctx context.Context) ([]domds.Store, error) {
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	slices.SortStableFunc(stores, func(a, b domds.Store) int {
		return b.CreatedAt().Compare(a.CreatedAt())
	})
	return stores, nil
}

// Get retrieves a store by id.
func (s *Service) Get(ctx context.Context, id string) (domds.Store, error) {
	st, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return domds.Store{}, fmt.Errorf("get store: %w", err)
	}
	return st, nil
}

// Update applies a patch to an existing store.
func (s *Service) Update(ctx context.Context, id string, patch domds.Patch) (domds.Store, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return domds.Store{}, err
	}
	st, err = st.Apply(patch, s.now())
	if err != nil {
		return domds.Store{}, fmt.Errorf("validate store: %w: %w", domain.ErrInvalidSchema, err)
	}
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return domds.Store{}, fmt.Errorf("update store: %w", err)
	}
	return st, nil
}

// DeleteLoader removes a loader and all of its chunks.
func (s *Service) DeleteLoader(ctx context.Context, storeID, loaderID string) (domds.Store, error) {
	st, _, err := s.storeLoader(ctx, storeID, loaderID)
	if err != nil {
		return domds.Store{}, err
	}

	ids, err := s.indexedChunkIDs(ctx, storeID, loaderID)
	if err != nil {
		return domds.Store{}, err
	}
	if err := s.repo.DeleteChunksByDoc(ctx, storeID, loaderID); err != nil {
		return domds.Store{}, fmt.Errorf("delete chunks: %w", err)
	}
	s.unindex(ctx, ids)

	st, _ = st.WithoutLoader(loaderID, s.now())
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return domds.Store{}, fmt.Errorf("update store: %w", err)
	}
	return st, nil
}

// GetFileChunks returns one page of chunks for a loader, or for every loader when fileID is AllFiles.
// Pages start at 1.
func (s *Service) GetFileChunks(ctx context.Context, storeID, fileID string, page int) (ChunkPage, error) {
	page = max(page, 1)
	st, err := s.Get(ctx, storeID)
	if err != nil {
		return ChunkPage{}, err
	}

	out := ChunkPage{CurrentPage: page, StoreName: st.Name(), Description: st.Description()}
	docID := ""
	if fileID != AllFiles {
		l, ok := st.Loader(fileID)
		if !ok {
			return ChunkPage{}, fmt.Errorf("loader %s: %w", fileID, domain.ErrLoaderNotFound)
		}
		out.File = &l
		docID = fileID
	}

	chunks, total, err := s.repo.ListChunks(ctx, storeID, docID, (page-1)*ChunksPageSize, ChunksPageSize)
	if err != nil {
		return ChunkPage{}, fmt.Errorf("list chunks: %w", err)
	}
	out.Chunks = chunks
	out.Count = total
	return out, nil
}

// DeleteChunk removes one chunk, adjusts loader totals and returns the loader's first page.
func (s *Service) DeleteChunk(ctx context.Context, storeID, loaderID, chunkID string) (ChunkPage, error) {
	st, loader, err := s.storeLoader(ctx, storeID, loaderID)
	if err != nil {
		return ChunkPage{}, err
	}
	chunk, err := s.repo.GetChunk(ctx, storeID, loaderID, chunkID)
	if err != nil {
		return ChunkPage{}, fmt.Errorf("get chunk: %w", err)
	}
	if err := s.repo.DeleteChunk(ctx, storeID, loaderID, chunkID); err != nil {
		return ChunkPage{}, fmt.Errorf("delete chunk: %w", err)
	}
	s.unindex(ctx, []string{chunkID})

	loader.TotalChunks = max(loader.TotalChunks-1, 0)
	loader.TotalChars = max(loader.TotalChars-charCount(chunk.PageContent), 0)
	if err := s.repo.UpdateStore(ctx, st.WithLoader(loader, s.now())); err != nil {
		return ChunkPage{}, fmt.Errorf("update store: %w", err)
	}
	return s.GetFileChunks(ctx, storeID, loaderID, 1)
}

// EditChunk replaces a chunk's content (and metadata when non-nil) and returns the loader's first page.
func (s *Service) EditChunk(
	ctx context.Context, storeID, loaderID, chunkID, pageContent string, metadata map[string]any,
) (ChunkPage, error) {
	if strings.TrimSpace(pageContent) == "" {
		return ChunkPage{}, fmt.Errorf("%w: pageContent is required", domain.ErrInvalidSchema)
	}
	st, loader, err := s.storeLoader(ctx, storeID, loaderID)
	if err != nil {
		return ChunkPage{}, err
	}
	chunk, err := s.repo.GetChunk(ctx, storeID, loaderID, chunkID)
	if err != nil {
		return ChunkPage{}, fmt.Errorf("get chunk: %w", err)
	}
	before := charCount(chunk.PageContent)
	chunk, err = chunk.WithContent(pageContent)
	if err != nil {
		return ChunkPage{}, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	if metadata != nil {
		chunk.Metadata = metadata
	}
	if err := s.repo.UpdateChunk(ctx, chunk); err != nil {
		return ChunkPage{}, fmt.Errorf("update chunk: %w", err)
	}
	if s.indexer != nil {
		if err := s.indexer.IndexChunks(ctx, []domds.Chunk{chunk}); err != nil {
			logpkg.FromContext(ctx).Warn("Failed to reindex chunk", zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}

	loader.TotalChars = max(loader.TotalChars+charCount(pageContent)-before, 0)
	if err := s.repo.UpdateStore(ctx, st.WithLoader(loader, s.now())); err != nil {
		return ChunkPage{}, fmt.Errorf("update store: %w", err)
	}
	return s.GetFileChunks(ctx, storeID, loaderID, 1)
}

// PreviewChunks runs the loader and splitter without persisting anything.
func (s *Service) PreviewChunks(ctx context.Context, req ProcessRequest) (Preview, error) {
	st, err := s.Get(ctx, req.StoreID)
	if err != nil {
		return Preview{}, err
	}
	docs, err := s.runPipeline(ctx, st.Name(), req)
	if err != nil {
		return Preview{}, fmt.Errorf("preview chunks: %w", err)
	}
	n := req.PreviewChunkCount
	if n <= 0 {
		n = DefaultPreviewChunkCount
	}
	return Preview{
		Chunks:            docs[:min(n, len(docs))],
		TotalChunks:       len(docs),
		PreviewChunkCount: n,
	}, nil
}

// ProcessAndSaveChunks runs the loader and splitter, replaces the loader's chunks and
// marks the store SYNC. A failed index sync leaves the loader in ERROR.
func (s *Service) ProcessAndSaveChunks(ctx context.Context, req ProcessRequest) (domds.Loader, error) {
	st, err := s.Get(ctx, req.StoreID)
	if err != nil {
		return domds.Loader{}, err
	}
	loaderID := req.ID
	if loaderID != "" {
		if _, ok := st.Loader(loaderID); !ok {
			return domds.Loader{}, fmt.Errorf("loader %s: %w", loaderID, domain.ErrLoaderNotFound)
		}
	} else {
		loaderID = domds.NewLoaderID()
	}
	ctx = logpkg.With(ctx, zap.String("store_id", st.ID()), zap.String("loader_id", loaderID))

	docs, err := s.runPipeline(ctx, st.Name(), req)
	if err != nil {
		return domds.Loader{}, fmt.Errorf("process chunks: %w", err)
	}

	chunks := make([]domds.Chunk, 0, len(docs))
	totalChars := 0
	for i, d := range docs {
		c, err := domds.NewChunk(st.ID(), loaderID, i+1, d.PageContent, d.Metadata)
		if err != nil {
			return domds.Loader{}, fmt.Errorf("chunk %d: %w: %w", i+1, domain.ErrInvalidSchema, err)
		}
		chunks = append(chunks, c)
		totalChars += charCount(c.PageContent)
	}

	stale, err := s.indexedChunkIDs(ctx, st.ID(), loaderID)
	if err != nil {
		return domds.Loader{}, err
	}
	if err := s.repo.ReplaceChunks(ctx, st.ID(), loaderID, chunks); err != nil {
		return domds.Loader{}, fmt.Errorf("save chunks: %w", err)
	}

	loader := domds.Loader{
		ID:             loaderID,
		LoaderID:       req.LoaderID,
		LoaderName:     req.LoaderName,
		LoaderConfig:   req.LoaderConfig,
		SplitterID:     req.SplitterID,
		SplitterName:   req.SplitterName,
		SplitterConfig: req.SplitterConfig,
		TotalChunks:    len(chunks),
		TotalChars:     totalChars,
		Status:         domds.LoaderStatusSync,
		Source:         loaderSource(req),
	}

	var syncErr error
	if s.indexer != nil {
		s.unindex(ctx, stale)
		if syncErr = s.indexer.IndexChunks(ctx, chunks); syncErr != nil {
			loader.Status = domds.LoaderStatusError
		}
	}

	now := s.now()
	st = st.WithLoader(loader, now).WithStatus(domds.StatusSync, now)
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return domds.Loader{}, fmt.Errorf("update store: %w", err)
	}
	if syncErr != nil {
		return domds.Loader{}, fmt.Errorf("index chunks: %w", syncErr)
	}

	logpkg.FromContext(ctx).Info("Chunks saved",
		zap.String("loader", req.LoaderID),
		zap.Int("chunks", loader.TotalChunks),
		zap.Int("chars", loader.TotalChars),
	)
	return loader, nil
}

// ListLoaders returns the available loader components.
func (s *Service) ListLoaders() []Component {
	return LoaderComponents()
}

func (s *Service) storeLoader(ctx context.Context, storeID, loaderID string) (domds.Store, domds.Loader, error) {
	st, err := s.Get(ctx, storeID)
	if err != nil {
		return domds.Store{}, domds.Loader{}, err
	}
	l, ok := st.Loader(loaderID)
	if !ok {
		return domds.Store{}, domds.Loader{}, fmt.Errorf("loader %s: %w", loaderID, domain.ErrLoaderNotFound)
	}
	return st, l, nil
}

// indexedChunkIDs collects the chunk ids of a loader so they can be dropped from the index.
// Without an indexer there is nothing to collect.
func (s *Service) indexedChunkIDs(ctx context.Context, storeID, loaderID string) ([]string, error) {
	if s.indexer == nil {
		return nil, nil
	}
	var ids []string
	for offset := 0; ; offset += idScanBatch {
		chunks, total, err := s.repo.ListChunks(ctx, storeID, loaderID, offset, idScanBatch)
		if err != nil {
			return nil, fmt.Errorf("list chunks: %w", err)
		}
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
		if len(chunks) == 0 || offset+len(chunks) >= total {
			return ids, nil
		}
	}
}

// unindex drops chunks from the search index. Failures are logged; the repository stays authoritative.
func (s *Service) unindex(ctx context.Context, ids []string) {
	if s.indexer == nil || len(ids) == 0 {
		return
	}
	if err := s.indexer.RemoveChunks(ctx, ids); err != nil {
		logpkg.FromContext(ctx).Warn("Failed to remove chunks from index", zap.Int("chunks", len(ids)), zap.Error(err))
	}
}

func loaderSource(req ProcessRequest) string {
	if name := configString(req.LoaderConfig, "fileName"); name != "" {
		return name
	}
	return "None"
}

func charCount(s string) int { return utf8.RuneCountInString(s) }
