package docstore

import (
	"cmp"
	"context"
	"errors"
	"io"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/viola622/Flowise/internal/domain"
	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

// --- Mocks ---

type mockRepo struct {
	mu     sync.Mutex
	stores map[string]domds.Store
	chunks map[string]domds.Chunk

	createErr error
	updateErr error
	createN   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{stores: map[string]domds.Store{}, chunks: map[string]domds.Chunk{}}
}

func (m *mockRepo) CreateStore(_ context.Context, s domds.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createN++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.stores[s.ID()]; ok {
		return domain.ErrAlreadyExists
	}
	m.stores[s.ID()] = s
	return nil
}

func (m *mockRepo) GetStore(_ context.Context, id string) (domds.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return domds.Store{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) ListStores(_ context.Context) ([]domds.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Collect(maps.Values(m.stores)), nil
}

func (m *mockRepo) UpdateStore(_ context.Context, s domds.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.stores[s.ID()]; !ok {
		return domain.ErrNotFound
	}
	m.stores[s.ID()] = s
	return nil
}

func (m *mockRepo) ReplaceChunks(ctx context.Context, storeID, docID string, chunks []domds.Chunk) error {
	_ = m.DeleteChunksByDoc(ctx, storeID, docID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *mockRepo) DeleteChunksByDoc(_ context.Context, storeID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.DeleteFunc(m.chunks, func(_ string, c domds.Chunk) bool {
		return c.StoreID == storeID && c.DocID == docID
	})
	return nil
}

func (m *mockRepo) ListChunks(_ context.Context, storeID, docID string, offset, limit int) ([]domds.Chunk, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domds.Chunk
	for _, c := range m.chunks {
		if c.StoreID == storeID && (docID == "" || c.DocID == docID) {
			all = append(all, c)
		}
	}
	slices.SortFunc(all, func(a, b domds.Chunk) int {
		if c := cmp.Compare(a.DocID, b.DocID); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkNo, b.ChunkNo)
	})
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	return all[start:end], len(all), nil
}

func (m *mockRepo) GetChunk(_ context.Context, storeID, docID, chunkID string) (domds.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[chunkID]
	if !ok || c.StoreID != storeID || c.DocID != docID {
		return domds.Chunk{}, domain.ErrChunkNotFound
	}
	return c, nil
}

func (m *mockRepo) UpdateChunk(_ context.Context, c domds.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[c.ID]; !ok {
		return domain.ErrChunkNotFound
	}
	m.chunks[c.ID] = c
	return nil
}

func (m *mockRepo) DeleteChunk(_ context.Context, _, _, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[chunkID]; !ok {
		return domain.ErrChunkNotFound
	}
	delete(m.chunks, chunkID)
	return nil
}

func (m *mockRepo) chunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

type nopCloser struct{ *strings.Reader }

func (nopCloser) Close() error { return nil }

type mockFolders struct {
	dirs    map[string]bool
	files   map[string]string // "store/file" -> content
	removed []string
}

func newMockFolders() *mockFolders {
	return &mockFolders{dirs: map[string]bool{}, files: map[string]string{}}
}

func (m *mockFolders) CreateStoreDir(name string) (string, error) {
	if m.dirs[name] {
		return "", domain.ErrAlreadyExists
	}
	m.dirs[name] = true
	return "/data/datasource/" + name, nil
}

func (m *mockFolders) RemoveStoreDir(name string) error {
	delete(m.dirs, name)
	m.removed = append(m.removed, name)
	return nil
}

func (m *mockFolders) OpenFile(storeName, fileName string) (io.ReadSeekCloser, error) {
	content, ok := m.files[storeName+"/"+fileName]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return nopCloser{strings.NewReader(content)}, nil
}

type mockIndexer struct {
	indexed  []domds.Chunk
	removed  []string
	indexErr error
}

func (m *mockIndexer) IndexChunks(_ context.Context, chunks []domds.Chunk) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed = append(m.indexed, chunks...)
	return nil
}

func (m *mockIndexer) RemoveChunks(_ context.Context, ids []string) error {
	m.removed = append(m.removed, ids...)
	return nil
}

var errBoom = errors.New("boom")

// newTestService returns a service with a ticking clock so createdAt ordering is deterministic.
func newTestService() (*Service, *mockRepo, *mockFolders) {
	repo, folders := newMockRepo(), newMockFolders()
	svc := New(repo, folders)
	var mu sync.Mutex
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	return svc, repo, folders
}
