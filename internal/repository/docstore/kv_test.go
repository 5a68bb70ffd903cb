package docstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/viola622/Flowise/internal/domain"
	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

func TestKVRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	ms := newMockStore()
	repo := NewKV(ms, "")
	s := mustStore(t, "docs")

	if err := repo.CreateStore(ctx, s); err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	if _, ok := ms.data["flowise:docstore:"+s.ID()]; !ok {
		t.Fatalf("expected key flowise:docstore:%s, have %v", s.ID(), ms.data)
	}

	got, err := repo.GetStore(ctx, s.ID())
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if got.Name() != "docs" || got.Description() != "desc" {
		t.Errorf("got %q / %q", got.Name(), got.Description())
	}
}

func TestKVRepo_CreateStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	repo := NewKV(newMockStore(), "")
	if err := repo.CreateStore(ctx, mustStore(t, "docs")); err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	if err := repo.CreateStore(ctx, mustStore(t, "docs")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestKVRepo_GetStore_NotFound(t *testing.T) {
	repo := NewKV(newMockStore(), "")
	if _, err := repo.GetStore(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestKVRepo_UpdateStore_NotFound(t *testing.T) {
	repo := NewKV(newMockStore(), "")
	if err := repo.UpdateStore(context.Background(), mustStore(t, "x")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestKVRepo_ListStores_Sorted(t *testing.T) {
	ctx := context.Background()
	repo := NewKV(newMockStore(), "")
	older, _ := domds.New("older", "", time.UnixMilli(1000))
	newer, _ := domds.New("newer", "", time.UnixMilli(2000))
	_ = repo.CreateStore(ctx, newer)
	_ = repo.CreateStore(ctx, older)

	list, err := repo.ListStores(ctx)
	if err != nil {
		t.Fatalf("ListStores: %v", err)
	}
	if len(list) != 2 || list[0].Name() != "older" {
		t.Fatalf("unexpected order: %v", list)
	}
}

func TestKVRepo_ListStores_ScanError(t *testing.T) {
	ms := newMockStore()
	ms.scanFn = func(context.Context, string) ([]string, error) { return nil, errors.New("boom") }
	if _, err := NewKV(ms, "").ListStores(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestKVRepo_Chunks(t *testing.T) {
	ctx := context.Background()
	ms := newMockStore()
	repo := NewKV(ms, "test:")

	if err := repo.ReplaceChunks(ctx, "s1", "d1", mustChunks(t, "s1", "d1", "one", "two", "three")); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := repo.ReplaceChunks(ctx, "s1", "d2", mustChunks(t, "s1", "d2", "x")); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	for k := range ms.data {
		if !strings.HasPrefix(k, "test:chunk:s1:") {
			t.Errorf("unexpected key %s", k)
		}
	}

	page, total, err := repo.ListChunks(ctx, "s1", "d1", 1, 5)
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if total != 3 || len(page) != 2 || page[0].PageContent != "two" {
		t.Fatalf("page=%+v total=%d", page, total)
	}

	_, total, _ = repo.ListChunks(ctx, "s1", "", 0, 50)
	if total != 4 {
		t.Errorf("store total = %d", total)
	}

	page, _, _ = repo.ListChunks(ctx, "s1", "d1", 10, 5)
	if len(page) != 0 {
		t.Errorf("offset past end returned %d chunks", len(page))
	}

	if err := repo.ReplaceChunks(ctx, "s1", "d1", nil); err != nil {
		t.Fatalf("ReplaceChunks empty: %v", err)
	}
	_, total, _ = repo.ListChunks(ctx, "s1", "d1", 0, 50)
	if total != 0 {
		t.Errorf("after clear total = %d", total)
	}
}

func TestKVRepo_ChunkCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewKV(newMockStore(), "")
	chunks := mustChunks(t, "s1", "d1", "alpha")
	_ = repo.ReplaceChunks(ctx, "s1", "d1", chunks)
	id := chunks[0].ID

	c, err := repo.GetChunk(ctx, "s1", "d1", id)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if c.Metadata["source"] != "a.txt" {
		t.Errorf("metadata = %v", c.Metadata)
	}
	c, _ = c.WithContent("beta")
	if err := repo.UpdateChunk(ctx, c); err != nil {
		t.Fatalf("UpdateChunk: %v", err)
	}
	c, _ = repo.GetChunk(ctx, "s1", "d1", id)
	if c.PageContent != "beta" {
		t.Errorf("content = %q", c.PageContent)
	}

	if err := repo.DeleteChunk(ctx, "s1", "d1", id); err != nil {
		t.Fatalf("DeleteChunk: %v", err)
	}
	if _, err := repo.GetChunk(ctx, "s1", "d1", id); !errors.Is(err, domain.ErrChunkNotFound) {
		t.Errorf("GetChunk after delete = %v", err)
	}
	if err := repo.DeleteChunk(ctx, "s1", "d1", id); !errors.Is(err, domain.ErrChunkNotFound) {
		t.Errorf("DeleteChunk twice = %v", err)
	}
	if err := repo.UpdateChunk(ctx, c); !errors.Is(err, domain.ErrChunkNotFound) {
		t.Errorf("UpdateChunk missing = %v", err)
	}
}

func TestKVRepo_DeleteChunksByDoc_DelError(t *testing.T) {
	ctx := context.Background()
	ms := newMockStore()
	repo := NewKV(ms, "")
	_ = repo.ReplaceChunks(ctx, "s1", "d1", mustChunks(t, "s1", "d1", "a"))

	ms.delFn = func(context.Context, ...string) error { return errors.New("readonly") }
	if err := repo.DeleteChunksByDoc(ctx, "s1", "d1"); err == nil {
		t.Fatal("expected del error")
	}
}
