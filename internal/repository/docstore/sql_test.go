package docstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/viola622/Flowise/internal/db/sqldb"
	"github.com/viola622/Flowise/internal/domain"
	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

func newSQLiteRepo(t *testing.T) *SQLRepo {
	t.Helper()
	db, err := sqldb.Open(sqldb.Config{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQL(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return repo
}

func mustStore(t *testing.T, name string) domds.Store {
	t.Helper()
	s, err := domds.New(name, "desc", time.UnixMilli(1_700_000_000_000))
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	return s
}

func mustChunks(t *testing.T, storeID, docID string, contents ...string) []domds.Chunk {
	t.Helper()
	out := make([]domds.Chunk, 0, len(contents))
	for i, text := range contents {
		c, err := domds.NewChunk(storeID, docID, i+1, text, map[string]any{"source": "a.txt"})
		if err != nil {
			t.Fatalf("NewChunk: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func TestSQLRepo_MigrateIdempotent(t *testing.T) {
	repo := newSQLiteRepo(t)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestSQLRepo_StoreLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	s := mustStore(t, "docs")

	if err := repo.CreateStore(ctx, s); err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	if err := repo.CreateStore(ctx, s); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateStore = %v, want ErrAlreadyExists", err)
	}

	got, err := repo.GetStore(ctx, s.ID())
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if got.Name() != "docs" || got.Status() != domds.StatusEmpty {
		t.Errorf("got name=%q status=%q", got.Name(), got.Status())
	}
	if !got.CreatedAt().Equal(s.CreatedAt()) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt(), s.CreatedAt())
	}

	loader := domds.Loader{ID: "l1", LoaderID: "textFile", LoaderName: "Text File", Status: domds.LoaderStatusSync, TotalChunks: 2}
	updated := s.WithLoader(loader, time.UnixMilli(1_700_000_001_000)).WithStatus(domds.StatusSync, time.UnixMilli(1_700_000_001_000))
	if err := repo.UpdateStore(ctx, updated); err != nil {
		t.Fatalf("UpdateStore: %v", err)
	}

	got, err = repo.GetStore(ctx, s.ID())
	if err != nil {
		t.Fatalf("GetStore after update: %v", err)
	}
	if l, ok := got.Loader("l1"); !ok || l.TotalChunks != 2 {
		t.Errorf("loader not persisted: %+v ok=%v", l, ok)
	}
	if got.Status() != domds.StatusSync {
		t.Errorf("status = %q", got.Status())
	}

	list, err := repo.ListStores(ctx)
	if err != nil {
		t.Fatalf("ListStores: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListStores len = %d", len(list))
	}
}

func TestSQLRepo_GetStore_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	if _, err := repo.GetStore(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLRepo_UpdateStore_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	if err := repo.UpdateStore(context.Background(), mustStore(t, "ghost")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLRepo_ChunksReplaceAndPage(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	first := mustChunks(t, "s1", "d1", "one", "two", "three")
	if err := repo.ReplaceChunks(ctx, "s1", "d1", first); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := repo.ReplaceChunks(ctx, "s1", "d2", mustChunks(t, "s1", "d2", "other")); err != nil {
		t.Fatalf("ReplaceChunks d2: %v", err)
	}

	page, total, err := repo.ListChunks(ctx, "s1", "d1", 1, 1)
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if total != 3 || len(page) != 1 || page[0].PageContent != "two" {
		t.Fatalf("page = %+v total = %d", page, total)
	}
	if page[0].Metadata["source"] != "a.txt" {
		t.Errorf("metadata = %v", page[0].Metadata)
	}

	_, total, err = repo.ListChunks(ctx, "s1", "", 0, 50)
	if err != nil {
		t.Fatalf("ListChunks all: %v", err)
	}
	if total != 4 {
		t.Errorf("store total = %d, want 4", total)
	}

	// Replacing swaps the whole set for that loader only.
	if err := repo.ReplaceChunks(ctx, "s1", "d1", mustChunks(t, "s1", "d1", "fresh")); err != nil {
		t.Fatalf("ReplaceChunks again: %v", err)
	}
	_, total, _ = repo.ListChunks(ctx, "s1", "", 0, 50)
	if total != 2 {
		t.Errorf("after replace total = %d, want 2", total)
	}
}

func TestSQLRepo_ChunkCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	chunks := mustChunks(t, "s1", "d1", "alpha")
	if err := repo.ReplaceChunks(ctx, "s1", "d1", chunks); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	id := chunks[0].ID

	c, err := repo.GetChunk(ctx, "s1", "d1", id)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	c, _ = c.WithContent("beta")
	if err := repo.UpdateChunk(ctx, c); err != nil {
		t.Fatalf("UpdateChunk: %v", err)
	}
	c, _ = repo.GetChunk(ctx, "s1", "d1", id)
	if c.PageContent != "beta" {
		t.Errorf("content = %q", c.PageContent)
	}

	if _, err := repo.GetChunk(ctx, "s1", "other-doc", id); !errors.Is(err, domain.ErrChunkNotFound) {
		t.Errorf("scoped GetChunk err = %v", err)
	}

	if err := repo.DeleteChunk(ctx, "s1", "d1", id); err != nil {
		t.Fatalf("DeleteChunk: %v", err)
	}
	if err := repo.DeleteChunk(ctx, "s1", "d1", id); !errors.Is(err, domain.ErrChunkNotFound) {
		t.Errorf("second DeleteChunk err = %v", err)
	}
}

func TestSQLRepo_DeleteChunksByDoc(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	_ = repo.ReplaceChunks(ctx, "s1", "d1", mustChunks(t, "s1", "d1", "a", "b"))

	if err := repo.DeleteChunksByDoc(ctx, "s1", "d1"); err != nil {
		t.Fatalf("DeleteChunksByDoc: %v", err)
	}
	_, total, _ := repo.ListChunks(ctx, "s1", "d1", 0, 50)
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}

func TestSQLRepo_PostgresPlaceholders(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()

	repo := NewSQL(sqldb.Wrap(raw, sqldb.Postgres))
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM document_store_file_chunk WHERE store_id = $1 AND doc_id = $2`)).
		WithArgs("s1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteChunksByDoc(context.Background(), "s1", "d1"); err != nil {
		t.Fatalf("DeleteChunksByDoc: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLRepo_PostgresGetStoreNoRows(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()

	repo := NewSQL(sqldb.Wrap(raw, sqldb.Postgres))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM document_store WHERE id = $1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetStore(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLRepo_MigrateError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS document_store").WillReturnError(errors.New("permission denied"))
	if err := NewSQL(sqldb.Wrap(raw, sqldb.Postgres)).Migrate(context.Background()); err == nil {
		t.Fatal("expected migrate error")
	}
}
