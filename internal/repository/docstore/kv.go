package docstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/viola622/Flowise/internal/db"
	"github.com/viola622/Flowise/internal/domain"
	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

// DefaultKeyPrefix namespaces every key written by KVRepo.
const DefaultKeyPrefix = "flowise:"

// hashStore is the consumer interface for the hash backend (ISP).
type hashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVRepo implements usecase/docstore.Repository over Valkey/Redis hashes.
//
// Key layout:
//
//	{prefix}docstore:{storeID}
//	{prefix}chunk:{storeID}:{docID}:{chunkID}
type KVRepo struct {
	store  hashStore
	prefix string
}

// NewKV creates a hash-backed repository. An empty prefix falls back to DefaultKeyPrefix.
func NewKV(s hashStore, prefix string) *KVRepo {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KVRepo{store: s, prefix: prefix}
}

// CreateStore writes a new store hash. Names are unique across stores.
func (r *KVRepo) CreateStore(ctx context.Context, s domds.Store) error {
	key := r.storeKey(s.ID())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}
	all, err := r.ListStores(ctx)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(all, func(x domds.Store) bool { return x.Name() == s.Name() }) {
		return domain.ErrAlreadyExists
	}

	row, err := storeToRow(s)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key, row.toHash()); err != nil {
		return fmt.Errorf("hset store %s: %w", s.ID(), err)
	}
	return nil
}

// GetStore loads a store by id.
func (r *KVRepo) GetStore(ctx context.Context, id string) (domds.Store, error) {
	m, err := r.store.HGetAll(ctx, r.storeKey(id))
	if err != nil {
		return domds.Store{}, fmt.Errorf("hgetall store %s: %w", id, err)
	}
	if len(m) == 0 {
		return domds.Store{}, domain.ErrNotFound
	}
	row, err := storeRowFromHash(m)
	if err != nil {
		return domds.Store{}, fmt.Errorf("parse store %s: %w", id, err)
	}
	return rowToStore(row)
}

// ListStores returns all stores sorted by creation time.
func (r *KVRepo) ListStores(ctx context.Context) ([]domds.Store, error) {
	keys, err := r.store.Scan(ctx, r.storeKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan stores: %w", err)
	}
	if len(keys) == 0 {
		return []domds.Store{}, nil
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi stores: %w", err)
	}

	stores := make([]domds.Store, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		row, err := storeRowFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse store %s: %w", keys[i], err)
		}
		s, err := rowToStore(row)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	slices.SortFunc(stores, func(a, b domds.Store) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return stores, nil
}

// UpdateStore overwrites an existing store hash.
func (r *KVRepo) UpdateStore(ctx context.Context, s domds.Store) error {
	key := r.storeKey(s.ID())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	row, err := storeToRow(s)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key, row.toHash()); err != nil {
		return fmt.Errorf("hset store %s: %w", s.ID(), err)
	}
	return nil
}

// ReplaceChunks deletes the loader's chunk hashes then writes the new set in one pipeline.
func (r *KVRepo) ReplaceChunks(ctx context.Context, storeID, docID string, chunks []domds.Chunk) error {
	if err := r.DeleteChunksByDoc(ctx, storeID, docID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(chunks))
	for _, c := range chunks {
		c.StoreID, c.DocID = storeID, docID
		fields, err := chunkToHash(c)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: r.chunkKey(storeID, docID, c.ID), Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset chunks of %s: %w", docID, err)
	}
	return nil
}

// DeleteChunksByDoc removes every chunk hash of one loader.
func (r *KVRepo) DeleteChunksByDoc(ctx context.Context, storeID, docID string) error {
	keys, err := r.store.Scan(ctx, r.chunkKey(storeID, docID, "*"))
	if err != nil {
		return fmt.Errorf("scan chunks of %s: %w", docID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del chunks of %s: %w", docID, err)
	}
	return nil
}

// ListChunks loads all matching chunk hashes, orders them by (docID, chunkNo) and slices one page.
func (r *KVRepo) ListChunks(
	ctx context.Context, storeID, docID string, offset, limit int,
) ([]domds.Chunk, int, error) {
	pattern := r.prefix + "chunk:" + storeID + ":*"
	if docID != "" {
		pattern = r.chunkKey(storeID, docID, "*")
	}
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return []domds.Chunk{}, 0, nil
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("hgetall multi chunks: %w", err)
	}

	all := make([]domds.Chunk, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		c, err := chunkFromHash(m)
		if err != nil {
			return nil, 0, fmt.Errorf("parse chunk %s: %w", keys[i], err)
		}
		all = append(all, c)
	}
	slices.SortFunc(all, func(a, b domds.Chunk) int {
		if c := cmp.Compare(a.DocID, b.DocID); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkNo, b.ChunkNo)
	})

	total := len(all)
	start := min(max(offset, 0), total)
	end := min(start+max(limit, 0), total)
	return all[start:end], total, nil
}

// GetChunk loads one chunk.
func (r *KVRepo) GetChunk(ctx context.Context, storeID, docID, chunkID string) (domds.Chunk, error) {
	m, err := r.store.HGetAll(ctx, r.chunkKey(storeID, docID, chunkID))
	if err != nil {
		return domds.Chunk{}, fmt.Errorf("hgetall chunk %s: %w", chunkID, err)
	}
	if len(m) == 0 {
		return domds.Chunk{}, domain.ErrChunkNotFound
	}
	return chunkFromHash(m)
}

// UpdateChunk rewrites an existing chunk hash.
func (r *KVRepo) UpdateChunk(ctx context.Context, c domds.Chunk) error {
	key := r.chunkKey(c.StoreID, c.DocID, c.ID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return domain.ErrChunkNotFound
	}
	fields, err := chunkToHash(c)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset chunk %s: %w", c.ID, err)
	}
	return nil
}

// DeleteChunk removes one chunk hash.
func (r *KVRepo) DeleteChunk(ctx context.Context, storeID, docID, chunkID string) error {
	key := r.chunkKey(storeID, docID, chunkID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return domain.ErrChunkNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del chunk %s: %w", chunkID, err)
	}
	return nil
}

func (r *KVRepo) storeKey(id string) string {
	return r.prefix + "docstore:" + id
}

func (r *KVRepo) chunkKey(storeID, docID, chunkID string) string {
	return fmt.Sprintf("%schunk:%s:%s:%s", r.prefix, storeID, docID, chunkID)
}
