package redis

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/rueidis"

	"github.com/viola622/Flowise/internal/db"
)

// Document stores, their chunks and cached query embeddings are each kept as
// one hash. Writers never store an empty hash, so HGETALL returning no fields
// means the record does not exist.

const (
	// unlinkBatch caps the keys passed to a single UNLINK. Deleting a loader
	// can remove thousands of chunk hashes at once.
	unlinkBatch = 256
	scanCount   = 200
)

// HSet writes the fields of one record. Empty fields are a no-op.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.do(ctx, hsetCmd(s.b(), key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("%s: %w", key, err)}
	}
	return nil
}

// HSetMulti pipelines one HSET per record, e.g. every chunk of a processed
// loader or every vector of an embedding batch. Items without fields are skipped.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	keys := make([]string, 0, len(items))
	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		if len(item.Fields) == 0 {
			continue
		}
		keys = append(keys, item.Key)
		cmds = append(cmds, hsetCmd(s.b(), item.Key, item.Fields))
	}
	if len(cmds) == 0 {
		return nil
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("%s: %w", keys[i], err)}
		}
	}
	return nil
}

func hsetCmd(b rueidis.Builder, key string, fields map[string]string) rueidis.Completed {
	cmd := b.Hset().Key(key).FieldValue()
	for f, v := range fields {
		cmd = cmd.FieldValue(f, v)
	}
	return cmd.Build()
}

// HGetAll reads one record. A missing record yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("%s: %w", key, err)}
	}
	return m, nil
}

// HGetAllMulti reads records in one pipeline. The result is index-aligned with
// keys; a record removed since the keys were scanned comes back empty.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	out := make([]map[string]string, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("%s: %w", keys[i], err)}
		}
		out[i] = m
	}
	return out, nil
}

// Del removes records with UNLINK, unlinkBatch keys per command.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	var cmds []rueidis.Completed
	for batch := range slices.Chunk(keys, unlinkBatch) {
		cmds = append(cmds, s.b().Unlink().Key(batch...).Build())
	}

	if len(cmds) == 1 {
		if err := s.do(ctx, cmds[0]).Error(); err != nil {
			return &db.Error{Op: db.OpDel, Err: err}
		}
		return nil
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpDel, Err: err}
		}
	}
	return nil
}

// Exists reports whether a record is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: fmt.Errorf("%s: %w", key, err)}
	}
	return n > 0, nil
}

// Scan walks the keyspace for pattern and returns the matching keys sorted and
// without duplicates. SCAN may report a key more than once while the keyspace
// is being rehashed.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		entry, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: fmt.Errorf("%s: %w", pattern, err)}
		}
		for _, k := range entry.Elements {
			seen[k] = struct{}{}
		}
		if cursor = entry.Cursor; cursor == 0 {
			break
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}
