package docstore

import (
	"context"
	"maps"
	"path"
	"slices"

	"github.com/viola622/Flowise/internal/db"
)

// mockStore is an in-memory hashStore. Fn fields override individual calls.
type mockStore struct {
	data map[string]map[string]string

	hsetFn  func(ctx context.Context, key string, fields map[string]string) error
	scanFn  func(ctx context.Context, pattern string) ([]string, error)
	delFn   func(ctx context.Context, keys ...string) error
	existFn func(ctx context.Context, key string) (bool, error)
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]map[string]string{}}
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	m.data[key] = maps.Clone(fields)
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		if err := m.HSet(ctx, it.Key, it.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if v, ok := m.data[key]; ok {
		return maps.Clone(v), nil
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = m.HGetAll(ctx, k)
	}
	return out, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existFn != nil {
		return m.existFn(ctx, key)
	}
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	var keys []string
	for k := range m.data {
		// ids carry no '/', so path.Match behaves like a glob over the whole key.
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
