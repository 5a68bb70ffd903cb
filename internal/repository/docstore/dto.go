package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	domds "github.com/viola622/Flowise/internal/domain/docstore"
)

// storeRow is the flat persisted form of a Store shared by the SQL and hash backends.
type storeRow struct {
	ID          string
	Name        string
	Description string
	Loaders     string // JSON array
	WhereUsed   string // JSON array
	Status      string
	CreatedAt   int64 // unix millis
	UpdatedAt   int64
}

func storeToRow(s domds.Store) (storeRow, error) {
	loaders := s.Loaders()
	if loaders == nil {
		loaders = []domds.Loader{}
	}
	loadersJSON, err := json.Marshal(loaders)
	if err != nil {
		return storeRow{}, fmt.Errorf("marshal loaders: %w", err)
	}
	whereUsed := s.WhereUsed()
	if whereUsed == nil {
		whereUsed = []string{}
	}
	whereUsedJSON, err := json.Marshal(whereUsed)
	if err != nil {
		return storeRow{}, fmt.Errorf("marshal whereUsed: %w", err)
	}
	return storeRow{
		ID:          s.ID(),
		Name:        s.Name(),
		Description: s.Description(),
		Loaders:     string(loadersJSON),
		WhereUsed:   string(whereUsedJSON),
		Status:      string(s.Status()),
		CreatedAt:   s.CreatedAt().UnixMilli(),
		UpdatedAt:   s.UpdatedAt().UnixMilli(),
	}, nil
}

func rowToStore(r storeRow) (domds.Store, error) {
	var loaders []domds.Loader
	if r.Loaders != "" {
		if err := json.Unmarshal([]byte(r.Loaders), &loaders); err != nil {
			return domds.Store{}, fmt.Errorf("unmarshal loaders of %s: %w", r.ID, err)
		}
	}
	var whereUsed []string
	if r.WhereUsed != "" {
		if err := json.Unmarshal([]byte(r.WhereUsed), &whereUsed); err != nil {
			return domds.Store{}, fmt.Errorf("unmarshal whereUsed of %s: %w", r.ID, err)
		}
	}
	return domds.Reconstruct(
		r.ID, r.Name, r.Description, loaders, whereUsed, domds.Status(r.Status),
		time.UnixMilli(r.CreatedAt).UTC(), time.UnixMilli(r.UpdatedAt).UTC(),
	), nil
}

func (r storeRow) toHash() map[string]string {
	return map[string]string{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"loaders":     r.Loaders,
		"where_used":  r.WhereUsed,
		"status":      r.Status,
		"created_at":  strconv.FormatInt(r.CreatedAt, 10),
		"updated_at":  strconv.FormatInt(r.UpdatedAt, 10),
	}
}

func storeRowFromHash(m map[string]string) (storeRow, error) {
	created, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return storeRow{}, fmt.Errorf("invalid created_at: %w", err)
	}
	updated, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		updated = created
	}
	return storeRow{
		ID:          m["id"],
		Name:        m["name"],
		Description: m["description"],
		Loaders:     m["loaders"],
		WhereUsed:   m["where_used"],
		Status:      m["status"],
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func marshalMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

func chunkToHash(c domds.Chunk) (map[string]string, error) {
	meta, err := marshalMetadata(c.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"id":           c.ID,
		"store_id":     c.StoreID,
		"doc_id":       c.DocID,
		"chunk_no":     strconv.Itoa(c.ChunkNo),
		"page_content": c.PageContent,
		"metadata":     meta,
	}, nil
}

func chunkFromHash(m map[string]string) (domds.Chunk, error) {
	no, err := strconv.Atoi(m["chunk_no"])
	if err != nil {
		return domds.Chunk{}, fmt.Errorf("invalid chunk_no: %w", err)
	}
	meta, err := unmarshalMetadata(m["metadata"])
	if err != nil {
		return domds.Chunk{}, err
	}
	return domds.Chunk{
		ID:          m["id"],
		StoreID:     m["store_id"],
		DocID:       m["doc_id"],
		ChunkNo:     no,
		PageContent: m["page_content"],
		Metadata:    meta,
	}, nil
}
