package meilisearch

import (
	"context"
	"fmt"

	meili "github.com/meilisearch/meilisearch-go"
)

// Task is the summary Meilisearch returns for enqueued write operations.
type Task struct {
	TaskUID  int64
	IndexUID string
	Status   string
	Type     string
}

func taskFrom(info *meili.TaskInfo) Task {
	if info == nil {
		return Task{}
	}
	return Task{
		TaskUID:  info.TaskUID,
		IndexUID: info.IndexUID,
		Status:   string(info.Status),
		Type:     string(info.Type),
	}
}

// AddDocuments calls POST /indexes/{uid}/documents. Existing documents with the
// same primary key are replaced.
func (c *Client) AddDocuments(ctx context.Context, indexUID, primaryKey string, docs []map[string]any) (Task, error) {
	if len(docs) == 0 {
		return Task{}, nil
	}
	var pk []string
	if primaryKey != "" {
		pk = append(pk, primaryKey)
	}
	info, err := c.sm.Index(indexUID).AddDocumentsWithContext(ctx, docs, pk...)
	if err != nil {
		return Task{}, fmt.Errorf("add documents to %s: %w", indexUID, c.mapError("add_documents", err))
	}
	return taskFrom(info), nil
}

// DeleteDocuments calls POST /indexes/{uid}/documents/delete-batch.
func (c *Client) DeleteDocuments(ctx context.Context, indexUID string, ids []string) (Task, error) {
	if len(ids) == 0 {
		return Task{}, nil
	}
	info, err := c.sm.Index(indexUID).DeleteDocumentsWithContext(ctx, ids)
	if err != nil {
		return Task{}, fmt.Errorf("delete documents from %s: %w", indexUID, c.mapError("delete_documents", err))
	}
	return taskFrom(info), nil
}
