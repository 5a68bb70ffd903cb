package docstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Chunk is one split piece of a loaded document.
type Chunk struct {
	ID          string
	StoreID     string
	DocID       string // loader id the chunk was produced by
	ChunkNo     int
	PageContent string
	Metadata    map[string]any
}

// NewChunk validates and creates a Chunk with a fresh id.
func NewChunk(storeID, docID string, chunkNo int, content string, metadata map[string]any) (Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return Chunk{}, fmt.Errorf("chunk content is required")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Chunk{
		ID:          uuid.NewString(),
		StoreID:     storeID,
		DocID:       docID,
		ChunkNo:     chunkNo,
		PageContent: content,
		Metadata:    metadata,
	}, nil
}

// WithContent returns a copy with replaced page content.
func (c Chunk) WithContent(content string) (Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return Chunk{}, fmt.Errorf("chunk content is required")
	}
	c.PageContent = content
	return c, nil
}
