package docstore

import "github.com/google/uuid"

// LoaderStatus is the processing state of a single loader.
type LoaderStatus string

// Loader statuses.
const (
	LoaderStatusPending LoaderStatus = "PENDING"
	LoaderStatusSync    LoaderStatus = "SYNC"
	LoaderStatusError   LoaderStatus = "ERROR"
)

// Loader is a configured document loader + splitter pair attached to a store.
type Loader struct {
	ID             string         `json:"id"`
	LoaderID       string         `json:"loaderId"`
	LoaderName     string         `json:"loaderName"`
	LoaderConfig   map[string]any `json:"loaderConfig"`
	SplitterID     string         `json:"splitterId,omitempty"`
	SplitterName   string         `json:"splitterName,omitempty"`
	SplitterConfig map[string]any `json:"splitterConfig,omitempty"`
	TotalChunks    int            `json:"totalChunks"`
	TotalChars     int            `json:"totalChars"`
	Status         LoaderStatus   `json:"status"`
	Source         string         `json:"source,omitempty"`
}

// NewLoaderID returns a fresh loader identifier.
func NewLoaderID() string { return uuid.NewString() }
