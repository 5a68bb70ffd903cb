// Package searchindex defines the request and hit shapes exchanged with a hybrid search index.
package searchindex

// Hit is one search result as returned by the index: attribute name to value.
type Hit map[string]any

// Hybrid tunes the blend between keyword and vector ranking.
type Hybrid struct {
	SemanticRatio float64 `json:"semanticRatio"`
	Embedder      string  `json:"embedder"`
}

// Request is a single search call against one index.
type Request struct {
	Query                string    `json:"q"`
	Vector               []float32 `json:"vector,omitempty"`
	Limit                int       `json:"limit,omitempty"`
	AttributesToRetrieve []string  `json:"attributesToRetrieve,omitempty"`
	Hybrid               *Hybrid   `json:"hybrid,omitempty"`
}

// AllAttributes requests every stored attribute of a hit.
var AllAttributes = []string{"*"}
