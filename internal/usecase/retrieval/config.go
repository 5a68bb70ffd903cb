package retrieval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/viola622/Flowise/internal/domain"
)

// Defaults applied when the corresponding Config field is empty.
const (
	DefaultTopK          = 4
	DefaultSemanticRatio = 0.5
	DefaultEmbedder      = "ollama"
	DefaultContentField  = "pageContent"
	DefaultIDField       = "objectID"
)

// Config is the raw retriever configuration. TopK and SemanticRatio are
// kept as strings because they arrive from UI inputs and env vars.
type Config struct {
	Host          string
	APIKey        string
	IndexUID      string
	TopK          string
	SemanticRatio string
	Embedder      string
	ContentField  string
	IDField       string
}

// settings is the normalized, immutable form of Config.
type settings struct {
	indexUID      string
	topK          int
	semanticRatio float64
	embedder      string
	contentField  string
	idField       string
}

func normalize(cfg Config) (settings, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return settings{}, fmt.Errorf("%w: host is required", domain.ErrInvalidSchema)
	}
	if cfg.APIKey == "" {
		return settings{}, fmt.Errorf("%w: api key is required", domain.ErrInvalidSchema)
	}
	if strings.TrimSpace(cfg.IndexUID) == "" {
		return settings{}, fmt.Errorf("%w: index uid is required", domain.ErrInvalidSchema)
	}

	topK, err := ParseTopK(cfg.TopK)
	if err != nil {
		return settings{}, err
	}
	ratio, err := ParseSemanticRatio(cfg.SemanticRatio)
	if err != nil {
		return settings{}, err
	}

	return settings{
		indexUID:      cfg.IndexUID,
		topK:          topK,
		semanticRatio: ratio,
		embedder:      orDefault(cfg.Embedder, DefaultEmbedder),
		contentField:  orDefault(cfg.ContentField, DefaultContentField),
		idField:       orDefault(cfg.IDField, DefaultIDField),
	}, nil
}

// ParseTopK returns DefaultTopK for empty input, otherwise a positive integer.
func ParseTopK(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTopK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: topK %q is not an integer", domain.ErrInvalidSchema, raw)
	}
	if k < 1 {
		return 0, fmt.Errorf("%w: topK must be >= 1, got %d", domain.ErrInvalidSchema, k)
	}
	return k, nil
}

// ParseSemanticRatio returns DefaultSemanticRatio for empty input, otherwise
// the parsed number clamped to [0, 1].
func ParseSemanticRatio(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSemanticRatio, nil
	}
	r, err := strconv.ParseFloat(raw, 64)
	// Out-of-range values come back as ±Inf or 0 and are clamped below.
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(r) {
		return 0, fmt.Errorf("%w: semantic ratio %q is not a number", domain.ErrInvalidSchema, raw)
	}
	switch {
	case r > 1:
		return 1, nil
	case r < 0:
		return 0, nil
	}
	return r, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
