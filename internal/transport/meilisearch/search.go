package meilisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/viola622/Flowise/internal/domain"
	"github.com/viola622/Flowise/internal/domain/searchindex"
	"github.com/viola622/Flowise/internal/metrics"
)

type searchResponse struct {
	Hits             []searchindex.Hit `json:"hits"`
	ProcessingTimeMs int               `json:"processingTimeMs"`
	SemanticHitCount *int              `json:"semanticHitCount,omitempty"`
}

// Search calls POST /indexes/{uid}/search. Hits are returned in index order.
func (c *Client) Search(ctx context.Context, indexUID string, req searchindex.Request) ([]searchindex.Hit, error) {
	start := time.Now()

	raw, err := c.sm.Index(indexUID).SearchRawWithContext(ctx, req.Query, toSearchRequest(req))
	err = c.mapError("search", err)

	metrics.SearchRequestDuration.
		WithLabelValues(indexUID, statusLabel(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if raw != nil {
		if err := json.Unmarshal(*raw, &resp); err != nil {
			return nil, fmt.Errorf("%w: meilisearch decode response: %w", domain.ErrSearchIndexError, err)
		}
	}
	if resp.Hits == nil {
		resp.Hits = []searchindex.Hit{}
	}
	return resp.Hits, nil
}

// toSearchRequest maps a search call onto the SDK request. The SDK omits a zero
// semantic ratio, so a zero ratio is sent as a plain keyword search.
func toSearchRequest(req searchindex.Request) *meili.SearchRequest {
	sr := &meili.SearchRequest{
		Limit:                int64(req.Limit),
		AttributesToRetrieve: req.AttributesToRetrieve,
	}
	if req.Hybrid == nil || req.Hybrid.SemanticRatio <= 0 {
		return sr
	}
	sr.Vector = req.Vector
	sr.Hybrid = &meili.SearchRequestHybrid{
		SemanticRatio: req.Hybrid.SemanticRatio,
		Embedder:      req.Hybrid.Embedder,
	}
	return sr
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return strconv.Itoa(apiErr.StatusCode)
	}
	return "error"
}
