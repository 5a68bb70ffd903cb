// Package meilisearch adapts the meilisearch-go SDK to the search index and
// chunk sync contracts used by the retriever and the document store.
package meilisearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/domain"
)

// DefaultTimeout bounds a single HTTP round-trip.
const DefaultTimeout = 30 * time.Second

// Config holds the settings for constructing a Client.
type Config struct {
	// Host is the Meilisearch base URL (e.g. "http://localhost:7700").
	Host string
	// APIKey is sent as a bearer token. Never logged.
	APIKey string
	// Timeout overrides DefaultTimeout when > 0.
	Timeout time.Duration
	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to one Meilisearch instance. It is safe for concurrent use.
type Client struct {
	sm     meili.ServiceManager
	logger *zap.Logger
}

// NewClient validates the host and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: meilisearch host %q must be an absolute URL", domain.ErrInvalidSchema, cfg.Host)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []meili.Option{meili.WithCustomClient(hc)}
	if cfg.APIKey != "" {
		opts = append(opts, meili.WithAPIKey(cfg.APIKey))
	}

	return &Client{sm: meili.New(host, opts...), logger: logger}, nil
}

// APIError describes a failed Meilisearch call. StatusCode is zero when the
// server was never reached.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Type       string
	Link       string

	cause error
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("meilisearch: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	case e.StatusCode == 0 && e.cause != nil:
		return fmt.Sprintf("meilisearch: request failed: %v", e.cause)
	default:
		return fmt.Sprintf("meilisearch: HTTP %d", e.StatusCode)
	}
}

// Unwrap lets callers match domain.ErrSearchIndexError and, for 404s, domain.ErrNotFound.
func (e *APIError) Unwrap() []error {
	errs := []error{domain.ErrSearchIndexError}
	if e.StatusCode == http.StatusNotFound {
		errs = append(errs, domain.ErrNotFound)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// mapError converts an SDK error into an *APIError.
func (c *Client) mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{cause: err}
	var me *meili.Error
	if errors.As(err, &me) {
		apiErr.StatusCode = me.StatusCode
		apiErr.Message = me.MeilisearchApiError.Message
		apiErr.Code = me.MeilisearchApiError.Code
		apiErr.Type = me.MeilisearchApiError.Type
		apiErr.Link = me.MeilisearchApiError.Link
	}
	c.logger.Debug("meilisearch call failed",
		zap.String("op", op),
		zap.Int("status", apiErr.StatusCode),
		zap.String("code", apiErr.Code),
	)
	return apiErr
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	h, err := c.sm.HealthWithContext(ctx)
	if err != nil {
		return c.mapError("health", err)
	}
	if h == nil || h.Status != "available" {
		status := ""
		if h != nil {
			status = h.Status
		}
		return fmt.Errorf("%w: meilisearch status %q", domain.ErrSearchIndexError, status)
	}
	return nil
}

// HealthCheck satisfies domain.HealthChecker.
func (c *Client) HealthCheck(ctx context.Context) error { return c.Health(ctx) }
