package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/metrics"
)

// APIPrefix is the mount point of the REST API.
const APIPrefix = "/api/v1"

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	APIKeys        []string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	Logger         *zap.Logger
}

// NewRouter mounts the server's handlers behind the standard middleware chain.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(WideEventMiddleware(logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	if cfg.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
	}
	r.Use(metrics.Middleware())
	r.Use(BodyLimit(cfg.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route(APIPrefix, func(r chi.Router) {
		r.Route("/document-store", func(r chi.Router) {
			r.Post("/store", s.CreateStore)
			r.Get("/stores", s.ListStores)
			r.Get("/store/{id}", s.GetStore)
			r.Put("/store/{id}", s.UpdateStore)
			r.Delete("/loader/{id}/{loaderId}", s.DeleteLoader)
			r.Post("/loader/preview", s.PreviewChunks)
			r.Get("/chunks/{storeId}/{fileId}", s.GetFileChunks)
			r.Delete("/chunks/{storeId}/{loaderId}/{chunkId}", s.DeleteChunk)
			r.Put("/chunks/{storeId}/{loaderId}/{chunkId}", s.EditChunk)
			r.Post("/process", s.ProcessChunks)
			r.Get("/components/loaders", s.ListLoaders)
		})
		r.Post("/retriever/query", s.Retrieve)
	})

	return r
}
