package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/config"
	"github.com/viola622/Flowise/internal/db"
	"github.com/viola622/Flowise/internal/db/redis"
	"github.com/viola622/Flowise/internal/db/sqldb"
	"github.com/viola622/Flowise/internal/domain"
	"github.com/viola622/Flowise/internal/metrics"
	"github.com/viola622/Flowise/internal/repository/chunkindex"
	docstorerepo "github.com/viola622/Flowise/internal/repository/docstore"
	"github.com/viola622/Flowise/internal/repository/embcache"
	"github.com/viola622/Flowise/internal/storage"
	"github.com/viola622/Flowise/internal/transport/meilisearch"
	"github.com/viola622/Flowise/internal/transport/ollama"
	openaiEmb "github.com/viola622/Flowise/internal/transport/openai"
	docstoreuc "github.com/viola622/Flowise/internal/usecase/docstore"
	embeddinguc "github.com/viola622/Flowise/internal/usecase/embedding"
	healthuc "github.com/viola622/Flowise/internal/usecase/health"
	"github.com/viola622/Flowise/internal/usecase/retrieval"
)

// app holds the wired services shared by the serve and retrieve commands.
type app struct {
	docs      *docstoreuc.Service
	retriever *retrieval.Service // nil when no search index is configured
	health    *healthuc.Service
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp opens the database, the embedding provider and the search index.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	repo, pinger, kv, err := a.openRepository(ctx, cfg.Database, cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	folders, err := storage.NewManager(cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	var cache embeddingCache
	if kv != nil {
		cache = embeddingCache{store: kv, prefix: cfg.Storage.KeyPrefix}
	}
	embedder, err := buildEmbedder(cfg.Embedding, cache, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.docs = docstoreuc.New(repo, folders)

	// Untyped nils keep the health probes skipped for absent dependencies.
	var embeddingChecker, indexChecker healthuc.Checker
	if hc, ok := embedder.(domain.HealthChecker); ok {
		embeddingChecker = hc
	}

	if cfg.Retriever.Enabled() {
		index, err := newIndexClient(cfg.Retriever.Host, cfg.Retriever.APIKey, cfg.Retriever, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		indexChecker = index

		opener := func(host, apiKey string) (retrieval.SearchIndex, error) {
			if host == cfg.Retriever.Host && apiKey == cfg.Retriever.APIKey {
				return index, nil
			}
			return newIndexClient(host, apiKey, cfg.Retriever, logger)
		}
		a.retriever, err = retrieval.New(retrieval.Config{
			Host:          cfg.Retriever.Host,
			APIKey:        cfg.Retriever.APIKey,
			IndexUID:      cfg.Retriever.IndexUID,
			TopK:          cfg.Retriever.TopK,
			SemanticRatio: cfg.Retriever.SemanticRatio,
			Embedder:      cfg.Retriever.Embedder,
			ContentField:  cfg.Retriever.ContentField,
			IDField:       cfg.Retriever.IDField,
		}, embedder, opener)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("retriever: %w", err)
		}

		if cfg.Retriever.SyncChunks {
			a.docs.WithIndexer(chunkindex.New(index, embedder, chunkindex.Config{
				IndexUID:     a.retriever.IndexUID(),
				Embedder:     orDefault(cfg.Retriever.Embedder, retrieval.DefaultEmbedder),
				ContentField: orDefault(cfg.Retriever.ContentField, retrieval.DefaultContentField),
				IDField:      orDefault(cfg.Retriever.IDField, retrieval.DefaultIDField),
			}))
		}
		logger.Info("Hybrid retriever enabled",
			zap.String("index", a.retriever.IndexUID()),
			zap.Int("top_k", a.retriever.TopK()),
			zap.Float64("semantic_ratio", a.retriever.SemanticRatio()),
			zap.Bool("sync_chunks", cfg.Retriever.SyncChunks),
		)
	} else {
		logger.Warn("No search index configured; retriever endpoint disabled")
	}

	a.health = healthuc.New(pinger, embeddingChecker, indexChecker)
	return a, nil
}

func (a *app) openRepository(
	ctx context.Context, dbCfg config.DatabaseConfig, stCfg config.StorageConfig, logger *zap.Logger,
) (docstoreuc.Repository, healthuc.DBPinger, *redis.Store, error) {
	timeout := time.Duration(dbCfg.ReadinessTimeout) * time.Second

	switch dbCfg.Driver {
	case config.DriverValkey:
		store, err := redis.NewStore(redis.Config{Addrs: dbCfg.Addrs, Password: dbCfg.Password})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("valkey: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return nil, nil, nil, fmt.Errorf("valkey: %w", err)
		}
		logger.Info("Connected to valkey", zap.Strings("addrs", dbCfg.Addrs))
		return docstorerepo.NewKV(store, stCfg.KeyPrefix), store, store, nil

	default:
		sqlDB, err := sqldb.Open(sqldb.Config{
			Driver:       dbCfg.Driver,
			Path:         dbCfg.Path,
			DSN:          dbCfg.DSN,
			MaxOpenConns: dbCfg.MaxOpenConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Closing database failed", zap.Error(err))
			}
		})
		if err := sqlDB.WaitForReady(ctx, timeout); err != nil {
			return nil, nil, nil, err
		}
		repo := docstorerepo.NewSQL(sqlDB)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Connected to database", zap.String("driver", sqlDB.Dialect().String()))
		return repo, sqlDB, nil, nil
	}
}

// embeddingCache selects the key/value store backing the embedding cache.
// A nil store disables caching.
type embeddingCache struct {
	store  db.HashStore
	prefix string
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction.
func buildEmbedder(cfg config.EmbeddingConfig, cache embeddingCache, logger *zap.Logger) (domain.Embedder, error) {
	var base domain.Embedder
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxBatch:   cfg.BatchSize,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
	default:
		emb, err := ollama.NewEmbedder(ollama.Config{
			ServerURL: cfg.BaseURL,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		base = emb
	}

	if cache.store != nil {
		base = embcache.New(base, cache.store, cache.prefix, cfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(base, cfg.Provider, cfg.Model)
	if cfg.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder, nil
}

func newIndexClient(host, apiKey string, cfg config.RetrieverConfig, logger *zap.Logger) (*meilisearch.Client, error) {
	c, err := meilisearch.NewClient(meilisearch.Config{
		Host:    host,
		APIKey:  apiKey,
		Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return c, nil
}

func registerMetrics() {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
