// Package compliancesvc provides the RegRAG compliance server implementation.
package compliancesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/biz"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/handler"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/loader"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/metrics"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/repo"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/router"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/store"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/pkg/component/database"
	"github.com/gregorizeidler-cw/RegRAG/pkg/component/milvus"
	"github.com/gregorizeidler-cw/RegRAG/pkg/component/redis"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/app"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/middleware"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/pool"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/server"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/tracing"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/gregorizeidler-cw/RegRAG/pkg/llm/gemini"
	_ "github.com/gregorizeidler-cw/RegRAG/pkg/llm/ollama"
	_ "github.com/gregorizeidler-cw/RegRAG/pkg/llm/openai"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm/resilience"
	cacheopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/cache"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
	dbopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/database"
	httpopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/http"
	llmopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/llm"
	logopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/logger"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
	milvusopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/milvus"
	pgvectoropts "github.com/gregorizeidler-cw/RegRAG/pkg/options/pgvector"
	poolopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/pool"
	storageopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/storage"
	tracingopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "regrag"

const (
	tracerName         = "regrag/compliance"
	healthCheckTimeout = 2 * time.Second
	embeddingKeyPrefix = "regrag:emb:"
)

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	MiddlewareOptions *mwopts.Options
	LogOptions        *logopts.Options
	ComplianceOptions *compopts.Options
	LLMOptions        *llmopts.Options
	DatabaseOptions   *dbopts.Options
	MilvusOptions     *milvusopts.Options
	PgVectorOptions   *pgvectoropts.Options
	CacheOptions      *cacheopts.Options
	StorageOptions    *storageopts.Options
	TracingOptions    *tracingopts.Options
	PoolOptions       *poolopts.Options
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Server represents the compliance server.
type Server struct {
	srv             *server.Manager
	closers         []closer
	shutdownTimeout time.Duration
}

func (s *Server) onClose(name string, fn func(ctx context.Context) error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// close 按注册的逆序释放资源。
func (s *Server) close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Warnw("failed to release resource", "resource", c.name, "error", err.Error())
		}
	}
	s.closers = nil
}

// NewServer initializes and returns a new Server instance.
// 任一步骤失败时，已经打开的连接会被释放。
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	// 1. 初始化日志
	if err := cfg.LogOptions.Init(Name, app.GetVersion()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting RegRAG compliance service...")

	s := &Server{shutdownTimeout: cfg.PoolOptions.ShutdownTimeout + cfg.HTTPOptions.ShutdownTimeout}
	defer func() {
		if err != nil {
			s.close(s.shutdownTimeout)
		}
	}()

	// 2. Tracing
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.onClose("tracing", tp.Shutdown)
	logger.Infow("Tracing initialized", "enabled", tp.Enabled())

	// 3. 分类表
	tax, err := cfg.loadTaxonomy()
	if err != nil {
		return nil, err
	}

	// 4. 文档元数据库
	db, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	s.onClose("database", func(context.Context) error { return database.Close(db) })
	documents := repo.NewDocumentRepository(db)
	if cfg.DatabaseOptions.AutoMigrate {
		if err := documents.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	logger.Infow("Document repository initialized", "driver", cfg.DatabaseOptions.Driver)

	// 5. 向量库
	vectorStore, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	s.onClose("vector_store", vectorStore.Close)

	// 6. Redis（查询缓存 + embedding 缓存）
	rdb := cfg.newRedis(ctx)
	if rdb != nil {
		s.onClose("redis", func(context.Context) error { return rdb.Close() })
	}
	var queryCache *biz.QueryCache
	if rdb != nil && cfg.CacheOptions.Enabled {
		queryCache = biz.NewQueryCache(rdb, &biz.QueryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
		})
	}

	// 7. LLM 供应商
	embedder, chat, err := cfg.newProviders(rdb)
	if err != nil {
		return nil, err
	}

	// 8. 文档加载器
	loaders := &loader.Mux{File: loader.NewFileLoader()}
	if cfg.StorageOptions.Enabled {
		if loaders.S3, err = loader.NewS3Loader(ctx, cfg.StorageOptions); err != nil {
			return nil, errors.ErrConfiguration.WithCause(err)
		}
		logger.Infow("S3 loader initialized", "region", cfg.StorageOptions.Region)
	}

	// 9. Worker 池
	pools := pool.NewManager()
	s.onClose("pools", func(context.Context) error {
		pools.Shutdown(cfg.PoolOptions.ShutdownTimeout)
		return nil
	})
	ingestPool, err := pools.Register(pool.IngestPool, cfg.poolConfig(cfg.ComplianceOptions.IngestWorkers))
	if err != nil {
		return nil, err
	}
	indexPool, err := pools.Register(pool.IndexPool, cfg.poolConfig(cfg.ComplianceOptions.Indexer.MaxConcurrency))
	if err != nil {
		return nil, err
	}

	// 10. Biz 层
	svc, err := biz.NewService(biz.Deps{
		Taxonomy:   tax,
		Store:      vectorStore,
		Embedder:   embedder,
		Chat:       chat,
		Documents:  documents,
		Loaders:    loaders,
		Cache:      queryCache,
		Metrics:    metrics.New(),
		IngestPool: ingestPool,
		IndexPool:  indexPool,
		Tracer:     tp.Tracer(tracerName),
	}, cfg.ComplianceOptions)
	if err != nil {
		return nil, err
	}
	logger.Infow("Compliance service initialized",
		"vector_store", cfg.ComplianceOptions.VectorStore,
		"embedding.provider", embedder.Name(),
		"chat.provider", chat.Name(),
		"cache.enabled", queryCache.Enabled(),
	)

	// 11. HTTP 服务与路由
	s.srv = server.NewManager(
		server.WithHTTPOptions(cfg.HTTPOptions),
		server.WithMiddleware(cfg.MiddlewareOptions),
		server.WithShutdownTimeout(cfg.HTTPOptions.ShutdownTimeout),
	)
	if tp.Enabled() {
		s.srv.HTTPServer().Engine().Use(middleware.Tracing(tp.Tracer(tracerName)))
	}
	// HTTP 停止后再排空摄取与索引任务
	s.srv.AddServer(&poolRunner{pools: pools, timeout: cfg.PoolOptions.ShutdownTimeout})
	if err := router.Register(s.srv, handler.NewComplianceHandler(svc), cfg.HTTPOptions.Swagger); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}
	registerHealthCheckers(s.srv.HTTPServer().Health(), db, vectorStore, rdb)

	logger.Info("RegRAG compliance service is ready")
	return s, nil
}

// poolRunner 让 worker 池参与 server.Manager 的生命周期。
type poolRunner struct {
	pools   *pool.Manager
	timeout time.Duration
}

func (r *poolRunner) Name() string { return "worker-pools" }

func (r *poolRunner) Start(context.Context) error { return nil }

func (r *poolRunner) Stop(context.Context) error {
	r.pools.Shutdown(r.timeout)
	return nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.close(s.shutdownTimeout)
	return s.srv.Run(ctx)
}

func (cfg *Config) loadTaxonomy() (*taxonomy.Taxonomy, error) {
	tax := taxonomy.Default()
	if path := cfg.ComplianceOptions.TaxonomyFile; path != "" {
		loaded, err := taxonomy.Load(path)
		if err != nil {
			return nil, errors.ErrTaxonomyMissing.WithCause(err)
		}
		tax = loaded
		logger.Infow("Taxonomy loaded", "path", path)
	}

	eras, err := compopts.ParseEras(cfg.ComplianceOptions.Analyzer.Eras)
	if err != nil {
		return nil, errors.ErrConfiguration.WithCause(err)
	}
	if len(eras) > 0 {
		tax = tax.WithEras(eras)
	}
	return tax, nil
}

func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, error) {
	dim := cfg.ComplianceOptions.EmbeddingDim

	switch cfg.ComplianceOptions.VectorStore {
	case compopts.StoreMilvus:
		client, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, errors.ErrConfiguration.WithCause(err)
		}
		vs, err := store.NewMilvusStore(ctx, client, cfg.MilvusOptions.Collection, dim)
		if err != nil {
			_ = client.Close(ctx)
			return nil, errors.ErrConfiguration.WithCause(err)
		}
		logger.Infow("Milvus vector store initialized",
			"address", cfg.MilvusOptions.Address,
			"collection", cfg.MilvusOptions.Collection,
		)
		return vs, nil

	case compopts.StorePgVector:
		if err := cfg.PgVectorOptions.Complete(); err != nil {
			return nil, err
		}
		if cfg.PgVectorOptions.DSN == "" {
			return nil, errors.ErrConfiguration.WithMessage("pgvector.dsn or PGVECTOR_DSN is required for the pgvector store")
		}
		pc, err := pgxpool.ParseConfig(cfg.PgVectorOptions.DSN)
		if err != nil {
			return nil, errors.ErrConfiguration.WithCause(err)
		}
		pc.MaxConns = cfg.PgVectorOptions.MaxConns
		pgPool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, errors.ErrConfiguration.WithCause(err)
		}
		vs, err := store.NewPgVectorStore(ctx, pgPool, cfg.PgVectorOptions.Table, dim)
		if err != nil {
			pgPool.Close()
			return nil, errors.ErrConfiguration.WithCause(err)
		}
		logger.Infow("pgvector store initialized", "table", cfg.PgVectorOptions.Table)
		return vs, nil

	default:
		logger.Warn("Using in-memory vector store, indexed chunks are lost on restart")
		return store.NewMemoryStore(dim), nil
	}
}

// newRedis 连接失败时只告警，缓存随之关闭。
func (cfg *Config) newRedis(ctx context.Context) *goredis.Client {
	if !cfg.CacheOptions.Active() {
		logger.Info("Cache is disabled")
		return nil
	}
	rdb, err := redis.New(ctx, cfg.CacheOptions.Redis)
	if err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		return nil
	}
	return rdb
}

func (cfg *Config) newProviders(rdb *goredis.Client) (llm.EmbeddingProvider, llm.ChatProvider, error) {
	r := cfg.LLMOptions.Resilience
	retry := &resilience.RetryConfig{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   2.0,
		Retryable:    resilience.IsRetryableError,
	}
	breaker := &resilience.BreakerConfig{
		MaxFailures:      r.BreakerFailures,
		OpenTimeout:      r.BreakerOpenAfter,
		HalfOpenMaxCalls: 1,
	}

	embOpts := cfg.LLMOptions.Embedding
	embRaw, err := llm.NewProvider(embOpts.Provider, embOpts.ToConfigMap())
	if err != nil {
		return nil, nil, errors.ErrConfiguration.WithCause(err)
	}
	var embedder llm.EmbeddingProvider = resilience.Wrap(embRaw, retry, breaker)
	if rdb != nil && cfg.CacheOptions.EmbeddingEnabled {
		embedder = llm.NewCachedEmbeddingProvider(embedder, rdb, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.EmbeddingTTL,
			KeyPrefix: embeddingKeyPrefix,
		})
	}
	logger.Infow("Embedding provider initialized",
		"provider", embOpts.Provider,
		"model", embOpts.Model,
		"cached", rdb != nil && cfg.CacheOptions.EmbeddingEnabled,
	)

	chatOpts := cfg.LLMOptions.Chat
	chatRaw, err := llm.NewProvider(chatOpts.Provider, chatOpts.ToConfigMap())
	if err != nil {
		return nil, nil, errors.ErrConfiguration.WithCause(err)
	}
	logger.Infow("Chat provider initialized",
		"provider", chatOpts.Provider,
		"model", chatOpts.Model,
	)
	return embedder, resilience.Wrap(chatRaw, retry, breaker), nil
}

func (cfg *Config) poolConfig(capacity int) *pool.Config {
	c := pool.DefaultConfig(capacity)
	c.ExpiryDuration = cfg.PoolOptions.ExpiryDuration
	c.PreAlloc = cfg.PoolOptions.PreAlloc
	c.Nonblocking = cfg.PoolOptions.Nonblocking
	c.MaxBlockingTasks = cfg.PoolOptions.MaxBlockingTasks
	return c
}

func registerHealthCheckers(h *middleware.HealthManager, db *gorm.DB, vs store.VectorStore, rdb *goredis.Client) {
	h.RegisterChecker("database", func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return sqlDB.PingContext(ctx)
	})
	h.RegisterChecker("vector_store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		_, err := vs.Count(ctx)
		return err
	})
	if rdb != nil {
		h.RegisterChecker("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()
			return rdb.Ping(ctx).Err()
		})
	}
}
