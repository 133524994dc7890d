package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragline/internal/config"
	"github.com/cloo-solutions/ragline/internal/database"
	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/embedding"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/cloo-solutions/ragline/internal/ollama"
	"github.com/cloo-solutions/ragline/internal/openai"
	"github.com/cloo-solutions/ragline/internal/queue"
	"github.com/cloo-solutions/ragline/internal/ratelimit"
	"github.com/cloo-solutions/ragline/internal/repository"
	"github.com/cloo-solutions/ragline/internal/service"
	"github.com/cloo-solutions/ragline/internal/storage"
	"github.com/cloo-solutions/ragline/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// app holds everything the daemon commands share.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	pool      *pgxpool.Pool
	redis     *goredis.Client
	queue     queue.Queue
	limiter   *ratelimit.Limiter
	indexer   *service.IndexService
	retrieval *service.RetrievalService

	closers []func()
}

// newApp loads configuration and connects every backing service. The caller
// must call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Sync)

	if cfg.SentryDSN != "" {
		// 10% of traces in production, all of them elsewhere.
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			a.closers = append(a.closers, shutdownTelemetry)
		}
	}

	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	cfg := a.cfg

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	a.log.Info("connected to database")

	if cfg.HasRedis() {
		rdb, err := queue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		a.redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.limiter = ratelimit.NewLimiter(rdb, cfg.RateLimitPerMinute, ratelimit.DefaultWindow)
		a.log.Info("connected to redis")
	}

	switch strings.ToLower(cfg.QueueBackend) {
	case "redis":
		a.queue = queue.NewRedisQueue(a.redis, "", queue.WithRedisLogger(a.log.With("component", "queue")))
	default:
		a.queue = queue.NewPostgresQueue(repository.NewIndexJobRepository(pool))
	}

	objects, err := a.objectStore(ctx)
	if err != nil {
		return err
	}

	gateway := embedding.NewGateway(a.embeddingProvider(), embedding.Config{
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDim,
		Timeout:    cfg.ExternalTimeout,
	})

	a.indexer = service.NewIndexService(
		repository.NewFileRepository(pool),
		repository.NewTxRunner(pool),
		objects,
		gateway,
		service.WithIndexQueue(a.queue),
		service.WithIndexLogger(a.log.With("component", "indexer")),
	)

	search := service.NewSearchService(repository.NewSearchRepository(pool, gateway.Model()))
	a.retrieval = service.NewRetrievalService(
		gateway,
		search,
		a.generator(),
		service.WithRunRecorder(repository.NewRunRepository(pool)),
		service.WithGenerationModel(cfg.GenerationModel),
		service.WithRetrievalLogger(a.log.With("component", "retrieval")),
	)

	return nil
}

func (a *app) objectStore(ctx context.Context) (service.ObjectFetcher, error) {
	cfg := a.cfg
	if !cfg.HasS3() {
		a.log.Warn("object storage not configured, indexing will fail until RAGLINE_S3_ENDPOINT is set")
		return unconfiguredStorage{}, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
		MaxObjectSize:   cfg.MaxObjectSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	a.log.Info("S3 bucket ready", "bucket", cfg.S3Bucket)
	return s3Client, nil
}

func (a *app) embeddingProvider() embedding.Provider {
	cfg := a.cfg
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey)
	case "hash":
		return embedding.NewHashProvider(cfg.EmbeddingDim)
	default:
		return embedding.NewHTTPProvider(cfg.EmbeddingEndpoint, cfg.ExternalTimeout)
	}
}

func (a *app) generator() service.Generator {
	cfg := a.cfg
	if strings.ToLower(cfg.GenerationProvider) == "openai" {
		return openai.NewClientWithConfig(openai.Config{APIKey: cfg.OpenAIAPIKey, ChatModel: cfg.GenerationModel})
	}
	return ollama.NewClient(ollama.Config{
		Host:    cfg.OllamaHost,
		Model:   cfg.GenerationModel,
		Timeout: cfg.ExternalTimeout,
	})
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type unconfiguredStorage struct{}

func (unconfiguredStorage) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, domain.ErrStorageNotEnabled
}
