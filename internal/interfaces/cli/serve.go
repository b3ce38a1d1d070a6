package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadlantech/appraisal-engine/internal/application/appraisal"
	"github.com/nadlantech/appraisal-engine/internal/config"
	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/database/postgres"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/database/redis"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/messaging/kafka"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/search/opensearch"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/storage/minio"
	httpserver "github.com/nadlantech/appraisal-engine/internal/interfaces/http"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/handlers"
	"github.com/nadlantech/appraisal-engine/internal/interfaces/http/middleware"
)

// newServeCmd creates the API server command.
func newServeCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the appraisal API server",
		Long:  "Start the HTTP API server with all infrastructure attached: PostgreSQL\ntransaction and audit stores, Redis valuation cache, Kafka event\npublishing, OpenSearch transaction indexing, and MinIO report archival.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg, cfgPath, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg.Log, opts.LogLevel)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting appraisal engine",
		logging.String("version", Version),
		logging.Int("port", cfg.Server.Port),
	)

	if cfgPath != "" {
		config.Watch(cfgPath, func(newCfg *config.Config) {
			applyConfigReload(logger, newCfg)
		})
	}

	// ── Persistence ──────────────────────────────────────────────────────────
	dbURL := postgres.BuildDSN(cfg.Database)
	if err := postgres.RunMigrations(dbURL, "file://"+cfg.Database.MigrationPath); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	txRepo := repositories.NewTransactionRepository(conn.Pool(), logger)
	auditRepo := repositories.NewAuditRepository(conn.Pool(), logger)

	// ── Cache and messaging ──────────────────────────────────────────────────
	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, logger,
		redis.WithPrefix(cfg.Redis.KeyPrefix),
		redis.WithDefaultTTL(cfg.Redis.DefaultTTL),
	)

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	// ── Search ───────────────────────────────────────────────────────────────
	// The OpenSearch mirror is optional at startup: the engine serves
	// valuations from PostgreSQL alone when the cluster is unreachable.
	var store appraisal.TransactionStore = txRepo
	checkers := []handlers.HealthChecker{
		handlers.CheckerFunc{ComponentName: "postgres", Fn: conn.HealthCheck},
		handlers.CheckerFunc{ComponentName: "redis", Fn: redisClient.Ping},
	}
	osClient, err := opensearch.NewClient(cfg.OpenSearch, logger)
	if err != nil {
		logger.Warn("opensearch unavailable, transaction indexing disabled", logging.Err(err))
	} else {
		index := opensearch.NewTransactionIndex(osClient, cfg.OpenSearch.IndexPrefix, logger)
		if err := index.EnsureIndex(ctx); err != nil {
			logger.Warn("failed to ensure transaction index", logging.Err(err))
		}
		store = &indexedStore{store: txRepo, index: index, logger: logger}
		checkers = append(checkers, handlers.CheckerFunc{ComponentName: "opensearch", Fn: osClient.Ping})
	}

	// ── Report archive ───────────────────────────────────────────────────────
	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		return err
	}
	reportStore := minio.NewReportStore(minioClient, cfg.MinIO.PresignExpiry, logger)

	// ── Application ──────────────────────────────────────────────────────────
	metrics := prometheus.NewMetrics("appraisal")
	svc := appraisal.NewService(appraisal.Options{
		Config:    cfg.Valuation,
		Store:     store,
		Audit:     auditRepo,
		Cache:     cache,
		Publisher: producer,
		Archive:   reportStore,
		Metrics:   metrics,
		Logger:    logger.Named("appraisal"),
	})

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ValuationHandler: handlers.NewValuationHandler(svc),
		ReportHandler:    handlers.NewReportHandler(svc),
		HealthHandler:    handlers.NewHealthHandler(Version, checkers...),
		CORS:             corsFromConfig(cfg.Server.CORS),
		Logger:           logger.Named("http"),
		Metrics:          metrics,
		Mode:             cfg.Server.Mode,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger.Named("http"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return srv.Shutdown(context.Background())
}

// applyConfigReload applies the reloadable subset of a changed config file.
// Only the log level takes effect without a restart; everything else is
// captured by running components at construction.
func applyConfigReload(logger logging.Logger, cfg *config.Config) {
	if ls, ok := logger.(logging.LevelSetter); ok {
		ls.SetLevel(cfg.Log.Level)
	}
	logger.Info("configuration reloaded", logging.String("log_level", cfg.Log.Level))
}

// corsFromConfig maps the server CORS section onto the middleware config.
// Returns nil when disabled so the router skips the middleware entirely;
// unset list fields keep the middleware defaults.
func corsFromConfig(cfg config.CORSConfig) *middleware.CORSConfig {
	if !cfg.Enabled {
		return nil
	}
	out := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		out.AllowedOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		out.AllowedMethods = cfg.AllowedMethods
	}
	if len(cfg.AllowedHeaders) > 0 {
		out.AllowedHeaders = cfg.AllowedHeaders
	}
	if len(cfg.ExposedHeaders) > 0 {
		out.ExposedHeaders = cfg.ExposedHeaders
	}
	out.AllowCredentials = cfg.AllowCredentials
	if cfg.MaxAgeSeconds > 0 {
		out.MaxAge = cfg.MaxAgeSeconds
	}
	return &out
}

// transactionSearcher is the slice of the OpenSearch transaction index the
// store decorator uses.
type transactionSearcher interface {
	SearchPool(ctx context.Context, q opensearch.PoolQuery) ([]property.FeaturePayload, error)
	Index(ctx context.Context, p property.FeaturePayload) error
}

// indexedStore layers the OpenSearch transaction index over the SQL store:
// pool reads go to the index first, which honours the geo radius, and
// accepted writes are mirrored into it. Index failures never fail either
// path; PostgreSQL remains the source of truth.
type indexedStore struct {
	store  appraisal.TransactionStore
	index  transactionSearcher
	logger logging.Logger
}

func (s *indexedStore) FetchPool(ctx context.Context, filter repositories.PoolFilter) ([]property.FeaturePayload, error) {
	pool, err := s.index.SearchPool(ctx, opensearch.PoolQuery{
		City:         filter.City,
		Type:         filter.Type,
		MinSaleDate:  filter.MinSaleDate,
		CenterLat:    filter.CenterLat,
		CenterLng:    filter.CenterLng,
		RadiusMeters: filter.RadiusMeters,
		Limit:        filter.Limit,
	})
	if err != nil {
		s.logger.Warn("pool search failed, falling back to database", logging.Err(err))
	} else if len(pool) > 0 {
		return pool, nil
	}
	return s.store.FetchPool(ctx, filter)
}

func (s *indexedStore) SaveBatch(ctx context.Context, payloads []property.FeaturePayload) (int, error) {
	written, err := s.store.SaveBatch(ctx, payloads)
	if err != nil {
		return written, err
	}
	for _, p := range payloads {
		if err := s.index.Index(ctx, p); err != nil {
			s.logger.Warn("failed to index transaction",
				logging.String("id", p.ID),
				logging.Err(err),
			)
		}
	}
	return written, nil
}
