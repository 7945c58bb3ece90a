// Package bootstrap wires configuration, infrastructure, and services into
// a runnable application.
package bootstrap

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"ingest_server/adapter/out/persistence"
	"ingest_server/adapter/out/provider"
	"ingest_server/adapter/out/search"
	"ingest_server/config"
	"ingest_server/core/port/out"
	"ingest_server/core/service/ingest"
	"ingest_server/core/service/mailsync"
	searchsvc "ingest_server/core/service/search"
	"ingest_server/core/service/session"
	"ingest_server/infra/database"
	"ingest_server/pkg/lock"
	"ingest_server/pkg/logger"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	EmailRepo     out.EmailRepository
	SyncStateRepo out.SyncStateRepository
	SessionRepo   out.SessionRepository

	// Search projection
	ChunkIndex out.SearchIndex
	Embedder   out.Embedder
	Indexer    *searchsvc.Indexer

	// Providers
	GmailProvider   *provider.GmailAdapter
	OutlookProvider *provider.OutlookAdapter

	// Services
	IngestService      *ingest.IngestService
	SessionService     *session.SessionService
	GmailSyncService   *mailsync.SyncService
	OutlookSyncService *mailsync.SyncService
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the row-mapping adapters)
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })

	// MongoDB (search index)
	mongoClient, err := search.NewClient(cfg.MongoDBURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	})

	// Repositories
	deps.EmailRepo = persistence.NewEmailAdapter(sqlDB)
	deps.SyncStateRepo = persistence.NewSyncStateAdapter(sqlDB)
	deps.SessionRepo = persistence.NewSessionAdapter(sqlDB)

	// Search projection
	chunkIndex := search.NewChunkIndexAdapter(mongoClient.Database(cfg.MongoDBName))
	deps.ChunkIndex = chunkIndex
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := chunkIndex.EnsureIndex(ctx); err != nil {
			logger.Warn("Chunk index creation failed: %v", err)
		}
		cancel()
	}

	deps.Embedder = search.NewEmbeddingAdapter(&search.EmbeddingConfig{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDims,
		Timeout:    cfg.EmbeddingTimeout,
	})
	deps.Indexer = searchsvc.NewIndexer(deps.ChunkIndex, deps.Embedder, cfg.EmbeddingChunkSize)

	// Providers
	deps.GmailProvider = provider.NewGmailAdapter(&provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		PageSize:     cfg.GmailPageSize,
	})
	deps.OutlookProvider = provider.NewOutlookAdapter(&provider.OutlookConfig{
		ClientID:     cfg.MicrosoftClientID,
		ClientSecret: cfg.MicrosoftClientSecret,
		TenantID:     cfg.MicrosoftTenantID,
		PageSize:     cfg.OutlookPageSize,
	})

	// Services
	deps.IngestService = ingest.NewIngestService(deps.EmailRepo, deps.Indexer)
	deps.SessionService = session.NewSessionService(deps.SessionRepo, deps.IngestService)

	locker := lock.NewRedisLocker(redisClient, cfg.SyncLockTTL)
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "mailsync").Logger()

	deps.GmailSyncService = mailsync.NewSyncService(
		deps.GmailProvider, deps.SyncStateRepo, deps.IngestService, locker, zlog)
	deps.OutlookSyncService = mailsync.NewSyncService(
		deps.OutlookProvider, deps.SyncStateRepo, deps.IngestService, locker, zlog)

	return deps, cleanup, nil
}
