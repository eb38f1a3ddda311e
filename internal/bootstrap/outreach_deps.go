package bootstrap

import (
	"context"
	"strings"
	"time"

	"outreach_server/adapter/out/mongodb"
	"outreach_server/adapter/out/persistence"
	"outreach_server/adapter/out/provider"
	"outreach_server/adapter/out/redisstore"
	"outreach_server/config"
	"outreach_server/core/agent/llm"
	"outreach_server/core/port/out"
	"outreach_server/core/service/outreach"
	"outreach_server/core/service/qualification"
	"outreach_server/core/service/queue"
	"outreach_server/core/service/ratelimit"
	"outreach_server/core/service/warmup"
	"outreach_server/infra/database"
	"outreach_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Stores
	RedisStore *redisstore.Store

	// Repositories
	ProspectRepo out.ProspectRepository
	ReviewRepo   out.ReviewQueueRepository
	WarmupRepo   out.WarmupRepository
	ConvoRepo    out.ConversationLogRepository

	// Providers
	LinkedIn    out.LinkedInPort
	EmailSender out.EmailSenderPort
	LLMClient   *llm.Client

	// Services
	EmailQueue    *queue.EmailQueue
	Limiter       *ratelimit.DailyLimiter
	WarmupService *warmup.Service
	Engine        *qualification.Engine
	ReplyPipeline *outreach.ReplyPipeline
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

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
		logger.Error("sqlx connection failed: %v", err)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)

		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })
	}

	// Redis: queue, counters and webhook idempotency. A missing Redis keeps
	// the API up with the limiter failing open and the queue disabled.
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed: %v", err)
	} else {
		deps.Redis = redisClient
		deps.RedisStore = redisstore.NewStore(redisClient)
		cleanups = append(cleanups, func() { redisClient.Close() })
	}

	// MongoDB: conversation thread history
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			convoAdapter := mongodb.NewConversationLogAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := convoAdapter.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure conversation log indexes: %v", err)
			}
			deps.ConvoRepo = convoAdapter
		}
	}

	// Repositories
	if deps.SQLDB != nil {
		deps.ProspectRepo = persistence.NewProspectAdapter(deps.SQLDB)
		deps.ReviewRepo = persistence.NewReviewQueueAdapter(deps.SQLDB)
		deps.WarmupRepo = persistence.NewWarmupAdapter(deps.SQLDB)
	}

	// UniPile (LinkedIn automation)
	if cfg.UniPileAPIKey != "" && cfg.UniPileAccountID != "" {
		unipile, err := provider.NewUniPileAdapter(&provider.UniPileConfig{
			BaseURL:   cfg.UniPileBaseURL,
			APIKey:    cfg.UniPileAPIKey,
			AccountID: cfg.UniPileAccountID,
		})
		if err != nil {
			logger.Warn("UniPile adapter init failed: %v", err)
		} else {
			deps.LinkedIn = unipile
		}
	} else {
		logger.Warn("UniPile credentials not configured, LinkedIn actions disabled")
	}

	// Mailgun
	deps.EmailSender = provider.NewMailgunAdapter(cfg.MailgunBaseURL)

	// LLM
	if cfg.OpenAIAPIKey != "" {
		deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		deps.Engine = qualification.NewEngine(deps.LLMClient)
	} else {
		logger.Warn("OPENAI_API_KEY not configured, qualification disabled")
	}

	// Services
	if deps.RedisStore != nil {
		deps.EmailQueue = queue.NewEmailQueueWithRegistry(deps.RedisStore, deps.RedisStore)
		deps.Limiter = ratelimit.NewDailyLimiter(deps.RedisStore, cfg.DailyActionLimit)
	} else {
		deps.EmailQueue = queue.NewEmailQueue(nil)
		deps.Limiter = ratelimit.NewDailyLimiter(nil, cfg.DailyActionLimit)
	}
	deps.WarmupService = warmup.NewService(deps.WarmupRepo)

	if deps.Engine != nil && deps.ProspectRepo != nil {
		deps.ReplyPipeline = outreach.NewReplyPipeline(
			deps.ProspectRepo,
			deps.ReviewRepo,
			deps.ConvoRepo,
			deps.LinkedIn,
			deps.Engine,
			deps.EmailQueue,
			deps.Limiter,
			deps.WarmupService,
			cfg.FromAddress(),
		)
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	logger.Info("Dependencies initialized")
	return deps, cleanup, nil
}
