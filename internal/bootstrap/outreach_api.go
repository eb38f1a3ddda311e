package bootstrap

import (
	"strings"

	"outreach_server/adapter/in/http"
	"outreach_server/config"
	"outreach_server/infra/middleware"
	"outreach_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "outreach-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json: 표준 encoding/json 대비 2~3배 빠른 JSON 직렬화
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 2 * 1024 * 1024, // webhook payloads are small

		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS - AllowCredentials:true requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID,X-User-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400, // 24 hours
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	// Webhook handlers (no auth required - called by n8n/Mailgun)
	if deps.ReplyPipeline != nil {
		webhookHandler := http.NewWebhookHandler(
			deps.ReplyPipeline,
			deps.EmailSender,
			deps.ProspectRepo,
			deps.Redis,
		)
		webhookHandler.Register(app)
	} else {
		logger.Warn("Reply pipeline not available, webhook routes disabled")
	}

	// API routes (identity asserted upstream by the gateway)
	api := app.Group("/api/v1")
	api.Use(middleware.GatewayIdentity())

	statusHandler := http.NewStatusHandler(
		deps.WarmupService,
		deps.Limiter,
		deps.EmailQueue,
		deps.ReviewRepo,
	)
	statusHandler.Register(api)

	if deps.LinkedIn != nil {
		linkedInHandler := http.NewLinkedInHandler(deps.LinkedIn, deps.Limiter)
		linkedInHandler.Register(api)
	}

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}
