package bootstrap

import (
	"os"

	"outreach_server/adapter/in/worker"
	"outreach_server/config"
	"outreach_server/core/port/out"
	"outreach_server/pkg/logger"

	"github.com/rs/zerolog"
)

// NewWorker wires the background send worker that drains the priority email
// queues within each user's daily budget.
func NewWorker(cfg *config.Config) (*worker.SendWorker, func(), error) {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "outreach-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize worker dependencies")
		return nil, nil, err
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().
		Timestamp().
		Str("worker_id", cfg.WorkerID).
		Logger()

	workerCfg := &worker.SendWorkerConfig{
		Workers:        cfg.SendWorkerCount,
		BatchSize:      cfg.SendBatchSize,
		WorkerChanSize: cfg.SendBatchSize * 4,
		PollInterval:   cfg.SendPollInterval,
		AttemptTimeout: cfg.SendAttemptTimeout,
		DefaultFrom:    cfg.FromAddress(),
		Credentials: out.EmailCredentials{
			Domain: cfg.MailgunDomain,
			APIKey: cfg.MailgunAPIKey,
		},
	}

	sendWorker := worker.NewSendWorker(
		deps.EmailQueue,
		deps.WarmupService,
		deps.Limiter,
		deps.ProspectRepo,
		deps.ConvoRepo,
		deps.EmailSender,
		workerCfg,
		zlog,
	)

	return sendWorker, cleanup, nil
}
