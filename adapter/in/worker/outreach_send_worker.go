// Package worker drains the priority email queues in the background and hands
// each item to the email provider, consuming the owner's daily send quota at
// actual send time.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/core/service/outreach"
	"outreach_server/core/service/queue"
	"outreach_server/core/service/ratelimit"
	"outreach_server/core/service/warmup"
	"outreach_server/pkg/apperr"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SendWorkerConfig holds send worker configuration.
type SendWorkerConfig struct {
	Workers        int           // 동시 전송 워커 수
	BatchSize      int           // 유저당 1회 드레인 최대 개수
	WorkerChanSize int           // 워커 채널 버퍼 크기
	PollInterval   time.Duration // 큐 폴링 간격
	AttemptTimeout time.Duration // 1회 전송 타임아웃
	DefaultFrom    string        // 아이템에 발신 주소가 없을 때의 기본값
	Credentials    out.EmailCredentials
}

// DefaultSendWorkerConfig returns default send worker configuration.
func DefaultSendWorkerConfig() *SendWorkerConfig {
	return &SendWorkerConfig{
		Workers:        4,
		BatchSize:      5,
		WorkerChanSize: 20,
		PollInterval:   15 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// SendMetrics holds send worker metrics.
type SendMetrics struct {
	Sent     int64
	Failed   int64
	Requeued int64
	Deferred int64
}

type sendTask struct {
	item domain.EmailQueueItem
}

// sendTaskWorker implements pool.Worker for queued email sends.
type sendTaskWorker struct {
	w *SendWorker
}

// Do implements pool.Worker interface.
func (s *sendTaskWorker) Do(ctx context.Context, task *sendTask) error {
	return s.w.processSend(ctx, task)
}

// SendWorker polls the active-user registry, dequeues each user's pending
// emails up to their remaining daily budget, and dispatches them through a
// go-pkgz/pool worker group.
type SendWorker struct {
	queue   *queue.EmailQueue
	warmup  *warmup.Service
	limiter *ratelimit.DailyLimiter

	prospects out.ProspectRepository
	convos    out.ConversationLogRepository
	sender    out.EmailSenderPort

	cfg *SendWorkerConfig

	pool   *pool.WorkerGroup[*sendTask]
	ctx    context.Context
	cancel context.CancelFunc

	metrics *SendMetrics
	log     zerolog.Logger

	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewSendWorker creates a send worker. Credentials are shared service-level
// provider credentials; per-item From addresses come from the queue items.
func NewSendWorker(
	emailQueue *queue.EmailQueue,
	warmupSvc *warmup.Service,
	limiter *ratelimit.DailyLimiter,
	prospects out.ProspectRepository,
	convos out.ConversationLogRepository,
	sender out.EmailSenderPort,
	cfg *SendWorkerConfig,
	log zerolog.Logger,
) *SendWorker {
	if cfg == nil {
		cfg = DefaultSendWorkerConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SendWorker{
		queue:     emailQueue,
		warmup:    warmupSvc,
		limiter:   limiter,
		prospects: prospects,
		convos:    convos,
		sender:    sender,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &SendMetrics{},
		log:       log.With().Str("component", "send_worker").Logger(),
	}
}

// Start starts the worker pool and the polling loop.
func (w *SendWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}

	w.pool = pool.New[*sendTask](w.cfg.Workers, &sendTaskWorker{w: w}).
		WithBatchSize(w.cfg.BatchSize).
		WithWorkerChanSize(w.cfg.WorkerChanSize).
		WithContinueOnError()

	if err := w.pool.Go(w.ctx); err != nil {
		w.log.Error().Err(err).Msg("failed to start send pool")
		return
	}

	w.started = true

	w.wg.Add(1)
	go w.pollLoop()

	w.log.Info().
		Int("workers", w.cfg.Workers).
		Int("batch_size", w.cfg.BatchSize).
		Dur("poll_interval", w.cfg.PollInterval).
		Msg("send worker started")
}

// Stop gracefully stops the worker: in-flight sends finish, queued items stay
// in Redis for the next run.
func (w *SendWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	w.log.Info().Msg("stopping send worker...")

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	if err := w.pool.Close(closeCtx); err != nil {
		w.log.Warn().Err(err).Msg("error closing send pool")
	}

	w.cancel()
	w.wg.Wait()

	w.log.Info().
		Int64("sent", atomic.LoadInt64(&w.metrics.Sent)).
		Int64("failed", atomic.LoadInt64(&w.metrics.Failed)).
		Int64("requeued", atomic.LoadInt64(&w.metrics.Requeued)).
		Msg("send worker stopped")
}

// GetMetrics returns current send metrics.
func (w *SendWorker) GetMetrics() SendMetrics {
	return SendMetrics{
		Sent:     atomic.LoadInt64(&w.metrics.Sent),
		Failed:   atomic.LoadInt64(&w.metrics.Failed),
		Requeued: atomic.LoadInt64(&w.metrics.Requeued),
		Deferred: atomic.LoadInt64(&w.metrics.Deferred),
	}
}

func (w *SendWorker) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.drainOnce(w.ctx)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(w.ctx)
		}
	}
}

// drainOnce walks every user with pending sends and submits what their
// remaining daily budget allows.
func (w *SendWorker) drainOnce(ctx context.Context) {
	users, err := w.queue.ActiveUsers(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("active user lookup failed")
		return
	}

	for _, userID := range users {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.drainUser(ctx, userID)
	}
}

func (w *SendWorker) drainUser(ctx context.Context, userID uuid.UUID) {
	budget := w.sendBudget(ctx, userID)
	if budget <= 0 {
		atomic.AddInt64(&w.metrics.Deferred, 1)
		w.log.Debug().Str("user_id", userID.String()).Msg("daily budget exhausted, deferring queue")
		return
	}
	if budget > w.cfg.BatchSize {
		budget = w.cfg.BatchSize
	}

	items, err := w.queue.Dequeue(ctx, userID, budget)
	if err != nil {
		w.log.Warn().Err(err).Str("user_id", userID.String()).Msg("dequeue failed")
		return
	}
	if len(items) == 0 {
		w.queue.Deregister(ctx, userID)
		return
	}

	for i := range items {
		w.pool.Submit(&sendTask{item: items[i]})
	}
}

// sendBudget is how many more emails the user may send today: the warm-up
// phase limit (or the configured limit once warmed up) minus today's usage.
func (w *SendWorker) sendBudget(ctx context.Context, userID uuid.UUID) int {
	limit := w.effectiveLimit(ctx, userID)

	usage, err := w.limiter.Usage(ctx, userID, outreach.ResourceEmail)
	if err != nil {
		w.log.Warn().Err(err).Str("user_id", userID.String()).Msg("usage lookup failed, allowing")
		return limit
	}

	return limit - usage.Used
}

func (w *SendWorker) effectiveLimit(ctx context.Context, userID uuid.UUID) int {
	phase, err := w.warmup.DailyLimit(ctx, userID)
	if err != nil {
		// Unknown warm-up state: assume the conservative warm-up cap.
		w.log.Warn().Err(err).Str("user_id", userID.String()).Msg("warmup lookup failed")
		phase = domain.WarmupDailyLimit
	}
	if configured := w.limiter.Limit(); configured < phase {
		return configured
	}
	return phase
}

// processSend delivers one queue item. Quota is consumed here, not at enqueue
// time, so items deferred across midnight draw from the new day's budget.
func (w *SendWorker) processSend(ctx context.Context, task *sendTask) error {
	item := task.item

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
	defer cancel()

	verdict := w.limiter.Allow(sendCtx, item.UserID, outreach.ResourceEmail)
	if !verdict.Allowed || verdict.Used > w.effectiveLimit(sendCtx, item.UserID) {
		// Lost the race against another drain cycle. Back of the class, not lost.
		w.requeue(sendCtx, item)
		atomic.AddInt64(&w.metrics.Deferred, 1)
		return nil
	}

	prospect, err := w.prospects.GetByID(sendCtx, item.ProspectID)
	if err != nil {
		atomic.AddInt64(&w.metrics.Failed, 1)
		w.log.Error().Err(err).
			Str("item_id", item.ID).
			Int64("prospect_id", item.ProspectID).
			Msg("prospect lookup failed, dropping item")
		return err
	}
	if prospect.Bounced || prospect.Complained {
		w.log.Info().
			Str("item_id", item.ID).
			Int64("prospect_id", prospect.ID).
			Msg("prospect suppressed, dropping item")
		return nil
	}

	from := item.SendingEmail
	if from == "" {
		from = w.cfg.DefaultFrom
	}

	receipt, err := w.sender.SendEmail(sendCtx, &out.OutboundEmail{
		From:    from,
		To:      prospect.Email,
		Subject: item.PersonalizedSubject,
		Body:    item.PersonalizedBody,
	}, &w.cfg.Credentials)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeServiceUnavailable) || apperr.IsCode(err, apperr.CodeRateLimited) {
			w.requeue(sendCtx, item)
			atomic.AddInt64(&w.metrics.Requeued, 1)
		} else {
			atomic.AddInt64(&w.metrics.Failed, 1)
		}
		w.log.Error().Err(err).
			Str("item_id", item.ID).
			Int64("prospect_id", prospect.ID).
			Msg("send failed")
		return err
	}

	atomic.AddInt64(&w.metrics.Sent, 1)
	w.logOutbound(sendCtx, &item, receipt)

	w.log.Info().
		Str("item_id", item.ID).
		Int64("prospect_id", prospect.ID).
		Str("message_id", receipt.MessageID).
		Bool("vip", item.IsVIP).
		Msg("email sent")
	return nil
}

// requeue puts an item back at the tail of its priority class.
func (w *SendWorker) requeue(ctx context.Context, item domain.EmailQueueItem) {
	if _, err := w.queue.Enqueue(ctx, &item); err != nil {
		w.log.Error().Err(err).Str("item_id", item.ID).Msg("requeue failed, item lost")
	}
}

// logOutbound records the sent message in the conversation thread. Best
// effort; thread history is advisory input to qualification, not the source
// of truth for sends.
func (w *SendWorker) logOutbound(ctx context.Context, item *domain.EmailQueueItem, receipt *out.SendReceipt) {
	if w.convos == nil || item.ThreadID == "" {
		return
	}
	msg := &domain.ThreadMessage{
		ID:        receipt.MessageID,
		ThreadID:  item.ThreadID,
		Direction: domain.DirectionOutbound,
		Channel:   domain.ChannelEmail,
		Body:      item.PersonalizedBody,
		SentAt:    time.Now(),
	}
	if err := w.convos.Append(ctx, item.UserID, msg); err != nil {
		w.log.Warn().Err(err).Str("thread_id", item.ThreadID).Msg("conversation log append failed")
	}
}
