package http

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"outreach_server/core/port/out"
	"outreach_server/core/service/outreach"
	"outreach_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const IdempotencyTTL = 5 * time.Minute

type WebhookMetrics struct {
	Processed  int64
	Duplicates int64
	Errors     int64
}

// WebhookHandler receives provider callbacks: inbound replies (email and
// LinkedIn) plus email delivery events. Webhooks always get a 200 once the
// payload is accepted; providers retry on anything else and we handle
// duplicates ourselves.
type WebhookHandler struct {
	pipeline    *outreach.ReplyPipeline
	emailSender out.EmailSenderPort
	prospects   out.ProspectRepository
	redis       *redis.Client
	metrics     WebhookMetrics
}

func NewWebhookHandler(
	pipeline *outreach.ReplyPipeline,
	emailSender out.EmailSenderPort,
	prospects out.ProspectRepository,
	redisClient *redis.Client,
) *WebhookHandler {
	return &WebhookHandler{
		pipeline:    pipeline,
		emailSender: emailSender,
		prospects:   prospects,
		redis:       redisClient,
	}
}

func (h *WebhookHandler) GetMetrics() WebhookMetrics {
	return WebhookMetrics{
		Processed:  atomic.LoadInt64(&h.metrics.Processed),
		Duplicates: atomic.LoadInt64(&h.metrics.Duplicates),
		Errors:     atomic.LoadInt64(&h.metrics.Errors),
	}
}

func (h *WebhookHandler) Register(app *fiber.App) {
	app.Post("/webhook/email-reply", h.EmailReplyWebhook)
	app.Post("/webhooks/email-reply", h.EmailReplyWebhook)
	app.Post("/api/v1/webhooks/email-reply", h.EmailReplyWebhook)
	app.Post("/webhook/linkedin-reply", h.LinkedInReplyWebhook)
	app.Post("/webhooks/linkedin-reply", h.LinkedInReplyWebhook)
	app.Post("/api/v1/webhooks/linkedin-reply", h.LinkedInReplyWebhook)
	app.Post("/webhook/mailgun-events", h.MailgunEventsWebhook)
	app.Post("/webhooks/mailgun-events", h.MailgunEventsWebhook)
	app.Post("/api/v1/webhooks/mailgun-events", h.MailgunEventsWebhook)
}

func (h *WebhookHandler) idempotencyKey(kind, messageID string) string {
	return fmt.Sprintf("webhook:idempotent:%s:%s", kind, messageID)
}

// checkIdempotency reports whether this delivery was already seen. With no
// Redis every delivery is treated as fresh.
func (h *WebhookHandler) checkIdempotency(ctx context.Context, kind, messageID string) bool {
	if h.redis == nil || messageID == "" {
		return false
	}
	ok, err := h.redis.SetNX(ctx, h.idempotencyKey(kind, messageID), "1", IdempotencyTTL).Result()
	if err != nil {
		return false
	}
	if !ok {
		atomic.AddInt64(&h.metrics.Duplicates, 1)
		return true
	}
	return false
}

// releaseIdempotency clears the mark after a failed delivery so the
// provider's redelivery is processed instead of discarded as a duplicate.
func (h *WebhookHandler) releaseIdempotency(ctx context.Context, kind, messageID string) {
	if h.redis == nil || messageID == "" {
		return
	}
	if err := h.redis.Del(ctx, h.idempotencyKey(kind, messageID)).Err(); err != nil {
		logger.Default().WithError(err).WithField("message_id", messageID).Warn("[WebhookHandler] idempotency release failed")
	}
}

// EmailReplyWebhook handles an inbound email reply from the provider's
// inbound route.
func (h *WebhookHandler) EmailReplyWebhook(c *fiber.Ctx) error {
	reply, err := NormalizeEmailReply(c.Body())
	if err != nil {
		logger.Default().WithError(err).Warn("[WebhookHandler] rejected email-reply payload")
		atomic.AddInt64(&h.metrics.Errors, 1)
		return c.SendStatus(fiber.StatusOK)
	}

	if h.checkIdempotency(c.Context(), "email", reply.MessageID) {
		return c.SendStatus(fiber.StatusOK)
	}

	if _, err := h.pipeline.HandleReply(c.Context(), reply); err != nil {
		logger.Default().WithError(err).WithField("message_id", reply.MessageID).Error("[WebhookHandler] email reply processing failed")
		h.releaseIdempotency(c.Context(), "email", reply.MessageID)
		atomic.AddInt64(&h.metrics.Errors, 1)
		return c.SendStatus(fiber.StatusOK)
	}

	atomic.AddInt64(&h.metrics.Processed, 1)
	return c.SendStatus(fiber.StatusOK)
}

// LinkedInReplyWebhook handles an inbound LinkedIn message callback.
func (h *WebhookHandler) LinkedInReplyWebhook(c *fiber.Ctx) error {
	reply, err := NormalizeLinkedInReply(c.Body())
	if err != nil {
		logger.Default().WithError(err).Warn("[WebhookHandler] rejected linkedin-reply payload")
		atomic.AddInt64(&h.metrics.Errors, 1)
		return c.SendStatus(fiber.StatusOK)
	}

	if h.checkIdempotency(c.Context(), "linkedin", reply.MessageID) {
		return c.SendStatus(fiber.StatusOK)
	}

	if _, err := h.pipeline.HandleReply(c.Context(), reply); err != nil {
		logger.Default().WithError(err).WithField("message_id", reply.MessageID).Error("[WebhookHandler] linkedin reply processing failed")
		h.releaseIdempotency(c.Context(), "linkedin", reply.MessageID)
		atomic.AddInt64(&h.metrics.Errors, 1)
		return c.SendStatus(fiber.StatusOK)
	}

	atomic.AddInt64(&h.metrics.Processed, 1)
	return c.SendStatus(fiber.StatusOK)
}

// MailgunEventsWebhook handles delivery events. Bounces and complaints are
// recorded on the prospect so future sends skip the address.
func (h *WebhookHandler) MailgunEventsWebhook(c *fiber.Ctx) error {
	event, err := h.emailSender.ParseWebhookPayload(c.Body())
	if err != nil {
		logger.Default().WithError(err).Warn("[WebhookHandler] rejected mailgun event payload")
		atomic.AddInt64(&h.metrics.Errors, 1)
		return c.SendStatus(fiber.StatusOK)
	}

	if h.checkIdempotency(c.Context(), "mailgun-event", event.MessageID+":"+string(event.EventType)) {
		return c.SendStatus(fiber.StatusOK)
	}

	switch event.EventType {
	case out.EmailEventBounce:
		if err := h.prospects.MarkBounced(c.Context(), event.Recipient); err != nil {
			logger.Default().WithError(err).WithField("recipient", event.Recipient).Error("[WebhookHandler] mark bounced failed")
			atomic.AddInt64(&h.metrics.Errors, 1)
		}
	case out.EmailEventSpamComplaint:
		if err := h.prospects.MarkComplained(c.Context(), event.Recipient); err != nil {
			logger.Default().WithError(err).WithField("recipient", event.Recipient).Error("[WebhookHandler] mark complained failed")
			atomic.AddInt64(&h.metrics.Errors, 1)
		}
	default:
		// Delivered/opened/clicked are engagement signals only.
	}

	atomic.AddInt64(&h.metrics.Processed, 1)
	return c.SendStatus(fiber.StatusOK)
}
