package http

import (
	"outreach_server/core/port/out"
	"outreach_server/core/service/outreach"
	"outreach_server/core/service/queue"
	"outreach_server/core/service/ratelimit"
	"outreach_server/core/service/warmup"
	"outreach_server/pkg/apperr"
	"outreach_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// StatusHandler exposes the sending guardrails to the dashboard: warm-up
// progress, rate-limit usage, queue depth, and the pending review list.
type StatusHandler struct {
	warmup     *warmup.Service
	limiter    *ratelimit.DailyLimiter
	emailQueue *queue.EmailQueue
	reviews    out.ReviewQueueRepository
}

func NewStatusHandler(
	warmupSvc *warmup.Service,
	limiter *ratelimit.DailyLimiter,
	emailQueue *queue.EmailQueue,
	reviews out.ReviewQueueRepository,
) *StatusHandler {
	return &StatusHandler{
		warmup:     warmupSvc,
		limiter:    limiter,
		emailQueue: emailQueue,
		reviews:    reviews,
	}
}

func (h *StatusHandler) Register(router fiber.Router) {
	router.Get("/warmup", h.WarmupStatus)
	router.Post("/warmup/start", h.StartWarmup)
	router.Get("/limits", h.RateLimitUsage)
	router.Get("/queue", h.QueueDepth)
	router.Get("/reviews", h.PendingReviews)
}

// WarmupStatus reports where the user's sending domain sits in its warm-up
// window.
func (h *StatusHandler) WarmupStatus(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	status, err := h.warmup.GetStatus(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.OK(c, status)
}

// StartWarmup records the warm-up start for the user's domain.
func (h *StatusHandler) StartWarmup(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	if err := h.warmup.Start(c.Context(), userID); err != nil {
		return err
	}
	status, err := h.warmup.GetStatus(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.Created(c, status)
}

// RateLimitUsage reports current consumption of the daily action quotas.
func (h *StatusHandler) RateLimitUsage(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	email, err := h.limiter.Usage(c.Context(), userID, outreach.ResourceEmail)
	if err != nil {
		return err
	}
	linkedin, err := h.limiter.Usage(c.Context(), userID, outreach.ResourceLinkedIn)
	if err != nil {
		return err
	}

	return response.OK(c, fiber.Map{
		"email":    email,
		"linkedin": linkedin,
	})
}

// QueueDepth reports how many sends are waiting in the user's email queue.
func (h *StatusHandler) QueueDepth(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	size, err := h.emailQueue.Size(c.Context(), userID)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"pending": size})
}

// PendingReviews lists AI-proposed responses waiting for a human decision.
func (h *StatusHandler) PendingReviews(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	if h.reviews == nil {
		return apperr.ServiceUnavailable("review store", nil)
	}

	limit := c.QueryInt("limit", 50)
	entries, err := h.reviews.ListPending(c.Context(), userID, limit)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"reviews": entries, "total": len(entries)})
}
