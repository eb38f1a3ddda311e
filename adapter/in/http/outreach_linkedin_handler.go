package http

import (
	"outreach_server/core/port/out"
	"outreach_server/core/service/outreach"
	"outreach_server/core/service/ratelimit"
	"outreach_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LinkedInHandler exposes the outbound LinkedIn actions. Every mutating
// action consumes the user's daily LinkedIn quota.
type LinkedInHandler struct {
	linkedin out.LinkedInPort
	limiter  *ratelimit.DailyLimiter
}

func NewLinkedInHandler(linkedin out.LinkedInPort, limiter *ratelimit.DailyLimiter) *LinkedInHandler {
	return &LinkedInHandler{linkedin: linkedin, limiter: limiter}
}

func (h *LinkedInHandler) Register(router fiber.Router) {
	linkedin := router.Group("/linkedin")
	linkedin.Post("/search", h.Search)
	linkedin.Post("/company", h.Company)
	linkedin.Post("/like", h.Like)
	linkedin.Post("/comment", h.Comment)
	linkedin.Post("/connect", h.Connect)
	linkedin.Post("/message", h.Message)
}

// consumeQuota burns one LinkedIn action; a denial short-circuits with 429.
func (h *LinkedInHandler) consumeQuota(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	verdict := h.limiter.Allow(c.Context(), userID, outreach.ResourceLinkedIn)
	if !verdict.Allowed {
		return response.TooManyRequests(c, "daily LinkedIn action limit reached")
	}
	return nil
}

func (h *LinkedInHandler) Search(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return err
	}

	var criteria map[string]any
	if err := c.BodyParser(&criteria); err != nil {
		return response.BadRequest(c, "invalid search criteria")
	}

	result, err := h.linkedin.Search(c.Context(), criteria)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

func (h *LinkedInHandler) Company(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return err
	}

	var req struct {
		CompanyURL string `json:"company_url"`
	}
	if err := c.BodyParser(&req); err != nil || req.CompanyURL == "" {
		return response.BadRequest(c, "company_url is required")
	}

	result, err := h.linkedin.GetCompanyPage(c.Context(), req.CompanyURL)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

func (h *LinkedInHandler) Like(c *fiber.Ctx) error {
	var req struct {
		PostURL string `json:"post_url"`
	}
	if err := c.BodyParser(&req); err != nil || req.PostURL == "" {
		return response.BadRequest(c, "post_url is required")
	}
	if err := h.consumeQuota(c); err != nil {
		return err
	}

	if err := h.linkedin.Like(c.Context(), req.PostURL); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"liked": true})
}

func (h *LinkedInHandler) Comment(c *fiber.Ctx) error {
	var req struct {
		PostURL string `json:"post_url"`
		Text    string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.PostURL == "" || req.Text == "" {
		return response.BadRequest(c, "post_url and text are required")
	}
	if err := h.consumeQuota(c); err != nil {
		return err
	}

	if err := h.linkedin.Comment(c.Context(), req.PostURL, req.Text); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"commented": true})
}

func (h *LinkedInHandler) Connect(c *fiber.Ctx) error {
	var req struct {
		ProfileURL string `json:"profile_url"`
		Message    string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.ProfileURL == "" {
		return response.BadRequest(c, "profile_url is required")
	}
	if err := h.consumeQuota(c); err != nil {
		return err
	}

	if err := h.linkedin.SendConnectionRequest(c.Context(), req.ProfileURL, req.Message); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"requested": true})
}

func (h *LinkedInHandler) Message(c *fiber.Ctx) error {
	var req struct {
		ProfileURL string `json:"profile_url"`
		Message    string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.ProfileURL == "" || req.Message == "" {
		return response.BadRequest(c, "profile_url and message are required")
	}
	if err := h.consumeQuota(c); err != nil {
		return err
	}

	if err := h.linkedin.SendMessage(c.Context(), req.ProfileURL, req.Message); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"sent": true})
}
