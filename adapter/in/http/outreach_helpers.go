// Package http contains the fiber handlers for the outreach API surface.
package http

import (
	"outreach_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetUserID extracts the authenticated user from the request context. The
// identity middleware sets it from the gateway-forwarded header.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return uuid.Nil, apperr.Unauthorized("missing user identity")
	}
	return userID, nil
}
