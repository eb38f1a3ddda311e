package http

import (
	"strings"

	"outreach_server/core/domain"
	"outreach_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// =============================================================================
// Webhook Payload Normalization
// =============================================================================
// Inbound reply webhooks arrive in two provider shapes. Both are normalized
// to domain.InboundReply before anything downstream sees them.

// emailReplyPayload is the email provider's inbound route format: reply
// fields are nested under provider-specific keys.
type emailReplyPayload struct {
	UserID  string `json:"user_id"`
	Message struct {
		Sender       string `json:"sender"`
		Subject      string `json:"subject"`
		StrippedText string `json:"stripped_text"`
		BodyPlain    string `json:"body_plain"`
		Headers      struct {
			MessageID string `json:"message_id"`
			ThreadID  string `json:"thread_id"`
		} `json:"headers"`
	} `json:"message"`
}

// linkedInReplyPayload is the flat LinkedIn automation format.
type linkedInReplyPayload struct {
	UserID      string `json:"user_id"`
	MessageID   string `json:"message_id"`
	LinkedInURL string `json:"linkedin_url"`
	MessageText string `json:"message_text"`
	ThreadID    string `json:"thread_id"`
}

// NormalizeEmailReply parses the nested email-reply webhook body.
func NormalizeEmailReply(raw []byte) (*domain.InboundReply, error) {
	var payload emailReplyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.ValidationFailed("malformed email-reply payload")
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, apperr.MissingField("user_id")
	}
	if payload.Message.Sender == "" {
		return nil, apperr.MissingField("message.sender")
	}

	// Prefer the quoted-text-stripped body when the provider supplies it.
	text := payload.Message.StrippedText
	if strings.TrimSpace(text) == "" {
		text = payload.Message.BodyPlain
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.MissingField("message.stripped_text")
	}

	return &domain.InboundReply{
		UserID:      userID,
		Channel:     domain.ChannelEmail,
		SenderEmail: payload.Message.Sender,
		Subject:     payload.Message.Subject,
		ReplyText:   text,
		ThreadID:    payload.Message.Headers.ThreadID,
		MessageID:   payload.Message.Headers.MessageID,
	}, nil
}

// NormalizeLinkedInReply parses the flat linkedin-reply webhook body.
func NormalizeLinkedInReply(raw []byte) (*domain.InboundReply, error) {
	var payload linkedInReplyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.ValidationFailed("malformed linkedin-reply payload")
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, apperr.MissingField("user_id")
	}
	if payload.LinkedInURL == "" {
		return nil, apperr.MissingField("linkedin_url")
	}
	if strings.TrimSpace(payload.MessageText) == "" {
		return nil, apperr.MissingField("message_text")
	}

	return &domain.InboundReply{
		UserID:      userID,
		Channel:     domain.ChannelLinkedIn,
		LinkedInURL: payload.LinkedInURL,
		ReplyText:   payload.MessageText,
		ThreadID:    payload.ThreadID,
		MessageID:   payload.MessageID,
	}, nil
}
