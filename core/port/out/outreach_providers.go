package out

import (
	"context"

	"github.com/goccy/go-json"
)

// LinkedInPort covers the outbound LinkedIn actions routed through the
// UniPile automation API.
type LinkedInPort interface {
	Search(ctx context.Context, criteria map[string]any) (json.RawMessage, error)
	GetCompanyPage(ctx context.Context, companyURL string) (json.RawMessage, error)
	Like(ctx context.Context, postURL string) error
	Comment(ctx context.Context, postURL, text string) error
	SendConnectionRequest(ctx context.Context, profileURL, message string) error
	SendMessage(ctx context.Context, profileURL, message string) error
}

// EmailCredentials carries per-user sending credentials for the email
// provider. Stored upstream; passed through, never persisted here.
type EmailCredentials struct {
	Domain string `json:"domain"`
	APIKey string `json:"api_key"`
}

// OutboundEmail is one message handed to the email provider.
type OutboundEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendReceipt is the provider's acknowledgement of an accepted message.
type SendReceipt struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// EmailEventType classifies provider delivery events.
type EmailEventType string

const (
	EmailEventDelivered     EmailEventType = "delivered"
	EmailEventBounce        EmailEventType = "bounce"
	EmailEventSpamComplaint EmailEventType = "spam_complaint"
	EmailEventOpened        EmailEventType = "opened"
	EmailEventClicked       EmailEventType = "clicked"
)

// EmailEvent is a normalized provider webhook event.
type EmailEvent struct {
	EventType EmailEventType `json:"event_type"`
	MessageID string         `json:"message_id"`
	Recipient string         `json:"recipient"`
}

// EmailSenderPort covers the outbound email actions.
type EmailSenderPort interface {
	SendEmail(ctx context.Context, msg *OutboundEmail, creds *EmailCredentials) (*SendReceipt, error)
	ParseWebhookPayload(raw []byte) (*EmailEvent, error)
	VerifyCredentials(ctx context.Context, creds *EmailCredentials) (bool, error)
}

// LLM is the language-model completion port used by the qualification engine.
type LLM interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
