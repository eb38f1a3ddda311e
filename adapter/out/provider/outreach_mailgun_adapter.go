package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"outreach_server/core/port/out"
	"outreach_server/pkg/apperr"
	"outreach_server/pkg/httputil"
	"outreach_server/pkg/retry"

	"github.com/goccy/go-json"
)

// =============================================================================
// Mailgun Adapter - outbound email delivery
// =============================================================================

// MailgunAdapter sends email through the Mailgun HTTP API. Credentials are
// per-user and passed with each call, not held by the adapter.
type MailgunAdapter struct {
	baseURL string
	client  *http.Client
	policy  retry.Policy
}

func NewMailgunAdapter(baseURL string) *MailgunAdapter {
	if baseURL == "" {
		baseURL = "https://api.mailgun.net/v3"
	}
	policy := retry.APIBackoff()
	policy.Retryable = isRetryable

	return &MailgunAdapter{
		baseURL: baseURL,
		client:  httputil.MailgunClient(),
		policy:  policy,
	}
}

// SendEmail submits one message. Mailgun expects form-encoded bodies and
// HTTP basic auth with the literal username "api".
func (a *MailgunAdapter) SendEmail(ctx context.Context, msg *out.OutboundEmail, creds *out.EmailCredentials) (*out.SendReceipt, error) {
	if creds == nil || creds.APIKey == "" || creds.Domain == "" {
		return nil, apperr.ConfigError("Mailgun credentials are not configured")
	}

	form := url.Values{}
	form.Set("from", msg.From)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.Body)

	endpoint := fmt.Sprintf("%s/%s/messages", a.baseURL, creds.Domain)

	var receipt out.SendReceipt
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth("api", creds.APIKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := classifyStatus("mailgun", resp.StatusCode, body); err != nil {
			return err
		}

		var parsed struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("parse mailgun response: %w", err)
		}
		receipt = out.SendReceipt{MessageID: parsed.ID, Status: "accepted"}
		return nil
	})
	if err != nil {
		return nil, asAdapterError(err, "mailgun")
	}
	return &receipt, nil
}

// mailgunWebhook is the subset of Mailgun's event webhook we act on.
type mailgunWebhook struct {
	EventData struct {
		Event     string `json:"event"`
		Recipient string `json:"recipient"`
		Message   struct {
			Headers struct {
				MessageID string `json:"message-id"`
			} `json:"headers"`
		} `json:"message"`
	} `json:"event-data"`
}

// ParseWebhookPayload normalizes a Mailgun event webhook into an EmailEvent.
func (a *MailgunAdapter) ParseWebhookPayload(raw []byte) (*out.EmailEvent, error) {
	var payload mailgunWebhook
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.ValidationFailed("malformed Mailgun webhook payload")
	}
	if payload.EventData.Event == "" {
		return nil, apperr.MissingField("event-data.event")
	}

	event := &out.EmailEvent{
		MessageID: payload.EventData.Message.Headers.MessageID,
		Recipient: payload.EventData.Recipient,
	}
	switch payload.EventData.Event {
	case "delivered":
		event.EventType = out.EmailEventDelivered
	case "failed", "bounced":
		event.EventType = out.EmailEventBounce
	case "complained":
		event.EventType = out.EmailEventSpamComplaint
	case "opened":
		event.EventType = out.EmailEventOpened
	case "clicked":
		event.EventType = out.EmailEventClicked
	default:
		return nil, apperr.ValidationFailed(fmt.Sprintf("unknown Mailgun event %q", payload.EventData.Event))
	}
	return event, nil
}

// VerifyCredentials checks that the API key can read its own domain.
func (a *MailgunAdapter) VerifyCredentials(ctx context.Context, creds *out.EmailCredentials) (bool, error) {
	if creds == nil || creds.APIKey == "" || creds.Domain == "" {
		return false, apperr.ConfigError("Mailgun credentials are not configured")
	}

	endpoint := fmt.Sprintf("%s/domains/%s", a.baseURL, creds.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth("api", creds.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return false, asAdapterError(err, "mailgun")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, apperr.ServiceUnavailable("mailgun", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
}

// classifyStatus maps a non-2xx response to the adapter error taxonomy.
func classifyStatus(service string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return apperr.Unauthorized(service + " credential rejected")
	case status == http.StatusTooManyRequests:
		return apperr.RateLimited(service)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.ValidationFailed(service + " rejected the request").
			WithDetail("body", string(body))
	case status >= 500:
		return apperr.ServiceUnavailable(service, fmt.Errorf("HTTP %d", status)).
			WithDetail("retryable", true).
			WithDetail("body", string(body))
	default:
		return apperr.ServiceUnavailable(service, fmt.Errorf("HTTP %d", status)).
			WithDetail("body", string(body))
	}
}
