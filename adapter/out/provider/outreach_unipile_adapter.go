// Package provider implements the outbound integrations with external APIs:
// UniPile for LinkedIn automation and Mailgun for email delivery.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"outreach_server/pkg/apperr"
	"outreach_server/pkg/httputil"
	"outreach_server/pkg/logger"
	"outreach_server/pkg/retry"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

// =============================================================================
// UniPile Adapter - LinkedIn actions via the UniPile automation API
// =============================================================================

// UniPileAdapter routes LinkedIn actions through UniPile. Every request runs
// behind the shared retry schedule and a circuit breaker.
type UniPileAdapter struct {
	baseURL   string
	apiKey    string
	accountID string
	client    *http.Client
	cb        *gobreaker.CircuitBreaker
	policy    retry.Policy
}

// UniPileConfig holds UniPile credentials.
type UniPileConfig struct {
	BaseURL   string
	APIKey    string
	AccountID string
}

// NewUniPileAdapter creates the adapter. A missing credential is a fatal
// configuration error, raised before any request is attempted.
func NewUniPileAdapter(cfg *UniPileConfig) (*UniPileAdapter, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, apperr.ConfigError("UniPile API key is not configured")
	}
	if cfg.AccountID == "" {
		return nil, apperr.ConfigError("UniPile account ID is not configured")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.unipile.com/v1"
	}

	cbSettings := gobreaker.Settings{
		Name:        "unipile-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Default().
				WithField("breaker", name).
				WithField("from", from.String()).
				WithField("to", to.String()).
				Warn("[CircuitBreaker] state changed")
		},
	}

	policy := retry.APIBackoff()
	policy.Retryable = isRetryable

	return &UniPileAdapter{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		accountID: cfg.AccountID,
		client:    httputil.UniPileClient(),
		cb:        gobreaker.NewCircuitBreaker(cbSettings),
		policy:    policy,
	}, nil
}

// isRetryable keeps the retry budget for 5xx and transport failures only.
// 401, 429, validation errors, and an open breaker surface immediately.
func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == apperr.CodeServiceUnavailable && appErr.Details["retryable"] == true
	}
	// Transport-level failure (DNS, connection reset) shares the budget.
	return true
}

// send issues one API call: bearer credential attached, retries per the
// shared schedule, response body parsed as JSON.
func (a *UniPileAdapter) send(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal unipile payload: %w", err)
		}
	}

	var parsed json.RawMessage
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		result, err := a.cb.Execute(func() (any, error) {
			return a.doOnce(ctx, method, path, body)
		})
		if err != nil {
			return err
		}
		parsed = result.(json.RawMessage)
		return nil
	})
	if err != nil {
		return nil, asAdapterError(err, "unipile")
	}
	return parsed, nil
}

func (a *UniPileAdapter) doOnce(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := classifyStatus("unipile", resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return json.RawMessage(respBody), nil
}

// asAdapterError maps breaker and transport errors to the adapter taxonomy.
func asAdapterError(err error, service string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.ServiceUnavailable(service, err)
	}
	if apperr.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.ServiceUnavailable(service, err)
}

// ---- LinkedIn operations ----

func (a *UniPileAdapter) Search(ctx context.Context, criteria map[string]any) (json.RawMessage, error) {
	payload := map[string]any{
		"account_id": a.accountID,
	}
	for k, v := range criteria {
		payload[k] = v
	}
	return a.send(ctx, http.MethodPost, "/linkedin/search", payload)
}

func (a *UniPileAdapter) GetCompanyPage(ctx context.Context, companyURL string) (json.RawMessage, error) {
	path := fmt.Sprintf("/linkedin/company?account_id=%s&url=%s",
		url.QueryEscape(a.accountID), url.QueryEscape(companyURL))
	return a.send(ctx, http.MethodGet, path, nil)
}

func (a *UniPileAdapter) Like(ctx context.Context, postURL string) error {
	_, err := a.send(ctx, http.MethodPost, "/linkedin/posts/like", map[string]any{
		"account_id": a.accountID,
		"post_url":   postURL,
	})
	return err
}

func (a *UniPileAdapter) Comment(ctx context.Context, postURL, text string) error {
	_, err := a.send(ctx, http.MethodPost, "/linkedin/posts/comment", map[string]any{
		"account_id": a.accountID,
		"post_url":   postURL,
		"text":       text,
	})
	return err
}

func (a *UniPileAdapter) SendConnectionRequest(ctx context.Context, profileURL, message string) error {
	_, err := a.send(ctx, http.MethodPost, "/linkedin/invitations", map[string]any{
		"account_id":  a.accountID,
		"profile_url": profileURL,
		"message":     message,
	})
	return err
}

func (a *UniPileAdapter) SendMessage(ctx context.Context, profileURL, message string) error {
	_, err := a.send(ctx, http.MethodPost, "/linkedin/messages", map[string]any{
		"account_id":  a.accountID,
		"profile_url": profileURL,
		"text":        message,
	})
	return err
}
