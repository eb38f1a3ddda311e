package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outreach_server/core/port/out"
	"outreach_server/pkg/apperr"
)

func testCreds() *out.EmailCredentials {
	return &out.EmailCredentials{Domain: "mg.example.com", APIKey: "key-123"}
}

func TestMailgunAdapter_SendEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mg.example.com/messages" {
			t.Errorf("path = %q, want /mg.example.com/messages", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "key-123" {
			t.Errorf("basic auth = %q/%q, want api/key-123", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("to"); got != "dana@acme.example" {
			t.Errorf("to = %q", got)
		}
		if got := r.PostForm.Get("subject"); got != "Re: pricing" {
			t.Errorf("subject = %q", got)
		}
		w.Write([]byte(`{"id":"<msg-id-1@mg.example.com>","message":"Queued. Thank you."}`))
	}))
	defer server.Close()

	adapter := NewMailgunAdapter(server.URL)
	receipt, err := adapter.SendEmail(context.Background(), &out.OutboundEmail{
		From:    "me@mg.example.com",
		To:      "dana@acme.example",
		Subject: "Re: pricing",
		Body:    "<p>Here you go.</p>",
	}, testCreds())
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if receipt.MessageID != "<msg-id-1@mg.example.com>" {
		t.Errorf("MessageID = %q", receipt.MessageID)
	}
}

func TestMailgunAdapter_SendEmailRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"<retried@mg.example.com>","message":"Queued."}`))
	}))
	defer server.Close()

	adapter := NewMailgunAdapter(server.URL)
	adapter.policy.Delays = []time.Duration{time.Millisecond}

	receipt, err := adapter.SendEmail(context.Background(), &out.OutboundEmail{To: "a@b.c"}, testCreds())
	if err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if calls != 2 {
		t.Errorf("server hit %d times, want 2", calls)
	}
	if receipt.MessageID != "<retried@mg.example.com>" {
		t.Errorf("MessageID = %q", receipt.MessageID)
	}
}

func TestMailgunAdapter_MissingCredentials(t *testing.T) {
	adapter := NewMailgunAdapter("http://unused.invalid")
	_, err := adapter.SendEmail(context.Background(), &out.OutboundEmail{}, nil)
	if !apperr.IsCode(err, apperr.CodeConfigError) {
		t.Errorf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestMailgunAdapter_ParseWebhookPayload(t *testing.T) {
	adapter := NewMailgunAdapter("")

	tests := []struct {
		name    string
		payload string
		want    out.EmailEventType
		wantErr bool
	}{
		{
			name:    "delivered",
			payload: `{"event-data":{"event":"delivered","recipient":"dana@acme.example","message":{"headers":{"message-id":"m1"}}}}`,
			want:    out.EmailEventDelivered,
		},
		{
			name:    "failed maps to bounce",
			payload: `{"event-data":{"event":"failed","recipient":"gone@acme.example"}}`,
			want:    out.EmailEventBounce,
		},
		{
			name:    "complained maps to spam complaint",
			payload: `{"event-data":{"event":"complained","recipient":"angry@acme.example"}}`,
			want:    out.EmailEventSpamComplaint,
		},
		{
			name:    "opened",
			payload: `{"event-data":{"event":"opened","recipient":"dana@acme.example"}}`,
			want:    out.EmailEventOpened,
		},
		{
			name:    "unknown event rejected",
			payload: `{"event-data":{"event":"accepted"}}`,
			wantErr: true,
		},
		{
			name:    "missing event rejected",
			payload: `{"event-data":{}}`,
			wantErr: true,
		},
		{
			name:    "malformed json rejected",
			payload: `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := adapter.ParseWebhookPayload([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWebhookPayload: %v", err)
			}
			if event.EventType != tt.want {
				t.Errorf("EventType = %s, want %s", event.EventType, tt.want)
			}
		})
	}
}

func TestMailgunAdapter_VerifyCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pass, _ := r.BasicAuth(); pass == "good-key" {
			w.Write([]byte(`{"domain":{"name":"mg.example.com"}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewMailgunAdapter(server.URL)

	ok, err := adapter.VerifyCredentials(context.Background(), &out.EmailCredentials{Domain: "mg.example.com", APIKey: "good-key"})
	if err != nil || !ok {
		t.Errorf("valid credentials: ok=%v err=%v", ok, err)
	}

	ok, err = adapter.VerifyCredentials(context.Background(), &out.EmailCredentials{Domain: "mg.example.com", APIKey: "bad-key"})
	if err != nil {
		t.Errorf("invalid credentials should not error, got %v", err)
	}
	if ok {
		t.Error("invalid credentials reported as valid")
	}
}

func TestMailgunAdapter_ValidationErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"'to' parameter is not a valid address"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	adapter := NewMailgunAdapter(server.URL)
	adapter.policy.Delays = []time.Duration{time.Millisecond}

	_, err := adapter.SendEmail(context.Background(), &out.OutboundEmail{To: "not-an-address"}, testCreds())
	appErr := apperr.AsAppError(err)
	if appErr.Code != apperr.CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
	if appErr.Details["body"] == nil || appErr.Details["body"] == "" {
		t.Error("expected downstream error body attached for diagnostics")
	}
	if calls != 1 {
		t.Errorf("server hit %d times, want 1 (validation errors are not retried)", calls)
	}
}
