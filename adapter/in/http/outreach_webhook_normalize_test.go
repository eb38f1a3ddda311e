package http

import (
	"testing"

	"outreach_server/core/domain"

	"github.com/google/uuid"
)

func TestNormalizeEmailReply(t *testing.T) {
	userID := uuid.New()

	t.Run("full payload", func(t *testing.T) {
		raw := `{
			"user_id": "` + userID.String() + `",
			"message": {
				"sender": "dana@acme.example",
				"subject": "Re: quick question",
				"stripped_text": "Yes, send me the deck.",
				"body_plain": "Yes, send me the deck.\n\n> On Tue you wrote...",
				"headers": {"message_id": "<m1@mail>", "thread_id": "t-42"}
			}
		}`

		reply, err := NormalizeEmailReply([]byte(raw))
		if err != nil {
			t.Fatalf("NormalizeEmailReply: %v", err)
		}
		if reply.Channel != domain.ChannelEmail {
			t.Errorf("Channel = %s, want email", reply.Channel)
		}
		if reply.UserID != userID {
			t.Errorf("UserID = %s, want %s", reply.UserID, userID)
		}
		if reply.SenderEmail != "dana@acme.example" {
			t.Errorf("SenderEmail = %q", reply.SenderEmail)
		}
		if reply.ReplyText != "Yes, send me the deck." {
			t.Errorf("ReplyText = %q, want stripped text", reply.ReplyText)
		}
		if reply.ThreadID != "t-42" || reply.MessageID != "<m1@mail>" {
			t.Errorf("thread/message = %q/%q", reply.ThreadID, reply.MessageID)
		}
	})

	t.Run("falls back to body_plain", func(t *testing.T) {
		raw := `{
			"user_id": "` + userID.String() + `",
			"message": {"sender": "a@b.c", "body_plain": "plain reply"}
		}`

		reply, err := NormalizeEmailReply([]byte(raw))
		if err != nil {
			t.Fatalf("NormalizeEmailReply: %v", err)
		}
		if reply.ReplyText != "plain reply" {
			t.Errorf("ReplyText = %q", reply.ReplyText)
		}
	})

	t.Run("rejects missing sender", func(t *testing.T) {
		raw := `{"user_id": "` + userID.String() + `", "message": {"stripped_text": "hi"}}`
		if _, err := NormalizeEmailReply([]byte(raw)); err == nil {
			t.Error("expected error for missing sender")
		}
	})

	t.Run("rejects empty body", func(t *testing.T) {
		raw := `{"user_id": "` + userID.String() + `", "message": {"sender": "a@b.c", "stripped_text": "   "}}`
		if _, err := NormalizeEmailReply([]byte(raw)); err == nil {
			t.Error("expected error for empty reply text")
		}
	})

	t.Run("rejects bad user id", func(t *testing.T) {
		raw := `{"user_id": "nope", "message": {"sender": "a@b.c", "stripped_text": "hi"}}`
		if _, err := NormalizeEmailReply([]byte(raw)); err == nil {
			t.Error("expected error for invalid user_id")
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		if _, err := NormalizeEmailReply([]byte("{{")); err == nil {
			t.Error("expected error for malformed json")
		}
	})
}

func TestNormalizeLinkedInReply(t *testing.T) {
	userID := uuid.New()

	t.Run("flat payload", func(t *testing.T) {
		raw := `{
			"user_id": "` + userID.String() + `",
			"message_id": "li-1",
			"linkedin_url": "https://linkedin.com/in/dana-reyes",
			"message_text": "Happy to chat next week.",
			"thread_id": "li-t-9"
		}`

		reply, err := NormalizeLinkedInReply([]byte(raw))
		if err != nil {
			t.Fatalf("NormalizeLinkedInReply: %v", err)
		}
		if reply.Channel != domain.ChannelLinkedIn {
			t.Errorf("Channel = %s, want linkedin", reply.Channel)
		}
		if reply.LinkedInURL != "https://linkedin.com/in/dana-reyes" {
			t.Errorf("LinkedInURL = %q", reply.LinkedInURL)
		}
		if reply.ReplyText != "Happy to chat next week." {
			t.Errorf("ReplyText = %q", reply.ReplyText)
		}
		if reply.ThreadID != "li-t-9" || reply.MessageID != "li-1" {
			t.Errorf("thread/message = %q/%q", reply.ThreadID, reply.MessageID)
		}
	})

	t.Run("rejects missing url", func(t *testing.T) {
		raw := `{"user_id": "` + userID.String() + `", "message_text": "hi"}`
		if _, err := NormalizeLinkedInReply([]byte(raw)); err == nil {
			t.Error("expected error for missing linkedin_url")
		}
	})

	t.Run("rejects empty text", func(t *testing.T) {
		raw := `{"user_id": "` + userID.String() + `", "linkedin_url": "https://linkedin.com/in/x", "message_text": ""}`
		if _, err := NormalizeLinkedInReply([]byte(raw)); err == nil {
			t.Error("expected error for empty message_text")
		}
	})
}
