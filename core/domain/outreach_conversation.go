package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies which platform a message travelled on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
)

// IsValid reports whether the channel is one we route on.
func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelLinkedIn
}

// Sentiment is the coarse tone label attached upstream of qualification.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// MessageDirection marks who sent a thread message.
type MessageDirection string

const (
	DirectionOutbound MessageDirection = "outbound"
	DirectionInbound  MessageDirection = "inbound"
)

// ThreadMessage is one entry of a conversation thread, chronological order.
type ThreadMessage struct {
	ID        string           `json:"id" bson:"id"`
	ThreadID  string           `json:"thread_id" bson:"thread_id"`
	Direction MessageDirection `json:"direction" bson:"direction"`
	Channel   Channel          `json:"channel" bson:"channel"`
	Body      string           `json:"body" bson:"body"`
	SentAt    time.Time        `json:"sent_at" bson:"sent_at"`
}

// InboundReply is a provider webhook payload normalized to a single shape.
// Exactly one of SenderEmail or LinkedInURL is set, matching the channel.
type InboundReply struct {
	UserID      uuid.UUID `json:"user_id"`
	Channel     Channel   `json:"channel"`
	SenderEmail string    `json:"sender_email,omitempty"`
	LinkedInURL string    `json:"linkedin_url,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	ReplyText   string    `json:"reply_text"`
	ThreadID    string    `json:"thread_id"`
	MessageID   string    `json:"message_id"`
}

// ConversationContext is the ephemeral input to the qualification engine.
// Prospect and enrichment are read-only snapshots; the context is built per
// inbound reply and consumed once.
type ConversationContext struct {
	Prospect   *Prospect
	Enrichment *Enrichment
	Thread     []ThreadMessage
	ReplyText  string
	Channel    Channel
	Sentiment  Sentiment
}
