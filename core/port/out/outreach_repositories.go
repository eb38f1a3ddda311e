package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"outreach_server/core/domain"
)

// WarmupRepository persists the per-user sending-domain warm-up state.
type WarmupRepository interface {
	// GetStartedAt returns the warm-up start timestamp, nil if warm-up has
	// not begun for this user.
	GetStartedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error)
	// StartWarmup records the warm-up start if one is not already set.
	StartWarmup(ctx context.Context, userID uuid.UUID, startedAt time.Time) error
}

// ProspectRepository reads and updates the prospect fields the reply pipeline
// touches. The full schema is owned by the dashboard's database.
type ProspectRepository interface {
	GetByID(ctx context.Context, prospectID int64) (*domain.Prospect, error)
	GetByEmail(ctx context.Context, userID uuid.UUID, email string) (*domain.Prospect, error)
	GetByLinkedInURL(ctx context.Context, userID uuid.UUID, url string) (*domain.Prospect, error)
	GetEnrichment(ctx context.Context, prospectID int64) (*domain.Enrichment, error)
	UpdateStage(ctx context.Context, prospectID int64, stage domain.LifecycleStage) error
	SetVIP(ctx context.Context, prospectID int64, reason string) error
	MarkBounced(ctx context.Context, email string) error
	MarkComplained(ctx context.Context, email string) error
}

// ReviewEntry is an AI-proposed response waiting for a human decision.
type ReviewEntry struct {
	ID               int64                      `json:"id"`
	UserID           uuid.UUID                  `json:"user_id"`
	ProspectID       int64                      `json:"prospect_id"`
	ThreadID         string                     `json:"thread_id"`
	ReplyText        string                     `json:"reply_text"`
	Channel          domain.Channel             `json:"channel"`
	Status           domain.QualificationStatus `json:"qualification_status"`
	Confidence       int                        `json:"confidence_score"`
	ProposedResponse string                     `json:"proposed_response"`
	Reasoning        string                     `json:"reasoning"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// ReviewQueueRepository persists entries for the human review dashboard.
type ReviewQueueRepository interface {
	Create(ctx context.Context, entry *ReviewEntry) error
	ListPending(ctx context.Context, userID uuid.UUID, limit int) ([]*ReviewEntry, error)
}

// ConversationLogRepository appends and reads conversation thread history.
// Append failures must never fail the caller's primary operation.
type ConversationLogRepository interface {
	Append(ctx context.Context, userID uuid.UUID, msg *domain.ThreadMessage) error
	GetThread(ctx context.Context, userID uuid.UUID, threadID string) ([]domain.ThreadMessage, error)
}
