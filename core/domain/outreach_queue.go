package domain

import (
	"time"

	"github.com/google/uuid"
)

// Priority classes for the email queue. Lower score dequeues first, so VIP
// items always sort ahead of non-VIP items regardless of enqueue order.
const (
	PriorityClassVIP    int64 = 0
	PriorityClassNormal int64 = 1
)

// priorityClassSpan separates priority classes in the composite score. The
// monotonic sequence number fills the space below it, so FIFO order is
// preserved within a class.
const priorityClassSpan int64 = 1_000_000_000_000

// EmailQueueItem is a pending outbound send. Created on enqueue, destroyed on
// dequeue; owned exclusively by the per-user queue.
type EmailQueueItem struct {
	ID                  string    `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	CampaignID          int64     `json:"campaign_id"`
	ProspectID          int64     `json:"prospect_id"`
	TemplateID          *int64    `json:"template_id,omitempty"`
	SendingEmail        string    `json:"sending_email"`
	PersonalizedSubject string    `json:"personalized_subject"`
	PersonalizedBody    string    `json:"personalized_body"`
	ThreadID            string    `json:"thread_id,omitempty"`
	IsVIP               bool      `json:"is_vip"`
	EnqueuedAt          time.Time `json:"enqueued_at"`
}

// PriorityClass returns the score class for the item.
func (i *EmailQueueItem) PriorityClass() int64 {
	if i.IsVIP {
		return PriorityClassVIP
	}
	return PriorityClassNormal
}

// PriorityScore derives the composite queue score from the item's class and a
// monotonic sequence number.
func (i *EmailQueueItem) PriorityScore(seq int64) int64 {
	return i.PriorityClass()*priorityClassSpan + seq
}
