// Package outreach orchestrates the inbound reply pipeline: qualification,
// routing, and the hand-off to send, review, or nurture.
package outreach

import (
	"context"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/core/service/qualification"
	"outreach_server/core/service/queue"
	"outreach_server/core/service/ratelimit"
	"outreach_server/core/service/warmup"
	"outreach_server/pkg/apperr"
	"outreach_server/pkg/logger"

	"github.com/google/uuid"
)

// ResourceEmail and ResourceLinkedIn name the rate-limited action buckets.
const (
	ResourceEmail    = "email"
	ResourceLinkedIn = "linkedin"
)

// ReplyOutcome reports what the pipeline did with an inbound reply.
type ReplyOutcome struct {
	Outcome    domain.RoutingOutcome      `json:"outcome"`
	Status     domain.QualificationStatus `json:"qualification_status,omitempty"`
	Confidence int                        `json:"confidence_score,omitempty"`
	ProspectID int64                      `json:"prospect_id"`
	QueueItem  string                     `json:"queue_item_id,omitempty"`
}

// ReplyPipeline wires the qualification engine to its three destinations.
type ReplyPipeline struct {
	prospects out.ProspectRepository
	reviews   out.ReviewQueueRepository
	convos    out.ConversationLogRepository
	linkedin  out.LinkedInPort

	engine     *qualification.Engine
	emailQueue *queue.EmailQueue
	limiter    *ratelimit.DailyLimiter
	warmup     *warmup.Service

	// senderAddress is the configured From identity for queued sends.
	senderAddress string
}

func NewReplyPipeline(
	prospects out.ProspectRepository,
	reviews out.ReviewQueueRepository,
	convos out.ConversationLogRepository,
	linkedin out.LinkedInPort,
	engine *qualification.Engine,
	emailQueue *queue.EmailQueue,
	limiter *ratelimit.DailyLimiter,
	warmupSvc *warmup.Service,
	senderAddress string,
) *ReplyPipeline {
	return &ReplyPipeline{
		prospects:     prospects,
		reviews:       reviews,
		convos:        convos,
		linkedin:      linkedin,
		engine:        engine,
		emailQueue:    emailQueue,
		limiter:       limiter,
		warmup:        warmupSvc,
		senderAddress: senderAddress,
	}
}

// HandleReply runs one normalized inbound reply through qualification and
// routing. A reply the model cannot parse lands in the review queue rather
// than being dropped or defaulted.
func (p *ReplyPipeline) HandleReply(ctx context.Context, reply *domain.InboundReply) (*ReplyOutcome, error) {
	prospect, err := p.resolveProspect(ctx, reply)
	if err != nil {
		return nil, err
	}

	p.logInbound(ctx, reply)

	if prospect.Stage == domain.StageNew || prospect.Stage == domain.StageEnriched || prospect.Stage == domain.StageContacted {
		if err := p.prospects.UpdateStage(ctx, prospect.ID, domain.StageReplied); err != nil {
			logger.Default().WithError(err).WithField("prospect_id", prospect.ID).Warn("[ReplyPipeline] stage update failed")
		}
	}

	convo, err := p.buildContext(ctx, prospect, reply)
	if err != nil {
		return nil, err
	}

	result, err := p.engine.Qualify(ctx, convo)
	if err != nil {
		// A parse failure or an exhausted model retry budget both land in the
		// review queue. A human decides, nothing is guessed and nothing is lost.
		reason := ""
		switch {
		case apperr.IsCode(err, apperr.CodeAIParseError):
			reason = "model output could not be parsed"
		case apperr.IsCode(err, apperr.CodeAIServiceError):
			reason = "model unavailable, reply held for manual review"
		default:
			return nil, err
		}
		if revErr := p.createReviewEntry(ctx, prospect, reply, nil, reason); revErr != nil {
			return nil, revErr
		}
		return &ReplyOutcome{Outcome: domain.OutcomeReviewQueue, ProspectID: prospect.ID}, nil
	}

	decision := qualification.Route(result)
	outcome := &ReplyOutcome{
		Outcome:    decision.Outcome,
		Status:     result.Status,
		Confidence: result.Confidence,
		ProspectID: prospect.ID,
	}

	switch decision.Outcome {
	case domain.OutcomeNurture:
		if err := p.prospects.UpdateStage(ctx, prospect.ID, domain.StageNurture); err != nil {
			return nil, apperr.DatabaseError("move prospect to nurture", err)
		}

	case domain.OutcomeReviewQueue:
		if err := p.createReviewEntry(ctx, prospect, reply, result, result.Reasoning); err != nil {
			return nil, err
		}

	case domain.OutcomeAutoSend:
		if err := p.prospects.UpdateStage(ctx, prospect.ID, domain.StageQualified); err != nil {
			logger.Default().WithError(err).WithField("prospect_id", prospect.ID).Warn("[ReplyPipeline] stage update failed")
		}
		queued, err := p.dispatchAutoSend(ctx, prospect, reply, result)
		if err != nil {
			return nil, err
		}
		if queued == "" {
			// Quota exhausted; downgraded to review so nothing is lost.
			outcome.Outcome = domain.OutcomeReviewQueue
		}
		outcome.QueueItem = queued
	}

	logger.Default().
		WithField("prospect_id", prospect.ID).
		WithField("outcome", outcome.Outcome).
		WithField("confidence", result.Confidence).
		Info("[ReplyPipeline] reply routed")
	return outcome, nil
}

func (p *ReplyPipeline) resolveProspect(ctx context.Context, reply *domain.InboundReply) (*domain.Prospect, error) {
	switch reply.Channel {
	case domain.ChannelEmail:
		if reply.SenderEmail == "" {
			return nil, apperr.MissingField("sender_email")
		}
		return p.prospects.GetByEmail(ctx, reply.UserID, reply.SenderEmail)
	case domain.ChannelLinkedIn:
		if reply.LinkedInURL == "" {
			return nil, apperr.MissingField("linkedin_url")
		}
		return p.prospects.GetByLinkedInURL(ctx, reply.UserID, reply.LinkedInURL)
	}
	return nil, apperr.ValidationFailed("unknown reply channel")
}

func (p *ReplyPipeline) buildContext(ctx context.Context, prospect *domain.Prospect, reply *domain.InboundReply) (*domain.ConversationContext, error) {
	convo := &domain.ConversationContext{
		Prospect:  prospect,
		ReplyText: reply.ReplyText,
		Channel:   reply.Channel,
	}

	enrichment, err := p.prospects.GetEnrichment(ctx, prospect.ID)
	if err != nil {
		logger.Default().WithError(err).WithField("prospect_id", prospect.ID).Warn("[ReplyPipeline] enrichment lookup failed")
	} else {
		convo.Enrichment = enrichment
	}

	if p.convos != nil && reply.ThreadID != "" {
		thread, err := p.convos.GetThread(ctx, reply.UserID, reply.ThreadID)
		if err != nil {
			logger.Default().WithError(err).WithField("thread_id", reply.ThreadID).Warn("[ReplyPipeline] thread lookup failed")
		} else {
			convo.Thread = thread
		}
	}

	return convo, nil
}

// logInbound appends the reply to the conversation log. Log failures never
// fail the pipeline.
func (p *ReplyPipeline) logInbound(ctx context.Context, reply *domain.InboundReply) {
	if p.convos == nil {
		return
	}
	msg := &domain.ThreadMessage{
		ID:        reply.MessageID,
		ThreadID:  reply.ThreadID,
		Direction: domain.DirectionInbound,
		Channel:   reply.Channel,
		Body:      reply.ReplyText,
		SentAt:    time.Now(),
	}
	if err := p.convos.Append(ctx, reply.UserID, msg); err != nil {
		logger.Default().WithError(err).WithField("thread_id", reply.ThreadID).Warn("[ReplyPipeline] conversation log append failed")
	}
}

func (p *ReplyPipeline) createReviewEntry(ctx context.Context, prospect *domain.Prospect, reply *domain.InboundReply, result *domain.QualificationResult, reasoning string) error {
	entry := &out.ReviewEntry{
		UserID:     reply.UserID,
		ProspectID: prospect.ID,
		ThreadID:   reply.ThreadID,
		ReplyText:  reply.ReplyText,
		Channel:    reply.Channel,
		Reasoning:  reasoning,
		CreatedAt:  time.Now(),
	}
	if result != nil {
		entry.Status = result.Status
		entry.Confidence = result.Confidence
		entry.ProposedResponse = result.ProposedResponse
	}
	if err := p.reviews.Create(ctx, entry); err != nil {
		return apperr.DatabaseError("create review entry", err)
	}
	return nil
}

// dispatchAutoSend hands the accepted response to the right channel. Email
// goes through the priority queue; LinkedIn messages go straight out through
// the adapter. Returns the queue item ID for email, "" when the daily quota
// forced a downgrade to review.
func (p *ReplyPipeline) dispatchAutoSend(ctx context.Context, prospect *domain.Prospect, reply *domain.InboundReply, result *domain.QualificationResult) (string, error) {
	channel := result.ProposedChannel
	if channel == "" {
		channel = reply.Channel
	}

	if channel == domain.ChannelLinkedIn && p.linkedin != nil && prospect.LinkedInURL != "" {
		verdict := p.limiter.Allow(ctx, reply.UserID, ResourceLinkedIn)
		if !verdict.Allowed {
			return "", p.createReviewEntry(ctx, prospect, reply, result, "daily LinkedIn action limit reached")
		}
		if err := p.linkedin.SendMessage(ctx, prospect.LinkedInURL, result.ProposedResponse); err != nil {
			return "", err
		}
		p.logOutbound(ctx, reply, result.ProposedResponse, domain.ChannelLinkedIn)
		return "", nil
	}

	limit, err := p.sendLimit(ctx, reply.UserID)
	if err != nil {
		return "", err
	}

	// Quota is consumed at actual send time by the worker; here we only
	// refuse to grow a queue the user cannot drain today.
	usage, usageErr := p.limiter.Usage(ctx, reply.UserID, ResourceEmail)
	if usageErr == nil && usage.Used >= limit {
		return "", p.createReviewEntry(ctx, prospect, reply, result, "daily send limit reached")
	}

	item := &domain.EmailQueueItem{
		UserID:              reply.UserID,
		CampaignID:          prospect.CampaignID,
		ProspectID:          prospect.ID,
		TemplateID:          result.ProposedTemplateID,
		SendingEmail:        p.senderAddress,
		PersonalizedSubject: replySubject(reply.Subject),
		PersonalizedBody:    result.ProposedResponse,
		ThreadID:            reply.ThreadID,
		IsVIP:               prospect.IsVIP,
		EnqueuedAt:          time.Now(),
	}
	if _, err := p.emailQueue.Enqueue(ctx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

// sendLimit is the user's effective daily ceiling: the warm-up phase limit,
// clamped into the configured range once warmed up.
func (p *ReplyPipeline) sendLimit(ctx context.Context, userID uuid.UUID) (int, error) {
	status, err := p.warmup.GetStatus(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !status.IsWarmedUp {
		return status.CurrentDailyLimit, nil
	}
	return p.limiter.Limit(), nil
}

func (p *ReplyPipeline) logOutbound(ctx context.Context, reply *domain.InboundReply, body string, channel domain.Channel) {
	if p.convos == nil {
		return
	}
	msg := &domain.ThreadMessage{
		ID:        uuid.NewString(),
		ThreadID:  reply.ThreadID,
		Direction: domain.DirectionOutbound,
		Channel:   channel,
		Body:      body,
		SentAt:    time.Now(),
	}
	if err := p.convos.Append(ctx, reply.UserID, msg); err != nil {
		logger.Default().WithError(err).WithField("thread_id", reply.ThreadID).Warn("[ReplyPipeline] conversation log append failed")
	}
}

func replySubject(original string) string {
	if original == "" {
		return "Re: our conversation"
	}
	if len(original) >= 4 && (original[:4] == "Re: " || original[:4] == "RE: ") {
		return original
	}
	return "Re: " + original
}
