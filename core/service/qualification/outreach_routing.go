package qualification

import "outreach_server/core/domain"

// autoSendConfidenceThreshold gates unsupervised outbound messaging. The
// boundary is strict: confidence must exceed 80, exactly 80 goes to review.
const autoSendConfidenceThreshold = 80

// Route maps a qualification result to a routing decision. Pure function,
// first matching rule wins:
//
//	not_qualified   → nurture
//	needs_more_info → review_queue
//	qualified, confidence > 80 → auto_send
//	qualified, confidence ≤ 80 → review_queue
func Route(result *domain.QualificationResult) domain.RoutingDecision {
	switch result.Status {
	case domain.StatusNotQualified:
		return domain.RoutingDecision{Outcome: domain.OutcomeNurture}
	case domain.StatusNeedsMoreInfo:
		return domain.RoutingDecision{Outcome: domain.OutcomeReviewQueue}
	case domain.StatusQualified:
		if result.Confidence > autoSendConfidenceThreshold {
			return domain.RoutingDecision{Outcome: domain.OutcomeAutoSend}
		}
		return domain.RoutingDecision{Outcome: domain.OutcomeReviewQueue}
	}
	// Unknown status never reaches here when results come from Qualify, but
	// review is the safe destination for anything else.
	return domain.RoutingDecision{Outcome: domain.OutcomeReviewQueue}
}
