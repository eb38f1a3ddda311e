package domain

// QualificationStatus is the model's verdict on a reply. A malformed model
// response is a parse error, never a fourth status.
type QualificationStatus string

const (
	StatusQualified     QualificationStatus = "qualified"
	StatusNotQualified  QualificationStatus = "not_qualified"
	StatusNeedsMoreInfo QualificationStatus = "needs_more_info"
)

// IsValid reports whether the status is one of the three known values.
func (s QualificationStatus) IsValid() bool {
	switch s {
	case StatusQualified, StatusNotQualified, StatusNeedsMoreInfo:
		return true
	}
	return false
}

// QualificationResult is produced by the qualification engine and is immutable
// once returned. Confidence is always within [0,100].
type QualificationResult struct {
	Status             QualificationStatus `json:"qualification_status"`
	Confidence         int                 `json:"confidence_score"`
	ProposedChannel    Channel             `json:"proposed_channel"`
	ProposedTemplateID *int64              `json:"proposed_response_template_id,omitempty"`
	ProposedResponse   string              `json:"proposed_response,omitempty"`
	Reasoning          string              `json:"reasoning"`
}

// RoutingOutcome is where a qualified reply goes next.
type RoutingOutcome string

const (
	OutcomeAutoSend    RoutingOutcome = "auto_send"
	OutcomeReviewQueue RoutingOutcome = "review_queue"
	OutcomeNurture     RoutingOutcome = "nurture"
)

// RoutingDecision is derived purely from a QualificationResult.
type RoutingDecision struct {
	Outcome RoutingOutcome `json:"outcome"`
}
