package qualification

import (
	"testing"

	"outreach_server/core/domain"
)

func TestRoute_DecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.QualificationStatus
		confidence int
		want       domain.RoutingOutcome
	}{
		{"not_qualified routes to nurture", domain.StatusNotQualified, 95, domain.OutcomeNurture},
		{"not_qualified low confidence still nurture", domain.StatusNotQualified, 10, domain.OutcomeNurture},
		{"needs_more_info routes to review", domain.StatusNeedsMoreInfo, 50, domain.OutcomeReviewQueue},
		{"needs_more_info ignores high confidence", domain.StatusNeedsMoreInfo, 99, domain.OutcomeReviewQueue},
		{"qualified at 79 routes to review", domain.StatusQualified, 79, domain.OutcomeReviewQueue},
		{"qualified at exactly 80 routes to review", domain.StatusQualified, 80, domain.OutcomeReviewQueue},
		{"qualified at 81 routes to auto_send", domain.StatusQualified, 81, domain.OutcomeAutoSend},
		{"qualified at 100 routes to auto_send", domain.StatusQualified, 100, domain.OutcomeAutoSend},
		{"qualified at 0 routes to review", domain.StatusQualified, 0, domain.OutcomeReviewQueue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Route(&domain.QualificationResult{
				Status:     tt.status,
				Confidence: tt.confidence,
			})
			if decision.Outcome != tt.want {
				t.Errorf("route(%s, %d) = %s, want %s", tt.status, tt.confidence, decision.Outcome, tt.want)
			}
		})
	}
}

func TestRoute_AutoSendBoundarySweep(t *testing.T) {
	for c := 0; c <= 100; c++ {
		decision := Route(&domain.QualificationResult{
			Status:     domain.StatusQualified,
			Confidence: c,
		})
		wantAutoSend := c > 80
		gotAutoSend := decision.Outcome == domain.OutcomeAutoSend
		if gotAutoSend != wantAutoSend {
			t.Errorf("confidence %d: auto_send = %v, want %v", c, gotAutoSend, wantAutoSend)
		}
	}
}
