package domain

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleStage tracks where a prospect sits in the outreach funnel.
type LifecycleStage string

const (
	StageNew       LifecycleStage = "new"
	StageEnriched  LifecycleStage = "enriched"
	StageContacted LifecycleStage = "contacted"
	StageReplied   LifecycleStage = "replied"
	StageQualified LifecycleStage = "qualified"
	StageNurture   LifecycleStage = "nurture"
	StageClosed    LifecycleStage = "closed"
)

// Prospect is the contact record this system acts on. The dashboard owns the
// full schema; we only read/update the fields the reply pipeline touches.
type Prospect struct {
	ID          int64          `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	CampaignID  int64          `json:"campaign_id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       string         `json:"email"`
	LinkedInURL string         `json:"linkedin_url,omitempty"`
	Company     string         `json:"company"`
	JobTitle    string         `json:"job_title"`
	Stage       LifecycleStage `json:"stage"`
	IsVIP       bool           `json:"is_vip"`
	VIPReason   string         `json:"vip_reason,omitempty"`
	Bounced     bool           `json:"bounced"`
	Complained  bool           `json:"complained"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FullName joins the name parts for prompt building.
func (p *Prospect) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Enrichment holds the research snapshot attached to a prospect.
type Enrichment struct {
	ProspectID      int64    `json:"prospect_id"`
	TalkingPoints   []string `json:"talking_points"`
	PainPoints      []string `json:"pain_points"`
	CompanyInsights []string `json:"company_insights"`
}
