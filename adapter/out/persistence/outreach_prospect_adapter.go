// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"outreach_server/core/domain"
	"outreach_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// Prospect Adapter (PostgreSQL)
// =============================================================================

// ProspectAdapter implements out.ProspectRepository using PostgreSQL.
type ProspectAdapter struct {
	db *sqlx.DB
}

// NewProspectAdapter creates a new ProspectAdapter.
func NewProspectAdapter(db *sqlx.DB) *ProspectAdapter {
	return &ProspectAdapter{db: db}
}

// =============================================================================
// Database Row Mapping
// =============================================================================

type prospectRow struct {
	ID          int64          `db:"id"`
	UserID      uuid.UUID      `db:"user_id"`
	CampaignID  int64          `db:"campaign_id"`
	FirstName   string         `db:"first_name"`
	LastName    string         `db:"last_name"`
	Email       string         `db:"email"`
	LinkedInURL sql.NullString `db:"linkedin_url"`
	Company     string         `db:"company"`
	JobTitle    string         `db:"job_title"`
	Stage       string         `db:"stage"`
	IsVIP       bool           `db:"is_vip"`
	VIPReason   sql.NullString `db:"vip_reason"`
	Bounced     bool           `db:"bounced"`
	Complained  bool           `db:"complained"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *prospectRow) toEntity() *domain.Prospect {
	return &domain.Prospect{
		ID:          r.ID,
		UserID:      r.UserID,
		CampaignID:  r.CampaignID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		LinkedInURL: r.LinkedInURL.String,
		Company:     r.Company,
		JobTitle:    r.JobTitle,
		Stage:       domain.LifecycleStage(r.Stage),
		IsVIP:       r.IsVIP,
		VIPReason:   r.VIPReason.String,
		Bounced:     r.Bounced,
		Complained:  r.Complained,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const prospectColumns = `id, user_id, campaign_id, first_name, last_name, email,
	linkedin_url, company, job_title, stage, is_vip, vip_reason, bounced,
	complained, created_at, updated_at`

// =============================================================================
// Read Operations
// =============================================================================

// GetByID loads a prospect by primary key.
func (a *ProspectAdapter) GetByID(ctx context.Context, prospectID int64) (*domain.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE id = $1`

	var row prospectRow
	if err := a.db.GetContext(ctx, &row, query, prospectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("prospect")
		}
		return nil, apperr.DatabaseError("get prospect by id", err)
	}
	return row.toEntity(), nil
}

// GetByEmail looks up a prospect by their email address within a user's data.
func (a *ProspectAdapter) GetByEmail(ctx context.Context, userID uuid.UUID, email string) (*domain.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE user_id = $1 AND email = $2`

	var row prospectRow
	if err := a.db.GetContext(ctx, &row, query, userID, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("prospect")
		}
		return nil, apperr.DatabaseError("get prospect by email", err)
	}
	return row.toEntity(), nil
}

// GetByLinkedInURL looks up a prospect by their LinkedIn profile URL.
func (a *ProspectAdapter) GetByLinkedInURL(ctx context.Context, userID uuid.UUID, url string) (*domain.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE user_id = $1 AND linkedin_url = $2`

	var row prospectRow
	if err := a.db.GetContext(ctx, &row, query, userID, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("prospect")
		}
		return nil, apperr.DatabaseError("get prospect by linkedin url", err)
	}
	return row.toEntity(), nil
}

// GetEnrichment loads the research snapshot attached to a prospect.
func (a *ProspectAdapter) GetEnrichment(ctx context.Context, prospectID int64) (*domain.Enrichment, error) {
	query := `
		SELECT prospect_id, talking_points, pain_points, company_insights
		FROM prospect_enrichments WHERE prospect_id = $1`

	var row struct {
		ProspectID      int64          `db:"prospect_id"`
		TalkingPoints   pq.StringArray `db:"talking_points"`
		PainPoints      pq.StringArray `db:"pain_points"`
		CompanyInsights pq.StringArray `db:"company_insights"`
	}
	if err := a.db.GetContext(ctx, &row, query, prospectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("enrichment")
		}
		return nil, apperr.DatabaseError("get enrichment", err)
	}

	return &domain.Enrichment{
		ProspectID:      row.ProspectID,
		TalkingPoints:   row.TalkingPoints,
		PainPoints:      row.PainPoints,
		CompanyInsights: row.CompanyInsights,
	}, nil
}

// =============================================================================
// Write Operations
// =============================================================================

// UpdateStage advances the prospect's lifecycle stage.
func (a *ProspectAdapter) UpdateStage(ctx context.Context, prospectID int64, stage domain.LifecycleStage) error {
	query := `UPDATE prospects SET stage = $1, updated_at = NOW() WHERE id = $2`

	result, err := a.db.ExecContext(ctx, query, string(stage), prospectID)
	if err != nil {
		return apperr.DatabaseError("update prospect stage", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("prospect")
	}
	return nil
}

// SetVIP flags the prospect for priority handling.
func (a *ProspectAdapter) SetVIP(ctx context.Context, prospectID int64, reason string) error {
	query := `UPDATE prospects SET is_vip = TRUE, vip_reason = $1, updated_at = NOW() WHERE id = $2`

	if _, err := a.db.ExecContext(ctx, query, reason, prospectID); err != nil {
		return apperr.DatabaseError("set prospect VIP", err)
	}
	return nil
}

// MarkBounced records a hard bounce against every prospect with the address.
func (a *ProspectAdapter) MarkBounced(ctx context.Context, email string) error {
	query := `UPDATE prospects SET bounced = TRUE, updated_at = NOW() WHERE email = $1`

	if _, err := a.db.ExecContext(ctx, query, email); err != nil {
		return apperr.DatabaseError("mark prospect bounced", err)
	}
	return nil
}

// MarkComplained records a spam complaint against the address.
func (a *ProspectAdapter) MarkComplained(ctx context.Context, email string) error {
	query := `UPDATE prospects SET complained = TRUE, updated_at = NOW() WHERE email = $1`

	if _, err := a.db.ExecContext(ctx, query, email); err != nil {
		return apperr.DatabaseError("mark prospect complained", err)
	}
	return nil
}
