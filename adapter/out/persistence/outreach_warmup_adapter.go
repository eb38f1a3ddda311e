package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"outreach_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Warmup Adapter (PostgreSQL)
// =============================================================================

// WarmupAdapter implements out.WarmupRepository using PostgreSQL.
type WarmupAdapter struct {
	db *sqlx.DB
}

// NewWarmupAdapter creates a new WarmupAdapter.
func NewWarmupAdapter(db *sqlx.DB) *WarmupAdapter {
	return &WarmupAdapter{db: db}
}

// GetStartedAt returns the warm-up start timestamp, nil when warm-up has not
// begun. A missing row is not an error.
func (a *WarmupAdapter) GetStartedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	query := `SELECT warmup_started_at FROM domain_warmups WHERE user_id = $1`

	var startedAt sql.NullTime
	if err := a.db.GetContext(ctx, &startedAt, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.DatabaseError("get warmup start", err)
	}
	if !startedAt.Valid {
		return nil, nil
	}
	return &startedAt.Time, nil
}

// StartWarmup records the warm-up start once; repeated calls keep the
// original timestamp.
func (a *WarmupAdapter) StartWarmup(ctx context.Context, userID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO domain_warmups (user_id, warmup_started_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := a.db.ExecContext(ctx, query, userID, startedAt); err != nil {
		return apperr.DatabaseError("start warmup", err)
	}
	return nil
}
