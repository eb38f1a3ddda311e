// Package warmup gates outbound sends behind the domain warm-up window.
package warmup

import (
	"context"
	"time"

	"outreach_server/core/domain"
	"outreach_server/core/port/out"
	"outreach_server/pkg/apperr"

	"github.com/google/uuid"
)

// Service computes warm-up status and enforces the warm-up gate on sends.
type Service struct {
	repo out.WarmupRepository
	now  func() time.Time
}

func NewService(repo out.WarmupRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetStatus returns the user's current warm-up status. A user with no
// recorded start is treated as day 0 of warm-up.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (domain.WarmupStatus, error) {
	if s.repo == nil {
		return domain.WarmupStatus{}, apperr.ServiceUnavailable("warmup store", nil)
	}
	startedAt, err := s.repo.GetStartedAt(ctx, userID)
	if err != nil {
		return domain.WarmupStatus{}, apperr.DatabaseError("get warmup start", err)
	}
	return domain.ComputeWarmupStatus(startedAt, s.now()), nil
}

// Start records the warm-up start timestamp if one is not already set.
func (s *Service) Start(ctx context.Context, userID uuid.UUID) error {
	if s.repo == nil {
		return apperr.ServiceUnavailable("warmup store", nil)
	}
	if err := s.repo.StartWarmup(ctx, userID, s.now()); err != nil {
		return apperr.DatabaseError("start warmup", err)
	}
	return nil
}

// ValidateCompleted returns WarmupIncomplete if the user's domain has not
// finished its warm-up window. Used as a guard before full-volume sends.
func (s *Service) ValidateCompleted(ctx context.Context, userID uuid.UUID) error {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return err
	}
	if !status.IsWarmedUp {
		return apperr.WarmupIncomplete(status.DaysRemaining)
	}
	return nil
}

// DailyLimit returns the send ceiling appropriate for the user's warm-up
// phase: the reduced warm-up limit before day 14, the full limit after.
func (s *Service) DailyLimit(ctx context.Context, userID uuid.UUID) (int, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return 0, err
	}
	return status.CurrentDailyLimit, nil
}
