package domain

import "time"

// Domain warm-up constants. A fresh sending domain is capped at a low daily
// volume for the warm-up period to protect deliverability reputation.
const (
	WarmupPeriodDays   = 14
	WarmupDailyLimit   = 5
	WarmedUpDailyLimit = 20
)

// WarmupStatus reports where a sending domain sits in its warm-up window.
type WarmupStatus struct {
	IsWarmedUp        bool `json:"is_warmed_up"`
	DaysElapsed       int  `json:"days_elapsed"`
	DaysRemaining     int  `json:"days_remaining"`
	CurrentDailyLimit int  `json:"current_daily_limit"`
}

// ComputeWarmupStatus derives the status from the warm-up start timestamp.
// A nil start means warm-up has not begun: treated as day 0, not an error.
// Day 14 elapsed means warmed up (inclusive boundary); day 13 does not.
func ComputeWarmupStatus(startedAt *time.Time, now time.Time) WarmupStatus {
	daysElapsed := 0
	if startedAt != nil {
		daysElapsed = int(now.Sub(*startedAt).Hours() / 24)
		if daysElapsed < 0 {
			daysElapsed = 0
		}
	}

	daysRemaining := WarmupPeriodDays - daysElapsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	status := WarmupStatus{
		DaysElapsed:       daysElapsed,
		DaysRemaining:     daysRemaining,
		CurrentDailyLimit: WarmupDailyLimit,
	}
	if daysElapsed >= WarmupPeriodDays {
		status.IsWarmedUp = true
		status.CurrentDailyLimit = WarmedUpDailyLimit
	}
	return status
}
