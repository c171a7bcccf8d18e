// Package quota computes per-credential usage against daily and monthly
// ceilings.
//
// Percentage is the true value and may exceed 100 once a limit is lowered
// below current usage; Display clamps it for progress bars and OverQuota
// reports the state explicitly.
package quota

import (
	"context"
	"math"
	"time"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// Percentage is round(used/limit*100). It is 0 when limit <= 0 (unlimited).
func Percentage(used, limit int64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(limit) * 100))
}

// Display clamps a percentage into [0, 100].
func Display(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Exceeded reports whether used has reached a positive limit.
func Exceeded(used, limit int64) bool {
	return limit > 0 && used >= limit
}

// ResetAt is the start of the next accounting window after now, in UTC.
func ResetAt(period models.QuotaPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.QuotaMonthly:
		return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	}
}

// WindowKey identifies the accounting window containing now.
func WindowKey(period models.QuotaPeriod, now time.Time) string {
	now = now.UTC()
	if period == models.QuotaMonthly {
		return now.Format("2006-01")
	}
	return now.Format("2006-01-02")
}

// Build assembles a QuotaUsage snapshot.
func Build(provider string, period models.QuotaPeriod, used, limit int64, now time.Time) models.QuotaUsage {
	return models.QuotaUsage{
		Provider:   provider,
		Period:     period,
		Used:       used,
		Limit:      limit,
		Percentage: Percentage(used, limit),
		OverQuota:  limit > 0 && used > limit,
		ResetAt:    ResetAt(period, now),
	}
}

// Limit picks the ceiling for period.
func Limit(l models.QuotaLimits, period models.QuotaPeriod) int64 {
	if period == models.QuotaMonthly {
		return l.Monthly
	}
	return l.Daily
}

// API is the slice of the integrations surface the service needs.
type API interface {
	GetCredentialQuota(ctx context.Context, credentialID string) ([]models.QuotaUsage, error)
	SetCredentialQuota(ctx context.Context, credentialID string, limits models.QuotaLimits) ([]models.QuotaUsage, error)
}

// Service reads and sets credential quotas through the API.
type Service struct {
	api API
}

func NewService(api API) *Service { return &Service{api: api} }

func (s *Service) Get(ctx context.Context, credentialID string) ([]models.QuotaUsage, error) {
	return s.api.GetCredentialQuota(ctx, credentialID)
}

func (s *Service) Set(ctx context.Context, credentialID string, limits models.QuotaLimits) ([]models.QuotaUsage, error) {
	return s.api.SetCredentialQuota(ctx, credentialID, limits)
}

// Check returns the first period whose usage has reached its limit, if any.
func (s *Service) Check(ctx context.Context, credentialID string) (*models.QuotaUsage, error) {
	usage, err := s.api.GetCredentialQuota(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	for i := range usage {
		if Exceeded(usage[i].Used, usage[i].Limit) {
			return &usage[i], nil
		}
	}
	return nil, nil
}
