package client

import (
	"context"
	"time"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// AnalyticsService reads call and integration metrics.
type AnalyticsService struct {
	client *Client
}

// DateRange bounds an analytics query. Zero times are omitted.
type DateRange struct {
	Start time.Time
	End   time.Time
	// Interval is the bucket size for time series ("hour", "day", "week").
	Interval string
	AgentID  string
}

func (r DateRange) query() *query {
	return newQuery().time("start_date", r.Start).time("end_date", r.End).
		str("interval", r.Interval).str("agent_id", r.AgentID)
}

func (s *AnalyticsService) Overview(ctx context.Context, r DateRange) (*models.AnalyticsOverview, error) {
	var out models.AnalyticsOverview
	if err := s.client.get(ctx, r.query().path("/analytics/overview"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AnalyticsService) CallMetrics(ctx context.Context, r DateRange) ([]models.CallMetricPoint, error) {
	var out []models.CallMetricPoint
	if err := s.client.get(ctx, r.query().path("/analytics/calls"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AnalyticsService) AgentPerformance(ctx context.Context, r DateRange) ([]models.AgentPerformance, error) {
	var out []models.AgentPerformance
	if err := s.client.get(ctx, r.query().path("/analytics/agents"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AnalyticsService) IntegrationUsage(ctx context.Context, r DateRange) ([]models.IntegrationUsage, error) {
	var out []models.IntegrationUsage
	if err := s.client.get(ctx, r.query().path("/analytics/integrations"), &out); err != nil {
		return nil, err
	}
	return out, nil
}
