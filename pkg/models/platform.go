package models

import "time"

// Organization is a tenant.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      string    `json:"plan,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
	Plan string `json:"plan,omitempty"`
}

type UpdateOrganizationRequest struct {
	Name *string `json:"name,omitempty"`
	Plan *string `json:"plan,omitempty"`
}

type Member struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AgentStatus is the deployment state of a voice agent.
type AgentStatus string

const (
	AgentStatusDraft    AgentStatus = "draft"
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)

// Agent is a configured voice agent.
type Agent struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Status       AgentStatus    `json:"status"`
	Language     string         `json:"language,omitempty"`
	VoiceID      string         `json:"voice_id,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	FlowID       string         `json:"flow_id,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type CreateAgentRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Language     string         `json:"language,omitempty"`
	VoiceID      string         `json:"voice_id,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	FlowID       string         `json:"flow_id,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
}

type UpdateAgentRequest struct {
	Name         *string        `json:"name,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Language     *string        `json:"language,omitempty"`
	VoiceID      *string        `json:"voice_id,omitempty"`
	SystemPrompt *string        `json:"system_prompt,omitempty"`
	FlowID       *string        `json:"flow_id,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
}

// AnalyticsOverview is the dashboard headline for a date range.
type AnalyticsOverview struct {
	TotalCalls     int64   `json:"total_calls"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
	SuccessRate    float64 `json:"success_rate"`
	TotalCostCents int64   `json:"total_cost_cents"`
	ActiveAgents   int     `json:"active_agents"`
}

type CallMetricPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	Calls          int64     `json:"calls"`
	AvgDurationSec float64   `json:"avg_duration_sec"`
	SuccessRate    float64   `json:"success_rate"`
}

type AgentPerformance struct {
	AgentID        string  `json:"agent_id"`
	AgentName      string  `json:"agent_name"`
	Calls          int64   `json:"calls"`
	SuccessRate    float64 `json:"success_rate"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
}

type IntegrationUsage struct {
	IntegrationID string `json:"integration_id"`
	Provider      string `json:"provider"`
	Requests      int64  `json:"requests"`
	TokensUsed    int64  `json:"tokens_used"`
	CostCents     int64  `json:"cost_cents"`
}
