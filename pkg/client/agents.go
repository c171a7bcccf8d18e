package client

import (
	"context"
	"net/url"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// AgentsService manages voice agents.
type AgentsService struct {
	client *Client
}

// AgentFilter narrows an agent listing.
type AgentFilter struct {
	Status models.AgentStatus
	Search string
	models.ListParams
}

func (s *AgentsService) List(ctx context.Context, f AgentFilter) (*models.Page[models.Agent], error) {
	q := newQuery().str("status", string(f.Status)).str("search", f.Search).page(f.ListParams)
	var out models.Page[models.Agent]
	if err := s.client.get(ctx, q.path("/agents"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AgentsService) Get(ctx context.Context, id string) (*models.Agent, error) {
	var out models.Agent
	if err := s.client.get(ctx, agentPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AgentsService) Create(ctx context.Context, req models.CreateAgentRequest) (*models.Agent, error) {
	var out models.Agent
	if err := s.client.post(ctx, "/agents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AgentsService) Update(ctx context.Context, id string, req models.UpdateAgentRequest) (*models.Agent, error) {
	var out models.Agent
	if err := s.client.put(ctx, agentPath(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AgentsService) Delete(ctx context.Context, id string) error {
	return s.client.delete(ctx, agentPath(id))
}

// SetStatus activates or deactivates an agent.
func (s *AgentsService) SetStatus(ctx context.Context, id string, status models.AgentStatus) (*models.Agent, error) {
	var out models.Agent
	body := map[string]models.AgentStatus{"status": status}
	if err := s.client.patch(ctx, agentPath(id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func agentPath(id string) string { return "/agents/" + url.PathEscape(id) }
