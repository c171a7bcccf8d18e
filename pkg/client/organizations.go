package client

import (
	"context"
	"net/url"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// OrganizationsService manages tenants and their members.
type OrganizationsService struct {
	client *Client
}

func (s *OrganizationsService) List(ctx context.Context, p models.ListParams) (*models.Page[models.Organization], error) {
	var out models.Page[models.Organization]
	if err := s.client.get(ctx, newQuery().page(p).path("/organizations"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OrganizationsService) Get(ctx context.Context, id string) (*models.Organization, error) {
	var out models.Organization
	if err := s.client.get(ctx, orgPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OrganizationsService) Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	var out models.Organization
	if err := s.client.post(ctx, "/organizations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OrganizationsService) Update(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error) {
	var out models.Organization
	if err := s.client.put(ctx, orgPath(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OrganizationsService) Delete(ctx context.Context, id string) error {
	return s.client.delete(ctx, orgPath(id))
}

func (s *OrganizationsService) ListMembers(ctx context.Context, orgID string) ([]models.Member, error) {
	var out []models.Member
	if err := s.client.get(ctx, orgPath(orgID)+"/members", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OrganizationsService) InviteMember(ctx context.Context, orgID string, req models.InviteMemberRequest) (*models.Member, error) {
	var out models.Member
	if err := s.client.post(ctx, orgPath(orgID)+"/members", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OrganizationsService) UpdateMemberRole(ctx context.Context, orgID, userID, role string) (*models.Member, error) {
	var out models.Member
	body := map[string]string{"role": role}
	if err := s.client.patch(ctx, orgPath(orgID)+"/members/"+url.PathEscape(userID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OrganizationsService) RemoveMember(ctx context.Context, orgID, userID string) error {
	return s.client.delete(ctx, orgPath(orgID)+"/members/"+url.PathEscape(userID))
}

func orgPath(id string) string { return "/organizations/" + url.PathEscape(id) }
