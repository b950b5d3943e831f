package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/validator"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// EnvironmentService manages cloud environments
type EnvironmentService struct {
	repo      environment.Repository
	validator *validator.Validator
	logger    *logger.Logger
}

// NewEnvironmentService creates a new environment service
func NewEnvironmentService(repo environment.Repository, v *validator.Validator, log *logger.Logger) *EnvironmentService {
	return &EnvironmentService{
		repo:      repo,
		validator: v,
		logger:    log,
	}
}

// CreateEnvironmentInput carries the fields for creating an environment
type CreateEnvironmentInput struct {
	OrgID     int64             `json:"org_id" validate:"required"`
	Name      string            `json:"name" validate:"required,min=2,max=64"`
	Provider  string            `json:"provider" validate:"required,oneof=aws gcp azure"`
	Region    string            `json:"region"`
	AccountID string            `json:"account_id"`
	Tags      map[string]string `json:"tags"`
}

// Create registers a new environment; the slug derives from the name
func (s *EnvironmentService) Create(ctx context.Context, input CreateEnvironmentInput) (*environment.Environment, error) {
	if violations := s.validator.Validate(input); len(violations) > 0 {
		return nil, errors.ValidationError("invalid environment", violations)
	}

	env := &environment.Environment{
		OrgID:     input.OrgID,
		Name:      input.Name,
		Slug:      slugify(input.Name),
		Provider:  input.Provider,
		Region:    input.Region,
		AccountID: input.AccountID,
		Tags:      input.Tags,
		IsActive:  true,
	}

	id, err := s.repo.Create(ctx, env)
	if err != nil {
		return nil, err
	}
	env.ID = id

	s.logger.WithFields(map[string]interface{}{
		"environment_id": id,
		"slug":           env.Slug,
		"provider":       env.Provider,
	}).Info("Environment created")

	return env, nil
}

// GetByID retrieves an environment by ID
func (s *EnvironmentService) GetByID(ctx context.Context, id int64) (*environment.Environment, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySlug retrieves an environment by organization and slug
func (s *EnvironmentService) GetBySlug(ctx context.Context, orgID int64, slug string) (*environment.Environment, error) {
	return s.repo.GetBySlug(ctx, orgID, slug)
}

// List retrieves the environments of an organization
func (s *EnvironmentService) List(ctx context.Context, orgID int64) ([]*environment.Environment, error) {
	return s.repo.List(ctx, orgID)
}

// Update applies partial updates to an environment
func (s *EnvironmentService) Update(ctx context.Context, id int64, updates map[string]interface{}) (*environment.Environment, error) {
	env, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name, ok := updates["name"].(string); ok {
		env.Name = name
	}
	if region, ok := updates["region"].(string); ok {
		env.Region = region
	}
	if accountID, ok := updates["account_id"].(string); ok {
		env.AccountID = accountID
	}
	if isActive, ok := updates["is_active"].(bool); ok {
		env.IsActive = isActive
	}
	if tags, ok := updates["tags"].(map[string]string); ok {
		env.Tags = tags
	}

	if err := s.repo.Update(ctx, env); err != nil {
		return nil, err
	}

	return env, nil
}

// Delete removes an environment
func (s *EnvironmentService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
