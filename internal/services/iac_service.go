package services

import (
	"context"

	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/iac/terraform"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/validator"
)

// IaCService ingests declared resources from Terraform sources
type IaCService struct {
	repo      iac.Repository
	parser    *terraform.Parser
	states    *terraform.StateReader
	validator *validator.Validator
	logger    *logger.Logger
}

// NewIaCService creates a new IaC service
func NewIaCService(repo iac.Repository, v *validator.Validator, log *logger.Logger) *IaCService {
	return &IaCService{
		repo:      repo,
		parser:    terraform.NewParser(),
		states:    terraform.NewStateReader(),
		validator: v,
		logger:    log,
	}
}

// RegisterRepositoryInput carries the fields for registering a source repository
type RegisterRepositoryInput struct {
	OrgID    int64  `json:"org_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=github gitlab bitbucket"`
	URL      string `json:"url" validate:"required,url"`
	Branch   string `json:"branch"`
	IaCType  string `json:"iac_type" validate:"omitempty,oneof=terraform cloudformation pulumi"`
}

// RegisterRepository registers an IaC source repository for monitoring
func (s *IaCService) RegisterRepository(ctx context.Context, input RegisterRepositoryInput) (*iac.SourceRepository, error) {
	if violations := s.validator.Validate(input); len(violations) > 0 {
		return nil, errors.ValidationError("invalid source repository", violations)
	}

	repo := &iac.SourceRepository{
		OrgID:    input.OrgID,
		Name:     input.Name,
		Platform: input.Platform,
		URL:      input.URL,
		Branch:   input.Branch,
		IaCType:  input.IaCType,
		IsActive: true,
	}
	if repo.Platform == "" {
		repo.Platform = iac.PlatformGitHub
	}
	if repo.Branch == "" {
		repo.Branch = "main"
	}
	if repo.IaCType == "" {
		repo.IaCType = iac.TypeTerraform
	}

	id, err := s.repo.CreateSourceRepository(ctx, repo)
	if err != nil {
		return nil, err
	}
	repo.ID = id

	s.logger.WithFields(map[string]interface{}{
		"repository_id": id,
		"name":          repo.Name,
		"url":           repo.URL,
	}).Info("Source repository registered")

	return repo, nil
}

// SyncDirectory parses the Terraform files under dir and upserts the
// declared resources into the environment. Returns how many resources were
// synced.
func (s *IaCService) SyncDirectory(ctx context.Context, repositoryID, environmentID int64, dir, revision string) (int, error) {
	if _, err := s.repo.GetSourceRepository(ctx, repositoryID); err != nil {
		return 0, err
	}

	resources, err := s.parser.ParseDirectory(dir)
	if err != nil {
		return 0, errors.MalformedState("failed to parse terraform sources", err)
	}

	return s.upsertAll(ctx, repositoryID, environmentID, revision, resources)
}

// ImportState ingests declared resources from `terraform show -json` output
func (s *IaCService) ImportState(ctx context.Context, repositoryID, environmentID int64, content []byte, revision string) (int, error) {
	if _, err := s.repo.GetSourceRepository(ctx, repositoryID); err != nil {
		return 0, err
	}

	resources, err := s.states.ParseState(content)
	if err != nil {
		return 0, err
	}

	return s.upsertAll(ctx, repositoryID, environmentID, revision, resources)
}

// ListDeclared retrieves the declared resources of an environment
func (s *IaCService) ListDeclared(ctx context.Context, environmentID int64) ([]*iac.DeclaredResource, error) {
	return s.repo.ListDeclaredResources(ctx, environmentID)
}

func (s *IaCService) upsertAll(ctx context.Context, repositoryID, environmentID int64, revision string, resources []terraform.Resource) (int, error) {
	synced := 0
	for _, res := range resources {
		err := s.repo.UpsertDeclaredResource(ctx, &iac.DeclaredResource{
			RepositoryID:   repositoryID,
			EnvironmentID:  environmentID,
			ResourceType:   res.Type,
			ResourceID:     res.Address,
			DeclaredState:  res.Attributes,
			SourceRevision: revision,
		})
		if err != nil {
			return synced, err
		}
		synced++
	}

	s.logger.WithFields(map[string]interface{}{
		"repository_id":  repositoryID,
		"environment_id": environmentID,
		"resources":      synced,
		"revision":       revision,
	}).Info("Declared resources synced")

	return synced, nil
}
