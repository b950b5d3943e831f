package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/validator"
	"github.com/driftguard/driftguard/internal/testutil"
)

func newEnvFixture(t *testing.T) (*testutil.MockEnvironmentRepository, *EnvironmentService) {
	t.Helper()
	repo := testutil.NewMockEnvironmentRepository()
	svc := NewEnvironmentService(repo, validator.New(), logger.New(logger.Config{Level: "error"}))
	return repo, svc
}

func TestCreateEnvironmentDerivesSlug(t *testing.T) {
	_, svc := newEnvFixture(t)

	env, err := svc.Create(context.Background(), CreateEnvironmentInput{
		OrgID:     1,
		Name:      "Production (US East)",
		Provider:  "aws",
		Region:    "us-east-1",
		AccountID: "123456789012",
	})
	require.NoError(t, err)

	assert.Equal(t, "production-us-east", env.Slug)
	assert.True(t, env.IsActive)
	assert.True(t, env.ReadyForScan())
}

func TestCreateEnvironmentValidation(t *testing.T) {
	_, svc := newEnvFixture(t)

	cases := []struct {
		name  string
		input CreateEnvironmentInput
	}{
		{"missing org", CreateEnvironmentInput{Name: "Prod", Provider: "aws"}},
		{"short name", CreateEnvironmentInput{OrgID: 1, Name: "p", Provider: "aws"}},
		{"unknown provider", CreateEnvironmentInput{OrgID: 1, Name: "Prod", Provider: "digitalocean"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		})
	}
}

func TestEnvironmentLookupBySlug(t *testing.T) {
	_, svc := newEnvFixture(t)

	created, err := svc.Create(context.Background(), CreateEnvironmentInput{
		OrgID:    7,
		Name:     "Staging EU",
		Provider: "gcp",
	})
	require.NoError(t, err)

	got, err := svc.GetBySlug(context.Background(), 7, "staging-eu")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Slugs are scoped to the organization
	_, err = svc.GetBySlug(context.Background(), 8, "staging-eu")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestUpdateEnvironmentPartial(t *testing.T) {
	_, svc := newEnvFixture(t)

	created, err := svc.Create(context.Background(), CreateEnvironmentInput{
		OrgID:    1,
		Name:     "Production",
		Provider: "aws",
		Region:   "us-east-1",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, map[string]interface{}{
		"region":    "eu-west-1",
		"is_active": false,
	})
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", updated.Region)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Production", updated.Name, "untouched fields stay as they were")
}

func TestDeleteEnvironment(t *testing.T) {
	_, svc := newEnvFixture(t)

	created, err := svc.Create(context.Background(), CreateEnvironmentInput{
		OrgID:    1,
		Name:     "Throwaway",
		Provider: "aws",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))

	_, err = svc.GetByID(context.Background(), created.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
