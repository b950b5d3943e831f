package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/validator"
	"github.com/driftguard/driftguard/internal/testutil"
)

func newIaCFixture(t *testing.T) (*testutil.MockIaCRepository, *IaCService) {
	t.Helper()
	repo := testutil.NewMockIaCRepository()
	svc := NewIaCService(repo, validator.New(), logger.New(logger.Config{Level: "error"}))
	return repo, svc
}

func registerRepo(t *testing.T, svc *IaCService) *iac.SourceRepository {
	t.Helper()
	repo, err := svc.RegisterRepository(context.Background(), RegisterRepositoryInput{
		OrgID: 1,
		Name:  "infra",
		URL:   "https://github.com/acme/infra",
	})
	require.NoError(t, err)
	return repo
}

func TestRegisterRepositoryDefaults(t *testing.T) {
	_, svc := newIaCFixture(t)

	repo := registerRepo(t, svc)
	assert.Equal(t, iac.PlatformGitHub, repo.Platform)
	assert.Equal(t, "main", repo.Branch)
	assert.Equal(t, iac.TypeTerraform, repo.IaCType)
	assert.True(t, repo.IsActive)
}

func TestRegisterRepositoryValidation(t *testing.T) {
	_, svc := newIaCFixture(t)

	_, err := svc.RegisterRepository(context.Background(), RegisterRepositoryInput{
		OrgID: 1,
		Name:  "infra",
		URL:   "not a url",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestSyncDirectoryUpsertsDeclaredResources(t *testing.T) {
	_, svc := newIaCFixture(t)
	repo := registerRepo(t, svc)

	dir := t.TempDir()
	content := `
resource "aws_instance" "web" {
  instance_type = "t3.micro"
}

resource "aws_s3_bucket" "logs" {
  bucket = "acme-logs"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte(content), 0o644))

	synced, err := svc.SyncDirectory(context.Background(), repo.ID, 1, dir, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	declared, err := svc.ListDeclared(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, declared, 2)

	// Syncing again replaces rather than duplicates
	synced, err = svc.SyncDirectory(context.Background(), repo.ID, 1, dir, "def456")
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	declared, err = svc.ListDeclared(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, declared, 2)
	assert.Equal(t, "def456", declared[0].SourceRevision)
}

func TestSyncDirectoryUnknownRepository(t *testing.T) {
	_, svc := newIaCFixture(t)

	_, err := svc.SyncDirectory(context.Background(), 404, 1, t.TempDir(), "abc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestImportStateMalformedDocument(t *testing.T) {
	_, svc := newIaCFixture(t)
	repo := registerRepo(t, svc)

	_, err := svc.ImportState(context.Background(), repo.ID, 1, []byte("{broken"), "abc")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedState))
}
