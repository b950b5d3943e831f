package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/testutil"
)

func newDriftFixture(t *testing.T) (*testutil.MockDriftRepository, *DriftService) {
	t.Helper()
	repo := testutil.NewMockDriftRepository()
	svc := NewDriftService(repo, nil, logger.New(logger.Config{Level: "error"}), NewKeyedMutex())
	return repo, svc
}

func seedEvent(t *testing.T, repo *testutil.MockDriftRepository, envID int64, resourceID string, severity float64) *drift.Event {
	t.Helper()
	event := &drift.Event{
		EnvironmentID: envID,
		ResourceID:    resourceID,
		DriftType:     drift.TypeModified,
		SeverityScore: severity,
		DetectedAt:    time.Now().Add(-time.Hour),
	}
	changes := []*drift.Change{
		{PropertyPath: "instance_type", ChangeType: drift.ChangeModified},
		{PropertyPath: "security_group_rules[0].cidr", ChangeType: drift.ChangeModified, IsSecurityCritical: true},
	}
	id, err := repo.Create(context.Background(), event, changes)
	require.NoError(t, err)
	event.ID = id
	return event
}

func TestResolveDriftEvent(t *testing.T) {
	repo, svc := newDriftFixture(t)
	event := seedEvent(t, repo, 1, "aws_instance.web", 0.6)

	resolved, err := svc.Resolve(context.Background(), event.ID, drift.ResolutionCodifyIaC, "updated the module", "alice")
	require.NoError(t, err)

	assert.True(t, resolved.IsResolved())
	assert.Equal(t, drift.ResolutionCodifyIaC, resolved.ResolutionType)
	assert.Equal(t, "updated the module", resolved.ResolutionNotes)
	assert.Greater(t, resolved.Duration(), time.Duration(0))
}

func TestResolveTwiceFailsAlreadyResolved(t *testing.T) {
	repo, svc := newDriftFixture(t)
	event := seedEvent(t, repo, 1, "aws_instance.web", 0.6)

	_, err := svc.Resolve(context.Background(), event.ID, drift.ResolutionAccepted, "", "alice")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), event.ID, drift.ResolutionEscalated, "", "bob")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyResolved))

	// The first resolution must survive
	got, err := svc.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, drift.ResolutionAccepted, got.ResolutionType)
}

func TestResolveAuditRecordsPriorState(t *testing.T) {
	repo := testutil.NewMockDriftRepository()
	recorder := testutil.NewMockAuditRecorder()
	svc := NewDriftService(repo, recorder, logger.New(logger.Config{Level: "error"}), NewKeyedMutex())
	event := seedEvent(t, repo, 1, "aws_instance.web", 0.6)

	_, err := svc.Resolve(context.Background(), event.ID, drift.ResolutionAccepted, "risk accepted", "alice")
	require.NoError(t, err)

	records := recorder.ByAction(audit.ActionDriftResolved)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Actor)

	before, ok := records[0].Before.(*drift.Event)
	require.True(t, ok)
	assert.False(t, before.IsResolved())

	after, ok := records[0].After.(*drift.Event)
	require.True(t, ok)
	assert.True(t, after.IsResolved())
	assert.Equal(t, drift.ResolutionAccepted, after.ResolutionType)
}

func TestResolveRejectsUnknownResolutionType(t *testing.T) {
	repo, svc := newDriftFixture(t)
	event := seedEvent(t, repo, 1, "aws_instance.web", 0.6)

	_, err := svc.Resolve(context.Background(), event.ID, "wished_away", "", "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestResolveMissingEvent(t *testing.T) {
	_, svc := newDriftFixture(t)

	_, err := svc.Resolve(context.Background(), 404, drift.ResolutionAccepted, "", "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestGetChangesSecurityCriticalFirst(t *testing.T) {
	repo, svc := newDriftFixture(t)
	event := seedEvent(t, repo, 1, "aws_instance.web", 0.6)

	changes, err := svc.GetChanges(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.True(t, changes[0].IsSecurityCritical)
	assert.False(t, changes[1].IsSecurityCritical)
}

func TestListOrdersBySeverity(t *testing.T) {
	repo, svc := newDriftFixture(t)
	seedEvent(t, repo, 1, "aws_instance.a", 0.3)
	seedEvent(t, repo, 1, "aws_instance.b", 0.9)
	seedEvent(t, repo, 1, "aws_instance.c", 0.5)

	events, total, err := svc.List(context.Background(), drift.Filter{EnvironmentID: 1}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, events, 3)
	assert.Equal(t, "aws_instance.b", events[0].ResourceID)
	assert.Equal(t, "aws_instance.c", events[1].ResourceID)
	assert.Equal(t, "aws_instance.a", events[2].ResourceID)
}

func TestSummaryEmptyScope(t *testing.T) {
	_, svc := newDriftFixture(t)

	summary, err := svc.Summary(context.Background(), 99)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Unresolved)
	assert.Zero(t, summary.AvgSeverity)
}

func TestSummaryAveragesUnresolvedOnly(t *testing.T) {
	repo, svc := newDriftFixture(t)
	seedEvent(t, repo, 1, "aws_instance.a", 0.4)
	seedEvent(t, repo, 1, "aws_instance.b", 0.8)
	resolved := seedEvent(t, repo, 1, "aws_instance.c", 0.2)

	_, err := svc.Resolve(context.Background(), resolved.ID, drift.ResolutionAccepted, "", "alice")
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)
	assert.Equal(t, int64(1), summary.Resolved)
	assert.Equal(t, int64(2), summary.Unresolved)
	assert.InDelta(t, 0.6, summary.AvgSeverity, 1e-9)
}
