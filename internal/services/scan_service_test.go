package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/detector"
	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/testutil"
)

type scanFixture struct {
	envs     *testutil.MockEnvironmentRepository
	iacs     *testutil.MockIaCRepository
	store    *testutil.MockStateStore
	drifts   *testutil.MockDriftRepository
	recorder *testutil.MockAuditRecorder
	locks    *KeyedMutex
	svc      *ScanService
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()

	envs := testutil.NewMockEnvironmentRepository()
	iacs := testutil.NewMockIaCRepository()
	store := testutil.NewMockStateStore(iacs)
	drifts := testutil.NewMockDriftRepository()
	recorder := testutil.NewMockAuditRecorder()
	locks := NewKeyedMutex()

	svc := NewScanService(
		envs, store, drifts,
		detector.NewDiffer(nil),
		nil, recorder, nil,
		logger.New(logger.Config{Level: "error"}),
		4, 0.8,
		locks,
	)

	return &scanFixture{envs: envs, iacs: iacs, store: store, drifts: drifts, recorder: recorder, locks: locks, svc: svc}
}

func (f *scanFixture) addEnvironment(t *testing.T) *environment.Environment {
	t.Helper()
	env := &environment.Environment{
		OrgID:     1,
		Name:      "Production",
		Slug:      "production",
		Provider:  environment.ProviderAWS,
		Region:    "us-east-1",
		AccountID: "123456789012",
		IsActive:  true,
	}
	_, err := f.envs.Create(context.Background(), env)
	require.NoError(t, err)
	return env
}

func (f *scanFixture) addDeclared(t *testing.T, envID int64, resourceID string, state map[string]interface{}) {
	t.Helper()
	err := f.iacs.UpsertDeclaredResource(context.Background(), &iac.DeclaredResource{
		RepositoryID:  1,
		EnvironmentID: envID,
		ResourceType:  "aws_instance",
		ResourceID:    resourceID,
		DeclaredState: state,
	})
	require.NoError(t, err)
}

func (f *scanFixture) observe(t *testing.T, envID int64, resourceID string, state map[string]interface{}) {
	t.Helper()
	err := f.store.PutObservedSnapshot(context.Background(), envID, resourceID, state, time.Now())
	require.NoError(t, err)
}

func TestScanOpensDriftOnDivergence(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	f.addDeclared(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large"})

	result, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Opened)
	assert.Empty(t, result.Failures)

	event, err := f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	require.NoError(t, err)
	assert.Equal(t, drift.TypeModified, event.DriftType)
	assert.Greater(t, event.SeverityScore, 0.0)

	changes, err := f.drifts.ListChanges(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "instance_type", changes[0].PropertyPath)
}

func TestScanUnchangedWhenStatesMatch(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	state := map[string]interface{}{"instance_type": "t3.micro", "ami": "ami-123"}
	f.addDeclared(t, env.ID, "aws_instance.web", state)
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro", "ami": "ami-123"})

	result, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unchanged)
	assert.Zero(t, result.Opened)

	_, err = f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestScanRefreshesOpenEvent(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	f.addDeclared(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro", "ami": "ami-123"})
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large", "ami": "ami-123"})

	_, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	opened, err := f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	require.NoError(t, err)

	// The drift widens before the next scan
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large", "ami": "ami-999"})

	result, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Refreshed)
	assert.Zero(t, result.Opened)

	refreshed, err := f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	require.NoError(t, err)
	assert.Equal(t, opened.ID, refreshed.ID, "refresh must keep the same event")

	changes, err := f.drifts.ListChanges(context.Background(), refreshed.ID)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestScanClosesConvergedEvent(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	f.addDeclared(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large"})

	_, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	opened, err := f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	require.NoError(t, err)

	// Cloud converges back to the declared state
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})

	result, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closed)

	closed, err := f.drifts.GetByID(context.Background(), opened.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsResolved())
	assert.Equal(t, drift.ResolutionAutoRevert, closed.ResolutionType)

	_, err = f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestScanMissingResourceOpensDeletedDrift(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	f.addDeclared(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})
	// No snapshot stored: the resource was never observed

	result, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Opened)

	event, err := f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	require.NoError(t, err)
	assert.Equal(t, drift.TypeDeleted, event.DriftType)
	assert.InDelta(t, 0.9, event.ConfidenceScore, 1e-9)
}

func TestScanNotConfiguredEnvironment(t *testing.T) {
	f := newScanFixture(t)

	env := &environment.Environment{
		OrgID:    1,
		Name:     "Staging",
		Slug:     "staging",
		Provider: environment.ProviderAWS,
		IsActive: true,
		// No account ID or region
	}
	_, err := f.envs.Create(context.Background(), env)
	require.NoError(t, err)

	_, err = f.svc.ScanEnvironment(context.Background(), env.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotConfigured))
}

func TestScanAllActiveSkipsFailedEnvironments(t *testing.T) {
	f := newScanFixture(t)
	ready := f.addEnvironment(t)

	notReady := &environment.Environment{OrgID: 1, Name: "Broken", Slug: "broken", Provider: environment.ProviderAWS, IsActive: true}
	_, err := f.envs.Create(context.Background(), notReady)
	require.NoError(t, err)

	f.addDeclared(t, ready.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})
	f.observe(t, ready.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})

	results, err := f.svc.ScanAllActive(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ready.ID, results[0].EnvironmentID)
}

func TestResolveDuringScanRefreshIsNotClobbered(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)
	resolver := NewDriftService(f.drifts, nil, logger.New(logger.Config{Level: "error"}), f.locks)

	f.addDeclared(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro"})
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large"})

	_, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	opened, err := f.drifts.GetUnresolved(context.Background(), env.ID, "aws_instance.web")
	require.NoError(t, err)

	// Fire a resolve from inside the scan's critical section. It must wait
	// for the refresh and land on the refreshed event instead of being
	// overwritten by the scan's stale write.
	var once sync.Once
	resolveErr := make(chan error, 1)
	f.drifts.GetUnresolvedHook = func(int64, string) {
		once.Do(func() {
			go func() {
				_, err := resolver.Resolve(context.Background(), opened.ID, drift.ResolutionAccepted, "risk accepted", "alice")
				resolveErr <- err
			}()
		})
	}

	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.xlarge"})
	result, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Refreshed)

	require.NoError(t, <-resolveErr)

	final, err := f.drifts.GetByID(context.Background(), opened.ID)
	require.NoError(t, err)
	assert.True(t, final.IsResolved(), "the resolution must survive the concurrent scan refresh")
	assert.Equal(t, drift.ResolutionAccepted, final.ResolutionType)
}

func TestScanAuditTrailCarriesPriorState(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	f.addDeclared(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro", "ami": "ami-123"})
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large", "ami": "ami-123"})

	_, err := f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)

	openRecords := f.recorder.ByAction(audit.ActionDriftOpened)
	require.Len(t, openRecords, 1)
	assert.Nil(t, openRecords[0].Before, "a newly opened event has no prior state")

	// The drift widens before the next scan
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.large", "ami": "ami-999"})
	_, err = f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)

	refreshes := f.recorder.ByAction(audit.ActionDriftRefreshed)
	require.Len(t, refreshes, 1)
	before, ok := refreshes[0].Before.(*drift.Event)
	require.True(t, ok)
	after, ok := refreshes[0].After.(*drift.Event)
	require.True(t, ok)
	assert.Equal(t, before.ID, after.ID)
	assert.Less(t, before.SeverityScore, after.SeverityScore)

	// Cloud converges back to the declared state
	f.observe(t, env.ID, "aws_instance.web", map[string]interface{}{"instance_type": "t3.micro", "ami": "ami-123"})
	_, err = f.svc.ScanEnvironment(context.Background(), env.ID)
	require.NoError(t, err)

	closes := f.recorder.ByAction(audit.ActionDriftResolved)
	require.Len(t, closes, 1)
	closedBefore, ok := closes[0].Before.(*drift.Event)
	require.True(t, ok)
	assert.False(t, closedBefore.IsResolved())
	closedAfter, ok := closes[0].After.(*drift.Event)
	require.True(t, ok)
	assert.True(t, closedAfter.IsResolved())
	assert.Equal(t, drift.ResolutionAutoRevert, closedAfter.ResolutionType)
}

func TestConcurrentScansKeepSingleUnresolvedEvent(t *testing.T) {
	f := newScanFixture(t)
	env := f.addEnvironment(t)

	for i := 0; i < 8; i++ {
		resourceID := "aws_instance.web-" + string(rune('a'+i))
		f.addDeclared(t, env.ID, resourceID, map[string]interface{}{"instance_type": "t3.micro"})
		f.observe(t, env.ID, resourceID, map[string]interface{}{"instance_type": "t3.large"})
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ScanEnvironment(context.Background(), env.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := f.drifts.CountUnresolved(context.Background(), env.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), count, "exactly one unresolved event per drifted resource")
}
