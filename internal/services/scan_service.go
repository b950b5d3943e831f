package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftguard/driftguard/internal/detector"
	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/domain/notification"
	"github.com/driftguard/driftguard/internal/domain/state"
	"github.com/driftguard/driftguard/internal/pkg/errors"
	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/pkg/metrics"
)

// ScanResult summarizes one environment scan
type ScanResult struct {
	EnvironmentID int64           `json:"environment_id"`
	Scanned       int             `json:"scanned"`
	Opened        int             `json:"opened"`
	Refreshed     int             `json:"refreshed"`
	Closed        int             `json:"closed"`
	Unchanged     int             `json:"unchanged"`
	Failures      []ResourceError `json:"failures,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// ResourceError records a per-resource scan failure; one bad resource never
// fails the whole scan
type ResourceError struct {
	ResourceID string `json:"resource_id"`
	Error      string `json:"error"`
}

// Per-resource scan outcomes
const (
	outcomeOpened    = "opened"
	outcomeRefreshed = "refreshed"
	outcomeClosed    = "closed"
	outcomeUnchanged = "unchanged"
)

// ScanService runs drift detection over environments and drives the drift
// event lifecycle. Transitions for one (environment, resource) pair are
// serialized through a keyed mutex so the at-most-one-unresolved invariant
// holds under concurrent scans.
type ScanService struct {
	envs       environment.Repository
	store      state.Store
	drifts     drift.Repository
	differ     *detector.Differ
	collectors map[string]Collector
	recorder   audit.Recorder
	notifier   notification.Notifier
	logger     *logger.Logger

	workers           int
	criticalThreshold float64

	locks *KeyedMutex
}

// NewScanService creates a new scan service. collectors may be nil when
// snapshots are refreshed out of band. locks is shared with the drift
// service so resolves and scan transitions of one resource exclude each
// other.
func NewScanService(
	envs environment.Repository,
	store state.Store,
	drifts drift.Repository,
	differ *detector.Differ,
	collectors []Collector,
	recorder audit.Recorder,
	notifier notification.Notifier,
	log *logger.Logger,
	workers int,
	criticalThreshold float64,
	locks *KeyedMutex,
) *ScanService {
	byProvider := make(map[string]Collector, len(collectors))
	for _, c := range collectors {
		byProvider[c.Provider()] = c
	}
	if workers < 1 {
		workers = 1
	}

	return &ScanService{
		envs:              envs,
		store:             store,
		drifts:            drifts,
		differ:            differ,
		collectors:        byProvider,
		recorder:          recorder,
		notifier:          notifier,
		logger:            log,
		workers:           workers,
		criticalThreshold: criticalThreshold,
		locks:             locks,
	}
}

// ScanEnvironment compares every declared resource of the environment
// against its observed snapshot and applies lifecycle transitions. The
// environment must be active and carry account credentials context.
func (s *ScanService) ScanEnvironment(ctx context.Context, environmentID int64) (*ScanResult, error) {
	started := time.Now()

	env, err := s.envs.GetByID(ctx, environmentID)
	if err != nil {
		return nil, err
	}
	if !env.ReadyForScan() {
		metrics.RecordScan("not_configured", time.Since(started))
		return nil, errors.NotConfigured(fmt.Sprintf("environment %q is not ready for scanning", env.Slug))
	}

	if err := s.refreshSnapshots(ctx, env); err != nil {
		s.logger.WithError(err).Warn("Snapshot refresh failed, scanning against last known snapshots")
	}

	declared, err := s.store.GetDeclaredResources(ctx, environmentID)
	if err != nil {
		metrics.RecordScan("error", time.Since(started))
		return nil, err
	}

	result := &ScanResult{
		EnvironmentID: environmentID,
		Scanned:       len(declared),
		StartedAt:     started,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for _, res := range declared {
		wg.Add(1)
		sem <- struct{}{}
		go func(res *iac.DeclaredResource) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := s.processResource(ctx, env, res)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, ResourceError{ResourceID: res.ResourceID, Error: err.Error()})
				metrics.RecordScanResourceFailure()
				return
			}
			switch outcome {
			case outcomeOpened:
				result.Opened++
			case outcomeRefreshed:
				result.Refreshed++
			case outcomeClosed:
				result.Closed++
			default:
				result.Unchanged++
			}
		}(res)
	}
	wg.Wait()

	result.FinishedAt = time.Now()

	if count, err := s.drifts.CountUnresolved(ctx, environmentID); err == nil {
		metrics.SetUnresolvedDrifts(env.Slug, float64(count))
	}
	metrics.RecordScan("success", result.FinishedAt.Sub(started))

	s.logger.WithFields(map[string]interface{}{
		"environment": env.Slug,
		"scanned":     result.Scanned,
		"opened":      result.Opened,
		"refreshed":   result.Refreshed,
		"closed":      result.Closed,
		"failures":    len(result.Failures),
		"duration":    result.FinishedAt.Sub(started).String(),
	}).Info("Environment scan finished")

	return result, nil
}

// ScanAllActive scans every active environment; a failed environment does
// not stop the rest
func (s *ScanService) ScanAllActive(ctx context.Context) ([]*ScanResult, error) {
	envs, err := s.envs.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var results []*ScanResult
	for _, env := range envs {
		result, err := s.ScanEnvironment(ctx, env.ID)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"environment": env.Slug,
			}).WithError(err).Error("Environment scan failed")
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// refreshSnapshots pulls live cloud state through the environment's
// collector, replacing the stored snapshots and deleting snapshots of
// resources no longer present
func (s *ScanService) refreshSnapshots(ctx context.Context, env *environment.Environment) error {
	collector, ok := s.collectors[env.Provider]
	if !ok {
		return nil
	}

	observed, err := collector.Collect(ctx, env)
	if err != nil {
		return err
	}

	now := time.Now()
	declared, err := s.store.GetDeclaredResources(ctx, env.ID)
	if err != nil {
		return err
	}

	for _, res := range declared {
		doc, present := observed[res.ResourceID]
		if !present {
			if err := s.store.DeleteObservedSnapshot(ctx, env.ID, res.ResourceID); err != nil {
				s.logger.WithError(err).Warn("Failed to delete stale snapshot")
			}
			continue
		}
		if err := s.store.PutObservedSnapshot(ctx, env.ID, res.ResourceID, doc, now); err != nil {
			s.logger.WithError(err).Warn("Failed to store snapshot")
		}
	}

	return nil
}

// processResource computes the diff for one declared resource and applies
// the lifecycle transition it implies, under the resource's keyed lock
func (s *ScanService) processResource(ctx context.Context, env *environment.Environment, res *iac.DeclaredResource) (string, error) {
	key := resourceKey(env.ID, res.ResourceID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	observed, err := s.store.GetObservedResource(ctx, env.ID, res.ResourceID)
	if err != nil {
		return "", err
	}

	var observedDoc map[string]interface{}
	resourceDeleted := observed == nil
	if observed != nil {
		observedDoc = observed.State
	}

	changes := s.differ.ComputeDrift(res.DeclaredState, observedDoc)

	existing, err := s.drifts.GetUnresolved(ctx, env.ID, res.ResourceID)
	if err != nil && !errors.IsCode(err, errors.ErrCodeNotFound) {
		return "", err
	}
	hasOpen := err == nil

	if changes.Empty() {
		if !hasOpen {
			return outcomeUnchanged, nil
		}
		return outcomeClosed, s.closeEvent(ctx, existing)
	}

	assessment := detector.Assess(changes, resourceDeleted)

	if hasOpen {
		return outcomeRefreshed, s.refreshEvent(ctx, existing, changes, assessment, resourceDeleted)
	}
	return outcomeOpened, s.openEvent(ctx, env, res, changes, assessment, resourceDeleted)
}

func (s *ScanService) openEvent(ctx context.Context, env *environment.Environment, res *iac.DeclaredResource, changes detector.ChangeSet, assessment detector.Assessment, resourceDeleted bool) error {
	event := &drift.Event{
		EnvironmentID:   env.ID,
		ResourceID:      res.ResourceID,
		DriftType:       driftType(resourceDeleted),
		SeverityScore:   assessment.Severity,
		ConfidenceScore: assessment.Confidence,
		DetectedAt:      time.Now(),
		RiskAssessment:  assessment.Risk,
	}

	id, err := s.drifts.Create(ctx, event, toDriftChanges(0, changes))
	if err != nil {
		return err
	}
	event.ID = id

	metrics.RecordDriftTransition("opened")
	s.record(ctx, audit.ActionDriftOpened, nil, event)

	s.logger.WithFields(map[string]interface{}{
		"environment": env.Slug,
		"resource_id": res.ResourceID,
		"event_id":    id,
		"severity":    assessment.Severity,
		"changes":     len(changes),
	}).Info("Drift opened")

	if assessment.Severity >= s.criticalThreshold {
		s.notify(ctx, env, event)
	}

	return nil
}

func (s *ScanService) refreshEvent(ctx context.Context, event *drift.Event, changes detector.ChangeSet, assessment detector.Assessment, resourceDeleted bool) error {
	before := *event
	event.DriftType = driftType(resourceDeleted)
	event.SeverityScore = assessment.Severity
	event.ConfidenceScore = assessment.Confidence
	event.RiskAssessment = assessment.Risk

	if err := s.drifts.Update(ctx, event); err != nil {
		return err
	}
	if err := s.drifts.ReplaceChanges(ctx, event.ID, toDriftChanges(event.ID, changes)); err != nil {
		return err
	}

	metrics.RecordDriftTransition("refreshed")
	s.record(ctx, audit.ActionDriftRefreshed, &before, event)

	return nil
}

// closeEvent resolves an open event whose drift disappeared, which means the
// cloud converged back to the declared state
func (s *ScanService) closeEvent(ctx context.Context, event *drift.Event) error {
	before := *event
	now := time.Now()
	event.ResolvedAt = &now
	event.ResolutionType = drift.ResolutionAutoRevert
	event.ResolutionNotes = "Observed state converged back to the declared state"

	if err := s.drifts.Update(ctx, event); err != nil {
		return err
	}

	metrics.RecordDriftTransition("closed")
	s.record(ctx, audit.ActionDriftResolved, &before, event)

	s.logger.WithFields(map[string]interface{}{
		"event_id":    event.ID,
		"resource_id": event.ResourceID,
	}).Info("Drift closed, state converged")

	return nil
}

func (s *ScanService) notify(ctx context.Context, env *environment.Environment, event *drift.Event) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.Notify(ctx, notification.Notification{
		EnvironmentID: env.ID,
		ResourceID:    event.ResourceID,
		EventID:       event.ID,
		SeverityScore: event.SeverityScore,
		Message:       fmt.Sprintf("Critical drift on %s in %s (severity %.2f)", event.ResourceID, env.Slug, event.SeverityScore),
		OccurredAt:    time.Now(),
	})
	if err != nil {
		metrics.RecordNotification("error")
		s.logger.WithError(err).Warn("Failed to send drift notification")
		return
	}
	metrics.RecordNotification("sent")
}

// record emits the audit trail entry for a transition; before is nil when a
// new event was opened
func (s *ScanService) record(ctx context.Context, action string, before, after *drift.Event) {
	if s.recorder == nil {
		return
	}

	entry := audit.Event{
		Actor:        "scanner",
		Action:       action,
		ResourceType: "drift_event",
		ResourceID:   fmt.Sprintf("%d", after.ID),
		After:        after,
		OccurredAt:   time.Now(),
	}
	if before != nil {
		entry.Before = before
	}

	err := s.recorder.Record(ctx, entry)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record audit event")
	}
}

func driftType(resourceDeleted bool) string {
	if resourceDeleted {
		return drift.TypeDeleted
	}
	return drift.TypeModified
}

func toDriftChanges(eventID int64, changes detector.ChangeSet) []*drift.Change {
	out := make([]*drift.Change, 0, len(changes))
	for _, c := range changes {
		out = append(out, &drift.Change{
			EventID:            eventID,
			PropertyPath:       c.Path,
			DeclaredValue:      c.DeclaredValue,
			ActualValue:        c.ActualValue,
			ChangeType:         c.ChangeType,
			IsSecurityCritical: c.SecurityCritical,
		})
	}
	return out
}
