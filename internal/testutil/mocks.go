package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/driftguard/driftguard/internal/domain/analysis"
	"github.com/driftguard/driftguard/internal/domain/audit"
	"github.com/driftguard/driftguard/internal/domain/drift"
	"github.com/driftguard/driftguard/internal/domain/environment"
	"github.com/driftguard/driftguard/internal/domain/iac"
	"github.com/driftguard/driftguard/internal/domain/recommendation"
	"github.com/driftguard/driftguard/internal/domain/state"
	"github.com/driftguard/driftguard/internal/pkg/errors"
)

// MockEnvironmentRepository is an in-memory environment.Repository
type MockEnvironmentRepository struct {
	mu           sync.Mutex
	Environments map[int64]*environment.Environment
	NextID       int64
	GetError     error
}

func NewMockEnvironmentRepository() *MockEnvironmentRepository {
	return &MockEnvironmentRepository{
		Environments: make(map[int64]*environment.Environment),
		NextID:       1,
	}
}

func (m *MockEnvironmentRepository) Create(ctx context.Context, env *environment.Environment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env.ID = m.NextID
	m.NextID++
	m.Environments[env.ID] = env
	return env.ID, nil
}

func (m *MockEnvironmentRepository) GetByID(ctx context.Context, id int64) (*environment.Environment, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	env, ok := m.Environments[id]
	if !ok {
		return nil, errors.NotFound("environment")
	}
	return env, nil
}

func (m *MockEnvironmentRepository) GetBySlug(ctx context.Context, orgID int64, slug string) (*environment.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, env := range m.Environments {
		if env.OrgID == orgID && env.Slug == slug {
			return env, nil
		}
	}
	return nil, errors.NotFound("environment")
}

func (m *MockEnvironmentRepository) Update(ctx context.Context, env *environment.Environment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Environments[env.ID]; !ok {
		return errors.NotFound("environment")
	}
	m.Environments[env.ID] = env
	return nil
}

func (m *MockEnvironmentRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Environments[id]; !ok {
		return errors.NotFound("environment")
	}
	delete(m.Environments, id)
	return nil
}

func (m *MockEnvironmentRepository) List(ctx context.Context, orgID int64) ([]*environment.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*environment.Environment
	for _, env := range m.Environments {
		if env.OrgID == orgID {
			out = append(out, env)
		}
	}
	sortEnvironments(out)
	return out, nil
}

func (m *MockEnvironmentRepository) ListActive(ctx context.Context) ([]*environment.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*environment.Environment
	for _, env := range m.Environments {
		if env.IsActive {
			out = append(out, env)
		}
	}
	sortEnvironments(out)
	return out, nil
}

func sortEnvironments(envs []*environment.Environment) {
	sort.Slice(envs, func(i, j int) bool { return envs[i].ID < envs[j].ID })
}

// MockIaCRepository is an in-memory iac.Repository
type MockIaCRepository struct {
	mu           sync.Mutex
	Repositories map[int64]*iac.SourceRepository
	Declared     map[int64]*iac.DeclaredResource
	NextID       int64
}

func NewMockIaCRepository() *MockIaCRepository {
	return &MockIaCRepository{
		Repositories: make(map[int64]*iac.SourceRepository),
		Declared:     make(map[int64]*iac.DeclaredResource),
		NextID:       1,
	}
}

func (m *MockIaCRepository) CreateSourceRepository(ctx context.Context, repo *iac.SourceRepository) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo.ID = m.NextID
	m.NextID++
	m.Repositories[repo.ID] = repo
	return repo.ID, nil
}

func (m *MockIaCRepository) GetSourceRepository(ctx context.Context, id int64) (*iac.SourceRepository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.Repositories[id]
	if !ok {
		return nil, errors.NotFound("repository")
	}
	return repo, nil
}

func (m *MockIaCRepository) ListSourceRepositories(ctx context.Context, orgID int64) ([]*iac.SourceRepository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*iac.SourceRepository
	for _, repo := range m.Repositories {
		if repo.OrgID == orgID {
			out = append(out, repo)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockIaCRepository) UpsertDeclaredResource(ctx context.Context, res *iac.DeclaredResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Declared {
		if existing.RepositoryID == res.RepositoryID && existing.ResourceID == res.ResourceID {
			res.ID = existing.ID
			m.Declared[existing.ID] = res
			return nil
		}
	}
	res.ID = m.NextID
	m.NextID++
	m.Declared[res.ID] = res
	return nil
}

func (m *MockIaCRepository) GetDeclaredResource(ctx context.Context, environmentID int64, resourceID string) (*iac.DeclaredResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.Declared {
		if res.EnvironmentID == environmentID && res.ResourceID == resourceID {
			return res, nil
		}
	}
	return nil, errors.NotFound("declared resource")
}

func (m *MockIaCRepository) ListDeclaredResources(ctx context.Context, environmentID int64) ([]*iac.DeclaredResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*iac.DeclaredResource
	for _, res := range m.Declared {
		if res.EnvironmentID == environmentID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockIaCRepository) DeleteDeclaredResource(ctx context.Context, repositoryID int64, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, res := range m.Declared {
		if res.RepositoryID == repositoryID && res.ResourceID == resourceID {
			delete(m.Declared, id)
			return nil
		}
	}
	return errors.NotFound("declared resource")
}

// MockStateStore is an in-memory state.Store backed by a MockIaCRepository
// for declared resources
type MockStateStore struct {
	mu        sync.Mutex
	IaC       *MockIaCRepository
	Snapshots map[string]*state.ObservedResource
}

func NewMockStateStore(iacs *MockIaCRepository) *MockStateStore {
	return &MockStateStore{
		IaC:       iacs,
		Snapshots: make(map[string]*state.ObservedResource),
	}
}

func snapshotKey(environmentID int64, resourceID string) string {
	return fmt.Sprintf("%d/%s", environmentID, resourceID)
}

func (m *MockStateStore) GetDeclaredResources(ctx context.Context, environmentID int64) ([]*iac.DeclaredResource, error) {
	return m.IaC.ListDeclaredResources(ctx, environmentID)
}

func (m *MockStateStore) GetObservedResource(ctx context.Context, environmentID int64, resourceID string) (*state.ObservedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Snapshots[snapshotKey(environmentID, resourceID)], nil
}

func (m *MockStateStore) PutObservedSnapshot(ctx context.Context, environmentID int64, resourceID string, doc map[string]interface{}, observedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots[snapshotKey(environmentID, resourceID)] = &state.ObservedResource{
		EnvironmentID: environmentID,
		ResourceID:    resourceID,
		State:         doc,
		ObservedAt:    observedAt,
	}
	return nil
}

func (m *MockStateStore) DeleteObservedSnapshot(ctx context.Context, environmentID int64, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Snapshots, snapshotKey(environmentID, resourceID))
	return nil
}

// MockDriftRepository is an in-memory drift.Repository. Create rejects a
// second unresolved event per (environment, resource) the way the partial
// unique index does. GetUnresolvedHook, when set, runs at the start of every
// GetUnresolved call; tests use it to inject work into a scan's critical
// section.
type MockDriftRepository struct {
	mu                sync.Mutex
	Events            map[int64]*drift.Event
	Changes           map[int64][]*drift.Change
	NextID            int64
	GetUnresolvedHook func(environmentID int64, resourceID string)
}

func NewMockDriftRepository() *MockDriftRepository {
	return &MockDriftRepository{
		Events:  make(map[int64]*drift.Event),
		Changes: make(map[int64][]*drift.Change),
		NextID:  1,
	}
}

func (m *MockDriftRepository) Create(ctx context.Context, event *drift.Event, changes []*drift.Change) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.EnvironmentID == event.EnvironmentID && e.ResourceID == event.ResourceID && e.ResolvedAt == nil {
			return 0, errors.DatabaseError("unresolved drift event already exists for resource", nil)
		}
	}
	event.ID = m.NextID
	m.NextID++
	m.Events[event.ID] = event
	for _, c := range changes {
		c.EventID = event.ID
	}
	m.Changes[event.ID] = changes
	return event.ID, nil
}

func (m *MockDriftRepository) GetByID(ctx context.Context, id int64) (*drift.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.Events[id]
	if !ok {
		return nil, errors.NotFound("drift event")
	}
	copied := *event
	return &copied, nil
}

func (m *MockDriftRepository) GetUnresolved(ctx context.Context, environmentID int64, resourceID string) (*drift.Event, error) {
	if m.GetUnresolvedHook != nil {
		m.GetUnresolvedHook(environmentID, resourceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.EnvironmentID == environmentID && e.ResourceID == resourceID && e.ResolvedAt == nil {
			copied := *e
			return &copied, nil
		}
	}
	return nil, errors.NotFound("drift event")
}

func (m *MockDriftRepository) Update(ctx context.Context, event *drift.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Events[event.ID]; !ok {
		return errors.NotFound("drift event")
	}
	copied := *event
	m.Events[event.ID] = &copied
	return nil
}

func (m *MockDriftRepository) ReplaceChanges(ctx context.Context, eventID int64, changes []*drift.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		c.EventID = eventID
	}
	m.Changes[eventID] = changes
	return nil
}

func (m *MockDriftRepository) ListChanges(ctx context.Context, eventID int64) ([]*drift.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changes := append([]*drift.Change(nil), m.Changes[eventID]...)
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].IsSecurityCritical != changes[j].IsSecurityCritical {
			return changes[i].IsSecurityCritical
		}
		return changes[i].PropertyPath < changes[j].PropertyPath
	})
	return changes, nil
}

func (m *MockDriftRepository) List(ctx context.Context, filter drift.Filter, limit, offset int) ([]*drift.Event, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*drift.Event
	for _, e := range m.Events {
		if filter.EnvironmentID != 0 && e.EnvironmentID != filter.EnvironmentID {
			continue
		}
		if filter.ResourceID != "" && e.ResourceID != filter.ResourceID {
			continue
		}
		if filter.DriftType != "" && e.DriftType != filter.DriftType {
			continue
		}
		if filter.Unresolved && e.ResolvedAt != nil {
			continue
		}
		copied := *e
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SeverityScore != matched[j].SeverityScore {
			return matched[i].SeverityScore > matched[j].SeverityScore
		}
		return matched[i].ID > matched[j].ID
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *MockDriftRepository) CountUnresolved(ctx context.Context, environmentID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, e := range m.Events {
		if e.EnvironmentID == environmentID && e.ResolvedAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *MockDriftRepository) Summarize(ctx context.Context, environmentID int64) (*drift.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &drift.Summary{}
	var severitySum float64
	for _, e := range m.Events {
		if e.EnvironmentID != environmentID {
			continue
		}
		summary.Total++
		if e.ResolvedAt != nil {
			summary.Resolved++
		} else {
			summary.Unresolved++
			severitySum += e.SeverityScore
		}
	}
	if summary.Unresolved > 0 {
		summary.AvgSeverity = severitySum / float64(summary.Unresolved)
	}
	return summary, nil
}

func (m *MockDriftRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Events[id]; !ok {
		return errors.NotFound("drift event")
	}
	delete(m.Events, id)
	delete(m.Changes, id)
	return nil
}

// MockAuditRecorder captures audit events in memory
type MockAuditRecorder struct {
	mu     sync.Mutex
	Events []audit.Event
}

func NewMockAuditRecorder() *MockAuditRecorder {
	return &MockAuditRecorder{}
}

func (m *MockAuditRecorder) Record(ctx context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// ByAction returns the captured events carrying the given action, in
// recording order
func (m *MockAuditRecorder) ByAction(action string) []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Event
	for _, e := range m.Events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// MockAnalysisRepository is an in-memory analysis.Repository
type MockAnalysisRepository struct {
	mu       sync.Mutex
	Analyses map[int64]*analysis.CauseAnalysis
	NextID   int64
}

func NewMockAnalysisRepository() *MockAnalysisRepository {
	return &MockAnalysisRepository{
		Analyses: make(map[int64]*analysis.CauseAnalysis),
		NextID:   1,
	}
}

func (m *MockAnalysisRepository) Create(ctx context.Context, a *analysis.CauseAnalysis) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.NextID
	m.NextID++
	m.Analyses[a.ID] = a
	return a.ID, nil
}

func (m *MockAnalysisRepository) GetByEvent(ctx context.Context, eventID int64) (*analysis.CauseAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *analysis.CauseAnalysis
	for _, a := range m.Analyses {
		if a.EventID != eventID || a.Superseded {
			continue
		}
		if latest == nil || a.ID > latest.ID {
			latest = a
		}
	}
	if latest == nil {
		return nil, errors.NotFound("cause analysis")
	}
	copied := *latest
	return &copied, nil
}

func (m *MockAnalysisRepository) Supersede(ctx context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Analyses {
		if a.EventID == eventID && !a.Superseded {
			a.Superseded = true
		}
	}
	return nil
}

func (m *MockAnalysisRepository) ListByEvent(ctx context.Context, eventID int64) ([]*analysis.CauseAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*analysis.CauseAnalysis
	for _, a := range m.Analyses {
		if a.EventID == eventID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// MockRecommendationRepository is an in-memory recommendation.Repository
type MockRecommendationRepository struct {
	mu              sync.Mutex
	Recommendations map[int64]*recommendation.Recommendation
	Feedbacks       map[int64][]*recommendation.Feedback
	NextID          int64
}

func NewMockRecommendationRepository() *MockRecommendationRepository {
	return &MockRecommendationRepository{
		Recommendations: make(map[int64]*recommendation.Recommendation),
		Feedbacks:       make(map[int64][]*recommendation.Feedback),
		NextID:          1,
	}
}

func (m *MockRecommendationRepository) Create(ctx context.Context, rec *recommendation.Recommendation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.NextID
	m.NextID++
	m.Recommendations[rec.ID] = rec
	return rec.ID, nil
}

func (m *MockRecommendationRepository) GetByID(ctx context.Context, id int64) (*recommendation.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Recommendations[id]
	if !ok {
		return nil, errors.NotFound("recommendation")
	}
	copied := *rec
	return &copied, nil
}

func (m *MockRecommendationRepository) Update(ctx context.Context, rec *recommendation.Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Recommendations[rec.ID]; !ok {
		return errors.NotFound("recommendation")
	}
	copied := *rec
	m.Recommendations[rec.ID] = &copied
	return nil
}

func (m *MockRecommendationRepository) List(ctx context.Context, filter recommendation.Filter, limit, offset int) ([]*recommendation.Recommendation, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*recommendation.Recommendation
	for _, rec := range m.Recommendations {
		if filter.EventID != 0 && rec.EventID != filter.EventID {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.Priority != "" && rec.Priority != filter.Priority {
			continue
		}
		if filter.ActiveOnly && !rec.Active() {
			continue
		}
		copied := *rec
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ConfidenceScore != matched[j].ConfidenceScore {
			return matched[i].ConfidenceScore > matched[j].ConfidenceScore
		}
		return matched[i].ID > matched[j].ID
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *MockRecommendationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired int64
	for _, rec := range m.Recommendations {
		if rec.Active() && rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
			rec.IsExpired = true
			expired++
		}
	}
	return expired, nil
}

func (m *MockRecommendationRepository) AddFeedback(ctx context.Context, fb *recommendation.Feedback) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb.ID = m.NextID
	m.NextID++
	m.Feedbacks[fb.RecommendationID] = append(m.Feedbacks[fb.RecommendationID], fb)
	return fb.ID, nil
}

func (m *MockRecommendationRepository) ListFeedback(ctx context.Context, recommendationID int64) ([]*recommendation.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*recommendation.Feedback(nil), m.Feedbacks[recommendationID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
