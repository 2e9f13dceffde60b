package application

import (
	"context"
	"sync"
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

type stubTemplateRepo struct {
	SaveFn           func(ctx context.Context, t *domain.RoadmapTemplate) error
	FindByIDFn       func(ctx context.Context, id string) (*domain.RoadmapTemplate, error)
	FindAllFn        func(ctx context.Context) ([]*domain.RoadmapTemplate, error)
	MarkReferencedFn func(ctx context.Context, id string) error
}

func (s *stubTemplateRepo) Save(ctx context.Context, t *domain.RoadmapTemplate) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, t)
	}
	return nil
}

func (s *stubTemplateRepo) FindByID(ctx context.Context, id string) (*domain.RoadmapTemplate, error) {
	if s.FindByIDFn != nil {
		return s.FindByIDFn(ctx, id)
	}
	return nil, nil
}

func (s *stubTemplateRepo) FindAll(ctx context.Context) ([]*domain.RoadmapTemplate, error) {
	if s.FindAllFn != nil {
		return s.FindAllFn(ctx)
	}
	return nil, nil
}

func (s *stubTemplateRepo) MarkReferenced(ctx context.Context, id string) error {
	if s.MarkReferencedFn != nil {
		return s.MarkReferencedFn(ctx, id)
	}
	return nil
}

type stubProjectRepo struct {
	SaveFn     func(ctx context.Context, p *domain.Project) error
	FindByIDFn func(ctx context.Context, id string) (*domain.Project, error)
}

func (s *stubProjectRepo) Save(ctx context.Context, p *domain.Project) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, p)
	}
	return nil
}

func (s *stubProjectRepo) FindByID(ctx context.Context, id string) (*domain.Project, error) {
	if s.FindByIDFn != nil {
		return s.FindByIDFn(ctx, id)
	}
	return nil, nil
}

type stubRoadmapRepo struct {
	SaveFn                func(ctx context.Context, r *domain.Roadmap) error
	FindByIDFn            func(ctx context.Context, id string) (*domain.Roadmap, error)
	FindByStageIDFn       func(ctx context.Context, stageID string) (*domain.Roadmap, error)
	FindWithStageStatusFn func(ctx context.Context, statuses ...domain.StageStatus) ([]*domain.Roadmap, error)
}

func (s *stubRoadmapRepo) Save(ctx context.Context, r *domain.Roadmap) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, r)
	}
	return nil
}

func (s *stubRoadmapRepo) FindByID(ctx context.Context, id string) (*domain.Roadmap, error) {
	if s.FindByIDFn != nil {
		return s.FindByIDFn(ctx, id)
	}
	return nil, nil
}

func (s *stubRoadmapRepo) FindByStageID(ctx context.Context, stageID string) (*domain.Roadmap, error) {
	if s.FindByStageIDFn != nil {
		return s.FindByStageIDFn(ctx, stageID)
	}
	return nil, nil
}

func (s *stubRoadmapRepo) FindWithStageStatus(ctx context.Context, statuses ...domain.StageStatus) ([]*domain.Roadmap, error) {
	if s.FindWithStageStatusFn != nil {
		return s.FindWithStageStatusFn(ctx, statuses...)
	}
	return nil, nil
}

// fakeTaskRepo keeps tasks in memory keyed like the unique index
type fakeTaskRepo struct {
	mu       sync.Mutex
	tasks    map[domain.TaskKey]*domain.TaskInstance
	countErr error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[domain.TaskKey]*domain.TaskInstance{}}
}

func (r *fakeTaskRepo) insert(tasks ...*domain.TaskInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tasks {
		if _, ok := r.tasks[t.Key()]; ok {
			return domain.ErrTaskExists
		}
	}
	for _, t := range tasks {
		cp := *t
		r.tasks[t.Key()] = &cp
	}
	return nil
}

func (r *fakeTaskRepo) FindByProject(_ context.Context, projectID string) ([]*domain.TaskInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TaskInstance
	for _, t := range r.tasks {
		if t.ProjectID == projectID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) CountActiveByAssignee(context.Context) (map[string]int, error) {
	if r.countErr != nil {
		return nil, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, t := range r.tasks {
		if t.AssigneeID != "" && t.Status.IsActive() {
			counts[t.AssigneeID]++
		}
	}
	return counts, nil
}

// fakeGenerationRepo writes run tasks into tasks when set
type fakeGenerationRepo struct {
	mu      sync.Mutex
	tasks   *fakeTaskRepo
	records []*domain.GenerationRecord
	saveErr error
}

func (r *fakeGenerationRepo) Save(_ context.Context, record *domain.GenerationRecord, tasks []*domain.TaskInstance) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.tasks != nil {
		if err := r.tasks.insert(tasks...); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	record.ClearDomainEvents()
	return nil
}

func (r *fakeGenerationRepo) FindRecent(_ context.Context, limit int) ([]*domain.GenerationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.GenerationRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *fakeGenerationRepo) Totals(context.Context) (*domain.GenerationTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := &domain.GenerationTotals{StrategyUsage: map[domain.StrategyType]int{}}
	for _, rec := range r.records {
		totals.TotalGenerations++
		totals.TotalTasksGenerated += rec.TaskCount
		totals.StrategyUsage[rec.Strategy]++
	}
	return totals, nil
}

type stubDirectory struct {
	candidates []domain.AssignmentCandidate
	err        error
}

func (d *stubDirectory) ListActive(context.Context) ([]domain.AssignmentCandidate, error) {
	if d.err != nil {
		return nil, d.err
	}
	return append([]domain.AssignmentCandidate(nil), d.candidates...), nil
}

// fakeOracle answers from a map; unknown employees are AVAILABLE
type fakeOracle struct {
	statuses map[string]domain.AvailabilityStatus
	errs     map[string]error
	delay    map[string]time.Duration
}

func (o *fakeOracle) StatusOf(ctx context.Context, employeeID string, _ time.Time) (domain.AvailabilityStatus, error) {
	if d, ok := o.delay[employeeID]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := o.errs[employeeID]; ok {
		return "", err
	}
	if s, ok := o.statuses[employeeID]; ok {
		return s, nil
	}
	return domain.Available, nil
}
