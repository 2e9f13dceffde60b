package application

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
)

// DefaultAvailabilityTimeout bounds a single availability lookup
const DefaultAvailabilityTimeout = 2 * time.Second

// AssignmentResult summarizes one assignment pass
type AssignmentResult struct {
	Tasks           []*domain.TaskInstance
	AssignedCount   int
	UnassignedCount int
	Warnings        []domain.Warning
}

// AssignmentEngine assigns tasks to available candidates with a strategy
type AssignmentEngine struct {
	oracle  domain.AvailabilityOracle
	timeout time.Duration
	newRand func() *rand.Rand
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewAssignmentEngine creates a new AssignmentEngine. A non-positive timeout
// falls back to DefaultAvailabilityTimeout.
func NewAssignmentEngine(oracle domain.AvailabilityOracle, timeout time.Duration, logger *logging.Logger, m *metrics.Metrics) *AssignmentEngine {
	if timeout <= 0 {
		timeout = DefaultAvailabilityTimeout
	}
	return &AssignmentEngine{
		oracle:  oracle,
		timeout: timeout,
		newRand: newRand,
		logger:  logger,
		metrics: m,
	}
}

// WithRandSource makes ROLE_BASED draws reproducible
func (e *AssignmentEngine) WithRandSource(newRand func() *rand.Rand) *AssignmentEngine {
	e.newRand = newRand
	return e
}

// Assign filters candidates to the available pool for day and assigns every
// task with the selected strategy. An empty pool is not an error: tasks stay
// UNASSIGNED and the result carries a NO_AVAILABLE_CANDIDATE warning.
func (e *AssignmentEngine) Assign(ctx context.Context, tasks []*domain.TaskInstance, candidates []domain.AssignmentCandidate, strategyType domain.StrategyType, day time.Time) (*AssignmentResult, error) {
	strategy, err := NewStrategy(strategyType, e.newRand())
	if err != nil {
		return nil, err
	}

	pool, warnings := e.availablePool(ctx, candidates, day)
	result := &AssignmentResult{Tasks: tasks, Warnings: warnings}

	if len(pool) == 0 {
		for _, task := range tasks {
			task.Unassign()
		}
		result.UnassignedCount = len(tasks)
		if len(tasks) > 0 {
			result.Warnings = append(result.Warnings, domain.Warning{
				Code:    domain.WarningNoAvailableCandidate,
				Message: fmt.Sprintf("no available candidate on %s", domain.DayKey(day)),
			})
		}
		e.metrics.RecordAssignments(string(strategyType), 0, result.UnassignedCount)
		return result, nil
	}

	for k, employeeID := range strategy.Assign(tasks, pool) {
		tasks[k].AssignTo(employeeID)
	}
	result.AssignedCount = len(tasks)

	e.metrics.RecordAssignments(string(strategyType), result.AssignedCount, 0)
	return result, nil
}

type lookup struct {
	status domain.AvailabilityStatus
	err    error
}

// availablePool snapshots the active candidates, queries the oracle for each
// concurrently and keeps only AVAILABLE ones. Lookups that fail or time out
// exclude the candidate.
func (e *AssignmentEngine) availablePool(ctx context.Context, candidates []domain.AssignmentCandidate, day time.Time) ([]domain.AssignmentCandidate, []domain.Warning) {
	active := make([]domain.AssignmentCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].EmployeeID < active[j].EmployeeID })

	results := make([]lookup, len(active))
	var wg sync.WaitGroup
	for i := range active {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.statusOf(ctx, active[i].EmployeeID, day)
		}(i)
	}
	wg.Wait()

	var pool []domain.AssignmentCandidate
	var warnings []domain.Warning
	for i, c := range active {
		res := results[i]
		if res.err != nil {
			e.metrics.RecordAvailabilityLookup("error")
			e.logger.WithError(res.err).Warn("Availability lookup failed, excluding candidate", "employeeId", c.EmployeeID)
			warnings = append(warnings, domain.Warning{
				Code:       domain.WarningDependencyUnavailable,
				EmployeeID: c.EmployeeID,
				Message:    "availability lookup failed: " + res.err.Error(),
			})
			continue
		}
		e.metrics.RecordAvailabilityLookup(string(res.status))
		if res.status.Assignable() {
			pool = append(pool, c)
		}
	}
	return pool, warnings
}

// statusOf bounds one oracle call by the engine timeout even when the
// oracle ignores its context.
func (e *AssignmentEngine) statusOf(ctx context.Context, employeeID string, day time.Time) lookup {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan lookup, 1)
	go func() {
		status, err := e.oracle.StatusOf(ctx, employeeID, day)
		done <- lookup{status: status, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return lookup{err: fmt.Errorf("availability of %s: %w", employeeID, ctx.Err())}
	}
}
