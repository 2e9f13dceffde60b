package application

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func newTestEngine(oracle domain.AvailabilityOracle, timeout time.Duration) *AssignmentEngine {
	return NewAssignmentEngine(oracle, timeout, logging.NewNop(), nil).WithRandSource(seeded)
}

func tasksWithRoles(roles ...string) []*domain.TaskInstance {
	tasks := make([]*domain.TaskInstance, len(roles))
	for i, role := range roles {
		tasks[i] = &domain.TaskInstance{
			TaskID:       domain.TaskKey{ProjectID: "PRJ", StepIndex: i}.ID(),
			RequiredRole: role,
			Status:       domain.TaskUnassigned,
		}
	}
	return tasks
}

func candidate(id, role string) domain.AssignmentCandidate {
	return domain.AssignmentCandidate{EmployeeID: id, Name: id, Role: role, IsActive: true}
}

func TestAssign_HalfDayExcludedByEveryStrategy(t *testing.T) {
	oracle := &fakeOracle{statuses: map[string]domain.AvailabilityStatus{
		"E1": domain.HalfDay,
		"E2": domain.Available,
		"E3": domain.Unavailable,
	}}
	candidates := []domain.AssignmentCandidate{
		candidate("E1", "engineer"),
		candidate("E2", "designer"),
		candidate("E3", "engineer"),
	}

	for _, strategy := range domain.StrategyTypes() {
		t.Run(string(strategy), func(t *testing.T) {
			tasks := tasksWithRoles("engineer", "engineer", "designer", "")
			result, err := newTestEngine(oracle, time.Second).Assign(context.Background(), tasks, candidates, strategy, monday)
			require.NoError(t, err)

			assert.Equal(t, 4, result.AssignedCount)
			assert.Zero(t, result.UnassignedCount)
			assert.Empty(t, result.Warnings)
			for _, task := range result.Tasks {
				assert.Equal(t, "E2", task.AssigneeID)
				assert.Equal(t, domain.TaskPlanned, task.Status)
			}
		})
	}
}

func TestAssign_EmptyPool(t *testing.T) {
	oracle := &fakeOracle{statuses: map[string]domain.AvailabilityStatus{"E1": domain.Unavailable}}
	candidates := []domain.AssignmentCandidate{
		candidate("E1", "engineer"),
		{EmployeeID: "E2", Role: "engineer", IsActive: false},
	}
	tasks := tasksWithRoles("engineer", "engineer")
	tasks[0].AssigneeID = "stale"

	result, err := newTestEngine(oracle, time.Second).Assign(context.Background(), tasks, candidates, domain.StrategyRoundRobin, monday)
	require.NoError(t, err)

	assert.Zero(t, result.AssignedCount)
	assert.Equal(t, 2, result.UnassignedCount)
	for _, task := range result.Tasks {
		assert.Empty(t, task.AssigneeID)
		assert.Equal(t, domain.TaskUnassigned, task.Status)
	}
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, domain.WarningNoAvailableCandidate, result.Warnings[0].Code)
}

func TestAssign_OracleFailuresFailClosed(t *testing.T) {
	oracle := &fakeOracle{
		errs:  map[string]error{"E1": errors.New("attendance service down")},
		delay: map[string]time.Duration{"E2": time.Second},
	}
	candidates := []domain.AssignmentCandidate{
		candidate("E2", "engineer"),
		candidate("E1", "engineer"),
		candidate("E3", "engineer"),
	}

	start := time.Now()
	result, err := newTestEngine(oracle, 50*time.Millisecond).Assign(context.Background(), tasksWithRoles("engineer", "engineer"), candidates, domain.StrategyWorkloadBased, monday)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond, "lookups are bounded by the timeout")

	assert.Equal(t, 2, result.AssignedCount)
	for _, task := range result.Tasks {
		assert.Equal(t, "E3", task.AssigneeID)
	}

	require.Len(t, result.Warnings, 2)
	assert.Equal(t, domain.WarningDependencyUnavailable, result.Warnings[0].Code)
	assert.Equal(t, "E1", result.Warnings[0].EmployeeID)
	assert.Equal(t, "E2", result.Warnings[1].EmployeeID)
}

func TestAssign_UnknownStrategy(t *testing.T) {
	_, err := newTestEngine(&fakeOracle{}, time.Second).Assign(context.Background(), nil, nil, "FASTEST", monday)
	fields, ok := domain.ValidationFields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "strategy")
}

func TestRoundRobin_StableOrder(t *testing.T) {
	pool := []domain.AssignmentCandidate{candidate("A", ""), candidate("B", ""), candidate("C", "")}
	got := RoundRobin{}.Assign(tasksWithRoles("", "", "", "", ""), pool)
	assert.Equal(t, []string{"A", "B", "C", "A", "B"}, got)
}

func TestWorkloadBased_PrefersIdleCandidates(t *testing.T) {
	pool := []domain.AssignmentCandidate{
		{EmployeeID: "A", CurrentWorkload: 3},
		{EmployeeID: "B", CurrentWorkload: 1},
		{EmployeeID: "C", CurrentWorkload: 0},
	}
	got := WorkloadBased{}.Assign(tasksWithRoles("", "", "", ""), pool)
	assert.Equal(t, []string{"C", "B", "C", "B"}, got)
}

func TestRoleBased_FallsBackToPool(t *testing.T) {
	strategy, err := NewStrategy(domain.StrategyRoleBased, seeded())
	require.NoError(t, err)

	pool := []domain.AssignmentCandidate{candidate("A", "Senior Engineer"), candidate("B", "painter")}
	got := strategy.Assign(tasksWithRoles("ENGINEER", "pilot"), pool)
	assert.Equal(t, "A", got[0])
	assert.Contains(t, []string{"A", "B"}, got[1])
}

var (
	roleNames      = []string{"engineer", "designer", "qa", ""}
	candidateRoles = []string{"Senior Engineer", "designer", "QA lead", "ops"}
	statuses       = []domain.AvailabilityStatus{domain.Available, domain.Unavailable, domain.HalfDay}
)

func drawPool(t *rapid.T) []domain.AssignmentCandidate {
	n := rapid.IntRange(1, 6).Draw(t, "poolSize")
	pool := make([]domain.AssignmentCandidate, n)
	for i := range pool {
		pool[i] = domain.AssignmentCandidate{
			EmployeeID:      string(rune('A' + i)),
			Role:            rapid.SampledFrom(candidateRoles).Draw(t, "role"),
			IsActive:        true,
			CurrentWorkload: rapid.IntRange(0, 5).Draw(t, "load"),
		}
	}
	return pool
}

func drawTasks(t *rapid.T) []*domain.TaskInstance {
	m := rapid.IntRange(0, 20).Draw(t, "tasks")
	roles := make([]string, m)
	for i := range roles {
		roles[i] = rapid.SampledFrom(roleNames).Draw(t, "requiredRole")
	}
	return tasksWithRoles(roles...)
}

func TestRoundRobin_Spread_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := drawPool(t)
		got := RoundRobin{}.Assign(drawTasks(t), pool)

		counts := map[string]int{}
		for _, c := range pool {
			counts[c.EmployeeID] = 0
		}
		for _, id := range got {
			counts[id]++
		}
		lo, hi := len(got), 0
		for _, n := range counts {
			lo, hi = min(lo, n), max(hi, n)
		}
		if len(got) > 0 && hi-lo > 1 {
			t.Fatalf("spread %d between busiest and idlest candidate", hi-lo)
		}
	})
}

func TestWorkloadBased_NeverBusier_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := drawPool(t)
		got := WorkloadBased{}.Assign(drawTasks(t), pool)

		load := map[string]int{}
		for _, c := range pool {
			load[c.EmployeeID] = c.CurrentWorkload
		}
		for k, id := range got {
			for other, n := range load {
				if n < load[id] {
					t.Fatalf("task %d went to %s (load %d) while %s had %d", k, id, load[id], other, n)
				}
			}
			load[id]++
		}
	})
}

func TestRoleBased_PrefersMatches_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := drawPool(t)
		tasks := drawTasks(t)
		strategy, err := NewStrategy(domain.StrategyRoleBased, rand.New(rand.NewPCG(rapid.Uint64().Draw(t, "seed"), 1)))
		if err != nil {
			t.Fatal(err)
		}

		byID := map[string]domain.AssignmentCandidate{}
		for _, c := range pool {
			byID[c.EmployeeID] = c
		}
		for k, id := range strategy.Assign(tasks, pool) {
			if len(roleMatches(pool, tasks[k].RequiredRole)) > 0 && !RoleMatches(byID[id].Role, tasks[k].RequiredRole) {
				t.Fatalf("task %d (%s) went to %s (%s) although a match existed", k, tasks[k].RequiredRole, id, byID[id].Role)
			}
		}
	})
}

func TestAssign_OnlyAvailableCandidates_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := drawPool(t)
		oracle := &fakeOracle{statuses: map[string]domain.AvailabilityStatus{}}
		eligible := map[string]bool{}
		for i := range pool {
			pool[i].IsActive = rapid.Bool().Draw(t, "active")
			status := rapid.SampledFrom(statuses).Draw(t, "status")
			oracle.statuses[pool[i].EmployeeID] = status
			if pool[i].IsActive && status == domain.Available {
				eligible[pool[i].EmployeeID] = true
			}
		}
		strategy := rapid.SampledFrom(domain.StrategyTypes()).Draw(t, "strategy")
		tasks := drawTasks(t)

		result, err := newTestEngine(oracle, time.Second).Assign(context.Background(), tasks, pool, strategy, monday)
		if err != nil {
			t.Fatal(err)
		}
		for _, task := range result.Tasks {
			if task.AssigneeID == "" {
				if len(eligible) > 0 {
					t.Fatalf("task %s left unassigned with eligible candidates", task.TaskID)
				}
				continue
			}
			if !eligible[task.AssigneeID] {
				t.Fatalf("task %s assigned to ineligible %s", task.TaskID, task.AssigneeID)
			}
		}
		if result.AssignedCount+result.UnassignedCount != len(tasks) {
			t.Fatalf("counts %d+%d do not cover %d tasks", result.AssignedCount, result.UnassignedCount, len(tasks))
		}
	})
}
