package application

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

// Strategy picks an assignee for every task. pool is non-empty, already
// filtered to available candidates and sorted by employee id. Implementations
// are pure over their inputs and return one employee id per task.
type Strategy interface {
	Type() domain.StrategyType
	Assign(tasks []*domain.TaskInstance, pool []domain.AssignmentCandidate) []string
}

// NewStrategy returns the strategy for t. rng is only used by ROLE_BASED.
func NewStrategy(t domain.StrategyType, rng *rand.Rand) (Strategy, error) {
	switch t {
	case domain.StrategyRoundRobin:
		return RoundRobin{}, nil
	case domain.StrategyWorkloadBased:
		return WorkloadBased{}, nil
	case domain.StrategyRoleBased:
		if rng == nil {
			rng = newRand()
		}
		return &RoleBased{rng: rng}, nil
	default:
		return nil, &domain.ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", t)}
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// RoundRobin cycles through the pool in order
type RoundRobin struct{}

func (RoundRobin) Type() domain.StrategyType { return domain.StrategyRoundRobin }

func (RoundRobin) Assign(tasks []*domain.TaskInstance, pool []domain.AssignmentCandidate) []string {
	out := make([]string, len(tasks))
	for k := range tasks {
		out[k] = pool[k%len(pool)].EmployeeID
	}
	return out
}

// WorkloadBased gives each task to the least loaded candidate, counting the
// tasks it already handed out. Ties go to the earlier candidate in the pool.
type WorkloadBased struct{}

func (WorkloadBased) Type() domain.StrategyType { return domain.StrategyWorkloadBased }

func (WorkloadBased) Assign(tasks []*domain.TaskInstance, pool []domain.AssignmentCandidate) []string {
	load := make([]int, len(pool))
	for i, c := range pool {
		load[i] = c.CurrentWorkload
	}

	out := make([]string, len(tasks))
	for k := range tasks {
		best := 0
		for i := 1; i < len(pool); i++ {
			if load[i] < load[best] {
				best = i
			}
		}
		out[k] = pool[best].EmployeeID
		load[best]++
	}
	return out
}

// RoleBased picks uniformly among candidates whose role contains the task's
// required role (case-insensitive), falling back to the whole pool.
type RoleBased struct {
	rng *rand.Rand
}

func (*RoleBased) Type() domain.StrategyType { return domain.StrategyRoleBased }

func (s *RoleBased) Assign(tasks []*domain.TaskInstance, pool []domain.AssignmentCandidate) []string {
	out := make([]string, len(tasks))
	for k, task := range tasks {
		matches := roleMatches(pool, task.RequiredRole)
		if len(matches) == 0 {
			matches = pool
		}
		out[k] = matches[s.rng.IntN(len(matches))].EmployeeID
	}
	return out
}

// RoleMatches reports whether a candidate role satisfies a required role
func RoleMatches(candidateRole, requiredRole string) bool {
	return strings.Contains(strings.ToLower(candidateRole), strings.ToLower(strings.TrimSpace(requiredRole)))
}

func roleMatches(pool []domain.AssignmentCandidate, required string) []domain.AssignmentCandidate {
	var matches []domain.AssignmentCandidate
	for _, c := range pool {
		if RoleMatches(c.Role, required) {
			matches = append(matches, c)
		}
	}
	return matches
}
