package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

func TestGenerationLedger_Stats(t *testing.T) {
	repo := &fakeGenerationRepo{}
	ledger := NewGenerationLedger(repo, logging.NewNop())
	ctx := context.Background()

	sizes := []int{4, 2, 3, 1, 6, 5, 2}
	for i, size := range sizes {
		strategy := domain.StrategyRoundRobin
		if i%3 == 2 {
			strategy = domain.StrategyRoleBased
		}
		tasks := make([]*domain.TaskInstance, size)
		for k := range tasks {
			tasks[k] = &domain.TaskInstance{TaskID: fmt.Sprintf("T-%d-%d", i, k)}
		}
		record := domain.NewGenerationRecord(fmt.Sprintf("GEN-%d", i), "PRJ", "RM", strategy, tasks, nil, "tester", monday.Add(time.Duration(i)*time.Minute))
		require.NoError(t, ledger.Record(ctx, record, tasks))
	}

	stats, err := ledger.Stats(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalGenerations)
	assert.Equal(t, 23, stats.TotalTasksGenerated)
	assert.Equal(t, 3.3, stats.AverageTasksPerGeneration)
	assert.Equal(t, map[string]int{"ROUND_ROBIN": 5, "ROLE_BASED": 2, "WORKLOAD_BASED": 0}, stats.StrategyUsage)

	require.Len(t, stats.Recent, DefaultRecentGenerations)
	assert.Equal(t, "GEN-6", stats.Recent[0].GenerationID, "newest first")
	assert.Equal(t, "GEN-2", stats.Recent[4].GenerationID)
}

func TestComputeGenerationStats_Empty(t *testing.T) {
	stats := ComputeGenerationStats(&domain.GenerationTotals{}, nil)
	assert.Zero(t, stats.AverageTasksPerGeneration)
	assert.Empty(t, stats.Recent)
	assert.Len(t, stats.StrategyUsage, 3)
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	var mu sync.Mutex
	inside := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()

			mu.Lock()
			inside[key]++
			if inside[key] > 1 {
				t.Errorf("two holders of %s", key)
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside[key]--
			mu.Unlock()
		}(fmt.Sprintf("k%d", i%4))
	}
	wg.Wait()

	assert.Zero(t, locks.size(), "released entries are dropped")
}
