package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

// DefaultRecentGenerations is the number of recent runs returned by Stats
const DefaultRecentGenerations = 5

// GenerationLedger is the append-only log of generation runs
type GenerationLedger struct {
	repo   domain.GenerationRepository
	logger *logging.Logger
}

// NewGenerationLedger creates a new GenerationLedger
func NewGenerationLedger(repo domain.GenerationRepository, logger *logging.Logger) *GenerationLedger {
	return &GenerationLedger{repo: repo, logger: logger}
}

// Record appends a run together with the tasks it created. Nothing is
// stored when it fails.
func (l *GenerationLedger) Record(ctx context.Context, record *domain.GenerationRecord, tasks []*domain.TaskInstance) error {
	if err := l.repo.Save(ctx, record, tasks); err != nil {
		l.logger.WithError(err).Error("Failed to record generation", "generationId", record.GenerationID, "tasks", len(tasks))
		if appErr := domainAppError(err, "invalid generation"); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// Stats aggregates the ledger and returns the recentN newest runs
func (l *GenerationLedger) Stats(ctx context.Context, recentN int) (*GenerationStatsDTO, error) {
	if recentN <= 0 {
		recentN = DefaultRecentGenerations
	}

	totals, err := l.repo.Totals(ctx)
	if err != nil {
		l.logger.WithError(err).Error("Failed to aggregate generations")
		return nil, fmt.Errorf("failed to aggregate generations: %w", err)
	}

	recent, err := l.repo.FindRecent(ctx, recentN)
	if err != nil {
		l.logger.WithError(err).Error("Failed to load recent generations")
		return nil, fmt.Errorf("failed to load recent generations: %w", err)
	}

	return ComputeGenerationStats(totals, recent), nil
}

// ComputeGenerationStats builds the stats view. The average is rounded to
// one decimal and is 0 for an empty ledger.
func ComputeGenerationStats(totals *domain.GenerationTotals, recent []*domain.GenerationRecord) *GenerationStatsDTO {
	stats := &GenerationStatsDTO{
		StrategyUsage: map[string]int{},
		Recent:        make([]GenerationRecordDTO, 0, len(recent)),
	}
	for _, t := range domain.StrategyTypes() {
		stats.StrategyUsage[string(t)] = 0
	}

	if totals != nil {
		stats.TotalGenerations = totals.TotalGenerations
		stats.TotalTasksGenerated = totals.TotalTasksGenerated
		for strategy, n := range totals.StrategyUsage {
			stats.StrategyUsage[string(strategy)] = n
		}
		if totals.TotalGenerations > 0 {
			stats.AverageTasksPerGeneration = round1(float64(totals.TotalTasksGenerated) / float64(totals.TotalGenerations))
		}
	}

	for _, r := range recent {
		stats.Recent = append(stats.Recent, ToGenerationRecordDTO(r))
	}
	return stats
}
