package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

// SLARiskThresholdDays is the remaining-days level at which a stage is at risk
const SLARiskThresholdDays = 2

const unspecifiedRole = "unspecified"

// ComputeSLARisks returns the IN_PROGRESS stages whose deadline is at most
// SLARiskThresholdDays away, most urgent first. Overdue stages have negative
// DaysRemaining.
func ComputeSLARisks(roadmaps []*domain.Roadmap, now time.Time) []SLARiskDTO {
	risks := []SLARiskDTO{}
	for _, r := range roadmaps {
		for i := range r.Stages {
			stage := &r.Stages[i]
			if stage.Status != domain.StageInProgress {
				continue
			}
			deadline := stage.SLADeadline()
			remaining := daysRemaining(deadline, now)
			if remaining > SLARiskThresholdDays {
				continue
			}
			risks = append(risks, SLARiskDTO{
				RoadmapID:          r.RoadmapID,
				StageID:            stage.StageID,
				Title:              stage.Title,
				RequiredRole:       stage.RequiredRole,
				AssignedEmployeeID: stage.AssignedEmployeeID,
				Deadline:           deadline,
				DaysRemaining:      remaining,
				Overdue:            remaining < 0,
			})
		}
	}
	sort.SliceStable(risks, func(i, j int) bool {
		if risks[i].DaysRemaining != risks[j].DaysRemaining {
			return risks[i].DaysRemaining < risks[j].DaysRemaining
		}
		return risks[i].StageID < risks[j].StageID
	})
	return risks
}

// daysRemaining rounds up while time is left and down once overdue
func daysRemaining(deadline, now time.Time) int {
	days := deadline.Sub(now).Hours() / 24
	if days >= 0 {
		return int(math.Ceil(days))
	}
	return int(math.Floor(days))
}

// ComputeStageAging lists open stages (neither LOCKED nor DONE) with their
// age in whole days, oldest first.
func ComputeStageAging(roadmaps []*domain.Roadmap, now time.Time) []StageAgingDTO {
	aging := []StageAgingDTO{}
	for _, r := range roadmaps {
		for i := range r.Stages {
			stage := &r.Stages[i]
			if stage.Status == domain.StageLocked || stage.Status == domain.StageDone {
				continue
			}
			aging = append(aging, StageAgingDTO{
				RoadmapID:          r.RoadmapID,
				StageID:            stage.StageID,
				Title:              stage.Title,
				Status:             string(stage.Status),
				RequiredRole:       stage.RequiredRole,
				AssignedEmployeeID: stage.AssignedEmployeeID,
				AgeInDays:          int(math.Floor(now.Sub(stage.CreatedAt).Hours() / 24)),
			})
		}
	}
	sort.SliceStable(aging, func(i, j int) bool {
		if aging[i].AgeInDays != aging[j].AgeInDays {
			return aging[i].AgeInDays > aging[j].AgeInDays
		}
		return aging[i].StageID < aging[j].StageID
	})
	return aging
}

// ComputeStageThroughput groups stages by required role. The average
// duration is the mean of updatedAt - createdAt over DONE stages.
func ComputeStageThroughput(roadmaps []*domain.Roadmap) []RoleThroughputDTO {
	type acc struct {
		total, done int
		hours       float64
	}
	byRole := map[string]*acc{}
	for _, r := range roadmaps {
		for i := range r.Stages {
			stage := &r.Stages[i]
			role := stage.RequiredRole
			if role == "" {
				role = unspecifiedRole
			}
			a, ok := byRole[role]
			if !ok {
				a = &acc{}
				byRole[role] = a
			}
			a.total++
			if stage.Status == domain.StageDone {
				a.done++
				a.hours += stage.Duration().Hours()
			}
		}
	}

	out := make([]RoleThroughputDTO, 0, len(byRole))
	for role, a := range byRole {
		dto := RoleThroughputDTO{
			Role:            role,
			TotalStages:     a.total,
			CompletedStages: a.done,
			CompletionRate:  round1(float64(a.done) / float64(a.total) * 100),
		}
		if a.done > 0 {
			dto.AverageDurationHours = a.hours / float64(a.done)
		}
		out = append(out, dto)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// MonitoringService serves read-only SLA, aging and throughput signals
type MonitoringService struct {
	roadmaps domain.RoadmapRepository
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewMonitoringService creates a new MonitoringService
func NewMonitoringService(roadmaps domain.RoadmapRepository, logger *logging.Logger, m *metrics.Metrics) *MonitoringService {
	return &MonitoringService{
		roadmaps: roadmaps,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// load fetches roadmaps with a stage in one of statuses under a span
func (s *MonitoringService) load(ctx context.Context, span string, statuses ...domain.StageStatus) ([]*domain.Roadmap, error) {
	roadmaps, err := tracing.TracedOperation(ctx, span, func(ctx context.Context) ([]*domain.Roadmap, error) {
		return s.roadmaps.FindWithStageStatus(ctx, statuses...)
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to load roadmaps", "view", span)
		return nil, fmt.Errorf("failed to load roadmaps: %w", err)
	}
	return roadmaps, nil
}

// GetSLARisks returns the stages at SLA risk now
func (s *MonitoringService) GetSLARisks(ctx context.Context) ([]SLARiskDTO, error) {
	roadmaps, err := s.load(ctx, "roadmap.monitoring.sla_risks", domain.StageInProgress)
	if err != nil {
		return nil, err
	}

	risks := ComputeSLARisks(roadmaps, s.now())
	s.metrics.SetStagesAtRisk(len(risks))
	return risks, nil
}

// GetStageAging returns open stages by age
func (s *MonitoringService) GetStageAging(ctx context.Context) ([]StageAgingDTO, error) {
	roadmaps, err := s.load(ctx, "roadmap.monitoring.stage_aging",
		domain.StageReady, domain.StageInProgress, domain.StageReview, domain.StageBlocked)
	if err != nil {
		return nil, err
	}
	return ComputeStageAging(roadmaps, s.now()), nil
}

// GetStageThroughput returns completed-stage throughput per role
func (s *MonitoringService) GetStageThroughput(ctx context.Context) ([]RoleThroughputDTO, error) {
	roadmaps, err := s.load(ctx, "roadmap.monitoring.throughput")
	if err != nil {
		return nil, err
	}
	return ComputeStageThroughput(roadmaps), nil
}
