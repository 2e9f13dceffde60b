package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Roadmap is the aggregate root for one template instantiated for a project.
// Its stages are ordered by Index and unlock sequentially.
type Roadmap struct {
	RoadmapID    string        `bson:"roadmapId" json:"roadmapId"`
	ProjectID    string        `bson:"projectId" json:"projectId"`
	TemplateID   string        `bson:"templateId" json:"templateId"`
	Name         string        `bson:"name" json:"name"`
	Stages       []Stage       `bson:"stages" json:"stages"`
	Version      int64         `bson:"version" json:"version"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// InstantiateOptions controls how a roadmap is created from a template
type InstantiateOptions struct {
	Name string
	// HoldFirstStage keeps stage 0 LOCKED when its step declares entry
	// criteria, until an operator unlocks it.
	HoldFirstStage bool
}

// NewRoadmap materializes template for project. Stage 0 starts READY (or
// LOCKED when held), every other stage LOCKED.
func NewRoadmap(roadmapID string, project *Project, template *RoadmapTemplate, opts InstantiateOptions, now time.Time) (*Roadmap, error) {
	var verrs ValidationErrors
	if strings.TrimSpace(roadmapID) == "" {
		verrs.Add("roadmapId", "is required")
	}
	if project == nil || project.ProjectID == "" {
		verrs.Add("projectId", "is required")
	}
	if template == nil {
		verrs.Add("templateId", "is required")
	} else if err := template.Validate(); err != nil {
		return nil, err
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("%s - %s", project.Name, template.Name)
	}

	r := &Roadmap{
		RoadmapID:    roadmapID,
		ProjectID:    project.ProjectID,
		TemplateID:   template.TemplateID,
		Name:         name,
		Stages:       make([]Stage, len(template.Steps)),
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	for i, step := range template.Steps {
		status := StageLocked
		if i == 0 && !(opts.HoldFirstStage && len(step.EntryCriteria) > 0) {
			status = StageReady
		}
		r.Stages[i] = Stage{
			StageID:       StageID(roadmapID, i),
			RoadmapID:     roadmapID,
			Index:         i,
			Title:         step.Title,
			Description:   step.Description,
			RequiredRole:  step.RequiredRole,
			SLAHours:      step.SLAHours,
			EntryCriteria: step.EntryCriteria,
			ExitCriteria:  step.ExitCriteria,
			Status:        status,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	r.AddDomainEvent(&RoadmapInstantiatedEvent{
		RoadmapID:      r.RoadmapID,
		ProjectID:      r.ProjectID,
		TemplateID:     r.TemplateID,
		StageCount:     len(r.Stages),
		InstantiatedAt: now,
	})

	return r, nil
}

// StageCommand is an action requested on one stage
type StageCommand struct {
	Action     StageAction
	ActorID    string
	Reason     string
	EmployeeID string
}

// Stage returns the stage with stageID
func (r *Roadmap) Stage(stageID string) (*Stage, bool) {
	for i := range r.Stages {
		if r.Stages[i].StageID == stageID {
			return &r.Stages[i], true
		}
	}
	return nil, false
}

func (r *Roadmap) stageIndex(stageID string) (int, error) {
	for i := range r.Stages {
		if r.Stages[i].StageID == stageID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
}

// checkLegal verifies the action against the transition table and the
// sequential unlocking rule. It never mutates.
func (r *Roadmap) checkLegal(i int, action StageAction) (StageStatus, error) {
	stage := &r.Stages[i]
	if !action.IsValid() {
		return "", &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", action)}
	}

	to, ok := NextStatus(stage.Status, action)
	if !ok {
		return "", fmt.Errorf("%w: cannot %s stage %s from %s", ErrInvalidTransition, action, stage.StageID, stage.Status)
	}
	if makesReachable(action) && i > 0 && r.Stages[i-1].Status != StageDone {
		return "", fmt.Errorf("%w: cannot %s stage %s before stage %s is DONE",
			ErrInvalidTransition, action, stage.StageID, r.Stages[i-1].StageID)
	}
	return to, nil
}

// Transition applies cmd to the stage. On error nothing is mutated. approve
// also unlocks a LOCKED successor; approving the last stage completes the
// roadmap.
func (r *Roadmap) Transition(stageID string, cmd StageCommand, now time.Time) (*Stage, error) {
	i, err := r.stageIndex(stageID)
	if err != nil {
		return nil, err
	}

	to, err := r.checkLegal(i, cmd.Action)
	if err != nil {
		return nil, err
	}

	switch cmd.Action {
	case ActionBlock:
		if strings.TrimSpace(cmd.Reason) == "" {
			return nil, &ValidationError{Field: "reason", Message: "is required to block a stage"}
		}
	case ActionAssign:
		if strings.TrimSpace(cmd.EmployeeID) == "" {
			return nil, &ValidationError{Field: "employeeId", Message: "is required to assign a stage"}
		}
	}

	stage := &r.Stages[i]
	from := stage.Status
	stage.Status = to
	stage.UpdatedAt = now

	switch cmd.Action {
	case ActionBlock:
		blockedAt := now
		stage.BlockedReason = strings.TrimSpace(cmd.Reason)
		stage.BlockedAt = &blockedAt
	case ActionUnblock:
		stage.BlockedReason = ""
		stage.BlockedAt = nil
	case ActionAssign:
		stage.AssignedEmployeeID = strings.TrimSpace(cmd.EmployeeID)
	}

	r.UpdatedAt = now
	r.AddDomainEvent(&StageTransitionedEvent{
		RoadmapID:          r.RoadmapID,
		StageID:            stage.StageID,
		StageIndex:         stage.Index,
		Action:             string(cmd.Action),
		From:               string(from),
		To:                 string(to),
		ActorID:            cmd.ActorID,
		AssignedEmployeeID: stage.AssignedEmployeeID,
		Reason:             stage.BlockedReason,
		TransitionedAt:     now,
	})

	if cmd.Action == ActionUnlock {
		r.AddDomainEvent(&StageUnlockedEvent{RoadmapID: r.RoadmapID, StageID: stage.StageID, StageIndex: stage.Index, UnlockedAt: now})
	}

	if cmd.Action == ActionApprove {
		if i+1 < len(r.Stages) {
			next := &r.Stages[i+1]
			if next.Status == StageLocked {
				next.Status = StageReady
				next.UpdatedAt = now
				r.AddDomainEvent(&StageUnlockedEvent{
					RoadmapID:  r.RoadmapID,
					StageID:    next.StageID,
					StageIndex: next.Index,
					Cascaded:   true,
					UnlockedAt: now,
				})
			}
		} else if r.IsComplete() {
			r.AddDomainEvent(&RoadmapCompletedEvent{RoadmapID: r.RoadmapID, ProjectID: r.ProjectID, CompletedAt: now})
		}
	}

	return stage, nil
}

// CanAct reports whether actor may perform action on the stage right now:
// the actor must be permitted and the transition legal.
func (r *Roadmap) CanAct(stageID string, actor Actor, action StageAction) bool {
	i, err := r.stageIndex(stageID)
	if err != nil {
		return false
	}
	if !r.Stages[i].Permits(actor, action) {
		return false
	}
	_, err = r.checkLegal(i, action)
	return err == nil
}

// IsComplete reports whether every stage is DONE
func (r *Roadmap) IsComplete() bool {
	for i := range r.Stages {
		if r.Stages[i].Status != StageDone {
			return false
		}
	}
	return len(r.Stages) > 0
}

// TotalSLAHours sums the SLA of every stage
func (r *Roadmap) TotalSLAHours() float64 {
	total := 0.0
	for i := range r.Stages {
		total += r.Stages[i].SLAHours
	}
	return total
}

// ProgressPercent is the share of DONE stages, rounded to one decimal
func (r *Roadmap) ProgressPercent() float64 {
	if len(r.Stages) == 0 {
		return 0
	}
	done := 0
	for i := range r.Stages {
		if r.Stages[i].Status == StageDone {
			done++
		}
	}
	return math.Round(float64(done)/float64(len(r.Stages))*1000) / 10
}

// SequentialUnlockingHolds checks that no stage after the first unfinished
// one has left LOCKED.
func (r *Roadmap) SequentialUnlockingHolds() bool {
	firstOpen := -1
	for i := range r.Stages {
		if firstOpen >= 0 && r.Stages[i].Status != StageLocked {
			return false
		}
		if firstOpen < 0 && r.Stages[i].Status != StageDone {
			firstOpen = i
		}
	}
	return true
}

// AddDomainEvent adds a domain event
func (r *Roadmap) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (r *Roadmap) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}

// ClearDomainEvents clears all domain events
func (r *Roadmap) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}
