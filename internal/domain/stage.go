package domain

import (
	"fmt"
	"time"
)

// StageStatus represents the lifecycle status of a roadmap stage
type StageStatus string

const (
	StageLocked     StageStatus = "LOCKED"
	StageReady      StageStatus = "READY"
	StageInProgress StageStatus = "IN_PROGRESS"
	StageReview     StageStatus = "REVIEW"
	StageDone       StageStatus = "DONE"
	StageBlocked    StageStatus = "BLOCKED"
)

// IsValid reports whether s is a known status
func (s StageStatus) IsValid() bool {
	switch s {
	case StageLocked, StageReady, StageInProgress, StageReview, StageDone, StageBlocked:
		return true
	}
	return false
}

// StageAction is an operator action on a stage
type StageAction string

const (
	ActionUnlock          StageAction = "unlock"
	ActionStart           StageAction = "start"
	ActionSubmitForReview StageAction = "submitForReview"
	ActionApprove         StageAction = "approve"
	ActionRequestChanges  StageAction = "requestChanges"
	ActionBlock           StageAction = "block"
	ActionUnblock         StageAction = "unblock"
	ActionAssign          StageAction = "assign"
)

// StageActions lists every action in table order
func StageActions() []StageAction {
	return []StageAction{
		ActionUnlock, ActionStart, ActionSubmitForReview, ActionApprove,
		ActionRequestChanges, ActionBlock, ActionUnblock, ActionAssign,
	}
}

// IsValid reports whether a is a known action
func (a StageAction) IsValid() bool {
	for _, known := range StageActions() {
		if a == known {
			return true
		}
	}
	return false
}

// stageTransitions is the legal transition table. assign is absent because
// it never changes status.
var stageTransitions = map[StageAction]map[StageStatus]StageStatus{
	ActionUnlock:          {StageLocked: StageReady},
	ActionStart:           {StageReady: StageInProgress},
	ActionSubmitForReview: {StageInProgress: StageReview},
	ActionApprove:         {StageReview: StageDone},
	ActionRequestChanges:  {StageReview: StageInProgress},
	ActionUnblock:         {StageBlocked: StageReady},
	ActionBlock: {
		StageLocked:     StageBlocked,
		StageReady:      StageBlocked,
		StageInProgress: StageBlocked,
		StageReview:     StageBlocked,
	},
}

// NextStatus returns the status action leads to from from, and false when the
// pair is not in the transition table.
func NextStatus(from StageStatus, action StageAction) (StageStatus, bool) {
	if action == ActionAssign {
		return from, from != StageDone
	}
	to, ok := stageTransitions[action][from]
	return to, ok
}

// makesReachable reports whether the action takes a stage out of LOCKED, or
// returns it to the active path, and so requires a finished predecessor.
func makesReachable(action StageAction) bool {
	return action == ActionUnlock || action == ActionBlock || action == ActionUnblock
}

// Stage is one materialized template step within a roadmap
type Stage struct {
	StageID            string      `bson:"stageId" json:"stageId"`
	RoadmapID          string      `bson:"roadmapId" json:"roadmapId"`
	Index              int         `bson:"index" json:"index"`
	Title              string      `bson:"title" json:"title"`
	Description        string      `bson:"description,omitempty" json:"description,omitempty"`
	RequiredRole       string      `bson:"requiredRole" json:"requiredRole"`
	SLAHours           float64     `bson:"slaHours" json:"slaHours"`
	EntryCriteria      []string    `bson:"entryCriteria,omitempty" json:"entryCriteria,omitempty"`
	ExitCriteria       []string    `bson:"exitCriteria,omitempty" json:"exitCriteria,omitempty"`
	Status             StageStatus `bson:"status" json:"status"`
	AssignedEmployeeID string      `bson:"assignedEmployeeId,omitempty" json:"assignedEmployeeId,omitempty"`
	BlockedReason      string      `bson:"blockedReason,omitempty" json:"blockedReason,omitempty"`
	BlockedAt          *time.Time  `bson:"blockedAt,omitempty" json:"blockedAt,omitempty"`
	CreatedAt          time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// StageID builds the deterministic id of the stage at index within a roadmap
func StageID(roadmapID string, index int) string {
	return fmt.Sprintf("%s-S%d", roadmapID, index)
}

// SLADeadline is createdAt plus the SLA expressed as whole calendar days
func (s *Stage) SLADeadline() time.Time {
	return s.CreatedAt.AddDate(0, 0, WorkingDaysForSLA(s.SLAHours))
}

// Duration is the time between creation and the last update
func (s *Stage) Duration() time.Duration {
	return s.UpdatedAt.Sub(s.CreatedAt)
}

// Actor is the operator requesting a stage action
type Actor struct {
	ID       string
	Elevated bool
}

// Permits is the authorization half of CanAct: it ignores whether the
// transition is legal.
func (s *Stage) Permits(actor Actor, action StageAction) bool {
	if actor.Elevated {
		return true
	}
	switch action {
	case ActionAssign:
		return false
	default:
		return s.AssignedEmployeeID == "" || (actor.ID != "" && actor.ID == s.AssignedEmployeeID)
	}
}
