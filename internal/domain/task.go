package domain

import (
	"fmt"
	"time"
)

// TaskStatus represents the status of a generated task
type TaskStatus string

const (
	TaskPlanned    TaskStatus = "PLANNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskUnassigned TaskStatus = "UNASSIGNED"
)

// IsActive reports whether the task counts toward an assignee's workload
func (s TaskStatus) IsActive() bool {
	return s == TaskPlanned || s == TaskInProgress
}

// TaskKey is the identity of a task: one unit of one step of one project
type TaskKey struct {
	ProjectID string
	UnitIndex int
	StepIndex int
}

// ID renders the key as the task id
func (k TaskKey) ID() string {
	return fmt.Sprintf("%s-U%d-S%d", k.ProjectID, k.UnitIndex, k.StepIndex)
}

// TaskInstance is one concrete unit of work generated from a template step
type TaskInstance struct {
	TaskID         string     `bson:"taskId" json:"taskId"`
	ProjectID      string     `bson:"projectId" json:"projectId"`
	RoadmapID      string     `bson:"roadmapId" json:"roadmapId"`
	UnitIndex      int        `bson:"unitIndex" json:"unitIndex"`
	StepIndex      int        `bson:"stepIndex" json:"stepIndex"`
	Title          string     `bson:"title" json:"title"`
	Description    string     `bson:"description" json:"description"`
	RequiredRole   string     `bson:"requiredRole" json:"requiredRole"`
	EstimatedHours float64    `bson:"estimatedHours" json:"estimatedHours"`
	Priority       Priority   `bson:"priority" json:"priority"`
	Status         TaskStatus `bson:"status" json:"status"`
	StartDate      time.Time  `bson:"startDate" json:"startDate"`
	DueDate        time.Time  `bson:"dueDate" json:"dueDate"`
	AssigneeID     string     `bson:"assigneeId,omitempty" json:"assigneeId,omitempty"`
	Dependencies   []string   `bson:"dependencies" json:"dependencies"`
	Progress       int        `bson:"progress" json:"progress"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
}

// Key returns the composite identity of the task
func (t *TaskInstance) Key() TaskKey {
	return TaskKey{ProjectID: t.ProjectID, UnitIndex: t.UnitIndex, StepIndex: t.StepIndex}
}

// AssignTo sets the assignee and plans the task
func (t *TaskInstance) AssignTo(employeeID string) {
	t.AssigneeID = employeeID
	t.Status = TaskPlanned
}

// Unassign clears the assignee
func (t *TaskInstance) Unassign() {
	t.AssigneeID = ""
	t.Status = TaskUnassigned
}
