package domain

import (
	"strings"
	"time"
)

// AvailabilityStatus classifies an employee for one day
type AvailabilityStatus string

const (
	Available   AvailabilityStatus = "AVAILABLE"
	Unavailable AvailabilityStatus = "UNAVAILABLE"
	HalfDay     AvailabilityStatus = "HALF_DAY"
)

// IsValid reports whether s is a known status
func (s AvailabilityStatus) IsValid() bool {
	return s == Available || s == Unavailable || s == HalfDay
}

// Assignable reports whether the employee may receive new tasks that day.
// HALF_DAY is treated as unavailable.
func (s AvailabilityStatus) Assignable() bool {
	return s == Available
}

// ParseAttendanceStatus maps an attendance source status to availability.
// Anything unrecognized is UNAVAILABLE.
func ParseAttendanceStatus(raw string) AvailabilityStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "present", "available", "on_time", "late", "remote":
		return Available
	case "half_day", "halfday":
		return HalfDay
	default:
		return Unavailable
	}
}

// Employee is a directory entry
type Employee struct {
	EmployeeID string    `bson:"employeeId" json:"employeeId"`
	Name       string    `bson:"name" json:"name"`
	Role       string    `bson:"role" json:"role"`
	Active     bool      `bson:"active" json:"active"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewEmployee validates and creates a directory entry
func NewEmployee(employeeID, name, role string, active bool, now time.Time) (*Employee, error) {
	e := &Employee{
		EmployeeID: strings.TrimSpace(employeeID),
		Name:       strings.TrimSpace(name),
		Role:       strings.TrimSpace(role),
		Active:     active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var verrs ValidationErrors
	if e.EmployeeID == "" {
		verrs.Add("employeeId", "is required")
	}
	if e.Role == "" {
		verrs.Add("role", "is required")
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// Candidate projects the employee for assignment
func (e *Employee) Candidate() AssignmentCandidate {
	return AssignmentCandidate{
		EmployeeID: e.EmployeeID,
		Name:       e.Name,
		Role:       e.Role,
		IsActive:   e.Active,
	}
}

// AssignmentCandidate is a read projection over the employee directory plus
// derived workload
type AssignmentCandidate struct {
	EmployeeID      string `json:"employeeId"`
	Name            string `json:"name,omitempty"`
	Role            string `json:"role"`
	IsActive        bool   `json:"isActive"`
	CurrentWorkload int    `json:"currentWorkload"`
}

// AttendanceRecord is the availability of one employee on one day
type AttendanceRecord struct {
	EmployeeID string             `bson:"employeeId" json:"employeeId"`
	Day        string             `bson:"day" json:"day"`
	Status     AvailabilityStatus `bson:"status" json:"status"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DayKey formats t as the attendance day key (YYYY-MM-DD)
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
