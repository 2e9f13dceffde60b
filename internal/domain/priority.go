package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority of a generated task
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank orders priorities; lower is more urgent
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// PriorityBands maps a step index to a priority. Each field is the last
// step index (inclusive) that receives that priority; anything after
// MediumMax is LOW.
type PriorityBands struct {
	CriticalMax int
	HighMax     int
	MediumMax   int
}

// DefaultPriorityBands: 0 CRITICAL, 1-2 HIGH, 3-4 MEDIUM, 5+ LOW
func DefaultPriorityBands() PriorityBands {
	return PriorityBands{CriticalMax: 0, HighMax: 2, MediumMax: 4}
}

// Validate requires ordered thresholds so that priority never increases
// with step index.
func (b PriorityBands) Validate() error {
	if b.CriticalMax < -1 || b.HighMax < b.CriticalMax || b.MediumMax < b.HighMax {
		return &ValidationError{
			Field:   "priorityBands",
			Message: fmt.Sprintf("thresholds must be non-decreasing, got %d,%d,%d", b.CriticalMax, b.HighMax, b.MediumMax),
		}
	}
	return nil
}

// For returns the priority of the step at stepIndex
func (b PriorityBands) For(stepIndex int) Priority {
	switch {
	case stepIndex <= b.CriticalMax:
		return PriorityCritical
	case stepIndex <= b.HighMax:
		return PriorityHigh
	case stepIndex <= b.MediumMax:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ParsePriorityBands parses "criticalMax,highMax,mediumMax", e.g. "0,2,4"
func ParsePriorityBands(raw string) (PriorityBands, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return PriorityBands{}, &ValidationError{Field: "priorityBands", Message: "expected three comma-separated thresholds"}
	}

	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return PriorityBands{}, &ValidationError{Field: "priorityBands", Message: fmt.Sprintf("threshold %q is not an integer", part)}
		}
		values[i] = v
	}

	bands := PriorityBands{CriticalMax: values[0], HighMax: values[1], MediumMax: values[2]}
	if err := bands.Validate(); err != nil {
		return PriorityBands{}, err
	}
	return bands, nil
}
