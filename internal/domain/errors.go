package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrNotPermitted       = errors.New("action not permitted for actor")
	ErrStageNotFound      = errors.New("stage not found")
	ErrTemplateReferenced = errors.New("template is referenced by a roadmap and cannot be modified")
	ErrVersionConflict    = errors.New("version conflict")
	ErrTaskExists         = errors.New("task already exists")
)

// ValidationError reports one malformed input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one input
type ValidationErrors []*ValidationError

// Add appends a field problem
func (v *ValidationErrors) Add(field, format string, args ...any) {
	*v = append(*v, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was collected
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Fields flattens the errors into field -> message. The first message for a
// field wins.
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, e := range v {
		if _, ok := fields[e.Field]; !ok {
			fields[e.Field] = e.Message
		}
	}
	return fields
}

// FieldNames returns the sorted field names
func (v ValidationErrors) FieldNames() []string {
	names := make([]string, 0, len(v))
	for name := range v.Fields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationFields extracts field details from a *ValidationError or
// ValidationErrors anywhere in err's chain.
func ValidationFields(err error) (map[string]string, bool) {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many.Fields(), true
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return map[string]string{one.Field: one.Message}, true
	}
	return nil, false
}
