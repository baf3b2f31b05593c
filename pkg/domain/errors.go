package domain

import (
	"fmt"
	"strings"
)

// InvalidRecipeError is returned when recipe construction parameters
// violate the instrument limits. It is never recoverable; the caller must
// fix the inputs.
type InvalidRecipeError struct {
	Violations []Violation
}

func (e *InvalidRecipeError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid recipe"
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return "invalid recipe: " + strings.Join(msgs, "; ")
}

// WorkflowFullError is returned when an incoming recipe's full replicate
// count does not fit the remaining crucible budget. The caller should split
// the batch across workflows or quadrants.
type WorkflowFullError struct {
	Current  int
	Incoming int
	Capacity int
}

func (e *WorkflowFullError) Error() string {
	return fmt.Sprintf("workflow too full (%d/%d crucibles) to accommodate %d more replicates", e.Current, e.Capacity, e.Incoming)
}

// SampleTrackingError is returned when an addition or export would mix
// tracked and untracked entries. A workflow commits to one discipline on
// its first addition and keeps it for life.
type SampleTrackingError struct {
	Reason string
}

func (e *SampleTrackingError) Error() string {
	return "sample tracking: " + e.Reason
}

// InsufficientPositionsError is returned at serialization time when fewer
// physical positions are available than the workflow has jars.
type InsufficientPositionsError struct {
	Positions int
	Jars      int
}

func (e *InsufficientPositionsError) Error() string {
	return fmt.Sprintf("%d positions available for %d jars", e.Positions, e.Jars)
}

// InvalidNameError is returned when a workflow name contains characters the
// instrument controller cannot place in a Windows path.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("workflow name %q contains invalid characters", e.Name)
}
