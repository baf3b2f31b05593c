// Package core implements the workflow allocator: it packs validated
// recipes into mixing jars under the crucible budget, merging equal recipes
// into shared batches, and serializes the result for submission.
package core

import (
	"strings"

	"labman/pkg/domain"
)

// TrackingMode is the sample-tracking discipline of a workflow. The mode is
// committed by the first successful addition and never changes afterwards.
type TrackingMode string

const (
	// TrackingUncommitted is the initial state of an empty workflow.
	TrackingUncommitted TrackingMode = "uncommitted"
	// TrackingEnabled means every crucible maps back to a lab sample.
	TrackingEnabled TrackingMode = "tracked"
	// TrackingDisabled means no crucible carries a sample reference.
	TrackingDisabled TrackingMode = "untracked"
)

// invalidNameChars cannot appear in a workflow name because the controller
// uses the name as a Windows path component.
const invalidNameChars = ":\t\n\r\x00\x0b"

// entry is one mixing jar owned by the allocator: a recipe, the jar's
// replicate counter, and one sample slot per replicate. The counter lives
// here rather than on the recipe so the entity stays immutable.
type entry struct {
	recipe     domain.InputFile
	replicates int
	samples    []*string
}

// Workflow is a bounded, ordered collection of jar entries. It is not safe
// for concurrent use; callers must serialize access to a given instance
// (the Service does this for its own workflows).
type Workflow struct {
	name     string
	entries  []*entry
	tracking TrackingMode
}

// NewWorkflow creates an empty workflow. The name is validated against the
// controller's path restrictions.
func NewWorkflow(name string) (*Workflow, error) {
	if strings.ContainsAny(name, invalidNameChars) {
		return nil, &domain.InvalidNameError{Name: name}
	}
	return &Workflow{name: name, tracking: TrackingUncommitted}, nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Tracking returns the committed sample-tracking mode.
func (w *Workflow) Tracking() TrackingMode { return w.tracking }

// RequiredJars returns the number of mixing jars the workflow occupies.
func (w *Workflow) RequiredJars() int { return len(w.entries) }

// RequiredCrucibles returns the total replicate count across all jars.
func (w *Workflow) RequiredCrucibles() int {
	var total int
	for _, e := range w.entries {
		total += e.replicates
	}
	return total
}

// RequiredEthanolVolumeUL returns the total solvent volume needed to
// execute the workflow.
func (w *Workflow) RequiredEthanolVolumeUL() int {
	var total int
	for _, e := range w.entries {
		total += e.recipe.EthanolVolumeUL() * e.replicates
	}
	return total
}

// RequiredPowders returns the total mass of each powder needed to execute
// the workflow, in grams.
func (w *Workflow) RequiredPowders() map[string]float64 {
	powders := make(map[string]float64)
	for _, e := range w.entries {
		for powder, mass := range e.recipe.PowderDispenses() {
			powders[powder] += mass * float64(e.replicates)
		}
	}
	return powders
}

// AddInput admits a recipe into the workflow, folding its replicates into
// existing jars holding an equal recipe before opening new ones. sample is
// the optional lab-sample identifier occupying the admitted crucibles.
//
// The call is all-or-nothing: it fails with *domain.WorkflowFullError when
// the incoming batch does not fit the remaining crucible budget in full,
// and with *domain.SampleTrackingError when the sample argument conflicts
// with the workflow's committed tracking mode. A failed call leaves the
// workflow untouched.
func (w *Workflow) AddInput(recipe domain.InputFile, sample *string) error {
	incoming := recipe.Replicates()
	current := w.RequiredCrucibles()
	// The incoming batch is checked at full size before any merging, so a
	// batch that would only partially fit is rejected outright.
	if current+incoming > domain.MaxCrucibles {
		return &domain.WorkflowFullError{Current: current, Incoming: incoming, Capacity: domain.MaxCrucibles}
	}
	if err := w.checkTracking(recipe, sample); err != nil {
		return err
	}

	remaining := incoming
	if recipe.AllowReplicates() {
		for _, e := range w.entries {
			if remaining == 0 {
				break
			}
			if !e.recipe.Equal(recipe) {
				continue
			}
			for remaining > 0 && e.recipe.CanAcceptAnotherReplicate(e.replicates) {
				e.replicates++
				e.samples = append(e.samples, sample)
				remaining--
			}
		}
	}
	// Whatever could not be merged opens new jars, each holding at most the
	// recipe's per-jar replicate limit.
	for remaining > 0 {
		n := remaining
		if limit := recipe.MaxReplicates(); recipe.AllowReplicates() && n > limit {
			n = limit
		}
		samples := make([]*string, n)
		for i := range samples {
			samples[i] = sample
		}
		w.entries = append(w.entries, &entry{recipe: recipe, replicates: n, samples: samples})
		remaining -= n
	}

	if w.tracking == TrackingUncommitted {
		if sample != nil {
			w.tracking = TrackingEnabled
		} else {
			w.tracking = TrackingDisabled
		}
	}
	return nil
}

// checkTracking enforces the all-or-nothing tracking discipline. The first
// addition to an empty workflow is exempt: any combination is permitted and
// commits the mode.
func (w *Workflow) checkTracking(recipe domain.InputFile, sample *string) error {
	if len(w.entries) == 0 {
		return nil
	}
	switch {
	case sample != nil && w.tracking == TrackingDisabled:
		return &domain.SampleTrackingError{Reason: "workflow does not track samples, cannot add a tracked recipe"}
	case sample == nil && w.tracking == TrackingEnabled:
		return &domain.SampleTrackingError{Reason: "workflow tracks samples, cannot add an untracked recipe"}
	case sample != nil && w.tracking == TrackingEnabled && recipe.Replicates() > 1:
		return &domain.SampleTrackingError{Reason: "tracked recipes must be added with a single replicate"}
	}
	return nil
}
