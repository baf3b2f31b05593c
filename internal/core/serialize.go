package core

import (
	"sort"

	"labman/pkg/domain"
)

// Document orders the jar entries, assigns physical positions, and emits
// the submission payload for one quadrant.
//
// Entries are sorted by heating duration, longest first: drying is the
// blocking step on the instrument, so starting the slowest jars first
// minimizes total wall-clock time. Ties keep insertion order. Positions are
// consumed from availablePositions in that sorted order.
//
// When withTracking is true the returned map links each assigned position
// to the entry's sample list; requesting it on an untracked workflow is an
// error.
func (w *Workflow) Document(quadrant int, availablePositions []int, withTracking bool) (domain.WorkflowDocument, map[int][]*string, error) {
	if len(availablePositions) < len(w.entries) {
		return domain.WorkflowDocument{}, nil, &domain.InsufficientPositionsError{
			Positions: len(availablePositions),
			Jars:      len(w.entries),
		}
	}
	if withTracking && w.tracking != TrackingEnabled {
		return domain.WorkflowDocument{}, nil, &domain.SampleTrackingError{
			Reason: "sample tracking was not enabled for this workflow",
		}
	}

	ordered := make([]*entry, len(w.entries))
	copy(ordered, w.entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].recipe.HeatingDurationS() > ordered[j].recipe.HeatingDurationS()
	})

	doc := domain.WorkflowDocument{
		WorkflowName: w.name,
		Quadrant:     quadrant,
		InputFile:    make([]domain.LabmanInputFile, 0, len(ordered)),
	}
	var tracking map[int][]*string
	if withTracking {
		tracking = make(map[int][]*string, len(ordered))
	}
	for i, e := range ordered {
		position := availablePositions[i]
		doc.InputFile = append(doc.InputFile, e.recipe.WithReplicates(e.replicates).LabmanView(position))
		if withTracking {
			samples := make([]*string, len(e.samples))
			copy(samples, e.samples)
			tracking[position] = samples
		}
	}
	return doc, tracking, nil
}
