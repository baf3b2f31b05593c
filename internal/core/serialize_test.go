package core

import (
	"errors"
	"testing"

	"labman/pkg/domain"
)

func recipeWithHeating(t *testing.T, heatingS, ethanolUL int, powderMass float64) domain.InputFile {
	t.Helper()
	f, err := domain.NewInputFile(domain.InputFileSpec{
		PowderDispenses:  map[string]float64{"Powder A": powderMass},
		EthanolVolumeUL:  ethanolUL,
		HeatingDurationS: &heatingS,
	})
	if err != nil {
		t.Fatalf("build recipe: %v", err)
	}
	return f
}

func TestDocumentOrdersByHeatingDurationDescending(t *testing.T) {
	w := mustWorkflow(t, "ordering")
	for _, heating := range []int{100, 500, 300} {
		if err := w.AddInput(recipeWithHeating(t, heating, 5000, 1.0), nil); err != nil {
			t.Fatalf("add heating=%d: %v", heating, err)
		}
	}

	doc, _, err := w.Document(1, []int{4, 5, 6}, false)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if doc.WorkflowName != "ordering" || doc.Quadrant != 1 {
		t.Fatalf("document header = %q quadrant %d", doc.WorkflowName, doc.Quadrant)
	}
	wantHeating := []int{500, 300, 100}
	wantPosition := []int{4, 5, 6}
	for i, in := range doc.InputFile {
		if in.HeatingDuration != wantHeating[i] {
			t.Fatalf("entry %d heating = %d, want %d (longest drying first)", i, in.HeatingDuration, wantHeating[i])
		}
		if in.Position != wantPosition[i] {
			t.Fatalf("entry %d position = %d, want %d", i, in.Position, wantPosition[i])
		}
	}
}

func TestDocumentUsesMergedReplicateCounts(t *testing.T) {
	w := mustWorkflow(t, "merged-totals")
	for i := 0; i < 2; i++ {
		if err := w.AddInput(testRecipe(t, 10000, 1, true, 1.0), nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	doc, _, err := w.Document(3, []int{1}, false)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if len(doc.InputFile) != 1 {
		t.Fatalf("entries = %d, want 1 merged jar", len(doc.InputFile))
	}
	in := doc.InputFile[0]
	if in.CrucibleReplicates != 2 {
		t.Fatalf("CrucibleReplicates = %d, want merged count 2", in.CrucibleReplicates)
	}
	if in.EthanolDispenseVolume != 20000 {
		t.Fatalf("EthanolDispenseVolume = %d, want batch total 20000", in.EthanolDispenseVolume)
	}
	if got := in.PowderDispenses[0].TargetMass; got != 2 {
		t.Fatalf("powder batch total = %v, want 2 g", got)
	}
}

func TestDocumentInsufficientPositions(t *testing.T) {
	w := mustWorkflow(t, "short")
	if err := w.AddInput(recipeWithHeating(t, 100, 5000, 1.0), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.AddInput(recipeWithHeating(t, 200, 5000, 2.0), nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, _, err := w.Document(1, []int{9}, false)
	var short *domain.InsufficientPositionsError
	if !errors.As(err, &short) {
		t.Fatalf("expected *domain.InsufficientPositionsError, got %v", err)
	}
	if short.Positions != 1 || short.Jars != 2 {
		t.Fatalf("error reports %d positions for %d jars, want 1 for 2", short.Positions, short.Jars)
	}
}

func TestDocumentSampleTrackingExport(t *testing.T) {
	w := mustWorkflow(t, "tracked-export")
	if err := w.AddInput(recipeWithHeating(t, 400, 5000, 1.0), strPtr("S1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.AddInput(recipeWithHeating(t, 900, 5000, 2.0), strPtr("S2")); err != nil {
		t.Fatalf("add: %v", err)
	}

	doc, tracking, err := w.Document(2, []int{11, 12}, true)
	if err != nil {
		t.Fatalf("serialize with tracking: %v", err)
	}
	if len(doc.InputFile) != 2 {
		t.Fatalf("entries = %d, want 2", len(doc.InputFile))
	}
	// Heating 900 sorts first and takes position 11.
	s2 := tracking[11]
	if len(s2) != 1 || s2[0] == nil || *s2[0] != "S2" {
		t.Fatalf("position 11 samples = %v, want [S2]", s2)
	}
	s1 := tracking[12]
	if len(s1) != 1 || s1[0] == nil || *s1[0] != "S1" {
		t.Fatalf("position 12 samples = %v, want [S1]", s1)
	}
}

func TestDocumentTrackingUnavailableOnUntrackedWorkflow(t *testing.T) {
	w := mustWorkflow(t, "untracked-export")
	if err := w.AddInput(recipeWithHeating(t, 100, 5000, 1.0), nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, _, err := w.Document(1, []int{1}, true)
	var tracking *domain.SampleTrackingError
	if !errors.As(err, &tracking) {
		t.Fatalf("expected *domain.SampleTrackingError, got %v", err)
	}
}

func TestDocumentOnEmptyWorkflow(t *testing.T) {
	w := mustWorkflow(t, "empty")
	doc, _, err := w.Document(1, nil, false)
	if err != nil {
		t.Fatalf("serialize empty workflow: %v", err)
	}
	if len(doc.InputFile) != 0 {
		t.Fatalf("entries = %d, want 0", len(doc.InputFile))
	}
}
