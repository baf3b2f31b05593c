package domain

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestMarshalJSONScalesToBatchTotals(t *testing.T) {
	f := mustRecipe(t, InputFileSpec{
		PowderDispenses: map[string]float64{
			"Manganese Oxide":   1.5,
			"Lithium Carbonate": 2.0,
		},
		EthanolVolumeUL: 10000,
		Replicates:      2,
		AllowReplicates: true,
		TimeAdded:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal recipe: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode marshaled recipe: %v", err)
	}

	if got := doc["CrucibleReplicates"]; got != float64(2) {
		t.Fatalf("CrucibleReplicates = %v, want 2", got)
	}
	if got := doc["EthanolDispenseVolume"]; got != float64(20000) {
		t.Fatalf("EthanolDispenseVolume = %v, want batch total 20000", got)
	}
	if got := doc["TargetTransferVolume"]; got != float64(10000) {
		t.Fatalf("TargetTransferVolume = %v, want per-crucible 10000", got)
	}
	if _, ok := doc["_id"]; !ok {
		t.Fatalf("internal form must carry _id bookkeeping")
	}
	if _, ok := doc["time_added"]; !ok {
		t.Fatalf("internal form must carry time_added bookkeeping")
	}
	if _, ok := doc["Position"]; ok {
		t.Fatalf("internal form must not carry a Position")
	}

	powders, ok := doc["PowderDispenses"].([]any)
	if !ok || len(powders) != 2 {
		t.Fatalf("PowderDispenses = %v, want 2 entries", doc["PowderDispenses"])
	}
	first := powders[0].(map[string]any)
	if first["PowderName"] != "Lithium Carbonate" || first["TargetMass"] != float64(4) {
		t.Fatalf("first powder = %v, want Lithium Carbonate at batch total 4 g", first)
	}
	second := powders[1].(map[string]any)
	if second["PowderName"] != "Manganese Oxide" || second["TargetMass"] != float64(3) {
		t.Fatalf("second powder = %v, want Manganese Oxide at batch total 3 g", second)
	}
}

func TestLabmanViewInjectsPositionAndStripsBookkeeping(t *testing.T) {
	f := mustRecipe(t, InputFileSpec{
		PowderDispenses: map[string]float64{"Powder A": 1.23456789},
		EthanolVolumeUL: 5000,
	})

	data, err := f.ToLabmanJSON(7)
	if err != nil {
		t.Fatalf("serialize labman form: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode labman form: %v", err)
	}

	want := []string{
		"CrucibleReplicates", "HeatingDuration", "EthanolDispenseVolume",
		"MinimumTransferMass", "MixerDuration", "MixerSpeed", "Position",
		"PowderDispenses", "TargetTransferVolume",
	}
	if len(doc) != len(want) {
		t.Fatalf("labman form has %d fields, want %d: %v", len(doc), len(want), doc)
	}
	for _, field := range want {
		if _, ok := doc[field]; !ok {
			t.Fatalf("labman form missing field %q", field)
		}
	}
	if got := doc["Position"]; got != float64(7) {
		t.Fatalf("Position = %v, want 7", got)
	}

	powders := doc["PowderDispenses"].([]any)
	mass := powders[0].(map[string]any)["TargetMass"].(float64)
	if mass != 1.23457 {
		t.Fatalf("target mass = %v, want 5-decimal rounding 1.23457", mass)
	}
}

func TestRoundTripPreservesEquality(t *testing.T) {
	f := mustRecipe(t, InputFileSpec{
		PowderDispenses: map[string]float64{
			"Lithium Carbonate": 2.0,
			"Manganese Oxide":   1.5,
		},
		EthanolVolumeUL: 7000,
		Replicates:      3,
		AllowReplicates: true,
		TimeAdded:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal recipe: %v", err)
	}
	back, err := InputFileFromJSON(data)
	if err != nil {
		t.Fatalf("rebuild recipe: %v", err)
	}

	if !back.Equal(f) {
		t.Fatalf("round-tripped recipe is not equal to the original\noriginal: %+v\nrebuilt:  %+v", f, back)
	}
	if back.Replicates() != f.Replicates() {
		t.Fatalf("round-tripped replicates = %d, want %d", back.Replicates(), f.Replicates())
	}
	if back.ID() != f.ID() {
		t.Fatalf("round-tripped id = %q, want %q", back.ID(), f.ID())
	}
	if !back.TimeAdded().Equal(f.TimeAdded()) {
		t.Fatalf("round-tripped TimeAdded = %v, want %v", back.TimeAdded(), f.TimeAdded())
	}
	if !reflect.DeepEqual(back.PowderDispenses(), f.PowderDispenses()) {
		t.Fatalf("round-tripped powders = %v, want %v", back.PowderDispenses(), f.PowderDispenses())
	}
}

func TestUnmarshalRejectsZeroReplicates(t *testing.T) {
	payload := []byte(`{"CrucibleReplicates":0,"EthanolDispenseVolume":1000,"PowderDispenses":[{"PowderName":"A","TargetMass":1}]}`)
	if _, err := InputFileFromJSON(payload); err == nil {
		t.Fatalf("expected error for zero CrucibleReplicates")
	}
}

func TestWorkflowDocumentWireShape(t *testing.T) {
	doc := WorkflowDocument{
		WorkflowName: "calcination-a",
		Quadrant:     2,
		InputFile:    []LabmanInputFile{},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	for _, field := range []string{"WorkflowName", "Quadrant", "InputFile"} {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("document missing field %q", field)
		}
	}
}
