package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// The types below are a bit-for-bit contract with the instrument
// controller. Field names and casing must not change.

// PowderDispense is one powder line of a serialized recipe. TargetMass is
// the batch total in grams, rounded to 5 decimal places.
type PowderDispense struct {
	PowderName string  `json:"PowderName"`
	TargetMass float64 `json:"TargetMass"`
}

// LabmanInputFile is the submission form of a recipe: batch totals plus the
// assigned physical position.
type LabmanInputFile struct {
	CrucibleReplicates    int              `json:"CrucibleReplicates"`
	HeatingDuration       int              `json:"HeatingDuration"`
	EthanolDispenseVolume int              `json:"EthanolDispenseVolume"`
	MinimumTransferMass   float64          `json:"MinimumTransferMass"`
	MixerDuration         int              `json:"MixerDuration"`
	MixerSpeed            int              `json:"MixerSpeed"`
	Position              int              `json:"Position"`
	PowderDispenses       []PowderDispense `json:"PowderDispenses"`
	TargetTransferVolume  int              `json:"TargetTransferVolume"`
}

// WorkflowDocument is the payload posted to the instrument controller for
// one quadrant.
type WorkflowDocument struct {
	WorkflowName string            `json:"WorkflowName"`
	Quadrant     int               `json:"Quadrant"`
	InputFile    []LabmanInputFile `json:"InputFile"`
}

// inputFileJSON is the internal persistence form: the wire fields without a
// position, plus bookkeeping stripped before submission.
type inputFileJSON struct {
	CrucibleReplicates    int              `json:"CrucibleReplicates"`
	HeatingDuration       int              `json:"HeatingDuration"`
	EthanolDispenseVolume int              `json:"EthanolDispenseVolume"`
	MinimumTransferMass   float64          `json:"MinimumTransferMass"`
	MixerDuration         int              `json:"MixerDuration"`
	MixerSpeed            int              `json:"MixerSpeed"`
	PowderDispenses       []PowderDispense `json:"PowderDispenses"`
	TargetTransferVolume  int              `json:"TargetTransferVolume"`
	ID                    string           `json:"_id"`
	TimeAdded             time.Time        `json:"time_added"`
	AllowReplicates       bool             `json:"allow_replicates"`
}

// scaledPowderDispenses returns the powder lines with batch-total masses.
func (f InputFile) scaledPowderDispenses() []PowderDispense {
	out := make([]PowderDispense, 0, len(f.powderDispenses))
	for _, powder := range f.sortedPowderNames() {
		out = append(out, PowderDispense{
			PowderName: powder,
			TargetMass: round5(f.powderDispenses[powder] * float64(f.replicates)),
		})
	}
	return out
}

// MarshalJSON emits the internal form. Ethanol volume and powder masses are
// scaled by the replicate count, so serialized quantities are batch totals.
func (f InputFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(inputFileJSON{
		CrucibleReplicates:    f.replicates,
		HeatingDuration:       f.heatingDurationS,
		EthanolDispenseVolume: f.ethanolVolumeUL * f.replicates,
		MinimumTransferMass:   round5(f.minTransferMassG),
		MixerDuration:         f.mixerDurationS,
		MixerSpeed:            f.mixerSpeedRPM,
		PowderDispenses:       f.scaledPowderDispenses(),
		TargetTransferVolume:  f.transferVolumeUL,
		ID:                    f.id,
		TimeAdded:             f.timeAdded,
		AllowReplicates:       f.allowReplicates,
	})
}

// UnmarshalJSON rebuilds a recipe from the internal form, dividing the
// batch totals back to per-replicate quantities and re-running validation.
func (f *InputFile) UnmarshalJSON(data []byte) error {
	var aux inputFileJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CrucibleReplicates < 1 {
		return fmt.Errorf("crucible replicates must be at least 1, got %d", aux.CrucibleReplicates)
	}
	powders := make(map[string]float64, len(aux.PowderDispenses))
	for _, pd := range aux.PowderDispenses {
		powders[pd.PowderName] = round5(pd.TargetMass / float64(aux.CrucibleReplicates))
	}
	transfer := aux.TargetTransferVolume
	heating := aux.HeatingDuration
	minMass := aux.MinimumTransferMass
	rebuilt, err := NewInputFile(InputFileSpec{
		PowderDispenses:  powders,
		EthanolVolumeUL:  aux.EthanolDispenseVolume / aux.CrucibleReplicates,
		TransferVolumeUL: &transfer,
		HeatingDurationS: &heating,
		MixerSpeedRPM:    &aux.MixerSpeed,
		MixerDurationS:   &aux.MixerDuration,
		MinTransferMassG: &minMass,
		Replicates:       aux.CrucibleReplicates,
		AllowReplicates:  aux.AllowReplicates,
		TimeAdded:        aux.TimeAdded,
	})
	if err != nil {
		return err
	}
	if aux.ID != "" {
		rebuilt.id = aux.ID
	}
	*f = rebuilt
	return nil
}

// InputFileFromJSON reconstructs a recipe from its internal JSON form. The
// result is Equal to the recipe that produced the document, modulo the
// replicate normalization performed on serialization.
func InputFileFromJSON(data []byte) (InputFile, error) {
	var f InputFile
	if err := f.UnmarshalJSON(data); err != nil {
		return InputFile{}, err
	}
	return f, nil
}

// LabmanView returns the submission form of the recipe with the assigned
// physical position injected and bookkeeping fields removed.
func (f InputFile) LabmanView(position int) LabmanInputFile {
	return LabmanInputFile{
		CrucibleReplicates:    f.replicates,
		HeatingDuration:       f.heatingDurationS,
		EthanolDispenseVolume: f.ethanolVolumeUL * f.replicates,
		MinimumTransferMass:   round5(f.minTransferMassG),
		MixerDuration:         f.mixerDurationS,
		MixerSpeed:            f.mixerSpeedRPM,
		Position:              position,
		PowderDispenses:       f.scaledPowderDispenses(),
		TargetTransferVolume:  f.transferVolumeUL,
	}
}

// ToLabmanJSON serializes the submission form for one position.
func (f InputFile) ToLabmanJSON(position int) ([]byte, error) {
	return json.Marshal(f.LabmanView(position))
}
