package domain

import "fmt"

// Violation reports one failed recipe check.
type Violation struct {
	Rule    string
	Field   string
	Message string
}

// RecipeRule validates one aspect of a constructed recipe. Rules run after
// defaults are derived, so they see the frozen field values.
type RecipeRule interface {
	Name() string
	Check(f InputFile) []Violation
}

// DefaultRecipeRules returns the built-in construction policy set.
func DefaultRecipeRules() []RecipeRule {
	return []RecipeRule{
		powderDispenseRule{},
		ethanolVolumeRule{},
		transferVolumeRule{},
		heatingDurationRule{},
		mixerDurationRule{},
		replicateRule{},
	}
}

// checkRecipe runs every rule and aggregates the violations.
func checkRecipe(f InputFile, rules []RecipeRule) []Violation {
	var violations []Violation
	for _, rule := range rules {
		violations = append(violations, rule.Check(f)...)
	}
	return violations
}

type powderDispenseRule struct{}

func (powderDispenseRule) Name() string { return "powder_dispenses" }

func (powderDispenseRule) Check(f InputFile) []Violation {
	if len(f.powderDispenses) == 0 {
		return []Violation{{
			Rule:    "powder_dispenses",
			Field:   "PowderDispenses",
			Message: "at least one powder dispense is required",
		}}
	}
	var out []Violation
	for _, powder := range f.sortedPowderNames() {
		if mass := f.powderDispenses[powder]; mass <= 0 {
			out = append(out, Violation{
				Rule:    "powder_dispenses",
				Field:   "PowderDispenses",
				Message: fmt.Sprintf("powder %q target mass must be positive, got %v g", powder, mass),
			})
		}
	}
	return out
}

type ethanolVolumeRule struct{}

func (ethanolVolumeRule) Name() string { return "ethanol_volume" }

func (ethanolVolumeRule) Check(f InputFile) []Violation {
	if f.ethanolVolumeUL < 0 || f.ethanolVolumeUL > MaxJarVolumeUL {
		return []Violation{{
			Rule:    "ethanol_volume",
			Field:   "EthanolVolumeUL",
			Message: fmt.Sprintf("ethanol volume must be within [0, %d] uL, got %d", MaxJarVolumeUL, f.ethanolVolumeUL),
		}}
	}
	return nil
}

type transferVolumeRule struct{}

func (transferVolumeRule) Name() string { return "transfer_volume" }

// More liquid cannot be transferred out of a jar than was dispensed into it.
func (transferVolumeRule) Check(f InputFile) []Violation {
	if f.transferVolumeUL > f.ethanolVolumeUL {
		return []Violation{{
			Rule:    "transfer_volume",
			Field:   "TransferVolumeUL",
			Message: fmt.Sprintf("transfer volume %d uL exceeds dispensed ethanol volume %d uL", f.transferVolumeUL, f.ethanolVolumeUL),
		}}
	}
	return nil
}

type heatingDurationRule struct{}

func (heatingDurationRule) Name() string { return "heating_duration" }

func (heatingDurationRule) Check(f InputFile) []Violation {
	if f.heatingDurationS < 0 || f.heatingDurationS > MaxHeatingDurationS {
		return []Violation{{
			Rule:    "heating_duration",
			Field:   "HeatingDurationS",
			Message: fmt.Sprintf("heating duration must be within [0, %d] s, got %d", MaxHeatingDurationS, f.heatingDurationS),
		}}
	}
	return nil
}

type mixerDurationRule struct{}

func (mixerDurationRule) Name() string { return "mixer_duration" }

func (mixerDurationRule) Check(f InputFile) []Violation {
	if f.mixerDurationS < 0 || f.mixerDurationS > MaxMixerDurationS {
		return []Violation{{
			Rule:    "mixer_duration",
			Field:   "MixerDurationS",
			Message: fmt.Sprintf("mixer duration must be within [0, %d] s, got %d", MaxMixerDurationS, f.mixerDurationS),
		}}
	}
	return nil
}

type replicateRule struct{}

func (replicateRule) Name() string { return "replicates" }

func (replicateRule) Check(f InputFile) []Violation {
	var out []Violation
	if f.replicates < 1 {
		out = append(out, Violation{
			Rule:    "replicates",
			Field:   "Replicates",
			Message: fmt.Sprintf("replicate count must be at least 1, got %d", f.replicates),
		})
	}
	if !f.allowReplicates && f.replicates > 1 {
		out = append(out, Violation{
			Rule:    "replicates",
			Field:   "Replicates",
			Message: fmt.Sprintf("recipe does not allow replicates but requests %d", f.replicates),
		})
	}
	return out
}
