// Package domain defines the recipe entity, the instrument wire contract,
// and the error taxonomy used by the labman workflow core.
package domain

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Physical limits of the instrument. A workflow occupies one quadrant of the
// deck: recipes are mixed in jars and fired in crucibles, one crucible per
// replicate.
const (
	// MaxJarVolumeUL is the capacity of a single mixing jar in microliters.
	MaxJarVolumeUL = 22000
	// MaxCrucibles is the number of crucible slots available to one workflow.
	MaxCrucibles = 16
	// MaxHeatingDurationS bounds the post-mix drying step.
	MaxHeatingDurationS = 14400
	// MaxMixerDurationS bounds the mixing step.
	MaxMixerDurationS = 900
)

const (
	// ethanolDensityGPerML converts dispense volume to dispense mass.
	ethanolDensityGPerML = 0.789
	// heatingSecondsPer10ML is the drying heuristic: 90 minutes per 10 mL.
	heatingSecondsPer10ML = 90 * 60
	// minTransferMassFraction is the fraction of the theoretical slurry mass
	// that must survive the jar-to-crucible transfer.
	minTransferMassFraction = 0.85

	defaultMixerSpeedRPM  = 2000
	defaultMixerDurationS = 900
)

// InputFileSpec carries the raw construction parameters for a recipe.
// Pointer fields distinguish "unset, derive the default" from an explicit
// zero.
type InputFileSpec struct {
	// PowderDispenses maps powder name to per-replicate target mass in grams.
	PowderDispenses map[string]float64
	// EthanolVolumeUL is the per-replicate solvent volume.
	EthanolVolumeUL int
	// TransferVolumeUL defaults to EthanolVolumeUL when nil.
	TransferVolumeUL *int
	// HeatingDurationS defaults to EthanolVolumeUL * 90min/10mL when nil.
	HeatingDurationS *int
	// MixerSpeedRPM defaults to 2000 rpm when nil.
	MixerSpeedRPM *int
	// MixerDurationS defaults to 900 s when nil.
	MixerDurationS *int
	// MinTransferMassG defaults to 85% of the theoretical slurry mass when nil.
	MinTransferMassG *float64
	// Replicates defaults to 1 when zero.
	Replicates int
	// AllowReplicates permits the allocator to fold this recipe into
	// matching jars. When false the replicate count must stay 1.
	AllowReplicates bool
	// TimeAdded defaults to the construction time.
	TimeAdded time.Time
}

// InputFile is a validated sample-preparation recipe. All quantities are
// stored per replicate; serialization scales them to batch totals. The
// entity is immutable after construction - replicate counts only change on
// allocator-owned workflow entries, never here.
type InputFile struct {
	id               string
	powderDispenses  map[string]float64
	ethanolVolumeUL  int
	transferVolumeUL int
	heatingDurationS int
	mixerSpeedRPM    int
	mixerDurationS   int
	minTransferMassG float64
	replicates       int
	allowReplicates  bool
	timeAdded        time.Time
}

// NewInputFile validates spec, derives unset defaults, and freezes the
// result. It fails with *InvalidRecipeError aggregating every rule
// violation found.
func NewInputFile(spec InputFileSpec) (InputFile, error) {
	f := InputFile{
		id:              uuid.NewString(),
		ethanolVolumeUL: spec.EthanolVolumeUL,
		replicates:      spec.Replicates,
		allowReplicates: spec.AllowReplicates,
		timeAdded:       spec.TimeAdded,
	}
	if f.replicates == 0 {
		f.replicates = 1
	}
	if f.timeAdded.IsZero() {
		f.timeAdded = time.Now().UTC()
	}

	f.powderDispenses = make(map[string]float64, len(spec.PowderDispenses))
	for powder, mass := range spec.PowderDispenses {
		f.powderDispenses[powder] = mass
	}

	f.transferVolumeUL = spec.EthanolVolumeUL
	if spec.TransferVolumeUL != nil {
		f.transferVolumeUL = *spec.TransferVolumeUL
	}
	f.heatingDurationS = spec.EthanolVolumeUL * heatingSecondsPer10ML / 10000
	if spec.HeatingDurationS != nil {
		f.heatingDurationS = *spec.HeatingDurationS
	}
	f.mixerSpeedRPM = defaultMixerSpeedRPM
	if spec.MixerSpeedRPM != nil {
		f.mixerSpeedRPM = *spec.MixerSpeedRPM
	}
	f.mixerDurationS = defaultMixerDurationS
	if spec.MixerDurationS != nil {
		f.mixerDurationS = *spec.MixerDurationS
	}
	f.minTransferMassG = round5(minTransferMassFraction * (float64(f.transferVolumeUL)*ethanolDensityGPerML/1000 + f.totalPowderMassG()))
	if spec.MinTransferMassG != nil {
		f.minTransferMassG = *spec.MinTransferMassG
	}

	if violations := checkRecipe(f, DefaultRecipeRules()); len(violations) > 0 {
		return InputFile{}, &InvalidRecipeError{Violations: violations}
	}
	return f, nil
}

// ID returns the recipe's unique identifier.
func (f InputFile) ID() string { return f.id }

// PowderDispenses returns a copy of the per-replicate powder targets.
func (f InputFile) PowderDispenses() map[string]float64 {
	out := make(map[string]float64, len(f.powderDispenses))
	for powder, mass := range f.powderDispenses {
		out[powder] = mass
	}
	return out
}

// EthanolVolumeUL returns the per-replicate solvent volume.
func (f InputFile) EthanolVolumeUL() int { return f.ethanolVolumeUL }

// TransferVolumeUL returns the jar-to-crucible transfer volume.
func (f InputFile) TransferVolumeUL() int { return f.transferVolumeUL }

// HeatingDurationS returns the drying duration in seconds.
func (f InputFile) HeatingDurationS() int { return f.heatingDurationS }

// MixerSpeedRPM returns the mixing speed.
func (f InputFile) MixerSpeedRPM() int { return f.mixerSpeedRPM }

// MixerDurationS returns the mixing duration in seconds.
func (f InputFile) MixerDurationS() int { return f.mixerDurationS }

// MinTransferMassG returns the minimum acceptable transferred slurry mass.
func (f InputFile) MinTransferMassG() float64 { return f.minTransferMassG }

// Replicates returns the requested batch size.
func (f InputFile) Replicates() int { return f.replicates }

// AllowReplicates reports whether the allocator may merge this recipe into
// matching jars.
func (f InputFile) AllowReplicates() bool { return f.allowReplicates }

// TimeAdded returns the construction timestamp. It is an age signal only
// and never participates in ordering or equality.
func (f InputFile) TimeAdded() time.Time { return f.timeAdded }

// Age returns the seconds elapsed since the recipe was created.
func (f InputFile) Age() int {
	return int(time.Since(f.timeAdded) / time.Second)
}

// MaxReplicates returns how many replicates of this recipe fit in a single
// mixing jar. A solvent-free recipe is bounded only by the crucible budget.
func (f InputFile) MaxReplicates() int {
	if f.ethanolVolumeUL == 0 {
		return MaxCrucibles
	}
	return MaxJarVolumeUL / f.ethanolVolumeUL
}

// CanAcceptAnotherReplicate reports whether a jar currently holding current
// replicates of this recipe has room for one more.
func (f InputFile) CanAcceptAnotherReplicate(current int) bool {
	return f.allowReplicates && current < f.MaxReplicates()
}

// WithReplicates returns a copy of the recipe carrying a different
// replicate count. The allocator uses this to serialize merged jars.
func (f InputFile) WithReplicates(n int) InputFile {
	cp := f
	cp.replicates = n
	return cp
}

// Equal implements the merge-matching relation: two recipes are equal iff
// every per-replicate quantity and processing parameter matches exactly.
// Replicate count, identifier and TimeAdded are excluded, so a recipe
// matches regardless of its current batch size.
func (f InputFile) Equal(other InputFile) bool {
	if f.ethanolVolumeUL != other.ethanolVolumeUL ||
		f.transferVolumeUL != other.transferVolumeUL ||
		f.heatingDurationS != other.heatingDurationS ||
		f.mixerSpeedRPM != other.mixerSpeedRPM ||
		f.mixerDurationS != other.mixerDurationS ||
		f.minTransferMassG != other.minTransferMassG ||
		f.allowReplicates != other.allowReplicates {
		return false
	}
	if len(f.powderDispenses) != len(other.powderDispenses) {
		return false
	}
	for powder, mass := range f.powderDispenses {
		otherMass, ok := other.powderDispenses[powder]
		if !ok || mass != otherMass {
			return false
		}
	}
	return true
}

func (f InputFile) totalPowderMassG() float64 {
	var total float64
	for _, mass := range f.powderDispenses {
		total += mass
	}
	return total
}

// sortedPowderNames returns the powder names in lexical order, keeping wire
// output deterministic.
func (f InputFile) sortedPowderNames() []string {
	names := make([]string, 0, len(f.powderDispenses))
	for powder := range f.powderDispenses {
		names = append(names, powder)
	}
	sort.Strings(names)
	return names
}

// round5 rounds masses to the 5 decimal places the instrument accepts.
func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
