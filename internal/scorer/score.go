// Package scorer computes a completeness score for canonical vehicle records.
package scorer

import (
	"github.com/sells-group/motolens/internal/model"
)

// MaxScore is the score of a fully populated record.
const MaxScore = 100

// minPlausibleYear is the exclusive lower bound for a credited model year.
const minPlausibleYear = 1980

// Bucket weights. They sum to MaxScore.
const (
	makePoints         = 20
	yearPoints         = 20
	modelPoints        = 15
	bodyTypePoints     = 8
	enginePoints       = 7
	manufacturerPoints = 5
	trimPoints         = 5
	transmissionPoints = 5
	drivetrainPoints   = 5
	vinValidPoints     = 5
	displacementPoints = 3
	cylinderPoints     = 2
)

// Breakdown holds the points earned per bucket.
type Breakdown struct {
	Critical  int `json:"critical" yaml:"critical"`
	Important int `json:"important" yaml:"important"`
	Useful    int `json:"useful" yaml:"useful"`
	Bonus     int `json:"bonus" yaml:"bonus"`
	Total     int `json:"total" yaml:"total"`

	// Components names each criterion that earned points.
	Components map[string]int `json:"components" yaml:"components"`
}

// Score returns the completeness score of v in [0, 100]. It is total and
// deterministic: a nil record scores 0.
func Score(v *model.Vehicle) int {
	return Explain(v).Total
}

// Explain returns the per-bucket breakdown behind Score.
func Explain(v *model.Vehicle) Breakdown {
	b := Breakdown{Components: make(map[string]int)}
	if v == nil {
		return b
	}

	award := func(bucket *int, name string, ok bool, points int) {
		if !ok {
			return
		}
		*bucket += points
		b.Components[name] = points
	}

	// Critical.
	award(&b.Critical, "make", !model.IsSentinel(v.Make), makePoints)
	award(&b.Critical, "year", v.Year > minPlausibleYear, yearPoints)

	// Important.
	award(&b.Important, "model", present(v.Model), modelPoints)
	award(&b.Important, "bodyType", present(v.BodyType), bodyTypePoints)
	award(&b.Important, "engine", present(v.Engine), enginePoints)

	// Useful.
	award(&b.Useful, "manufacturer", !model.IsSentinel(v.Manufacturer), manufacturerPoints)
	award(&b.Useful, "trim", present(v.Trim), trimPoints)
	award(&b.Useful, "transmission", present(v.Transmission), transmissionPoints)
	award(&b.Useful, "drivetrain", present(v.Drivetrain), drivetrainPoints)

	// Bonus.
	award(&b.Bonus, "vinValid", v.VINValid, vinValidPoints)
	award(&b.Bonus, "displacement", v.DisplacementLiters > 0, displacementPoints)
	award(&b.Bonus, "cylinders", v.CylinderCount > 0, cylinderPoints)

	b.Total = clamp(b.Critical + b.Important + b.Useful + b.Bonus)
	return b
}

// present reports whether a string field carries a value. Sentinels are
// normalized away by adapters, but a sentinel that slipped through still
// earns nothing.
func present(s string) bool {
	return !model.IsSentinel(s)
}

func clamp(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxScore:
		return MaxScore
	default:
		return n
	}
}
