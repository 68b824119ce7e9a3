package scoring

import (
	"fmt"
	"math"
	"strings"
)

// BandTable selects one of the two raw-score → band conversion policies.
// There is no default; every call site names the table it scores with.
type BandTable int

const (
	// BandTableCoarse is used when an administrator scores a result by hand.
	// Below 50% it moves in whole bands and bottoms out at 1.0.
	BandTableCoarse BandTable = iota + 1
	// BandTableFine is used when a section is scored on submission.
	// It adds the 4.5/3.5/2.5 steps and bottoms out at 2.0.
	BandTableFine
)

type bandStep struct {
	minPercent int
	band       float64
}

var coarseSteps = []bandStep{
	{90, 9.0}, {85, 8.5}, {80, 8.0}, {75, 7.5}, {70, 7.0}, {65, 6.5},
	{60, 6.0}, {55, 5.5}, {50, 5.0}, {40, 4.0}, {30, 3.0}, {20, 2.0},
}

var fineSteps = []bandStep{
	{90, 9.0}, {85, 8.5}, {80, 8.0}, {75, 7.5}, {70, 7.0}, {65, 6.5},
	{60, 6.0}, {55, 5.5}, {50, 5.0}, {45, 4.5}, {40, 4.0}, {35, 3.5},
	{30, 3.0}, {25, 2.5},
}

const (
	coarseFloor = 1.0
	fineFloor   = 2.0
)

// String implements fmt.Stringer.
func (t BandTable) String() string {
	switch t {
	case BandTableCoarse:
		return "coarse"
	case BandTableFine:
		return "fine"
	default:
		return fmt.Sprintf("BandTable(%d)", int(t))
	}
}

// ParseBandTable parses "coarse" or "fine".
func ParseBandTable(s string) (BandTable, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coarse":
		return BandTableCoarse, nil
	case "fine":
		return BandTableFine, nil
	default:
		return 0, fmt.Errorf("unknown band table %q", s)
	}
}

func (t BandTable) steps() ([]bandStep, float64) {
	switch t {
	case BandTableCoarse:
		return coarseSteps, coarseFloor
	case BandTableFine:
		return fineSteps, fineFloor
	default:
		panic("scoring: unknown band table " + t.String())
	}
}

// BandFromScore converts a raw correct count into a band.
//
// Zero correct answers is band 0 on both tables; it is not on the
// percentage curve. Thresholds are compared in integer arithmetic
// (raw*100 >= pct*total) so exact boundaries like 36/40 land on 90%.
func BandFromScore(rawCorrect, total int, table BandTable) float64 {
	steps, floor := table.steps()
	if rawCorrect <= 0 || total <= 0 {
		return 0
	}
	if rawCorrect > total {
		rawCorrect = total
	}

	for _, s := range steps {
		if rawCorrect*100 >= s.minPercent*total {
			return s.band
		}
	}
	return floor
}

// CoarseBand is BandFromScore with BandTableCoarse.
func CoarseBand(rawCorrect, total int) float64 {
	return BandFromScore(rawCorrect, total, BandTableCoarse)
}

// FineBand is BandFromScore with BandTableFine.
func FineBand(rawCorrect, total int) float64 {
	return BandFromScore(rawCorrect, total, BandTableFine)
}

// IsValidBand reports whether v is on the 0..9 scale in half steps.
func IsValidBand(v float64) bool {
	if v < 0 || v > 9 {
		return false
	}
	return v*2 == math.Trunc(v*2)
}
