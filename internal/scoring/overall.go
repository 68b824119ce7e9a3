package scoring

import "math"

// WritingComponent says whether the writing band takes part in an overall
// band. Build one with WithWriting or WithoutWriting.
type WritingComponent struct {
	band    float64
	include bool
}

// WithWriting includes the writing band in the average.
func WithWriting(band float64) WritingComponent {
	return WritingComponent{band: band, include: true}
}

// WithoutWriting leaves writing out of the average.
func WithoutWriting() WritingComponent {
	return WritingComponent{}
}

// OverallBand averages the participating component bands and rounds the
// average to the nearest half band, halves rounding up.
func OverallBand(reading, listening float64, writing WritingComponent) float64 {
	sum, n := reading+listening, 2.0
	if writing.include {
		sum += writing.band
		n++
	}
	return RoundHalf(sum / n)
}

// RoundHalf rounds v to the nearest 0.5, with x.25 and x.75 rounding up.
func RoundHalf(v float64) float64 {
	return math.Floor(v*2+0.5) / 2
}
