package spectrum

import "math"

// BandID indexes the fixed analysis band set.
type BandID int

const (
	BandLow BandID = iota
	BandMid
	BandTarget
	BandHigh

	NumBands
)

// String returns the band name.
func (b BandID) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMid:
		return "mid"
	case BandTarget:
		return "target"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Band is a half-open frequency range [MinHz, MaxHz) with a static weight.
type Band struct {
	Name   string
	MinHz  float64
	MaxHz  float64
	Weight float64
}

// Bands is the fixed band set indexed by BandID.
type Bands [NumBands]Band

// Energies holds weighted band energies indexed by BandID.
type Energies [NumBands]float64

// DefaultBands returns the band layout tuned for mouth clicks: the target
// band covers the 2-6 kHz region where click energy concentrates and the
// high band overlaps it to catch broadband bursts.
func DefaultBands() Bands {
	return Bands{
		BandLow:    {Name: "low", MinHz: 60, MaxHz: 500, Weight: 0.6},
		BandMid:    {Name: "mid", MinHz: 500, MaxHz: 2000, Weight: 0.8},
		BandTarget: {Name: "target", MinHz: 2000, MaxHz: 6000, Weight: 1.2},
		BandHigh:   {Name: "high", MinHz: 4000, MaxHz: 16000, Weight: 1.0},
	}
}

// binRange is a half-open bin index range.
type binRange struct {
	lo, hi int
}

// BinRange maps [minHz, maxHz) onto bin indices of a one-sided spectrum with
// binCount bins. The result is clipped to [0, binCount] and may be empty.
func BinRange(minHz, maxHz, sampleRate float64, binCount int) (lo, hi int) {
	binHz := BinHz(sampleRate, binCount)
	if binHz <= 0 || maxHz <= minHz {
		return 0, 0
	}

	lo = clampBin(int(math.Ceil(minHz/binHz)), binCount)
	hi = clampBin(int(math.Ceil(maxHz/binHz)), binCount)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func clampBin(i, binCount int) int {
	if i < 0 {
		return 0
	}
	if i > binCount {
		return binCount
	}
	return i
}
