package stats

import (
	"math"
	"slices"
)

// CalculateMedianContinuous finds the median value in a slice of floats.
// NaN entries are ignored; an empty (or all-NaN) slice yields NaN.
func CalculateMedianContinuous(values []float64) float64 {
	return CalculateQuantile(values, 0.5)
}

// CalculateQuantile returns the q-th quantile (0 <= q <= 1) using linear
// interpolation between the closest ranks. NaN entries are ignored.
func CalculateQuantile(values []float64, q float64) float64 {
	temp := sortedFinite(values)
	return quantileSorted(temp, q)
}

// CalculateMean returns the arithmetic mean of the non-NaN values, or NaN if there are none.
func CalculateMean(values []float64) float64 {
	sum := 0.0
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// CalculateSampleStdDev returns the sample standard deviation (n-1 denominator)
// of the non-NaN values. Fewer than two values yield NaN.
func CalculateSampleStdDev(values []float64) float64 {
	mean := CalculateMean(values)
	sq := 0.0
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sq += (v - mean) * (v - mean)
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(sq / float64(n-1))
}

// RobustScaler centres values on their median and scales them by the
// interquartile range (P75 - P25).
type RobustScaler struct {
	Center float64
	Scale  float64
}

// FitRobustScaler computes the robust centre and scale of values.
// ok is false when no finite value exists or the IQR is zero; a zero scale
// has no meaningful score and callers must treat the scores as missing.
func FitRobustScaler(values []float64) (RobustScaler, bool) {
	temp := sortedFinite(values)
	if len(temp) == 0 {
		return RobustScaler{}, false
	}

	scaler := RobustScaler{
		Center: quantileSorted(temp, 0.5),
		Scale:  quantileSorted(temp, 0.75) - quantileSorted(temp, 0.25),
	}
	if scaler.Scale == 0 || math.IsNaN(scaler.Scale) {
		return scaler, false
	}
	return scaler, true
}

// Score returns the robust score of v.
func (r RobustScaler) Score(v float64) float64 {
	return (v - r.Center) / r.Scale
}

func sortedFinite(values []float64) []float64 {
	temp := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			temp = append(temp, v)
		}
	}
	slices.Sort(temp)
	return temp
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
