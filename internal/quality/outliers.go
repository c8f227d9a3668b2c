package quality

import (
	"fmt"
	"math"
	"strconv"

	"dqa/internal/dataset"
	"dqa/internal/stats"
)

// ZeroBand labels the band of units whose representative median is exactly 0.
const ZeroBand = "0"

// OutlierConfig holds the thresholds of the robust outlier detector.
type OutlierConfig struct {
	// A unit whose median scores at least SparseScoreThreshold and that has
	// fewer than SparseCountThreshold values is represented by the median of
	// medians instead of its own median.
	SparseScoreThreshold float64 `json:"sparseScoreThreshold"`
	SparseCountThreshold int     `json:"sparseCountThreshold"`

	ExtremeThreshold float64 `json:"extremeThreshold"` // |score| >= 3
	OutlierThreshold float64 `json:"outlierThreshold"` // |score| >= 7
	ZeroBandAbsolute float64 `json:"zeroBandAbsolute"` // |value| > 30 in the zero band
	BandWidth        float64 `json:"bandWidth"`
}

// DefaultOutlierConfig returns the standard thresholds.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		SparseScoreThreshold: 7,
		SparseCountThreshold: 3,
		ExtremeThreshold:     3,
		OutlierThreshold:     7,
		ZeroBandAbsolute:     30,
		BandWidth:            10,
	}
}

// Validate rejects thresholds the detector cannot work with.
func (c OutlierConfig) Validate() error {
	if c.BandWidth <= 0 {
		return fmt.Errorf("band width must be positive, got %v", c.BandWidth)
	}
	if c.ExtremeThreshold > c.OutlierThreshold {
		return fmt.Errorf("extreme threshold %v exceeds outlier threshold %v", c.ExtremeThreshold, c.OutlierThreshold)
	}
	if c.SparseCountThreshold < 0 || c.SparseScoreThreshold < 0 || c.ZeroBandAbsolute < 0 {
		return fmt.Errorf("outlier thresholds must not be negative")
	}
	return nil
}

// UnitMedian is the per organisation unit summary used for banding.
type UnitMedian struct {
	OrgUnit     string
	Count       int     // non-missing values
	Median      float64 // NaN when Count is 0
	Represented float64 // Median, or the median of medians for sparse extreme units
	Substituted bool
	Band        string
}

// DetectOutliers flags every observation as zero, extreme or outlying
// relative to the other observations of its element key. The output has one
// record per observation, in input order.
func DetectOutliers(obs []dataset.Observation, mode dataset.KeyMode, cfg OutlierConfig) []QualityRecord {
	out := make([]QualityRecord, len(obs))
	groups := make(map[dataset.ElementKey][]int)
	var order []dataset.ElementKey
	for i, o := range obs {
		out[i] = recordFromObservation(o)
		k := mode.KeyOf(o)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range order {
		flagGroup(out, groups[k], cfg)
	}
	return out
}

// BandUnits computes the representative median and band of every unit of
// one element key. Exposed for inspection; DetectOutliers uses it per key.
func BandUnits(obs []dataset.Observation, cfg OutlierConfig) map[string]UnitMedian {
	recs := make([]QualityRecord, len(obs))
	idx := make([]int, len(obs))
	for i, o := range obs {
		recs[i] = recordFromObservation(o)
		idx[i] = i
	}
	return bandUnits(recs, idx, cfg)
}

func bandUnits(recs []QualityRecord, idx []int, cfg OutlierConfig) map[string]UnitMedian {
	// 1. Collect values per organisation unit
	values := make(map[string][]float64)
	var unitOrder []string
	for _, i := range idx {
		r := recs[i]
		if _, ok := values[r.OrgUnit]; !ok {
			unitOrder = append(unitOrder, r.OrgUnit)
			values[r.OrgUnit] = nil
		}
		if r.HasValue() {
			values[r.OrgUnit] = append(values[r.OrgUnit], *r.Value)
		}
	}

	// 2. Per-unit medians and the median of medians
	units := make(map[string]UnitMedian, len(unitOrder))
	var medians []float64
	for _, ou := range unitOrder {
		u := UnitMedian{OrgUnit: ou, Count: len(values[ou]), Median: math.NaN()}
		if u.Count > 0 {
			u.Median = stats.CalculateMedianContinuous(values[ou])
			medians = append(medians, u.Median)
		}
		u.Represented = u.Median
		units[ou] = u
	}
	medianOfMedians := stats.CalculateMedianContinuous(medians)

	// 3. Sparse and extreme units take the median of medians. Equal medians
	// (IQR 0) are scored with a unit scale so a lone spike is still caught.
	if len(medians) > 0 {
		scaler, ok := stats.FitRobustScaler(medians)
		if !ok {
			scaler.Scale = 1
		}
		for ou, u := range units {
			if u.Count == 0 {
				continue
			}
			if math.Abs(scaler.Score(u.Median)) >= cfg.SparseScoreThreshold && u.Count < cfg.SparseCountThreshold {
				u.Represented = medianOfMedians
				u.Substituted = true
				units[ou] = u
			}
		}
	}

	// 4. Width-based bands
	for ou, u := range units {
		u.Band = BandOf(u.Represented, cfg.BandWidth)
		units[ou] = u
	}
	return units
}

// BandOf returns the label of the band containing a representative median:
// "0" for exactly zero, otherwise the right-closed interval "(lo, hi]" of
// the given width. NaN has no band.
func BandOf(m, width float64) string {
	if math.IsNaN(m) {
		return ""
	}
	if m == 0 {
		return ZeroBand
	}
	hi := math.Ceil(m/width) * width
	lo := hi - width
	return "(" + formatBound(lo) + ", " + formatBound(hi) + "]"
}

func formatBound(v float64) string {
	if v == 0 {
		return "0" // avoids "-0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func flagGroup(recs []QualityRecord, idx []int, cfg OutlierConfig) {
	units := bandUnits(recs, idx, cfg)

	// 5. Robust scaling within each band
	bandValues := make(map[string][]float64)
	for _, i := range idx {
		r := recs[i]
		band := units[r.OrgUnit].Band
		if band == "" || !r.HasValue() {
			continue
		}
		bandValues[band] = append(bandValues[band], *r.Value)
	}
	scalers := make(map[string]stats.RobustScaler)
	for band, vals := range bandValues {
		if scaler, ok := stats.FitRobustScaler(vals); ok {
			scalers[band] = scaler
		}
	}

	// 6. Classification
	for _, i := range idx {
		r := &recs[i]
		band := units[r.OrgUnit].Band
		r.Band = band
		if band == "" || !r.HasValue() {
			continue
		}
		v := *r.Value
		r.Zero = dataset.FlagOf(v == 0)

		// A band without a computable score leaves OUTLIER and EXTREME missing.
		scaler, scored := scalers[band]
		if !scored {
			continue
		}
		score := scaler.Score(v)
		r.RSScore = ptr(score)
		abs := math.Abs(score)

		if band == ZeroBand {
			r.OutlierRS = dataset.FlagOf(math.Abs(v) > cfg.ZeroBandAbsolute)
			r.ExtremeRS = dataset.FlagOf(abs >= cfg.OutlierThreshold && math.Abs(v) <= cfg.ZeroBandAbsolute)
			continue
		}
		r.OutlierRS = dataset.FlagOf(abs >= cfg.OutlierThreshold)
		r.ExtremeRS = dataset.FlagOf(abs >= cfg.ExtremeThreshold && abs < cfg.OutlierThreshold)
	}
}
