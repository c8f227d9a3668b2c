package stats

import (
	"math"
	"testing"
)

func TestCalculateMedianContinuous(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"SingleItem", []float64{5.5}, 5.5},
		{"OddCount", []float64{1.1, 3.3, 2.2, 4.4, 5.5}, 3.3},
		{"EvenCount", []float64{1.0, 2.0, 3.0, 4.0}, 2.5},
		{"Unsorted", []float64{10.5, 2.5, 8.5, 4.5, 6.5}, 6.5},
		{"SkipsNaN", []float64{1, math.NaN(), 3}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMedianContinuous(tt.values); got != tt.expected {
				t.Errorf("CalculateMedianContinuous() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateMedianContinuous_Empty(t *testing.T) {
	if got := CalculateMedianContinuous(nil); !math.IsNaN(got) {
		t.Errorf("expected NaN for empty input, got %v", got)
	}
	if got := CalculateMedianContinuous([]float64{math.NaN()}); !math.IsNaN(got) {
		t.Errorf("expected NaN for all-NaN input, got %v", got)
	}
}

func TestCalculateQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		q        float64
		expected float64
	}{
		{0, 1},
		{0.25, 2},
		{0.5, 3},
		{0.75, 4},
		{1, 5},
	}
	for _, tt := range tests {
		if got := CalculateQuantile(values, tt.q); got != tt.expected {
			t.Errorf("CalculateQuantile(q=%v) = %v, want %v", tt.q, got, tt.expected)
		}
	}

	// Linear interpolation between ranks: positions 0.75 and 2.25
	even := []float64{10, 20, 30, 40}
	if got := CalculateQuantile(even, 0.25); got != 17.5 {
		t.Errorf("expected 17.5, got %v", got)
	}
	if got := CalculateQuantile(even, 0.75); got != 32.5 {
		t.Errorf("expected 32.5, got %v", got)
	}
}

func TestCalculateSampleStdDev(t *testing.T) {
	got := CalculateSampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.138) > 0.001 {
		t.Errorf("expected ~2.138, got %v", got)
	}
	if !math.IsNaN(CalculateSampleStdDev([]float64{3})) {
		t.Error("expected NaN for a single value")
	}
}

func TestFitRobustScaler(t *testing.T) {
	scaler, ok := FitRobustScaler([]float64{1, 2, 3, 4, 5})
	if !ok {
		t.Fatal("expected a usable scaler")
	}
	if scaler.Center != 3 || scaler.Scale != 2 {
		t.Errorf("unexpected scaler %+v", scaler)
	}
	if got := scaler.Score(17); got != 7 {
		t.Errorf("Score(17) = %v, want 7", got)
	}

	if _, ok := FitRobustScaler([]float64{4, 4, 4, 4}); ok {
		t.Error("constant values must not yield a usable scaler")
	}
	if _, ok := FitRobustScaler(nil); ok {
		t.Error("empty values must not yield a usable scaler")
	}
}
