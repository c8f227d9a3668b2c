package engine

import (
	"context"
	"testing"

	"dqa/internal/dataset"
	"dqa/internal/ingest"
	"dqa/internal/quality"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		check    func(t *testing.T, ext *Extraction)
	}{
		{
			name:     "Mild",
			scenario: "mild",
			check: func(t *testing.T, ext *Extraction) {
				// 2 districts x 3 facilities x 2 elements x 6 months
				if len(ext.Observations) != 72 {
					t.Errorf("Expected 72 observations, got %d", len(ext.Observations))
				}
			},
		},
		{
			name:     "Drift",
			scenario: "drift",
			check: func(t *testing.T, ext *Extraction) {
				// Facilities 0 and 4 stop after 3 of 6 months
				if len(ext.Observations) != 72-2*2*3 {
					t.Errorf("Expected 60 observations, got %d", len(ext.Observations))
				}
			},
		},
		{
			name:     "Chaos",
			scenario: "chaos",
			check: func(t *testing.T, ext *Extraction) {
				if len(ext.Observations) >= 72 {
					t.Errorf("Expected reporting gaps, got %d observations", len(ext.Observations))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Generate(GeneratorConfig{
				Scenario: tt.scenario, Distribution: "uniform",
				Districts: 2, Facilities: 3, Elements: 2,
				Start: "202101", End: "202106", Seed: 7,
			})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if len(ext.Units) != 1+2+6 {
				t.Errorf("Expected 9 units, got %d", len(ext.Units))
			}
			if len(ext.Catalog) != 2 || len(ext.Assignments) != 6 {
				t.Errorf("Unexpected catalog %d / assignments %d", len(ext.Catalog), len(ext.Assignments))
			}
			tt.check(t, ext)
		})
	}
}

func TestGenerate_InvalidRange(t *testing.T) {
	if _, err := Generate(GeneratorConfig{Start: "202106", End: "202101"}); err == nil {
		t.Error("Expected an error for a reversed period range")
	}
}

func TestSave_LoadsIntoPipeline(t *testing.T) {
	ext, err := Generate(GeneratorConfig{
		Scenario: "chaos", Distribution: "weibull",
		Districts: 2, Facilities: 4, Elements: 3,
		Start: "202101", End: "202112", Seed: 42,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	dir := t.TempDir()
	if err := Save(dir, ext); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ds, err := ingest.Load(context.Background(), ingest.DirPaths(dir), dataset.KeyDataElement)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ds.Observations) != len(ext.Observations) {
		t.Errorf("Expected %d observations, got %d", len(ext.Observations), len(ds.Observations))
	}
	if !ds.Catalog.HasAssignments() {
		t.Error("Expected the assignments table to be picked up")
	}

	sess, err := quality.NewSession(quality.Input{Observations: ds.Observations, Tree: ds.Tree, Catalog: ds.Catalog}, quality.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	res, err := sess.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// 8 facilities x 3 elements x 12 months
	if res.Report.Availability.ExpectedCells != 288 {
		t.Errorf("Expected 288 expected cells, got %d", res.Report.Availability.ExpectedCells)
	}
	if len(res.Rollup) != 2*3 {
		t.Errorf("Expected 6 district rollup rows, got %d", len(res.Rollup))
	}
}
