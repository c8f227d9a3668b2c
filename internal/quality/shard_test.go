package quality

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"

	"dqa/internal/dataset"
)

func TestPartition(t *testing.T) {
	var obs []dataset.Observation
	obs = append(obs, series("F1", "de2", 1, 2)...)
	obs = append(obs, series("F1", "de1", 1, 2, 3)...)
	obs = append(obs, series("F1", "de3", 1, 2, 3, 4)...)
	cat := testCatalog(t, "de1", "de2", "de3", "de4")

	tests := []struct {
		name string
		rows int
		want [][]string
	}{
		// rows by element: de1 0-2, de2 3-4, de3 5-8
		{"WholeWindows", 5, [][]string{{"de1", "de2"}, {"de3", "de4"}}},
		{"SpanningToTrailing", 4, [][]string{{"de1"}, {"de2", "de3", "de4"}}},
		{"Single", 0, [][]string{{"de1", "de2", "de3", "de4"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards := Partition(obs, cat, tt.rows)
			var got [][]string
			total := 0
			for _, s := range shards {
				got = append(got, s.DataElements)
				total += len(s.Observations)
				for _, o := range s.Observations {
					if !slices.Contains(s.DataElements, o.DataElement) {
						t.Errorf("observation of %s placed in shard %v", o.DataElement, s.DataElements)
					}
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Partition = %v, want %v", got, tt.want)
			}
			if total != len(obs) {
				t.Errorf("expected %d observations across shards, got %d", len(obs), total)
			}
		})
	}
}

func TestPartition_NoObservations(t *testing.T) {
	shards := Partition(nil, testCatalog(t, "de1"), 10)
	if len(shards) != 1 || shards[0].DataElements[0] != "de1" {
		t.Errorf("expected one shard carrying the catalog element, got %+v", shards)
	}
}

func TestRunSharded_MatchesSingleRun(t *testing.T) {
	in := testInput(t)
	in.Observations = append(in.Observations, series("F2", "de3", 7, 8, 9, 70)...)
	in.Observations = append(in.Observations, series("F1", "de4", 1, 1, 2)...)
	in.Catalog = testCatalog(t, "de1", "de2", "de3", "de4", "de5")

	session, err := NewSession(in, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	whole, err := session.Run()
	if err != nil {
		t.Fatal(err)
	}

	for _, rows := range []int{1, 4, 7, 20} {
		t.Run(fmt.Sprintf("Rows%d", rows), func(t *testing.T) {
			sharded, err := RunSharded(in, DefaultConfig(), rows)
			if err != nil {
				t.Fatalf("RunSharded failed: %v", err)
			}

			if !slices.Equal(recordTuples(whole.Records), recordTuples(sharded.Records)) {
				t.Error("sharded quality records differ from the single run")
			}
			if !reflect.DeepEqual(sortedRollup(whole.Rollup), sortedRollup(sharded.Rollup)) {
				t.Error("sharded rollup differs from the single run")
			}
			if !reflect.DeepEqual(sortedFacilities(whole.Facilities), sortedFacilities(sharded.Facilities)) {
				t.Error("sharded facility statistics differ from the single run")
			}
			if len(whole.Presentation.Rows) != len(sharded.Presentation.Rows) {
				t.Errorf("expected %d presentation rows, got %d", len(whole.Presentation.Rows), len(sharded.Presentation.Rows))
			}
			if sharded.Report.Availability != whole.Report.Availability {
				t.Errorf("availability report %+v, want %+v", sharded.Report.Availability, whole.Report.Availability)
			}
		})
	}
}

func TestRunSharded_SchemaMismatchBeforeAnyShard(t *testing.T) {
	in := testInput(t)
	in.Observations = append(in.Observations, dataset.Observation{OrgUnit: "F1", DataElement: "de1"})
	if _, err := RunSharded(in, DefaultConfig(), 3); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("expected a schema mismatch, got %v", err)
	}
}

func sortedRollup(rows []RollupStat) []RollupStat {
	out := slices.Clone(rows)
	slices.SortFunc(out, func(a, b RollupStat) int {
		if c := cmp.Compare(a.OrgUnit, b.OrgUnit); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
	return out
}

func sortedFacilities(rows []FacilityStat) []FacilityStat {
	out := slices.Clone(rows)
	slices.SortFunc(out, func(a, b FacilityStat) int {
		if c := cmp.Compare(a.OrgUnit, b.OrgUnit); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
	return out
}
