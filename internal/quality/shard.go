package quality

import (
	"fmt"
	"slices"

	"dqa/internal/dataset"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Shard is one independent slice of the input along the data element axis.
type Shard struct {
	DataElements []string
	Observations []dataset.Observation
}

// Partition splits observations into shards of whole data elements.
//
// Rows are ordered by data element and cut into windows of rowsPerShard rows.
// A data element lying entirely inside a window belongs to that window's
// shard; one whose rows cross a window boundary goes to a trailing shard.
// Catalog data elements without observations join the last shard so their
// expected cells are still evaluated. rowsPerShard <= 0 yields a single shard.
func Partition(obs []dataset.Observation, catalog *dataset.Catalog, rowsPerShard int) []Shard {
	counts := make(map[string]int)
	for _, o := range obs {
		counts[o.DataElement]++
	}
	elements := make([]string, 0, len(counts))
	for de := range counts {
		elements = append(elements, de)
	}
	slices.Sort(elements)

	var batches [][]string
	if rowsPerShard <= 0 {
		batches = [][]string{elements}
	} else {
		windows := make(map[int][]string)
		var spanning []string
		offset := 0
		lastWindow := -1
		for _, de := range elements {
			first := offset / rowsPerShard
			last := (offset + counts[de] - 1) / rowsPerShard
			offset += counts[de]
			lastWindow = last
			if first != last {
				spanning = append(spanning, de)
				continue
			}
			windows[first] = append(windows[first], de)
		}
		for w := 0; w <= lastWindow; w++ {
			if len(windows[w]) > 0 {
				batches = append(batches, windows[w])
			}
		}
		if len(spanning) > 0 {
			batches = append(batches, spanning)
		}
	}

	// Catalog elements never observed
	if catalog != nil {
		var unobserved []string
		for _, e := range catalog.Entries() {
			if counts[e.DataElement] == 0 && !slices.Contains(unobserved, e.DataElement) {
				unobserved = append(unobserved, e.DataElement)
			}
		}
		slices.Sort(unobserved)
		if len(unobserved) > 0 {
			if len(batches) == 0 || len(batches[len(batches)-1]) == 0 {
				batches = append(batches[:max(0, len(batches)-1)], unobserved)
			} else {
				last := len(batches) - 1
				batches[last] = append(slices.Clone(batches[last]), unobserved...)
			}
		}
	}

	shardOf := make(map[string]int)
	shards := make([]Shard, 0, len(batches))
	for _, b := range batches {
		if len(b) == 0 {
			continue
		}
		shards = append(shards, Shard{DataElements: b})
		for _, de := range b {
			shardOf[de] = len(shards) - 1
		}
	}
	for _, o := range obs {
		i := shardOf[o.DataElement]
		shards[i].Observations = append(shards[i].Observations, o)
	}
	return shards
}

// RunSharded runs the pipeline once per shard, sequentially, and concatenates
// the outputs. The period set is computed over the whole input so every shard
// evaluates availability against the same periods.
func RunSharded(input Input, cfg Config, rowsPerShard int, hooks ...StageHook) (*Result, error) {
	if input.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrEmptyInput)
	}
	if len(input.Periods) == 0 {
		input.Periods = ObservedPeriods(input.Observations)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	// Fail on schema problems before the first shard runs.
	mode, err := dataset.ParseKeyMode(string(cfg.KeyMode))
	if err != nil {
		return nil, err
	}
	if err := dataset.ValidateObservations(input.Observations, mode); err != nil {
		return nil, err
	}

	shards := Partition(input.Observations, input.Catalog, rowsPerShard)
	if len(shards) == 0 {
		return nil, fmt.Errorf("%w: no data elements to shard", ErrEmptyInput)
	}
	merged := &Result{RunID: cfg.RunID}
	merged.Report.Styles = make(map[ReportingStyle]int)
	merged.Report.Periods = slices.Clone(input.Periods)
	merged.Presentation.Columns = slices.Clone(PresentationColumns)

	for i, shard := range shards {
		log.Info().Str("run", cfg.RunID).Int("shard", i+1).Int("of", len(shards)).
			Int("elements", len(shard.DataElements)).Int("rows", len(shard.Observations)).Msg("Running shard")

		keep := make(map[string]bool, len(shard.DataElements))
		for _, de := range shard.DataElements {
			keep[de] = true
		}
		sub := Input{
			Observations: shard.Observations,
			Tree:         input.Tree,
			Catalog:      input.Catalog.Filter(keep),
			Periods:      input.Periods,
		}
		session, err := NewSession(sub, cfg, hooks...)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i+1, err)
		}
		res, err := session.Run()
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i+1, err)
		}
		merged.merge(res)
	}
	return merged, nil
}

func (r *Result) merge(o *Result) {
	r.Records = append(r.Records, o.Records...)
	r.Styles = append(r.Styles, o.Styles...)
	r.Facilities = append(r.Facilities, o.Facilities...)
	r.Rollup = append(r.Rollup, o.Rollup...)
	r.Presentation.Rows = append(r.Presentation.Rows, o.Presentation.Rows...)

	rep := &r.Report
	rep.RunID = o.Report.RunID
	rep.Observations += o.Report.Observations
	rep.FacilityLevel = o.Report.FacilityLevel
	rep.RollupLevel = o.Report.RollupLevel
	rep.MissingCatalog = append(rep.MissingCatalog, o.Report.MissingCatalog...)
	rep.Availability.ExpectedCells += o.Report.Availability.ExpectedCells
	rep.Availability.Available += o.Report.Availability.Available
	rep.Availability.Dropped += o.Report.Availability.Dropped
	rep.Rollup.Groups += o.Report.Rollup.Groups
	rep.Rollup.Orphans += o.Report.Rollup.Orphans
	rep.Outliers += o.Report.Outliers
	rep.Extremes += o.Report.Extremes
	rep.Zeros += o.Report.Zeros
	for style, n := range o.Report.Styles {
		rep.Styles[style] += n
	}
}
