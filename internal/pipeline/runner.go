package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dqa/internal/export"
	"dqa/internal/ingest"
	"dqa/internal/metrics"
	"dqa/internal/period"
	"dqa/internal/quality"
	"dqa/internal/snapshot"
	"dqa/internal/visuals"

	"github.com/rs/zerolog/log"
)

// SummaryFile is the Markdown run summary written to the output directory.
const SummaryFile = "summary.md"

// Options drives one end-to-end run: load, score, and write artifacts.
// Empty output settings skip the matching artifact.
type Options struct {
	Config quality.Config
	Paths  ingest.Paths

	// Period range; all three set or none.
	PeriodStart string
	PeriodEnd   string
	Frequency   string

	// ShardRows > 0 runs the pipeline in data element shards.
	ShardRows int

	OutputDir   string
	Formats     []export.Format
	SnapshotDir string
	MetricsFile string
	Charts      bool

	PostgresDSN   string
	PostgresTable string
}

// Outcome is what a run produced.
type Outcome struct {
	Result  *quality.Result
	Files   []string
	Summary string
}

// Periods resolves the configured period range, nil when none is set.
func (o Options) Periods() ([]string, error) {
	if o.PeriodStart == "" && o.PeriodEnd == "" {
		return nil, nil
	}
	if o.PeriodStart == "" || o.PeriodEnd == "" {
		return nil, fmt.Errorf("period range needs both a start and an end")
	}
	freq, err := period.ParseFrequency(o.Frequency)
	if err != nil {
		return nil, err
	}
	return period.Split(o.PeriodStart, o.PeriodEnd, freq)
}

// Run executes the pipeline with the given options.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	// 1. Resolve inputs
	periods, err := opts.Periods()
	if err != nil {
		return nil, err
	}
	ds, err := ingest.Load(ctx, opts.Paths, opts.Config.KeyMode)
	if err != nil {
		return nil, err
	}
	input := quality.Input{Observations: ds.Observations, Tree: ds.Tree, Catalog: ds.Catalog, Periods: periods}

	collector := metrics.NewCollector()
	var store *snapshot.Store
	if opts.SnapshotDir != "" {
		store = snapshot.NewStore(opts.SnapshotDir)
	}

	// 2. Score
	var res *quality.Result
	if opts.ShardRows > 0 {
		res, err = quality.RunSharded(input, opts.Config, opts.ShardRows, collector.ObserveStage)
		if err != nil {
			return nil, err
		}
		if store != nil {
			if err := store.SaveResult(res); err != nil {
				return nil, err
			}
		}
	} else {
		sess, err := quality.NewSession(input, opts.Config, collector.ObserveStage)
		if err != nil {
			return nil, err
		}
		res, err = sess.Run()
		if err != nil {
			return nil, err
		}
		if store != nil {
			if err := store.SaveSession(sess); err != nil {
				return nil, err
			}
		}
	}
	collector.RecordRun(res.Report, opts.Config, time.Now())

	out := &Outcome{Result: res, Summary: visuals.RunSummary(res, opts.Charts)}

	// 3. Artifacts
	if opts.OutputDir != "" {
		formats := opts.Formats
		if len(formats) == 0 {
			formats = []export.Format{export.FormatCSV}
		}
		files, err := export.WriteResult(opts.OutputDir, res, formats)
		out.Files = files
		if err != nil {
			return out, err
		}
		path := filepath.Join(opts.OutputDir, SummaryFile)
		if err := os.WriteFile(path, []byte(out.Summary), 0644); err != nil {
			return out, fmt.Errorf("write summary: %w", err)
		}
		out.Files = append(out.Files, path)
	}

	if opts.MetricsFile != "" {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			return out, err
		}
		out.Files = append(out.Files, opts.MetricsFile)
	}

	if opts.PostgresDSN != "" {
		sink, err := export.NewPostgresSink(ctx, opts.PostgresDSN, opts.PostgresTable)
		if err != nil {
			return out, fmt.Errorf("postgres: %w", err)
		}
		defer sink.Close()
		if _, err := sink.CopyRollup(ctx, res.RunID, res.Rollup); err != nil {
			return out, fmt.Errorf("postgres: %w", err)
		}
	}

	log.Info().
		Str("run", res.RunID).
		Int("records", len(res.Records)).
		Int("rollupRows", len(res.Rollup)).
		Int("files", len(out.Files)).
		Msg("Pipeline run finished")
	return out, nil
}
