package commands

import (
	"fmt"
	"path/filepath"

	"dqa/internal/dataset"
	"dqa/internal/export"
	"dqa/internal/ingest"
	"dqa/internal/pipeline"
	"dqa/internal/quality"

	"github.com/spf13/cobra"
)

var runFlags struct {
	dataDir       string
	assignments   string
	outputDir     string
	formats       string
	keyMode       string
	weighting     string
	facilityLevel int
	rollupLevel   int
	periodStart   string
	periodEnd     string
	frequency     string
	shardRows     int
	dumpStages    bool
	metricsFile   string
	postgres      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over an extraction directory",
	Long: `Run loads observations.csv, tree.csv, catalog.csv and the optional assignments.csv,
scores every value and writes the record, facility, rollup and presentation tables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}

		out, err := pipeline.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, out.Summary)
		for _, f := range out.Files {
			fmt.Fprintf(w, "wrote %s\n", f)
		}
		return nil
	},
}

// runOptions merges the configuration with the flags that were set.
func runOptions(cmd *cobra.Command) (pipeline.Options, error) {
	f := runFlags
	pc := cfg.Pipeline

	if cmd.Flags().Changed("key-mode") {
		mode, err := dataset.ParseKeyMode(f.keyMode)
		if err != nil {
			return pipeline.Options{}, err
		}
		pc.KeyMode = mode
	}
	if cmd.Flags().Changed("weighting") {
		w, err := quality.ParseWeighting(f.weighting)
		if err != nil {
			return pipeline.Options{}, err
		}
		pc.Weighting = w
	}
	if cmd.Flags().Changed("facility-level") {
		pc.FacilityLevel = f.facilityLevel
	}
	if cmd.Flags().Changed("rollup-level") {
		pc.RollupLevel = f.rollupLevel
	}

	formats, err := export.ParseFormats(f.formats)
	if err != nil {
		return pipeline.Options{}, err
	}

	dataDir := f.dataDir
	if dataDir == "" {
		dataDir = cfg.DataPath
	}
	paths := ingest.DirPaths(dataDir)
	if f.assignments != "" {
		paths.Assignments = f.assignments
	}

	opts := pipeline.Options{
		Config:      pc,
		Paths:       paths,
		PeriodStart: f.periodStart,
		PeriodEnd:   f.periodEnd,
		Frequency:   f.frequency,
		ShardRows:   cfg.ShardRows,
		OutputDir:   cfg.OutputDir,
		Formats:     formats,
		MetricsFile: cfg.MetricsFile,
		Charts:      cfg.EnableMermaidCharts,
	}
	if f.outputDir != "" {
		opts.OutputDir = f.outputDir
	}
	if cmd.Flags().Changed("shard-rows") {
		opts.ShardRows = f.shardRows
	}
	if f.metricsFile != "" {
		opts.MetricsFile = f.metricsFile
	}
	if f.dumpStages {
		opts.SnapshotDir = cfg.SnapshotDir
		if f.outputDir != "" {
			opts.SnapshotDir = filepath.Join(f.outputDir, "stages")
		}
	}
	if f.postgres {
		if cfg.PostgresDSN == "" {
			return pipeline.Options{}, fmt.Errorf("--postgres needs DQA_POSTGRES_DSN")
		}
		opts.PostgresDSN = cfg.PostgresDSN
		opts.PostgresTable = cfg.PostgresTable
	}
	return opts, nil
}

func init() {
	fl := runCmd.Flags()
	fl.StringVarP(&runFlags.dataDir, "data", "d", "", "extraction directory (default DATA_PATH)")
	fl.StringVar(&runFlags.assignments, "assignments", "", "data set assignments CSV (default <data>/assignments.csv when present)")
	fl.StringVarP(&runFlags.outputDir, "out", "o", "", "output directory (default OUTPUT_DIR)")
	fl.StringVar(&runFlags.formats, "format", "csv", "output formats: csv, parquet or both comma separated")
	fl.StringVar(&runFlags.keyMode, "key-mode", "DE", "series key: DE or DE_COC")
	fl.StringVar(&runFlags.weighting, "weighting", "unweighted", "rollup weighting: unweighted or reporting_months")
	fl.IntVar(&runFlags.facilityLevel, "facility-level", 0, "level of the reporting units (0 = deepest)")
	fl.IntVar(&runFlags.rollupLevel, "rollup-level", 0, "level to roll up to (0 = parent of the facility level)")
	fl.StringVar(&runFlags.periodStart, "start", "", "first period of the analysis (default: observed periods)")
	fl.StringVar(&runFlags.periodEnd, "end", "", "last period of the analysis")
	fl.StringVar(&runFlags.frequency, "frequency", "monthly", "frequency of the period range")
	fl.IntVar(&runFlags.shardRows, "shard-rows", 0, "run in data element shards of about this many rows (0 = single run)")
	fl.BoolVar(&runFlags.dumpStages, "dump-stages", false, "write a JSONL snapshot of every stage")
	fl.StringVar(&runFlags.metricsFile, "metrics-file", "", "write Prometheus textfile metrics (default DQA_METRICS_FILE)")
	fl.BoolVar(&runFlags.postgres, "postgres", false, "copy the rollup to PostgreSQL (DQA_POSTGRES_DSN)")
}
