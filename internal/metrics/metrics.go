package metrics

import (
	"fmt"
	"time"

	"dqa/internal/quality"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dqa"

// Collector holds the metrics of batch pipeline runs. A run is not a long
// lived process, so the registry is written out as a node_exporter textfile
// instead of being scraped.
type Collector struct {
	registry *prometheus.Registry

	// Stage metrics
	StageDuration *prometheus.GaugeVec
	StageRows     *prometheus.GaugeVec
	StagesTotal   *prometheus.CounterVec

	// Quality metrics
	FlaggedValues   *prometheus.GaugeVec
	ReportingStyles *prometheus.GaugeVec
	ExpectedCells   prometheus.Gauge
	DroppedCells    prometheus.Gauge
	MissingCatalog  prometheus.Gauge
	RollupOrphans   prometheus.Gauge

	// Run metrics
	LastRunTimestamp prometheus.Gauge
	RunInfo          *prometheus.GaugeVec
}

// NewCollector creates a collector on its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		StageDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of the last run of each pipeline stage",
			},
			[]string{"stage"},
		),

		StageRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_rows",
				Help:      "Rows produced by the last run of each pipeline stage",
			},
			[]string{"stage"},
		),

		StagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_completed_total",
				Help:      "Completed pipeline stages, shard runs included",
			},
			[]string{"stage"},
		),

		FlaggedValues: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "flagged_values",
				Help:      "Values flagged in the last run by flag",
			},
			[]string{"flag"}, // "outlier_rs", "extreme_rs", "zero"
		),

		ReportingStyles: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reporting_series",
				Help:      "Reporting series of the last run by reporting style",
			},
			[]string{"style"},
		),

		ExpectedCells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expected_cells",
			Help:      "Cells of the expected reporting tree",
		}),

		DroppedCells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_observations",
			Help:      "Flagged observations outside the expected reporting tree",
		}),

		MissingCatalog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_catalog_entries",
			Help:      "Observed element keys without a catalog entry",
		}),

		RollupOrphans: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rollup_orphans",
			Help:      "Facility rows without an ancestor at the rollup level",
		}),

		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),

		RunInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_info",
				Help:      "Identity of the last run",
			},
			[]string{"run_id", "key_mode", "weighting"},
		),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStage records a completed stage. It has the quality.StageHook
// signature so it can be passed to a session directly.
func (c *Collector) ObserveStage(ev quality.StageEvent) {
	stage := ev.Stage.String()
	c.StageDuration.WithLabelValues(stage).Set(ev.Duration.Seconds())
	c.StageRows.WithLabelValues(stage).Set(float64(ev.Rows))
	c.StagesTotal.WithLabelValues(stage).Inc()
}

// RecordRun records the report of a finished run.
func (c *Collector) RecordRun(report quality.RunReport, cfg quality.Config, finished time.Time) {
	c.FlaggedValues.WithLabelValues("outlier_rs").Set(float64(report.Outliers))
	c.FlaggedValues.WithLabelValues("extreme_rs").Set(float64(report.Extremes))
	c.FlaggedValues.WithLabelValues("zero").Set(float64(report.Zeros))

	for _, style := range quality.Styles {
		c.ReportingStyles.WithLabelValues(string(style)).Set(float64(report.Styles[style]))
	}

	c.ExpectedCells.Set(float64(report.Availability.ExpectedCells))
	c.DroppedCells.Set(float64(report.Availability.Dropped))
	c.MissingCatalog.Set(float64(len(report.MissingCatalog)))
	c.RollupOrphans.Set(float64(report.Rollup.Orphans))

	c.RunInfo.Reset()
	c.RunInfo.WithLabelValues(report.RunID, string(cfg.KeyMode), string(cfg.Weighting)).Set(1)
	c.LastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
