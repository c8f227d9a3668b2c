package quality

import (
	"fmt"
	"slices"
	"time"

	"dqa/internal/dataset"
	"dqa/internal/period"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Stage is a step of the pipeline. Stages run strictly in declaration order.
type Stage int

const (
	StageRaw Stage = iota
	StageOutliers
	StageAvailability
	StageReportingStyle
	StageFacility
	StageRollup
	StagePresentation
)

var stageNames = [...]string{"raw", "outliers", "availability", "reporting_style", "facility", "rollup", "presentation"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Stages lists every stage after StageRaw, in execution order.
var Stages = []Stage{StageOutliers, StageAvailability, StageReportingStyle, StageFacility, StageRollup, StagePresentation}

// Input is the immutable snapshot of one run. Tree and Catalog are built
// once by the caller and only read by the pipeline.
type Input struct {
	Observations []dataset.Observation
	Tree         *dataset.Tree
	Catalog      *dataset.Catalog
	// Periods under analysis. Empty means the distinct observation periods.
	Periods []string
}

// Config is the overridable configuration of the pipeline.
type Config struct {
	KeyMode dataset.KeyMode `json:"keyMode"`
	// FacilityLevel is the level of the reporting units; 0 means the deepest
	// level of the tree.
	FacilityLevel int `json:"facilityLevel"`
	// RollupLevel is the target level; 0 means the parent of the facility level.
	RollupLevel int           `json:"rollupLevel"`
	Outliers    OutlierConfig `json:"outliers"`
	Weighting   Weighting     `json:"weighting"`
	// RunID stamps logs and snapshots; generated when empty.
	RunID string `json:"runId,omitempty"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		KeyMode:   dataset.KeyDataElement,
		Outliers:  DefaultOutlierConfig(),
		Weighting: WeightUnweighted,
	}
}

// StageEvent is emitted to hooks after every completed stage.
type StageEvent struct {
	RunID    string
	Stage    Stage
	Rows     int
	Duration time.Duration
}

// StageHook observes completed stages (metrics, progress output).
type StageHook func(StageEvent)

// RunReport collects the locally recovered anomalies and counters of a run.
type RunReport struct {
	RunID         string   `json:"runId"`
	Observations  int      `json:"observations"`
	Periods       []string `json:"periods"`
	FacilityLevel int      `json:"facilityLevel"`
	RollupLevel   int      `json:"rollupLevel"`

	MissingCatalog []dataset.ElementKey `json:"missingCatalog,omitempty"`
	Availability   AvailabilityReport   `json:"availability"`
	Rollup         RollupReport         `json:"rollup"`

	Outliers int                    `json:"outliers"`
	Extremes int                    `json:"extremes"`
	Zeros    int                    `json:"zeros"`
	Styles   map[ReportingStyle]int `json:"styles"`
}

// Result is the output of a complete run.
type Result struct {
	RunID        string            `json:"runId"`
	Records      []QualityRecord   `json:"records"`
	Styles       []SeriesStyle     `json:"styles"`
	Facilities   []FacilityStat    `json:"facilities"`
	Rollup       []RollupStat      `json:"rollup"`
	Presentation PresentationTable `json:"presentation"`
	Report       RunReport         `json:"report"`
}

// Session owns the working table of one pipeline run. Every stage consumes
// the previous stage's output and stores a new snapshot; earlier snapshots
// are kept for inspection and never modified.
type Session struct {
	input Input
	cfg   Config
	hooks []StageHook

	stage  Stage
	report RunReport

	flagged      []QualityRecord
	records      []QualityRecord
	styles       []SeriesStyle
	facilities   []FacilityStat
	rollup       []RollupStat
	presentation PresentationTable
}

// NewSession validates the input and configuration. Structural problems are
// returned before any stage can run.
func NewSession(input Input, cfg Config, hooks ...StageHook) (*Session, error) {
	// 1. Required inputs
	if input.Tree == nil || input.Catalog == nil {
		return nil, fmt.Errorf("%w: tree and catalog are required", ErrEmptyInput)
	}

	// 2. Configuration
	mode, err := dataset.ParseKeyMode(string(cfg.KeyMode))
	if err != nil {
		return nil, err
	}
	cfg.KeyMode = mode
	if cfg.Weighting, err = ParseWeighting(string(cfg.Weighting)); err != nil {
		return nil, err
	}
	if err := cfg.Outliers.Validate(); err != nil {
		return nil, err
	}

	maxLevel := input.Tree.MaxLevel()
	if cfg.FacilityLevel == 0 {
		cfg.FacilityLevel = maxLevel
	}
	if cfg.FacilityLevel < 1 || cfg.FacilityLevel > maxLevel {
		return nil, fmt.Errorf("facility level %d outside tree levels 1..%d", cfg.FacilityLevel, maxLevel)
	}
	if cfg.RollupLevel == 0 {
		cfg.RollupLevel = max(1, cfg.FacilityLevel-1)
	}
	if cfg.RollupLevel < 1 || cfg.RollupLevel > cfg.FacilityLevel {
		return nil, fmt.Errorf("rollup level %d outside 1..%d", cfg.RollupLevel, cfg.FacilityLevel)
	}

	// 3. Schema of the observations
	if err := dataset.ValidateObservations(input.Observations, mode); err != nil {
		return nil, err
	}

	// 4. Period set
	if len(input.Periods) == 0 {
		input.Periods = ObservedPeriods(input.Observations)
	}
	if len(input.Periods) == 0 {
		return nil, fmt.Errorf("%w: no periods to analyse", ErrEmptyInput)
	}

	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	return &Session{
		input: input,
		cfg:   cfg,
		hooks: hooks,
		stage: StageRaw,
		report: RunReport{
			RunID:         cfg.RunID,
			Observations:  len(input.Observations),
			Periods:       slices.Clone(input.Periods),
			FacilityLevel: cfg.FacilityLevel,
			RollupLevel:   cfg.RollupLevel,
			Styles:        make(map[ReportingStyle]int),
		},
	}, nil
}

// ObservedPeriods returns the distinct periods of the observations in
// chronological order.
func ObservedPeriods(obs []dataset.Observation) []string {
	seen := make(map[string]bool)
	var periods []string
	for _, o := range obs {
		if !seen[o.Period] {
			seen[o.Period] = true
			periods = append(periods, o.Period)
		}
	}
	slices.SortFunc(periods, period.Compare)
	return periods
}

// RunID returns the identifier stamped on this run.
func (s *Session) RunID() string { return s.cfg.RunID }

// Config returns the resolved configuration.
func (s *Session) Config() Config { return s.cfg }

// Stage returns the last completed stage.
func (s *Session) Stage() Stage { return s.stage }

// Report returns the run report accumulated so far.
func (s *Session) Report() RunReport { return s.report }

func (s *Session) advance(next Stage, run func() int) error {
	if s.stage != next-1 {
		return fmt.Errorf("%w: %s requires %s, session is at %s", ErrStageOrder, next, next-1, s.stage)
	}

	start := time.Now()
	rows := run()
	s.stage = next

	ev := StageEvent{RunID: s.cfg.RunID, Stage: next, Rows: rows, Duration: time.Since(start)}
	log.Info().Str("run", ev.RunID).Str("stage", next.String()).Int("rows", rows).Dur("duration", ev.Duration).Msg("Stage completed")
	for _, h := range s.hooks {
		h(ev)
	}
	return nil
}

// DetectOutliers runs the outlier stage over the raw observations.
func (s *Session) DetectOutliers() ([]QualityRecord, error) {
	err := s.advance(StageOutliers, func() int {
		s.flagged = DetectOutliers(s.input.Observations, s.cfg.KeyMode, s.cfg.Outliers)
		for _, r := range s.flagged {
			if r.OutlierRS.IsTrue() {
				s.report.Outliers++
			}
			if r.ExtremeRS.IsTrue() {
				s.report.Extremes++
			}
			if r.Zero.IsTrue() {
				s.report.Zeros++
			}
		}
		return len(s.flagged)
	})
	return s.flagged, err
}

// EvaluateAvailability joins the expected reporting tree with the flagged records.
func (s *Session) EvaluateAvailability() ([]QualityRecord, error) {
	err := s.advance(StageAvailability, func() int {
		expected := BuildExpectedTree(s.input.Tree, s.input.Catalog, s.cfg.KeyMode, s.cfg.FacilityLevel, s.input.Periods)
		s.records, s.report.Availability = EvaluateAvailability(expected, s.flagged, s.cfg.KeyMode)

		s.report.MissingCatalog = MissingCatalogEntries(s.input.Observations, s.input.Catalog, s.cfg.KeyMode)
		if n := len(s.report.MissingCatalog); n > 0 {
			log.Warn().Str("run", s.cfg.RunID).Int("elements", n).Msg("Observed elements missing from the catalog were excluded from availability")
		}
		return len(s.records)
	})
	return s.records, err
}

// ClassifyReporting classifies every facility/element series.
func (s *Session) ClassifyReporting() ([]SeriesStyle, error) {
	err := s.advance(StageReportingStyle, func() int {
		s.styles = ClassifyReporting(s.records, s.cfg.KeyMode)
		for _, st := range s.styles {
			s.report.Styles[st.Style]++
		}
		return len(s.styles)
	})
	return s.styles, err
}

// AggregateFacilities computes the facility statistics.
func (s *Session) AggregateFacilities() ([]FacilityStat, error) {
	err := s.advance(StageFacility, func() int {
		s.facilities = AggregateFacilities(s.records, s.styles, s.cfg.KeyMode)
		return len(s.facilities)
	})
	return s.facilities, err
}

// Rollup rolls the facility statistics up to the target level and labels them.
func (s *Session) Rollup() ([]RollupStat, error) {
	err := s.advance(StageRollup, func() int {
		rows, report := Rollup(s.facilities, s.input.Tree, s.cfg.RollupLevel, s.cfg.Weighting)
		s.rollup = NewLabeler(s.input.Catalog).Label(rows)
		s.report.Rollup = report
		return len(s.rollup)
	})
	return s.rollup, err
}

// Present reshapes the rollup into the wide presentation table.
func (s *Session) Present() (PresentationTable, error) {
	err := s.advance(StagePresentation, func() int {
		s.presentation = Present(s.rollup)
		return len(s.presentation.Rows)
	})
	return s.presentation, err
}

// Step runs the next stage.
func (s *Session) Step() error {
	var err error
	switch s.stage + 1 {
	case StageOutliers:
		_, err = s.DetectOutliers()
	case StageAvailability:
		_, err = s.EvaluateAvailability()
	case StageReportingStyle:
		_, err = s.ClassifyReporting()
	case StageFacility:
		_, err = s.AggregateFacilities()
	case StageRollup:
		_, err = s.Rollup()
	case StagePresentation:
		_, err = s.Present()
	default:
		err = fmt.Errorf("%w: pipeline already complete", ErrStageOrder)
	}
	return err
}

// Run executes the remaining stages and returns the complete result.
func (s *Session) Run() (*Result, error) {
	for s.stage < StagePresentation {
		if err := s.Step(); err != nil {
			return nil, err
		}
	}
	return s.Result()
}

// Result returns the outputs of a completed session.
func (s *Session) Result() (*Result, error) {
	if s.stage != StagePresentation {
		return nil, fmt.Errorf("%w: result requested at stage %s", ErrStageOrder, s.stage)
	}
	return &Result{
		RunID:        s.cfg.RunID,
		Records:      s.records,
		Styles:       s.styles,
		Facilities:   s.facilities,
		Rollup:       s.rollup,
		Presentation: s.presentation,
		Report:       s.report,
	}, nil
}

// Snapshot returns the retained output of a completed stage.
func (s *Session) Snapshot(stage Stage) (any, bool) {
	if stage > s.stage {
		return nil, false
	}
	switch stage {
	case StageRaw:
		return s.input.Observations, true
	case StageOutliers:
		return s.flagged, true
	case StageAvailability:
		return s.records, true
	case StageReportingStyle:
		return s.styles, true
	case StageFacility:
		return s.facilities, true
	case StageRollup:
		return s.rollup, true
	case StagePresentation:
		return s.presentation, true
	}
	return nil, false
}
