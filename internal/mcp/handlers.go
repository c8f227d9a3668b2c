package mcp

import (
	"context"
	"fmt"

	"dqa/internal/dataset"
	"dqa/internal/export"
	"dqa/internal/ingest"
	"dqa/internal/period"
	"dqa/internal/pipeline"
	"dqa/internal/quality"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// RunPipelineInput are the arguments of run_quality_pipeline. Zero values
// fall back to the server configuration.
type RunPipelineInput struct {
	DataDir       string `json:"data_dir,omitempty" jsonschema:"directory holding the extraction CSV files; defaults to DATA_PATH"`
	KeyMode       string `json:"key_mode,omitempty" jsonschema:"DE or DE_COC"`
	FacilityLevel int    `json:"facility_level,omitempty" jsonschema:"level of the reporting units; 0 means the deepest level"`
	RollupLevel   int    `json:"rollup_level,omitempty" jsonschema:"level to roll up to; 0 means the parent of the facility level"`
	Weighting     string `json:"weighting,omitempty" jsonschema:"unweighted or reporting_months"`
	PeriodStart   string `json:"period_start,omitempty" jsonschema:"first period of the analysis, e.g. 202101"`
	PeriodEnd     string `json:"period_end,omitempty" jsonschema:"last period of the analysis"`
	Frequency     string `json:"frequency,omitempty" jsonschema:"period frequency of the range, e.g. monthly"`
	WriteOutputs  bool   `json:"write_outputs,omitempty" jsonschema:"write CSV tables and the summary to OUTPUT_DIR"`
	MaxRollupRows int    `json:"max_rollup_rows,omitempty" jsonschema:"cap on returned rollup rows (default 200)"`
}

// PipelineResponse is the data of a run_quality_pipeline answer.
type PipelineResponse struct {
	Report       quality.RunReport         `json:"report"`
	Rollup       []quality.RollupStat      `json:"rollup"`
	Presentation quality.PresentationTable `json:"presentation"`
	Files        []string                  `json:"files,omitempty"`
}

const defaultMaxRollupRows = 200

func (s *Server) handleRunPipeline(ctx context.Context, _ *sdkmcp.CallToolRequest, in RunPipelineInput) (*sdkmcp.CallToolResult, any, error) {
	opts, err := s.pipelineOptions(in)
	if err != nil {
		return nil, nil, err
	}

	out, err := pipeline.Run(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("Pipeline tool run failed")
		return nil, nil, err
	}

	res := out.Result
	resp := PipelineResponse{Report: res.Report, Rollup: res.Rollup, Presentation: res.Presentation, Files: out.Files}
	var warnings []string

	limit := in.MaxRollupRows
	if limit <= 0 {
		limit = defaultMaxRollupRows
	}
	if len(resp.Rollup) > limit {
		warnings = append(warnings, fmt.Sprintf("Rollup truncated to %d of %d rows; set write_outputs to get the full table.", limit, len(resp.Rollup)))
		resp.Rollup = resp.Rollup[:limit]
	}
	if n := len(res.Report.MissingCatalog); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d observed element(s) have no catalog entry and were excluded from availability.", n))
	}
	if res.Report.Availability.Dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d observation(s) fell outside the expected reporting tree.", res.Report.Availability.Dropped))
	}
	if res.Report.Rollup.Orphans > 0 {
		warnings = append(warnings, fmt.Sprintf("%d facility row(s) had no ancestor at level %d.", res.Report.Rollup.Orphans, res.Report.RollupLevel))
	}

	result, err := textResult(ToolResponse{Data: resp, Warnings: warnings}, out.Summary)
	return result, nil, err
}

func (s *Server) pipelineOptions(in RunPipelineInput) (pipeline.Options, error) {
	cfg := s.cfg.Pipeline
	cfg.RunID = ""
	if in.KeyMode != "" {
		mode, err := dataset.ParseKeyMode(in.KeyMode)
		if err != nil {
			return pipeline.Options{}, err
		}
		cfg.KeyMode = mode
	}
	if in.Weighting != "" {
		w, err := quality.ParseWeighting(in.Weighting)
		if err != nil {
			return pipeline.Options{}, err
		}
		cfg.Weighting = w
	}
	if in.FacilityLevel != 0 {
		cfg.FacilityLevel = in.FacilityLevel
	}
	if in.RollupLevel != 0 {
		cfg.RollupLevel = in.RollupLevel
	}

	dataDir := in.DataDir
	if dataDir == "" {
		dataDir = s.cfg.DataPath
	}

	opts := pipeline.Options{
		Config:        cfg,
		Paths:         ingest.DirPaths(dataDir),
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		Frequency:     in.Frequency,
		ShardRows:     s.cfg.ShardRows,
		Charts:        s.cfg.EnableMermaidCharts,
		PostgresDSN:   s.cfg.PostgresDSN,
		PostgresTable: s.cfg.PostgresTable,
	}
	if in.WriteOutputs {
		opts.OutputDir = s.cfg.OutputDir
		opts.Formats = []export.Format{export.FormatCSV}
	}
	return opts, nil
}

// ClassifySeriesInput are the arguments of classify_reporting_series.
type ClassifySeriesInput struct {
	Available []bool `json:"available" jsonschema:"availability flag per period, in chronological order"`
}

func (s *Server) handleClassifySeries(_ context.Context, _ *sdkmcp.CallToolRequest, in ClassifySeriesInput) (*sdkmcp.CallToolResult, any, error) {
	style := quality.ClassifySeries(in.Available)
	reported := 0
	for _, a := range in.Available {
		if a {
			reported++
		}
	}
	result, err := textResult(ToolResponse{Data: map[string]any{
		"style":    style,
		"periods":  len(in.Available),
		"reported": reported,
	}})
	return result, nil, err
}

// SplitPeriodsInput are the arguments of split_periods.
type SplitPeriodsInput struct {
	Start     string `json:"start" jsonschema:"first period, e.g. 2021Q1"`
	End       string `json:"end" jsonschema:"last period, inclusive"`
	Frequency string `json:"frequency" jsonschema:"frequency of the returned periods"`
}

func (s *Server) handleSplitPeriods(_ context.Context, _ *sdkmcp.CallToolRequest, in SplitPeriodsInput) (*sdkmcp.CallToolResult, any, error) {
	freq, err := period.ParseFrequency(in.Frequency)
	if err != nil {
		return nil, nil, err
	}
	periods, err := period.Split(in.Start, in.End, freq)
	if err != nil {
		return nil, nil, err
	}
	result, err := textResult(ToolResponse{Data: map[string]any{"frequency": freq, "periods": periods}})
	return result, nil, err
}
