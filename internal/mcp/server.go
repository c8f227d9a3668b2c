package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"dqa/internal/config"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const (
	serverName    = "dqa"
	serverVersion = "0.1.0"
)

// Server exposes the data quality pipeline as MCP tools.
type Server struct {
	cfg *config.AppConfig
}

// NewServer creates a new MCP server.
func NewServer(cfg *config.AppConfig) *Server {
	return &Server{cfg: cfg}
}

// MCPServer builds the SDK server with every tool registered.
func (s *Server) MCPServer() *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name: "run_quality_pipeline",
		Description: "Run the data quality pipeline over a DHIS2 extraction (observations.csv, tree.csv, catalog.csv and optional assignments.csv in data_dir). " +
			"Returns the run report, the rolled up quality metrics and a Markdown summary. " +
			"Values are flagged as outliers with a robust (median/IQR) score within bands of similar facilities; never re-derive these scores yourself.",
	}, s.handleRunPipeline)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "classify_reporting_series",
		Description: "Classify one facility's availability series (one boolean per period, chronological) as ALWAYS, NEVER, SINCE_FULL, STOPPED or INCONSISTENT.",
	}, s.handleClassifySeries)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "split_periods",
		Description: "List the DHIS2 period identifiers between two periods (inclusive) at a frequency: daily, weekly, monthly, quarterly, sixmonthly, sixmonthly_april, yearly, financial_july, financial_october.",
	}, s.handleSplitPeriods)

	return server
}

// Serve runs the server over stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("version", serverVersion).Msg("MCP server listening on stdio")
	return s.MCPServer().Run(ctx, &sdkmcp.StdioTransport{})
}

// ToolResponse is the envelope of every tool answer.
type ToolResponse struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

// textResult renders a response as indented JSON text content, followed by
// any extra text blocks.
func textResult(resp ToolResponse, extra ...string) (*sdkmcp.CallToolResult, error) {
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	content := []sdkmcp.Content{&sdkmcp.TextContent{Text: string(out)}}
	for _, e := range extra {
		if e != "" {
			content = append(content, &sdkmcp.TextContent{Text: e})
		}
	}
	return &sdkmcp.CallToolResult{Content: content}, nil
}
