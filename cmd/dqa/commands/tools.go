package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"dqa/internal/dataset"
	"dqa/internal/ingest"
	"dqa/internal/mcp"
	"dqa/internal/period"
	"dqa/internal/quality"

	"github.com/spf13/cobra"
)

var shardFlags struct {
	dataDir string
	rows    int
	keyMode string
}

var shardCmd = &cobra.Command{
	Use:   "shard",
	Short: "Show how an extraction would be split into data element shards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := shardFlags.dataDir
		if dataDir == "" {
			dataDir = cfg.DataPath
		}
		mode, err := dataset.ParseKeyMode(shardFlags.keyMode)
		if err != nil {
			return err
		}
		ds, err := ingest.Load(cmd.Context(), ingest.DirPaths(dataDir), mode)
		if err != nil {
			return err
		}

		shards := quality.Partition(ds.Observations, ds.Catalog, shardFlags.rows)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SHARD\tROWS\tDATA ELEMENTS")
		for i, s := range shards {
			fmt.Fprintf(tw, "%d\t%d\t%s\n", i+1, len(s.Observations), strings.Join(s.DataElements, ","))
		}
		return tw.Flush()
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify SERIES",
	Short: "Classify an availability series such as 0,1,1,1",
	Long: `Classify prints the reporting style of one series of availability flags given in
chronological order (1/0 or true/false, comma separated).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		series, err := parseSeries(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), quality.ClassifySeries(series))
		return nil
	},
}

func parseSeries(s string) ([]bool, error) {
	var out []bool
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "1", "true", "t", "y":
			out = append(out, true)
		case "0", "false", "f", "n":
			out = append(out, false)
		case "":
		default:
			return nil, fmt.Errorf("invalid availability flag %q", part)
		}
	}
	return out, nil
}

var periodsCmd = &cobra.Command{
	Use:   "periods START END",
	Short: "List the periods between two DHIS2 period identifiers",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		freqName, _ := cmd.Flags().GetString("frequency")
		freq, err := period.ParseFrequency(freqName)
		if err != nil {
			return err
		}
		periods, err := period.Split(args[0], args[1], freq)
		if err != nil {
			return err
		}
		for _, p := range periods {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(cfg).Serve(cmd.Context())
	},
}

func init() {
	shardCmd.Flags().StringVarP(&shardFlags.dataDir, "data", "d", "", "extraction directory (default DATA_PATH)")
	shardCmd.Flags().IntVar(&shardFlags.rows, "rows", 1_000_000, "target rows per shard")
	shardCmd.Flags().StringVar(&shardFlags.keyMode, "key-mode", "DE", "series key: DE or DE_COC")

	periodsCmd.Flags().StringP("frequency", "f", "monthly", "output frequency")
}
