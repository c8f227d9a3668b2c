package commands

import (
	"context"
	"os"
	"os/signal"

	"dqa/internal/config"
	"dqa/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose  bool
	jsonLogs bool
	cfg      *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "dqa",
	Short: "DQA scores the data quality of DHIS2 routine reporting",
	Long: `DQA flags outliers, zeros and missing reports in DHIS2 facility data, classifies
each facility's reporting style and rolls the indicators up the organisation unit hierarchy.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose, jsonLogs)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("dataPath", cfg.DataPath).
			Msg("DQA starting")
		return nil
	},
}

// Execute runs the root command. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write JSON log lines to stderr")

	rootCmd.AddCommand(runCmd, shardCmd, classifyCmd, periodsCmd, serveCmd)
}
