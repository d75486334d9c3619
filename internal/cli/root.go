package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/dosegate-backend/internal/app"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

var (
	cfg app.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dosegate",
	Short: "Bolus safety validation service",
	Long:  "Validates insulin bolus requests against clinical limits and user policy, and keeps a hash-chained audit trail of every verdict.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := app.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		l, err := logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
