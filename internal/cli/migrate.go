package cli

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/dosegate-backend/internal/app"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and the audit append-only guards",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	store, err := app.OpenStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("Migration complete", "driver", store.Driver())
	return nil
}
