package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dosegate-backend/internal/app"
	"github.com/yungbote/dosegate-backend/internal/data/repos"
	"github.com/yungbote/dosegate-backend/internal/pkg/dbctx"
	"github.com/yungbote/dosegate-backend/internal/safety"
)

var (
	auditUserID string
	auditJSON   bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditVerifyCmd.Flags().StringVar(&auditUserID, "user", "", "User id whose chain to verify")
	auditVerifyCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the verification result as JSON")
	_ = auditVerifyCmd.MarkFlagRequired("user")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Validation audit trail operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a user's validation audit chain",
	Long:  "Recomputes every record hash of the user's audit chain and checks sequence continuity\nand prev_hash links. Exits 0 if intact, 1 otherwise.",
	RunE:  runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(auditUserID)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	store, err := app.OpenStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := repos.NewValidationAuditRepo(store.DB(), log).ListChain(dbctx.New(cmd.Context()), userID)
	if err != nil {
		return fmt.Errorf("load audit chain: %w", err)
	}
	result := safety.VerifyChain(records)

	if auditJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d records verified\n", result.Records)
	}
	if !result.Valid {
		fmt.Fprintf(os.Stderr, "FAILED at sequence %d: %s\n", result.ErrorSequence, result.Error)
		os.Exit(1)
	}
	return nil
}
