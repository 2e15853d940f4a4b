package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score <entity-id>",
	Short: "Compute a credit score for an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entity id: %w", err)
		}

		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		record, err := e.scoring.ComputeScore(cmd.Context(), entityID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features <entity-id>",
	Short: "Show an entity's current feature snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entity id: %w", err)
		}

		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		feats, err := e.scoring.GetCurrentFeatures(cmd.Context(), entityID)
		if err != nil {
			return err
		}

		for _, f := range feats {
			fmt.Printf("%-32s %12.2f  confidence %.2f  source %s\n", f.Name, f.Value, f.Confidence, f.Source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(featuresCmd)
}
