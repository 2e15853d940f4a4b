package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Manage scorecard versions",
}

var versionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scorecard versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		versions, err := e.versions.ListVersions(cmd.Context())
		if err != nil {
			return err
		}

		for _, v := range versions {
			status := string(v.Status)
			if !v.Activatable {
				status += " (gated: " + v.GateReason + ")"
			}
			fmt.Printf("%-38s %-6s %-10s %-12s created %s\n",
				v.ID, v.Version, v.Provenance, status, v.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var versionsActivateCmd = &cobra.Command{
	Use:   "activate <version-id>",
	Short: "Activate a scorecard version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid version id: %w", err)
		}

		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		v, err := e.versions.ActivateVersion(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("activated version %s (%s)\n", v.Version, v.ID)
		return nil
	},
}

var versionsRollbackCmd = &cobra.Command{
	Use:   "rollback <version-id>",
	Short: "Reactivate a retired scorecard version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid version id: %w", err)
		}

		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		v, err := e.versions.Rollback(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("rolled back to version %s (%s)\n", v.Version, v.ID)
		return nil
	},
}

var refineCmd = &cobra.Command{
	Use:   "refine <artifact-id> <base-version-id>",
	Short: "Create an ML-refined draft from a model artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		artifactID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid artifact id: %w", err)
		}
		baseID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid base version id: %w", err)
		}
		alpha, err := cmd.Flags().GetFloat64("alpha")
		if err != nil {
			return err
		}

		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if alpha < 0 {
			alpha = e.refiner.DefaultBlendFactor()
		}
		draft, err := e.refiner.RefineFromArtifact(cmd.Context(), artifactID, baseID, alpha)
		if err != nil {
			return err
		}

		if draft.Activatable {
			fmt.Printf("created draft %s (%s), ready to activate\n", draft.Version, draft.ID)
		} else {
			fmt.Printf("created draft %s (%s), held by quality gate: %s\n", draft.Version, draft.ID, draft.GateReason)
		}
		return nil
	},
}

func init() {
	versionsCmd.AddCommand(versionsListCmd)
	versionsCmd.AddCommand(versionsActivateCmd)
	versionsCmd.AddCommand(versionsRollbackCmd)
	refineCmd.Flags().Float64("alpha", -1, "blend factor (default from config)")
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(refineCmd)
}
