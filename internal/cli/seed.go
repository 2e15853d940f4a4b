package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline-systems/supplyscore/internal/logging"
	"github.com/ledgerline-systems/supplyscore/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with synthetic counterparties",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}
		seed, err := cmd.Flags().GetInt64("seed")
		if err != nil {
			return err
		}

		e, closeFn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).Logger
		ids, err := seeder.New(e.repo, seed, log).Seed(cmd.Context(), count)
		if err != nil {
			return err
		}

		fmt.Printf("seeded %d entities\n", len(ids))
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("count", 25, "number of entities to create")
	seedCmd.Flags().Int64("seed", 11, "faker seed for reproducible runs")
	rootCmd.AddCommand(seedCmd)
}
