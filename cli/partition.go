package cli

import (
	"fmt"

	"github.com/absmach/fedprox/pkg/partition"
	"github.com/absmach/fedprox/simulation"
	"github.com/spf13/cobra"
)

func NewPartitionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Show how the training set would be split across clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("clients") {
				cfg.Training.Clients, _ = cmd.Flags().GetInt("clients")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Run.Seed, _ = cmd.Flags().GetUint64("seed")
			}

			shards, err := simulation.PlanPartition(*cfg)
			if err != nil {
				return err
			}
			sizes := partition.Sizes(shards)

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				logJSONCmd(*cmd, map[string]any{
					"clients": len(shards),
					"sizes":   sizes,
				})

				return nil
			}

			out := cmd.OutOrStdout()
			total := 0
			for i, n := range sizes {
				fmt.Fprintf(out, "client %3d  %d examples\n", i, n)
				total += n
			}
			fmt.Fprintf(out, "total      %d examples across %d clients\n", total, len(sizes))

			return nil
		},
	}

	cmd.Flags().IntP("clients", "n", 10, "Number of simulated clients")
	cmd.Flags().Uint64P("seed", "s", 1, "Partition seed")
	cmd.Flags().Bool("json", false, "Print the shard sizes as JSON")

	return cmd
}
