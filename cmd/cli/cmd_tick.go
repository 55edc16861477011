package main

import (
	"fmt"
	"time"

	"github.com/sguter90/watermaestro/pkg/models"
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick <id>",
	Short: "Advance a user's series",
	Long:  `Append one new sample per parameter to a user's series, dropping the oldest.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTick,
}

var tickCount int

func init() {
	rootCmd.AddCommand(tickCmd)
	tickCmd.Flags().IntVarP(&tickCount, "count", "n", 1, "number of samples to append")
}

func runTick(cmd *cobra.Command, args []string) error {
	if tickCount < 1 {
		return fmt.Errorf("count must be at least 1, got %d", tickCount)
	}

	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return err
	}
	id := args[0]

	for i := 0; i < tickCount; i++ {
		ok, err := svc.Registry.Tick(cmd.Context(), id, time.Now())
		if err != nil {
			return fmt.Errorf("failed to advance %s: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("user not found: %s", id)
		}
	}

	set, _, err := svc.Registry.GetSeries(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Advanced %s by %d sample(s)\n", id, tickCount)
	for _, p := range models.Parameters {
		info, _ := p.Info()
		if ts := set[p]; ts != nil {
			fmt.Fprintf(out, "  %-14s %s\n", info.Label, formatReading(p, ts.Value))
		}
	}
	return nil
}
