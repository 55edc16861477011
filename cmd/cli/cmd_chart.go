package main

import (
	"fmt"
	"os"

	"github.com/sguter90/watermaestro/pkg/chart"
	"github.com/spf13/cobra"
)

var chartCmd = &cobra.Command{
	Use:   "chart <id>",
	Short: "Render a user's chart to PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runChart,
}

var chartFlags struct {
	out    string
	width  int
	height int
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.Flags().StringVarP(&chartFlags.out, "out", "o", "", "output file (required)")
	chartCmd.Flags().IntVar(&chartFlags.width, "width", chart.DefaultWidth, "image width in pixels")
	chartCmd.Flags().IntVar(&chartFlags.height, "height", chart.DefaultHeight, "image height in pixels")
	chartCmd.MarkFlagRequired("out")
}

func runChart(cmd *cobra.Command, args []string) error {
	svc, err := servicesFromContext(cmd.Context())
	if err != nil {
		return err
	}
	id := args[0]

	profile, ok, err := svc.Registry.Profile(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}

	f, err := os.Create(chartFlags.out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", chartFlags.out, err)
	}

	if err := chart.RenderPNG(f, chart.BuildChartData(profile), chartFlags.width, chartFlags.height); err != nil {
		f.Close()
		os.Remove(chartFlags.out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", chartFlags.out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Chart for %s written to %s\n", id, chartFlags.out)
	return nil
}
