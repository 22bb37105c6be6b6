package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KelvinMNH/FaceEventos/internal/config"
	"github.com/KelvinMNH/FaceEventos/internal/roster"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo event and participants",
	Long: `Create the demo event and enroll twenty demo participants with simulation
markers bio_1 to bio_20. Use it with MATCHER_STRATEGY=simulated to try the
check-in flow without a camera:

  faceeventos seed --activate
  faceeventos scan --marker bio_7`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Bool("activate", true, "Activate the demo event")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Matcher.Strategy != config.StrategySimulated {
		fmt.Printf("Note: demo participants carry markers only, set MATCHER_STRATEGY=%s to match them\n", config.StrategySimulated)
	}

	ctx := context.Background()
	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	report, err := roster.Import(ctx, eng.svc, roster.Demo(), roster.Options{
		Activate: mustGetBool(cmd, "activate"),
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	printImportReport(report)
	return nil
}
