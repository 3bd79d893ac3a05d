package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtwin/dtwin/twin/config"
	"github.com/dtwin/dtwin/twin/jobspec"
)

var (
	twinPlanJobFile  string
	twinPlanStrategy string
	twinPlanDryRun   bool
	twinPlanTimeout  time.Duration
)

var twinPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a job spec against a freshly seeded demo topology and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(twinPlanJobFile)
		if err != nil {
			return fmt.Errorf("reading job spec file: %w", err)
		}

		var raw jobspec.Spec
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decoding job spec file: %w", err)
		}

		job, err := jobspec.Parse(raw)
		if err != nil {
			return err
		}

		cfg, err := config.Load(twinConfigPath)
		if err != nil {
			return err
		}
		eng, err := bootstrapEngine(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), twinPlanTimeout)
		defer cancel()

		plan, err := eng.Plan(ctx, job, twinPlanStrategy, twinPlanDryRun)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	},
}

func init() {
	twinPlanCmd.Flags().StringVar(&twinPlanJobFile, "job", "", "path to a job spec JSON file")
	twinPlanCmd.Flags().StringVar(&twinPlanStrategy, "strategy", "greedy", "placement policy: greedy, resilient, cvar, or auto")
	twinPlanCmd.Flags().BoolVar(&twinPlanDryRun, "dry-run", true, "skip actuator submission")
	twinPlanCmd.Flags().DurationVar(&twinPlanTimeout, "timeout", 30*time.Second, "deadline for the plan computation")
	twinPlanCmd.Flags().StringVar(&twinConfigPath, "config", "", "path to a TOML config file (defaults used if omitted)")
	_ = twinPlanCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(twinPlanCmd)
}
