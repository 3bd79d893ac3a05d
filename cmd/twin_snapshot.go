package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtwin/dtwin/twin/config"
)

var twinSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Seed the demo topology and print the resulting node names",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(twinConfigPath)
		if err != nil {
			return err
		}
		eng, err := bootstrapEngine(cfg)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"nodes": eng.Snapshot()})
	},
}

func init() {
	twinSnapshotCmd.Flags().StringVar(&twinConfigPath, "config", "", "path to a TOML config file (defaults used if omitted)")
	rootCmd.AddCommand(twinSnapshotCmd)
}
