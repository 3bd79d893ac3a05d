package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtwin/dtwin/twin/config"
)

var (
	twinObserveNode string
	twinObserveUp   bool
)

var twinObserveCmd = &cobra.Command{
	Use:   "observe",
	Short: "Report a node availability change against a freshly seeded demo topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(twinConfigPath)
		if err != nil {
			return err
		}
		eng, err := bootstrapEngine(cfg)
		if err != nil {
			return err
		}

		if err := eng.ObserveAvailability(twinObserveNode, twinObserveUp); err != nil {
			return err
		}
		fmt.Printf("node=%s available=%v\n", twinObserveNode, twinObserveUp)
		return nil
	},
}

func init() {
	twinObserveCmd.Flags().StringVar(&twinObserveNode, "node", "", "node name")
	twinObserveCmd.Flags().BoolVar(&twinObserveUp, "up", true, "set to false to report the node as down")
	twinObserveCmd.Flags().StringVar(&twinConfigPath, "config", "", "path to a TOML config file (defaults used if omitted)")
	_ = twinObserveCmd.MarkFlagRequired("node")
	rootCmd.AddCommand(twinObserveCmd)
}
