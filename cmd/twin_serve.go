package cmd

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dtwin/dtwin/twin/config"
	"github.com/dtwin/dtwin/twin/httpapi"
)

var twinConfigPath string

var twinServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the digital twin scheduler as an HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(twinConfigPath)
		if err != nil {
			return err
		}

		eng, err := bootstrapEngine(cfg)
		if err != nil {
			return err
		}

		srv := httpapi.NewServer(eng)
		logrus.WithField("addr", cfg.HTTPBindAddr).Info("twin: listening")
		return http.ListenAndServe(cfg.HTTPBindAddr, srv.Handler())
	},
}

func init() {
	twinServeCmd.Flags().StringVar(&twinConfigPath, "config", "", "path to a TOML config file (defaults used if omitted)")
	rootCmd.AddCommand(twinServeCmd)
}
