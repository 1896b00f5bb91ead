package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cadena-mfg/costing-cli/internal/pipeline"
	"github.com/cadena-mfg/costing-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run state and order costs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		specs, err := loadSpecs(cmd)
		if err != nil {
			return err
		}

		serverCfg := cfg.Server
		if servePort != 0 {
			serverCfg.Port = servePort
		}

		p := pipeline.New(cfg, st, specs)
		return server.New(serverCfg, st, p).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().String("specs", "", "dataset spec overlay file (YAML)")
	rootCmd.AddCommand(serveCmd)
}
