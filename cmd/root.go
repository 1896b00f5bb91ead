package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cadena-mfg/costing-cli/internal/config"
	"github.com/cadena-mfg/costing-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "costing-cli",
	Short: "Manufacturing cost accounting pipeline",
	Long:  "Cleans ERP cost and consumption extracts, reconciles price outliers, propagates costs through semi-finished components, and aggregates per-order costs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// loadSpecs overlays a dataset spec file onto the built-in specs when
// the flag is set.
func loadSpecs(cmd *cobra.Command) (map[string]config.DatasetSpec, error) {
	specs := config.BuiltinDatasetSpecs()
	path, _ := cmd.Flags().GetString("specs")
	if path == "" {
		return specs, nil
	}
	return config.LoadDatasetSpecs(path, specs)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
