package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cadena-mfg/costing-cli/internal/model"
	"github.com/cadena-mfg/costing-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <costs-extract> <consumptions-extract>",
	Short: "Run the full costing pipeline on a pair of extracts",
	Long:  "Fetches both extracts (local path or ftp:// URL), cleans them, reconciles cost outliers, propagates costs through semi-finished components, aggregates per-order costs, and persists the result.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		specs, err := loadSpecs(cmd)
		if err != nil {
			return err
		}

		p := pipeline.New(cfg, st, specs)
		result, err := p.Run(ctx, model.RunInput{
			CostsFile:        args[0],
			ConsumptionsFile: args[1],
		})
		if err != nil {
			return eris.Wrap(err, "run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().String("specs", "", "dataset spec overlay file (YAML)")
	rootCmd.AddCommand(runCmd)
}
