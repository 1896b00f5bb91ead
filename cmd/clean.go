package main

import (
	"encoding/csv"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cadena-mfg/costing-cli/internal/dataset"
	"github.com/cadena-mfg/costing-cli/internal/fetch"
	"github.com/cadena-mfg/costing-cli/internal/pipeline"
)

var cleanCmd = &cobra.Command{
	Use:   "clean <dataset> <extract>",
	Short: "Clean a single extract and report the transformation trail",
	Long:  "Applies the named dataset spec (costs or consumptions) to one extract. The cleaning report goes to stdout; --output writes the cleaned table as CSV.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		specs, err := loadSpecs(cmd)
		if err != nil {
			return err
		}
		spec, ok := specs[args[0]]
		if !ok {
			return eris.Errorf("unknown dataset %q", args[0])
		}

		raw, err := fetch.LoadExtract(ctx, cfg.Fetch, args[1])
		if err != nil {
			return err
		}

		cleaned, report, err := pipeline.Clean(args[0], spec, raw)
		if err != nil {
			return err
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			if err := writeFrameCSV(output, cleaned); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func writeFrameCSV(path string, f *dataset.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(f.Columns()); err != nil {
		return eris.Wrap(err, "write header")
	}
	for i := 0; i < f.Len(); i++ {
		if err := w.Write(f.Row(i)); err != nil {
			return eris.Wrap(err, "write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush")
}

func init() {
	cleanCmd.Flags().String("specs", "", "dataset spec overlay file (YAML)")
	cleanCmd.Flags().String("output", "", "write the cleaned table to this CSV file")
	rootCmd.AddCommand(cleanCmd)
}
