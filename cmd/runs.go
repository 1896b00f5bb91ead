package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cadena-mfg/costing-cli/internal/model"
	"github.com/cadena-mfg/costing-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect costing run history",
	Long:  "Commands for listing and viewing costing runs and their order-level results.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List costing runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs orders --

var runsOrdersCmd = &cobra.Command{
	Use:   "orders <run-id>",
	Short: "List the order costs computed by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orders, err := st.ListOrderCosts(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs orders")
		}

		if len(orders) == 0 {
			fmt.Fprintln(os.Stderr, "No order costs found.")
			return nil
		}

		formatOrders(os.Stdout, orders)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, cleaning, complete, failed, ...)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsOrdersCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOSTS\tCONSUMPTIONS\tSTATUS\tORDERS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------------\t------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		orders := ""
		if r.Result != nil {
			orders = fmt.Sprintf("%d", r.Result.Orders)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			truncatePath(r.Input.CostsFile),
			truncatePath(r.Input.ConsumptionsFile),
			r.Status,
			orders,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatOrders writes a tabular list of order costs to w.
func formatOrders(out io.Writer, orders []model.OrderCost) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ORDER\tDATE\tPRODUCT\tUNITS\tCOST\tINCOMPLETE")
	_, _ = fmt.Fprintln(w, "-----\t----\t-------\t-----\t----\t----------")

	for _, o := range orders {
		cost := "-"
		if !model.IsMissing(o.Cost) {
			cost = fmt.Sprintf("%.4f", o.Cost)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%t\n",
			o.OrderID,
			o.FabricationDate.Format("2006-01-02"),
			o.ProductID,
			o.UnitsProduced,
			cost,
			o.Incomplete,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncatePath keeps the tail of long extract paths.
func truncatePath(p string) string {
	if len(p) > 30 {
		return "..." + p[len(p)-27:]
	}
	return p
}
