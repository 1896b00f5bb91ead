package model

// GroupOutliers describes the outliers remaining in one group after the
// reconciliation loop exits.
type GroupOutliers struct {
	Group         string    `json:"group"`
	Count         int       `json:"count"`
	Values        []float64 `json:"values"`
	GroupMean     float64   `json:"group_mean"`
	MeanDeviation float64   `json:"mean_deviation_pct"`
}

// OutlierSummary is the structured result of an outlier reconciliation
// run. It is returned alongside the corrected table and never printed by
// the engine itself.
type OutlierSummary struct {
	InitialOutliers   int             `json:"initial_outliers"`
	ReplacedOutliers  int             `json:"replaced_outliers"`
	RemainingOutliers int             `json:"remaining_outliers"`
	Remaining         []GroupOutliers `json:"remaining_detail,omitempty"`
	Iterations        int             `json:"iterations"`
	Warnings          []string        `json:"warnings,omitempty"`
}

// PropagationResult reports how far the BOM cost fixed point got.
// Unresolved > 0 is the ConvergenceIncomplete condition: a partial
// result, not an error.
type PropagationResult struct {
	InitialUnresolved    int      `json:"initial_unresolved"`
	Unresolved           int      `json:"unresolved"`
	Resolved             int      `json:"resolved"`
	Iterations           int      `json:"iterations"`
	UnresolvedComponents []string `json:"unresolved_components,omitempty"`
}

// Complete reports whether every consumption row ended up costed.
func (r PropagationResult) Complete() bool { return r.Unresolved == 0 }

// AggregationSummary reports the order-level projection outcome.
type AggregationSummary struct {
	Orders           int      `json:"orders"`
	IncompleteOrders int      `json:"incomplete_orders"`
	IncompleteIDs    []string `json:"incomplete_order_ids,omitempty"`
}

// CleaningStep is one recorded transformation applied to a dataset.
type CleaningStep struct {
	Operation   string `json:"operation"`
	Description string `json:"description"`
	RowsBefore  int    `json:"rows_before"`
	RowsAfter   int    `json:"rows_after"`
}

// CleaningReport accumulates the transformation trail for one dataset.
type CleaningReport struct {
	Dataset     string         `json:"dataset"`
	InitialRows int            `json:"initial_rows"`
	FinalRows   int            `json:"final_rows"`
	Steps       []CleaningStep `json:"steps"`
	// InvalidRows counts rows rejected by regex validation, per column.
	InvalidRows map[string]int `json:"invalid_rows,omitempty"`
}

// RowsRemoved is the total number of rows dropped across all steps.
func (r CleaningReport) RowsRemoved() int { return r.InitialRows - r.FinalRows }
