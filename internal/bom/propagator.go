// Package bom resolves unit costs for semi-finished components by
// rolling consumption-weighted costs up the bill-of-materials hierarchy,
// and projects the costed table into per-order totals.
package bom

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cadena-mfg/costing-cli/internal/dataset"
	"github.com/cadena-mfg/costing-cli/internal/model"
)

// Params configures the fixed-point cost rollup.
type Params struct {
	// SemiFinishedPrefix marks components whose cost must be derived
	// from their own consumption rows.
	SemiFinishedPrefix string
	MaxIterations      int
}

// instance identifies one produced (product, batch) pair.
type instance struct {
	product string
	batch   string
}

// Propagate computes unit costs for every resolvable semi-finished
// component. It operates on its own copy of rows and returns the costed
// table plus a PropagationResult; an unresolved remainder is a partial
// result (ConvergenceIncomplete), never an error.
//
// Within an iteration every resolvable instance is priced against the
// iteration-start snapshot, then all updates are applied in sorted
// (product, batch) order with last write winning. Iteration i+1 only
// ever sees the fully applied result of iteration i.
func Propagate(rows []model.ConsumptionRecord, p Params) ([]model.ConsumptionRecord, model.PropagationResult, error) {
	var result model.PropagationResult

	if p.SemiFinishedPrefix == "" {
		return nil, result, eris.Wrap(dataset.ErrConfiguration, "bom: semi-finished prefix is required")
	}
	if p.MaxIterations <= 0 {
		return nil, result, eris.Wrap(dataset.ErrConfiguration, "bom: max iterations must be positive")
	}

	out := make([]model.ConsumptionRecord, len(rows))
	copy(out, rows)

	// Initial state: anything without the semi-finished prefix already
	// carries a purchase cost; everything else starts unresolved.
	for i := range out {
		out[i].CostResolved = !strings.HasPrefix(out[i].ComponentID, p.SemiFinishedPrefix)
	}

	result.InitialUnresolved = countUnresolved(out)
	zap.L().Info("bom: initial state", zap.Int("unresolved", result.InitialUnresolved))

	previous := -1
	for result.Iterations < p.MaxIterations {
		current := countUnresolved(out)
		if current == 0 {
			break
		}
		if previous >= 0 && current >= previous {
			zap.L().Warn("bom: no further progress possible", zap.Int("unresolved", current))
			break
		}
		previous = current
		result.Iterations++

		totals := priceResolvable(out)
		applyTotals(out, totals)
		syncResolvedFlags(out)

		zap.L().Debug("bom: iteration complete",
			zap.Int("iteration", result.Iterations),
			zap.Int("unresolved", countUnresolved(out)),
		)
	}

	result.Unresolved = countUnresolved(out)
	result.Resolved = len(out) - result.Unresolved
	result.UnresolvedComponents = unresolvedComponents(out)
	return out, result, nil
}

// priceResolvable finds every (product, batch) instance all of whose
// consumption rows carry a resolved cost and prices it from the current
// snapshot: total = Σ(unit_consumption × component_unit_cost). An
// instance with zero rows cannot occur here; one whose product nothing
// consumes is still priced, it just has no effect when applied.
func priceResolvable(rows []model.ConsumptionRecord) map[instance]float64 {
	resolvable := make(map[instance]bool)
	for _, r := range rows {
		key := instance{product: r.ProductID, batch: r.ProductBatchID}
		if _, seen := resolvable[key]; !seen {
			resolvable[key] = true
		}
		if model.IsMissing(r.ComponentUnitCost) {
			resolvable[key] = false
		}
	}

	totals := make(map[instance]float64)
	for _, r := range rows {
		key := instance{product: r.ProductID, batch: r.ProductBatchID}
		if !resolvable[key] {
			continue
		}
		totals[key] += r.UnitConsumption * r.ComponentUnitCost
	}
	return totals
}

// applyTotals writes each priced instance's total onto every row that
// consumes the product, in sorted key order so repeated products across
// batches resolve deterministically (last write wins).
func applyTotals(rows []model.ConsumptionRecord, totals map[instance]float64) {
	keys := make([]instance, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].product != keys[j].product {
			return keys[i].product < keys[j].product
		}
		return keys[i].batch < keys[j].batch
	})

	for _, k := range keys {
		total := totals[k]
		for i := range rows {
			if rows[i].ComponentID == k.product {
				rows[i].ComponentUnitCost = total
				rows[i].CostResolved = true
			}
		}
	}
}

// syncResolvedFlags re-derives the resolved flag from the cost column,
// keeping the flag/cost invariant intact.
func syncResolvedFlags(rows []model.ConsumptionRecord) {
	for i := range rows {
		rows[i].CostResolved = !model.IsMissing(rows[i].ComponentUnitCost)
	}
}

func countUnresolved(rows []model.ConsumptionRecord) int {
	var n int
	for i := range rows {
		if model.IsMissing(rows[i].ComponentUnitCost) {
			n++
		}
	}
	return n
}

// unresolvedComponents lists the distinct component ids still uncosted.
func unresolvedComponents(rows []model.ConsumptionRecord) []string {
	seen := make(map[string]bool)
	for i := range rows {
		if model.IsMissing(rows[i].ComponentUnitCost) {
			seen[rows[i].ComponentID] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
