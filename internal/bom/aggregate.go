package bom

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cadena-mfg/costing-cli/internal/model"
)

// orderKey groups consumption rows belonging to one fabrication order.
type orderKey struct {
	orderID       string
	date          time.Time
	productID     string
	unitsProduced float64
}

// AggregateOrders collapses the costed consumption table into one row
// per fabrication order: order cost = Σ(component_unit_cost ×
// unit_consumption), sorted ascending by fabrication date. An
// unresolved contributor propagates NaN into its order's cost; such
// orders are flagged rather than silently zeroed.
func AggregateOrders(rows []model.ConsumptionRecord) ([]model.OrderCost, model.AggregationSummary) {
	if n := countUnresolved(rows); n > 0 {
		zap.L().Warn("bom: aggregating with unresolved costs; totals will be partial",
			zap.Int("unresolved_rows", n))
	}

	sums := make(map[orderKey]float64)
	order := make([]orderKey, 0)
	for _, r := range rows {
		key := orderKey{
			orderID:       r.OrderID,
			date:          r.FabricationDate,
			productID:     r.ProductID,
			unitsProduced: r.UnitsProduced,
		}
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		sums[key] += r.ComponentUnitCost * r.UnitConsumption
	}

	out := make([]model.OrderCost, 0, len(order))
	var summary model.AggregationSummary
	for _, key := range order {
		cost := sums[key]
		incomplete := model.IsMissing(cost)
		if incomplete {
			summary.IncompleteOrders++
			summary.IncompleteIDs = append(summary.IncompleteIDs, key.orderID)
		}
		out = append(out, model.OrderCost{
			OrderID:         key.orderID,
			FabricationDate: key.date,
			ProductID:       key.productID,
			UnitsProduced:   key.unitsProduced,
			Cost:            cost,
			Incomplete:      incomplete,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FabricationDate.Equal(out[j].FabricationDate) {
			return out[i].FabricationDate.Before(out[j].FabricationDate)
		}
		return out[i].OrderID < out[j].OrderID
	})
	sort.Strings(summary.IncompleteIDs)
	summary.Orders = len(out)
	return out, summary
}
