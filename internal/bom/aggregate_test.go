package bom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadena-mfg/costing-cli/internal/model"
)

func TestAggregateOrders_SumsPerOrder(t *testing.T) {
	r1 := consumption("B1", "PRD10", "1000-001", "MAT01", "2000-001", 2, 7.5)
	r2 := consumption("B1", "PRD10", "1000-001", "MAT02", "2000-002", 1, 5.0)
	r3 := consumption("B2", "PRD20", "1000-002", "MAT01", "2000-001", 4, 7.5)
	r3.FabricationDate = day(3)

	orders, summary := AggregateOrders([]model.ConsumptionRecord{r3, r1, r2})

	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, 0, summary.IncompleteOrders)
	require.Len(t, orders, 2)

	// Sorted by fabrication date ascending.
	assert.Equal(t, "B1", orders[0].OrderID)
	assert.InDelta(t, 2*7.5+1*5.0, orders[0].Cost, 1e-9)
	assert.False(t, orders[0].Incomplete)

	assert.Equal(t, "B2", orders[1].OrderID)
	assert.InDelta(t, 30.0, orders[1].Cost, 1e-9)
}

func TestAggregateOrders_UnresolvedCostPropagates(t *testing.T) {
	r1 := consumption("B1", "PRD10", "1000-001", "MAT01", "2000-001", 2, 7.5)
	r2 := consumption("B1", "PRD10", "1000-001", "SEMX99", "1000-009", 1, model.Missing())
	r3 := consumption("B2", "PRD20", "1000-002", "MAT01", "2000-001", 1, 7.5)

	orders, summary := AggregateOrders([]model.ConsumptionRecord{r1, r2, r3})

	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, 1, summary.IncompleteOrders)
	assert.Equal(t, []string{"B1"}, summary.IncompleteIDs)

	byOrder := map[string]model.OrderCost{}
	for _, o := range orders {
		byOrder[o.OrderID] = o
	}

	// One unresolved contributor poisons the whole order, never zero.
	assert.True(t, model.IsMissing(byOrder["B1"].Cost))
	assert.True(t, byOrder["B1"].Incomplete)

	assert.InDelta(t, 7.5, byOrder["B2"].Cost, 1e-9)
	assert.False(t, byOrder["B2"].Incomplete)
}

func TestAggregateOrders_SameDateSortedByOrderID(t *testing.T) {
	r1 := consumption("B2", "PRD20", "1000-002", "MAT01", "2000-001", 1, 1.0)
	r2 := consumption("B1", "PRD10", "1000-001", "MAT01", "2000-001", 1, 1.0)

	orders, _ := AggregateOrders([]model.ConsumptionRecord{r1, r2})
	require.Len(t, orders, 2)
	assert.Equal(t, "B1", orders[0].OrderID)
	assert.Equal(t, "B2", orders[1].OrderID)
}

func TestAggregateOrders_Empty(t *testing.T) {
	orders, summary := AggregateOrders(nil)
	assert.Empty(t, orders)
	assert.Equal(t, 0, summary.Orders)
}
