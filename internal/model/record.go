// Package model defines the domain records shared across the costing pipeline.
package model

import (
	"encoding/json"
	"math"
	"time"
)

// Missing marks a unit cost that has not been resolved yet.
// Costs are carried as float64 with NaN standing in for null so that
// arithmetic with an unresolved cost propagates into any sum.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a cost value is unresolved.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// CostRecord is one purchase lot of a component.
// After cleaning, BatchID is unique (last write wins on duplicates).
type CostRecord struct {
	ComponentID string  `json:"component_id"`
	UnitCost    float64 `json:"unit_cost"`
	BatchID     string  `json:"batch_id"`
}

// ConsumptionRecord is one component consumption line of a fabrication order.
// A product may itself appear as ComponentID on other records when its
// identifier carries the semi-finished prefix; those rows start unresolved.
type ConsumptionRecord struct {
	OrderID          string    `json:"order_id"`
	FabricationDate  time.Time `json:"fabrication_date"`
	ProductID        string    `json:"product_id"`
	ProductBatchID   string    `json:"product_batch_id"`
	UnitsProduced    float64   `json:"units_produced"`
	ComponentID      string    `json:"component_id"`
	ComponentBatchID string    `json:"component_batch_id"`
	UnitConsumption  float64   `json:"unit_consumption"`
	TotalConsumption float64   `json:"total_consumption"`

	// ComponentUnitCost is NaN until the propagator resolves it.
	// Invariant: CostResolved == !IsMissing(ComponentUnitCost).
	ComponentUnitCost float64 `json:"component_unit_cost"`
	CostResolved      bool    `json:"cost_resolved"`
}

// OrderCost is one row of the order-level cost summary: a fabrication
// order with its consumption-weighted component costs summed up.
// Cost is NaN when any contributing component remained unresolved.
type OrderCost struct {
	OrderID         string    `json:"order_id"`
	FabricationDate time.Time `json:"fabrication_date"`
	ProductID       string    `json:"product_id"`
	UnitsProduced   float64   `json:"units_produced"`
	Cost            float64   `json:"cost"`
	Incomplete      bool      `json:"incomplete"`
}

// orderCostJSON carries Cost as a pointer so a missing cost serializes
// as null; encoding/json rejects NaN outright.
type orderCostJSON struct {
	OrderID         string    `json:"order_id"`
	FabricationDate time.Time `json:"fabrication_date"`
	ProductID       string    `json:"product_id"`
	UnitsProduced   float64   `json:"units_produced"`
	Cost            *float64  `json:"cost"`
	Incomplete      bool      `json:"incomplete"`
}

func (o OrderCost) MarshalJSON() ([]byte, error) {
	j := orderCostJSON{
		OrderID:         o.OrderID,
		FabricationDate: o.FabricationDate,
		ProductID:       o.ProductID,
		UnitsProduced:   o.UnitsProduced,
		Incomplete:      o.Incomplete,
	}
	if !IsMissing(o.Cost) {
		j.Cost = &o.Cost
	}
	return json.Marshal(j)
}

func (o *OrderCost) UnmarshalJSON(data []byte) error {
	var j orderCostJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	o.OrderID = j.OrderID
	o.FabricationDate = j.FabricationDate
	o.ProductID = j.ProductID
	o.UnitsProduced = j.UnitsProduced
	o.Incomplete = j.Incomplete
	if j.Cost != nil {
		o.Cost = *j.Cost
	} else {
		o.Cost = Missing()
	}
	return nil
}
