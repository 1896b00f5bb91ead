package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cadena-mfg/costing-cli/internal/model"
)

// Canonical column names after cleaning. Rename maps in the dataset
// specs translate raw ERP headers to these.
const (
	ColComponentID       = "component_id"
	ColUnitCost          = "unit_cost"
	ColBatchID           = "batch_id"
	ColOrderID           = "order_id"
	ColFabricationDate   = "fabrication_date"
	ColProductID         = "product_id"
	ColProductBatchID    = "product_batch_id"
	ColUnitsProduced     = "units_produced"
	ColComponentBatchID  = "component_batch_id"
	ColUnitConsumption   = "unit_consumption"
	ColTotalConsumption  = "total_consumption"
	ColComponentUnitCost = "component_unit_cost"
)

// dateLayouts are tried in order when parsing fabrication dates.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("dataset: unparseable date %q", raw)
}

// parseCost parses a cost cell; empty means unresolved.
func parseCost(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Missing(), nil
	}
	return strconv.ParseFloat(raw, 64)
}

// BindCostRecords converts a cleaned costs frame into typed records.
// Returns a ConfigurationError when the frame lacks the contract columns.
func BindCostRecords(f *Frame) ([]model.CostRecord, error) {
	if err := f.RequireColumns(ColComponentID, ColUnitCost, ColBatchID); err != nil {
		return nil, err
	}
	out := make([]model.CostRecord, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		cost, err := parseCost(f.Cell(i, ColUnitCost))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: costs row %d", i)
		}
		out = append(out, model.CostRecord{
			ComponentID: f.Cell(i, ColComponentID),
			UnitCost:    cost,
			BatchID:     f.Cell(i, ColBatchID),
		})
	}
	return out, nil
}

// BindConsumptionRecords converts a cleaned consumptions frame into
// typed records. The component_unit_cost column is optional; rows
// without it start unresolved.
func BindConsumptionRecords(f *Frame) ([]model.ConsumptionRecord, error) {
	required := []string{
		ColOrderID, ColFabricationDate, ColProductID, ColProductBatchID,
		ColUnitsProduced, ColComponentID, ColUnitConsumption, ColTotalConsumption,
	}
	if err := f.RequireColumns(required...); err != nil {
		return nil, err
	}
	out := make([]model.ConsumptionRecord, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		date, err := parseDate(f.Cell(i, ColFabricationDate))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: consumptions row %d", i)
		}
		units, err := parseFloatCell(f, i, ColUnitsProduced)
		if err != nil {
			return nil, err
		}
		unitCons, err := parseFloatCell(f, i, ColUnitConsumption)
		if err != nil {
			return nil, err
		}
		totalCons, err := parseFloatCell(f, i, ColTotalConsumption)
		if err != nil {
			return nil, err
		}
		cost := model.Missing()
		if f.Has(ColComponentUnitCost) {
			if cost, err = parseCost(f.Cell(i, ColComponentUnitCost)); err != nil {
				return nil, eris.Wrapf(err, "dataset: consumptions row %d", i)
			}
		}
		out = append(out, model.ConsumptionRecord{
			OrderID:           f.Cell(i, ColOrderID),
			FabricationDate:   date,
			ProductID:         f.Cell(i, ColProductID),
			ProductBatchID:    f.Cell(i, ColProductBatchID),
			UnitsProduced:     units,
			ComponentID:       f.Cell(i, ColComponentID),
			ComponentBatchID:  f.Cell(i, ColComponentBatchID),
			UnitConsumption:   unitCons,
			TotalConsumption:  totalCons,
			ComponentUnitCost: cost,
			CostResolved:      !model.IsMissing(cost),
		})
	}
	return out, nil
}

func parseFloatCell(f *Frame, row int, col string) (float64, error) {
	raw := strings.TrimSpace(f.Cell(row, col))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "dataset: column %q row %d", col, row)
	}
	return v, nil
}

// MergeCosts joins batch-level unit costs onto consumption rows by
// component batch id, the equivalent of the source's merge between the
// cleaned cost table and the fabrication table. Rows without a matching
// batch stay unresolved.
func MergeCosts(consumptions []model.ConsumptionRecord, costs []model.CostRecord) []model.ConsumptionRecord {
	byBatch := make(map[string]float64, len(costs))
	for _, c := range costs {
		byBatch[c.BatchID] = c.UnitCost
	}
	out := make([]model.ConsumptionRecord, len(consumptions))
	copy(out, consumptions)
	for i := range out {
		if out[i].CostResolved {
			continue
		}
		if cost, ok := byBatch[out[i].ComponentBatchID]; ok && !model.IsMissing(cost) {
			out[i].ComponentUnitCost = cost
			out[i].CostResolved = true
		}
	}
	return out
}
