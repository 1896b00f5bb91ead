package config

import "github.com/cadena-mfg/costing-cli/internal/dataset"

// DatasetSpec names the column roles and cleaning rules for one ERP
// extract. It is immutable once built; stages receive it by value and
// never mutate it.
type DatasetSpec struct {
	ColsToKeep           []string          `yaml:"cols_to_keep"`
	RenameMap            map[string]string `yaml:"rename_map"`
	ColsToFloat          []string          `yaml:"cols_to_float"`
	ValidationMap        map[string]string `yaml:"validation_map"`
	DropNASubset         []string          `yaml:"drop_na_subset"`
	DropDuplicatesSubset string            `yaml:"drop_duplicates_subset"`

	// Outlier reconciliation column roles; empty value column disables
	// reconciliation for the dataset.
	OutlierValueColumn string `yaml:"outlier_value_column"`
	OutlierGroupColumn string `yaml:"outlier_group_column"`
}

// Component and lot code formats of the ERP: letters followed by 2-3
// digits, and NNNN-NNN lot numbers.
const (
	componentPattern = `[A-Za-zÀ-ÖØ-öø-ÿ]+[0-9]{2,3}`
	batchPattern     = `[0-9]{4}-[0-9]{3}`
)

// Dataset names.
const (
	DatasetCosts        = "costs"
	DatasetConsumptions = "consumptions"
	DatasetOrderCosts   = "order_costs"
)

// BuiltinDatasetSpecs returns the specs for the ERP extracts this
// pipeline was built around. Raw headers are the ERP's own; the rename
// maps translate them to the canonical column contract.
func BuiltinDatasetSpecs() map[string]DatasetSpec {
	return map[string]DatasetSpec{
		DatasetCosts: {
			ColsToKeep: []string{"Cód. artículo", "PRCMONEDA", "LOTEINTERNO"},
			RenameMap: map[string]string{
				"Cód. artículo": dataset.ColComponentID,
				"PRCMONEDA":     dataset.ColUnitCost,
				"LOTEINTERNO":   dataset.ColBatchID,
			},
			ColsToFloat: []string{dataset.ColUnitCost},
			ValidationMap: map[string]string{
				dataset.ColComponentID: componentPattern,
				dataset.ColBatchID:     batchPattern,
			},
			// Rows without a price are useless; duplicate lots are
			// price corrections, last write wins.
			DropNASubset:         []string{dataset.ColUnitCost},
			DropDuplicatesSubset: dataset.ColBatchID,
			OutlierValueColumn:   dataset.ColUnitCost,
			OutlierGroupColumn:   dataset.ColComponentID,
		},
		DatasetConsumptions: {
			ColsToKeep: []string{
				"Nº Orden", "Fecha Recepción", "Producto", "Lote Producto",
				"Unidades Fabricadas", "Componente", "LOTEINTERNO",
				"Consumo Unitario", "Consumo Total",
			},
			RenameMap: map[string]string{
				"Nº Orden":            dataset.ColOrderID,
				"Fecha Recepción":     dataset.ColFabricationDate,
				"Producto":            dataset.ColProductID,
				"Lote Producto":       dataset.ColProductBatchID,
				"Unidades Fabricadas": dataset.ColUnitsProduced,
				"Componente":          dataset.ColComponentID,
				"LOTEINTERNO":         dataset.ColComponentBatchID,
				"Consumo Unitario":    dataset.ColUnitConsumption,
				"Consumo Total":       dataset.ColTotalConsumption,
			},
			ColsToFloat: []string{
				dataset.ColUnitsProduced,
				dataset.ColUnitConsumption,
				dataset.ColTotalConsumption,
			},
			ValidationMap: map[string]string{
				dataset.ColProductID:   componentPattern,
				dataset.ColComponentID: componentPattern,
			},
			// Rows without lots are neither fabricated nor
			// cost-assignable.
			DropNASubset: []string{dataset.ColProductBatchID, dataset.ColComponentBatchID},
		},
		DatasetOrderCosts: {
			ColsToKeep: []string{
				dataset.ColOrderID, dataset.ColFabricationDate,
				dataset.ColProductID, dataset.ColUnitsProduced, "cost",
			},
			OutlierValueColumn: "cost",
			OutlierGroupColumn: dataset.ColProductID,
		},
	}
}
