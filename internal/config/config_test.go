package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadena-mfg/costing-cli/internal/dataset"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "costing.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "windows-1252", cfg.Fetch.Encoding)
	assert.Equal(t, ";", cfg.Fetch.Delimiter)
	assert.InDelta(t, 3.0, cfg.Outliers.ZScore, 1e-9)
	assert.Equal(t, 5, cfg.Outliers.MinThreshold)
	assert.Equal(t, 20, cfg.Outliers.MaxIterations)
	assert.Equal(t, "SEM", cfg.Propagation.SemiFinishedPrefix)
	assert.Equal(t, 6, cfg.Propagation.MaxIterations)
	assert.Equal(t, "csv", cfg.Export.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COSTING_STORE_DRIVER", "postgres")
	t.Setenv("COSTING_OUTLIERS_Z_SCORE", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.InDelta(t, 2.5, cfg.Outliers.ZScore, 1e-9)
}

func TestBuiltinDatasetSpecs(t *testing.T) {
	specs := BuiltinDatasetSpecs()

	costs, ok := specs[DatasetCosts]
	require.True(t, ok)
	assert.Equal(t, dataset.ColUnitCost, costs.RenameMap["PRCMONEDA"])
	assert.Equal(t, dataset.ColBatchID, costs.DropDuplicatesSubset)
	assert.Equal(t, dataset.ColUnitCost, costs.OutlierValueColumn)
	assert.Equal(t, dataset.ColComponentID, costs.OutlierGroupColumn)

	cons, ok := specs[DatasetConsumptions]
	require.True(t, ok)
	assert.Len(t, cons.ColsToKeep, 9)
	assert.Equal(t, dataset.ColComponentBatchID, cons.RenameMap["LOTEINTERNO"])
	// Consumptions are never reconciled directly.
	assert.Empty(t, cons.OutlierValueColumn)
}

func TestLoadDatasetSpecs_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datasets.yaml")
	overlay := `
costs:
  cols_to_keep: ["a", "b"]
  rename_map:
    a: component_id
  outlier_value_column: unit_cost
  outlier_group_column: component_id
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	specs, err := LoadDatasetSpecs(path, BuiltinDatasetSpecs())
	require.NoError(t, err)

	// Overlaid dataset is replaced wholesale.
	assert.Equal(t, []string{"a", "b"}, specs[DatasetCosts].ColsToKeep)
	// Untouched datasets keep their defaults.
	assert.NotEmpty(t, specs[DatasetConsumptions].ColsToKeep)
}

func TestLoadDatasetSpecs_MissingFile(t *testing.T) {
	_, err := LoadDatasetSpecs(filepath.Join(t.TempDir(), "nope.yaml"), BuiltinDatasetSpecs())
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}
