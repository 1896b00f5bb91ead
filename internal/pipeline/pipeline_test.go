package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadena-mfg/costing-cli/internal/config"
	"github.com/cadena-mfg/costing-cli/internal/dataset"
	"github.com/cadena-mfg/costing-cli/internal/model"
	"github.com/cadena-mfg/costing-cli/internal/store"
)

const costsExtract = `Cód. artículo;PRCMONEDA;LOTEINTERNO
MAT01;5,00;2000-001
MAT02;2,50;2000-002
`

const consumptionsExtract = `Nº Orden;Fecha Recepción;Producto;Lote Producto;Unidades Fabricadas;Componente;LOTEINTERNO;Consumo Unitario;Consumo Total
A1;2026-03-01;SEM100;1000-001;1;MAT01;2000-001;3;3
B1;2026-03-02;PRD10;1000-002;2;SEM100;1000-001;1;2
B1;2026-03-02;PRD10;1000-002;2;MAT02;2000-002;4;8
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "costing.db")},
		Fetch: config.FetchConfig{Encoding: "utf-8", Delimiter: ";"},
		Outliers: config.OutlierConfig{
			ZScore:        3.0,
			MinThreshold:  5,
			MaxIterations: 20,
		},
		Propagation: config.PropagationConfig{SemiFinishedPrefix: "SEM", MaxIterations: 6},
		Export:      config.ExportConfig{Dir: dir, Format: "csv"},
	}
}

func TestPipeline_Run_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	fixtures := t.TempDir()
	costsFile := writeFixture(t, fixtures, "costes.csv", costsExtract)
	consFile := writeFixture(t, fixtures, "consumos.csv", consumptionsExtract)

	st, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	p := New(cfg, st, nil)
	result, err := p.Run(ctx, model.RunInput{CostsFile: costsFile, ConsumptionsFile: consFile})
	require.NoError(t, err)

	// Cleaning kept everything; there was nothing to drop.
	require.NotNil(t, result.CostsCleaning)
	assert.Equal(t, 2, result.CostsCleaning.FinalRows)
	require.NotNil(t, result.ConsumptionsCleaning)
	assert.Equal(t, 3, result.ConsumptionsCleaning.FinalRows)

	// The semi-finished batch resolved in one pass.
	require.NotNil(t, result.Propagation)
	assert.True(t, result.Propagation.Complete())
	assert.Equal(t, 1, result.Propagation.InitialUnresolved)

	require.NotNil(t, result.Aggregation)
	assert.Equal(t, 2, result.Aggregation.Orders)
	assert.Equal(t, 0, result.Aggregation.IncompleteOrders)
	assert.Equal(t, 2, result.Orders)

	// Run record and order costs were persisted.
	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	orders, err := st.ListOrderCosts(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	// A1 makes SEM100 from 3 units of MAT01: 3 x 5.00.
	assert.Equal(t, "A1", orders[0].OrderID)
	assert.InDelta(t, 15.0, orders[0].Cost, 1e-9)
	// B1 consumes the SEM100 batch plus 4 units of MAT02.
	assert.Equal(t, "B1", orders[1].OrderID)
	assert.InDelta(t, 1*15.0+4*2.5, orders[1].Cost, 1e-9)

	// The export landed next to the database.
	matches, err := filepath.Glob(filepath.Join(cfg.Export.Dir, "order_costs_*.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPipeline_Run_UnresolvableComponentIsPartial(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	const cons = `Nº Orden;Fecha Recepción;Producto;Lote Producto;Unidades Fabricadas;Componente;LOTEINTERNO;Consumo Unitario;Consumo Total
B1;2026-03-02;PRD10;1000-002;2;SEM999;1000-009;1;2
`
	fixtures := t.TempDir()
	costsFile := writeFixture(t, fixtures, "costes.csv", costsExtract)
	consFile := writeFixture(t, fixtures, "consumos.csv", cons)

	st, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	p := New(cfg, st, nil)
	result, err := p.Run(ctx, model.RunInput{CostsFile: costsFile, ConsumptionsFile: consFile})
	require.NoError(t, err)

	// A partial result, not a failure.
	require.NotNil(t, result.Propagation)
	assert.False(t, result.Propagation.Complete())
	assert.Equal(t, []string{"SEM999"}, result.Propagation.UnresolvedComponents)

	require.NotNil(t, result.Aggregation)
	assert.Equal(t, 1, result.Aggregation.IncompleteOrders)

	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	orders, err := st.ListOrderCosts(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, model.IsMissing(orders[0].Cost))
	assert.True(t, orders[0].Incomplete)
}

func TestPipeline_Run_MissingExtractFails(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	st, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(ctx))

	p := New(cfg, st, nil)
	_, err = p.Run(ctx, model.RunInput{CostsFile: "/nope/costes.csv", ConsumptionsFile: "/nope/consumos.csv"})
	require.Error(t, err)

	// The run record is marked failed.
	runs, listErr := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
}

func TestClean_AppliesSpec(t *testing.T) {
	raw := dataset.New(
		[]string{"Cód. artículo", "PRCMONEDA", "LOTEINTERNO"},
		[][]string{
			{"MAT01", "1.234,56", "2000-001"},
			{"MAT01", "", "2000-002"},
		},
	)

	spec := config.BuiltinDatasetSpecs()[config.DatasetCosts]
	f, report, err := Clean(config.DatasetCosts, spec, raw)
	require.NoError(t, err)

	require.Equal(t, 1, f.Len())
	assert.Equal(t, "1234.56", f.Cell(0, dataset.ColUnitCost))
	assert.Equal(t, 1, report.RowsRemoved())
}
