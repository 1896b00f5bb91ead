package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/cadena-mfg/costing-cli/internal/config"
	"github.com/cadena-mfg/costing-cli/internal/model"
)

func sampleOrders() []model.OrderCost {
	return []model.OrderCost{
		{
			OrderID:         "B1",
			FabricationDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			ProductID:       "PRD10",
			UnitsProduced:   2,
			Cost:            35.0,
		},
		{
			OrderID:         "B2",
			FabricationDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			ProductID:       "PRD20",
			UnitsProduced:   1,
			Cost:            model.Missing(),
			Incomplete:      true,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, WriteCSV(path, sampleOrders()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"order_id", "fabrication_date", "product_id", "units_produced", "cost", "incomplete"}, rows[0])
	assert.Equal(t, []string{"B1", "2026-03-02", "PRD10", "2", "35", "false"}, rows[1])
	// Missing cost becomes an empty cell, never zero.
	assert.Equal(t, []string{"B2", "2026-03-05", "PRD20", "1", "", "true"}, rows[2])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, WriteXLSX(path, sampleOrders()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "order_costs", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "B1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "", sheet.Rows[2].Cells[4].String())
}

func TestWrite_DispatchesOnFormat(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(config.ExportConfig{Dir: dir, Format: "csv"}, "out", sampleOrders())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.csv"), path)

	path, err = Write(config.ExportConfig{Dir: dir, Format: "xlsx"}, "out", sampleOrders())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.xlsx"), path)

	_, err = Write(config.ExportConfig{Dir: dir, Format: "pdf"}, "out", sampleOrders())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
