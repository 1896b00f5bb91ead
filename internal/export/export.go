// Package export writes order-cost summaries to CSV or XLSX files.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/cadena-mfg/costing-cli/internal/config"
	"github.com/cadena-mfg/costing-cli/internal/model"
)

const dateLayout = "2006-01-02"

var header = []string{"order_id", "fabrication_date", "product_id", "units_produced", "cost", "incomplete"}

// orderRow renders one order cost as strings. A missing cost becomes an
// empty cell.
func orderRow(o model.OrderCost) []string {
	cost := ""
	if !model.IsMissing(o.Cost) {
		cost = strconv.FormatFloat(o.Cost, 'f', -1, 64)
	}
	return []string{
		o.OrderID,
		o.FabricationDate.Format(dateLayout),
		o.ProductID,
		strconv.FormatFloat(o.UnitsProduced, 'f', -1, 64),
		cost,
		strconv.FormatBool(o.Incomplete),
	}
}

// WriteCSV writes order costs to a CSV file at path.
func WriteCSV(path string, orders []model.OrderCost) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, o := range orders {
		if err := w.Write(orderRow(o)); err != nil {
			return eris.Wrapf(err, "export: write order %s", o.OrderID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

// WriteXLSX writes order costs to a single-sheet XLSX file at path.
// Costs are written as numeric cells so spreadsheet formulas work on
// them; missing costs stay blank.
func WriteXLSX(path string, orders []model.OrderCost) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("order_costs")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetString(o.OrderID)
		row.AddCell().SetString(o.FabricationDate.Format(dateLayout))
		row.AddCell().SetString(o.ProductID)
		row.AddCell().SetFloat(o.UnitsProduced)
		if model.IsMissing(o.Cost) {
			row.AddCell()
		} else {
			row.AddCell().SetFloat(o.Cost)
		}
		row.AddCell().SetBool(o.Incomplete)
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// Write dispatches on the configured format and returns the path of the
// written file.
func Write(cfg config.ExportConfig, name string, orders []model.OrderCost) (string, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}

	switch cfg.Format {
	case "xlsx":
		path := filepath.Join(dir, name+".xlsx")
		if err := WriteXLSX(path, orders); err != nil {
			return "", err
		}
		zap.L().Info("export: wrote xlsx", zap.String("path", path), zap.Int("orders", len(orders)))
		return path, nil
	case "csv", "":
		path := filepath.Join(dir, name+".csv")
		if err := WriteCSV(path, orders); err != nil {
			return "", err
		}
		zap.L().Info("export: wrote csv", zap.String("path", path), zap.Int("orders", len(orders)))
		return path, nil
	default:
		return "", eris.Errorf("export: unknown format %q", cfg.Format)
	}
}
