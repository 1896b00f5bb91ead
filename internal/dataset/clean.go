package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cadena-mfg/costing-cli/internal/model"
)

// Cleaner applies chained cleaning operations to a frame, recording each
// step into a report. The first error sticks; later operations become
// no-ops until Result is called.
type Cleaner struct {
	f       *Frame
	report  model.CleaningReport
	invalid map[string]*Frame
	err     error
}

// NewCleaner wraps a copy of the frame; the caller's frame is untouched.
func NewCleaner(dataset string, f *Frame) *Cleaner {
	return &Cleaner{
		f: f.Clone(),
		report: model.CleaningReport{
			Dataset:     dataset,
			InitialRows: f.Len(),
			InvalidRows: make(map[string]int),
		},
		invalid: make(map[string]*Frame),
	}
}

func (c *Cleaner) step(op, desc string, before int) {
	c.report.Steps = append(c.report.Steps, model.CleaningStep{
		Operation:   op,
		Description: desc,
		RowsBefore:  before,
		RowsAfter:   c.f.Len(),
	})
}

// KeepRename keeps only the listed columns, in order, renaming them per
// rename. Every rename key must be inside keep; every kept column must
// exist in the frame.
func (c *Cleaner) KeepRename(keep []string, rename map[string]string) *Cleaner {
	if c.err != nil {
		return c
	}
	kept := make(map[string]bool, len(keep))
	for _, col := range keep {
		kept[col] = true
	}
	for from := range rename {
		if !kept[from] {
			c.err = eris.Wrapf(ErrConfiguration, "rename key %q is not in the kept column list", from)
			return c
		}
	}
	if err := c.f.RequireColumns(keep...); err != nil {
		c.err = err
		return c
	}

	before := c.f.Len()
	newCols := make([]string, len(keep))
	for i, col := range keep {
		newCols[i] = col
		if to, ok := rename[col]; ok {
			newCols[i] = to
		}
	}
	rows := make([][]string, c.f.Len())
	for r := range rows {
		row := make([]string, len(keep))
		for i, col := range keep {
			row[i] = c.f.Cell(r, col)
		}
		rows[r] = row
	}
	c.f = New(newCols, rows)
	c.step("keep_rename", fmt.Sprintf("kept %d columns", len(keep)), before)
	return c
}

// DropNA removes rows with an empty cell in any of the subset columns.
// An empty subset keeps everything.
func (c *Cleaner) DropNA(subset []string) *Cleaner {
	if c.err != nil || len(subset) == 0 {
		return c
	}
	if err := c.f.RequireColumns(subset...); err != nil {
		c.err = err
		return c
	}
	before := c.f.Len()
	c.f = c.f.Select(func(row int) bool {
		for _, col := range subset {
			if strings.TrimSpace(c.f.Cell(row, col)) == "" {
				return false
			}
		}
		return true
	})
	c.step("drop_na", fmt.Sprintf("dropped rows with empty %v", subset), before)
	return c
}

// DropDuplicatesLast deduplicates on one column keeping the last
// occurrence. Duplicate lots come from price corrections; the last
// write is the valid one.
func (c *Cleaner) DropDuplicatesLast(column string) *Cleaner {
	if c.err != nil || column == "" {
		return c
	}
	if err := c.f.RequireColumns(column); err != nil {
		c.err = err
		return c
	}
	before := c.f.Len()
	last := make(map[string]int, c.f.Len())
	for i := 0; i < c.f.Len(); i++ {
		last[c.f.Cell(i, column)] = i
	}
	c.f = c.f.Select(func(row int) bool {
		return last[c.f.Cell(row, column)] == row
	})
	c.step("drop_duplicates", fmt.Sprintf("deduplicated %q keeping last", column), before)
	return c
}

// FixNumericFormat rewrites European-formatted numbers ("1.234,56") in
// the given columns to canonical dot-decimal form. Cells that do not
// parse after normalization fail the cleaning run.
func (c *Cleaner) FixNumericFormat(cols []string) *Cleaner {
	if c.err != nil || len(cols) == 0 {
		return c
	}
	if err := c.f.RequireColumns(cols...); err != nil {
		c.err = err
		return c
	}
	before := c.f.Len()
	for _, col := range cols {
		for i := 0; i < c.f.Len(); i++ {
			raw := strings.TrimSpace(c.f.Cell(i, col))
			if raw == "" {
				continue
			}
			norm := strings.ReplaceAll(raw, ".", "")
			norm = strings.ReplaceAll(norm, ",", ".")
			v, err := strconv.ParseFloat(norm, 64)
			if err != nil {
				c.err = eris.Wrapf(err, "dataset: column %q row %d: non-numeric value %q", col, i, raw)
				return c
			}
			c.f.SetCell(i, col, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	c.step("fix_numeric_format", fmt.Sprintf("coerced %v to float", cols), before)
	return c
}

// ValidatePatterns removes rows whose cell does not fully match the
// column's pattern. Rejected rows are retained per column for
// inspection via Invalid.
func (c *Cleaner) ValidatePatterns(patterns map[string]string) *Cleaner {
	if c.err != nil || len(patterns) == 0 {
		return c
	}
	before := c.f.Len()
	for col, pattern := range patterns {
		if !c.f.Has(col) {
			continue
		}
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			c.err = eris.Wrapf(ErrConfiguration, "invalid validation pattern for column %q: %v", col, err)
			return c
		}
		bad := c.f.Select(func(row int) bool { return !re.MatchString(c.f.Cell(row, col)) })
		if bad.Len() > 0 {
			c.invalid[col] = bad
			c.report.InvalidRows[col] = bad.Len()
			zap.L().Debug("dataset: rows rejected by validation",
				zap.String("dataset", c.report.Dataset),
				zap.String("column", col),
				zap.Int("rows", bad.Len()),
			)
		}
		c.f = c.f.Select(func(row int) bool { return re.MatchString(c.f.Cell(row, col)) })
	}
	c.step("validate_patterns", fmt.Sprintf("validated %d columns", len(patterns)), before)
	return c
}

// Invalid returns the rows rejected by validation for a column, or nil.
func (c *Cleaner) Invalid(column string) *Frame {
	return c.invalid[column]
}

// Result returns the cleaned frame and its report, or the first error
// hit along the chain.
func (c *Cleaner) Result() (*Frame, model.CleaningReport, error) {
	if c.err != nil {
		return nil, c.report, c.err
	}
	c.report.FinalRows = c.f.Len()
	return c.f, c.report, nil
}
