package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawCosts() *Frame {
	return New(
		[]string{"Cód. artículo", "PRCMONEDA", "LOTEINTERNO", "EXTRA"},
		[][]string{
			{"MAT01", "1.234,56", "2000-001", "x"},
			{"MAT01", "12,50", "2000-002", "x"},
			{"MAT02", "", "2000-003", "x"},
			{"MAT02", "3,00", "2000-002", "x"}, // price correction for 2000-002
			{"bad id", "1,00", "9999", "x"},
		},
	)
}

func costKeep() []string { return []string{"Cód. artículo", "PRCMONEDA", "LOTEINTERNO"} }

func costRename() map[string]string {
	return map[string]string{
		"Cód. artículo": ColComponentID,
		"PRCMONEDA":     ColUnitCost,
		"LOTEINTERNO":   ColBatchID,
	}
}

func TestCleaner_FullCostChain(t *testing.T) {
	c := NewCleaner("costs", rawCosts()).
		KeepRename(costKeep(), costRename()).
		DropNA([]string{ColUnitCost}).
		DropDuplicatesLast(ColBatchID).
		FixNumericFormat([]string{ColUnitCost}).
		ValidatePatterns(map[string]string{
			ColComponentID: `[A-Za-zÀ-ÖØ-öø-ÿ]+[0-9]{2,3}`,
			ColBatchID:     `[0-9]{4}-[0-9]{3}`,
		})

	f, report, err := c.Result()
	require.NoError(t, err)

	// Empty-price row, superseded duplicate, and both invalid rows gone.
	require.Equal(t, 2, f.Len())
	assert.Equal(t, []string{ColComponentID, ColUnitCost, ColBatchID}, f.Columns())
	assert.Equal(t, "1234.56", f.Cell(0, ColUnitCost))
	assert.Equal(t, "3", f.Cell(1, ColUnitCost))
	assert.Equal(t, "2000-002", f.Cell(1, ColBatchID))

	assert.Equal(t, 5, report.InitialRows)
	assert.Equal(t, 2, report.FinalRows)
	assert.Equal(t, 3, report.RowsRemoved())
	assert.Len(t, report.Steps, 5)
}

func TestCleaner_KeepRenameValidation(t *testing.T) {
	_, _, err := NewCleaner("costs", rawCosts()).
		KeepRename([]string{"Cód. artículo"}, map[string]string{"PRCMONEDA": ColUnitCost}).
		Result()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, _, err = NewCleaner("costs", rawCosts()).
		KeepRename([]string{"NOPE"}, nil).
		Result()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestCleaner_DropDuplicatesKeepsLast(t *testing.T) {
	f := New([]string{ColBatchID, ColUnitCost}, [][]string{
		{"2000-001", "1"},
		{"2000-001", "2"},
		{"2000-002", "3"},
	})

	out, _, err := NewCleaner("costs", f).DropDuplicatesLast(ColBatchID).Result()
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "2", out.Cell(0, ColUnitCost))
	assert.Equal(t, "3", out.Cell(1, ColUnitCost))
}

func TestCleaner_FixNumericFormat(t *testing.T) {
	f := New([]string{ColUnitCost}, [][]string{
		{"1.234,56"},
		{"12,5"},
		{"100"},
		{""},
	})

	out, _, err := NewCleaner("costs", f).FixNumericFormat([]string{ColUnitCost}).Result()
	require.NoError(t, err)
	assert.Equal(t, "1234.56", out.Cell(0, ColUnitCost))
	assert.Equal(t, "12.5", out.Cell(1, ColUnitCost))
	assert.Equal(t, "100", out.Cell(2, ColUnitCost))
	assert.Equal(t, "", out.Cell(3, ColUnitCost))
}

func TestCleaner_FixNumericFormatRejectsGarbage(t *testing.T) {
	f := New([]string{ColUnitCost}, [][]string{{"abc"}})
	_, _, err := NewCleaner("costs", f).FixNumericFormat([]string{ColUnitCost}).Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric")
}

func TestCleaner_ValidatePatternsRetainsRejects(t *testing.T) {
	f := New([]string{ColComponentID}, [][]string{
		{"MAT01"},
		{"??"},
		{"SEM100"},
	})

	c := NewCleaner("costs", f).ValidatePatterns(map[string]string{
		ColComponentID: `[A-Za-zÀ-ÖØ-öø-ÿ]+[0-9]{2,3}`,
	})
	out, report, err := c.Result()
	require.NoError(t, err)

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 1, report.InvalidRows[ColComponentID])

	bad := c.Invalid(ColComponentID)
	require.NotNil(t, bad)
	require.Equal(t, 1, bad.Len())
	assert.Equal(t, "??", bad.Cell(0, ColComponentID))
}

func TestCleaner_StickyErrorShortCircuits(t *testing.T) {
	c := NewCleaner("costs", rawCosts()).
		KeepRename([]string{"NOPE"}, nil).
		DropNA([]string{ColUnitCost}).
		FixNumericFormat([]string{ColUnitCost})

	_, report, err := c.Result()
	require.Error(t, err)
	// Only the failing step ran; nothing was recorded after it.
	assert.Empty(t, report.Steps)
}

func TestCleaner_SourceFrameUntouched(t *testing.T) {
	src := rawCosts()
	_, _, err := NewCleaner("costs", src).
		KeepRename(costKeep(), costRename()).
		DropNA([]string{ColUnitCost}).
		Result()
	require.NoError(t, err)

	assert.Equal(t, 5, src.Len())
	assert.Equal(t, "1.234,56", src.Cell(0, "PRCMONEDA"))
}
