// Package outlier implements the iterative z-score reconciliation engine:
// anomalous values are replaced by their group's clean mean until the
// outlier count falls below a threshold or the iteration budget runs out.
package outlier

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cadena-mfg/costing-cli/internal/dataset"
	"github.com/cadena-mfg/costing-cli/internal/model"
)

// Params configures one reconciliation run. Column roles come from the
// dataset spec; thresholds default via config.
type Params struct {
	ValueColumn   string
	GroupColumn   string
	ZScore        float64 // |z| above this is an outlier
	MinThreshold  int     // stop once the outlier count is at or below this
	MaxIterations int
}

// row is the engine's working representation of one frame row.
type row struct {
	group   string
	value   float64
	outlier bool
}

// Reconcile runs the correction loop on a copy of the frame and returns
// the corrected frame plus a structured summary. The input frame is not
// mutated. Residual outliers below the threshold are acceptable noise;
// the loop must not be tightened to exact convergence.
func Reconcile(ctx context.Context, f *dataset.Frame, p Params) (*dataset.Frame, model.OutlierSummary, error) {
	var summary model.OutlierSummary

	if p.ValueColumn == "" || p.GroupColumn == "" {
		return nil, summary, eris.Wrap(dataset.ErrConfiguration, "outlier: value and group columns are required")
	}
	if err := f.RequireColumns(p.ValueColumn, p.GroupColumn); err != nil {
		return nil, summary, err
	}

	rows := make([]row, f.Len())
	for i := range rows {
		v, err := strconv.ParseFloat(f.Cell(i, p.ValueColumn), 64)
		if err != nil {
			return nil, summary, eris.Wrapf(err, "outlier: column %q row %d is not numeric", p.ValueColumn, i)
		}
		rows[i] = row{group: f.Cell(i, p.GroupColumn), value: v}
	}

	if err := detect(ctx, rows, p.ZScore); err != nil {
		return nil, summary, err
	}
	count := countOutliers(rows)
	summary.InitialOutliers = count

	warned := make(map[string]bool)
	for count > p.MinThreshold && summary.Iterations < p.MaxIterations {
		summary.Iterations++

		cleanMeans := groupMeans(rows, false)
		for i := range rows {
			if !rows[i].outlier {
				continue
			}
			mean, ok := cleanMeans[rows[i].group]
			if !ok {
				// Every row of the group is an outlier; there is no
				// clean mean to substitute. Leave the values alone and
				// surface it as a data-quality warning.
				if !warned[rows[i].group] {
					warned[rows[i].group] = true
					summary.Warnings = append(summary.Warnings,
						"group "+rows[i].group+" has no clean rows; outliers left uncorrected")
				}
				continue
			}
			rows[i].value = mean
		}

		if err := detect(ctx, rows, p.ZScore); err != nil {
			return nil, summary, err
		}
		count = countOutliers(rows)
	}

	summary.RemainingOutliers = count
	summary.ReplacedOutliers = summary.InitialOutliers - count
	summary.Remaining = remainingDetail(rows)

	zap.L().Info("outlier: reconciliation finished",
		zap.Int("initial", summary.InitialOutliers),
		zap.Int("replaced", summary.ReplacedOutliers),
		zap.Int("remaining", summary.RemainingOutliers),
		zap.Int("iterations", summary.Iterations),
	)

	out := f.Clone()
	for i := range rows {
		out.SetCell(i, p.ValueColumn, strconv.FormatFloat(rows[i].value, 'g', -1, 64))
	}
	return out, summary, nil
}

// detect recomputes the outlier flag for every row. Groups are
// independent, so detection fans out per group; the caller's loop is
// the barrier between iterations.
func detect(ctx context.Context, rows []row, threshold float64) error {
	groups := make(map[string][]int)
	for i := range rows {
		groups[rows[i].group] = append(groups[rows[i].group], i)
	}

	// Flags live at distinct indices, so per-group goroutines never
	// write the same element.
	g, _ := errgroup.WithContext(ctx)
	for group, idx := range groups {
		group, idx := group, idx
		g.Go(func() error {
			mean, std := meanStd(rows, idx)
			// No variance (single-row groups included): nothing to flag.
			if std == 0 || math.IsNaN(std) {
				zap.L().Debug("outlier: group has no variance, skipping",
					zap.String("group", group),
					zap.Int("rows", len(idx)),
				)
				for _, i := range idx {
					rows[i].outlier = false
				}
				return nil
			}
			for _, i := range idx {
				z := (rows[i].value - mean) / std
				rows[i].outlier = math.Abs(z) > threshold
			}
			return nil
		})
	}
	return g.Wait()
}

// meanStd returns the mean and sample standard deviation of the rows at
// the given indices.
func meanStd(rows []row, idx []int) (float64, float64) {
	n := float64(len(idx))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += rows[i].value
	}
	mean := sum / n
	if len(idx) < 2 {
		return mean, math.NaN()
	}
	var ss float64
	for _, i := range idx {
		d := rows[i].value - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

func countOutliers(rows []row) int {
	var n int
	for i := range rows {
		if rows[i].outlier {
			n++
		}
	}
	return n
}

// groupMeans computes per-group means; withOutliers=false restricts the
// mean to clean rows and omits groups with no clean rows.
func groupMeans(rows []row, withOutliers bool) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range rows {
		if !withOutliers && rows[i].outlier {
			continue
		}
		sums[rows[i].group] += rows[i].value
		counts[rows[i].group]++
	}
	means := make(map[string]float64, len(sums))
	for g, s := range sums {
		means[g] = s / float64(counts[g])
	}
	return means
}

// remainingDetail builds the per-group report for outliers that survived
// the loop: value list, overall group mean, mean percentage deviation.
func remainingDetail(rows []row) []model.GroupOutliers {
	overall := groupMeans(rows, true)
	byGroup := make(map[string][]float64)
	for i := range rows {
		if rows[i].outlier {
			byGroup[rows[i].group] = append(byGroup[rows[i].group], rows[i].value)
		}
	}
	if len(byGroup) == 0 {
		return nil
	}
	out := make([]model.GroupOutliers, 0, len(byGroup))
	for g, values := range byGroup {
		mean := overall[g]
		var dev float64
		if mean != 0 {
			for _, v := range values {
				dev += math.Abs(v-mean) / mean * 100
			}
		}
		out = append(out, model.GroupOutliers{
			Group:         g,
			Count:         len(values),
			Values:        values,
			GroupMean:     mean,
			MeanDeviation: dev / float64(len(values)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}
