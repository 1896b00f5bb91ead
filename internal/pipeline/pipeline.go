// Package pipeline orchestrates the costing run: fetch, clean,
// reconcile, propagate, aggregate, persist.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cadena-mfg/costing-cli/internal/bom"
	"github.com/cadena-mfg/costing-cli/internal/config"
	"github.com/cadena-mfg/costing-cli/internal/dataset"
	"github.com/cadena-mfg/costing-cli/internal/export"
	"github.com/cadena-mfg/costing-cli/internal/fetch"
	"github.com/cadena-mfg/costing-cli/internal/model"
	"github.com/cadena-mfg/costing-cli/internal/outlier"
	"github.com/cadena-mfg/costing-cli/internal/store"
)

// Pipeline orchestrates one costing run end to end.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	specs map[string]config.DatasetSpec
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, specs map[string]config.DatasetSpec) *Pipeline {
	if specs == nil {
		specs = config.BuiltinDatasetSpecs()
	}
	return &Pipeline{cfg: cfg, store: st, specs: specs}
}

// Clean applies a dataset spec to a raw frame: select and rename
// columns, drop incomplete rows, normalize numerics, and validate code
// formats. Rows failing validation are dropped and counted.
func Clean(name string, spec config.DatasetSpec, f *dataset.Frame) (*dataset.Frame, model.CleaningReport, error) {
	return dataset.NewCleaner(name, f).
		KeepRename(spec.ColsToKeep, spec.RenameMap).
		DropNA(spec.DropNASubset).
		DropDuplicatesLast(spec.DropDuplicatesSubset).
		FixNumericFormat(spec.ColsToFloat).
		ValidatePatterns(spec.ValidationMap).
		Result()
}

// Run executes the full costing pipeline for one pair of extracts.
// Phase failures abort the run; the partial result and phase records
// are persisted either way.
func (p *Pipeline) Run(ctx context.Context, input model.RunInput) (*model.RunResult, error) {
	log := zap.L().With(
		zap.String("costs", input.CostsFile),
		zap.String("consumptions", input.ConsumptionsFile),
	)
	log.Info("pipeline: starting costing run")

	run, err := p.store.CreateRun(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	result := &model.RunResult{}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	// Phase tracking helper; the mutex covers the parallel fetch phases.
	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else if phaseResult.Status == "" {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		phasesMu.Lock()
		result.Phases = append(result.Phases, *phaseResult)
		phasesMu.Unlock()
		return fnErr
	}

	fail := func(err error) (*model.RunResult, error) {
		setStatus(model.RunStatusFailed)
		if saveErr := p.store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
		}
		return result, err
	}

	// ===== Phase 1: fetch both extracts in parallel =====
	var costsRaw, consumptionsRaw *dataset.Frame

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trackPhase("1a_fetch_costs", func() (*model.PhaseResult, error) {
			f, fetchErr := fetch.LoadExtract(gCtx, p.cfg.Fetch, input.CostsFile)
			if fetchErr != nil {
				return nil, fetchErr
			}
			costsRaw = f
			return &model.PhaseResult{
				Metadata: map[string]any{"rows": f.Len()},
			}, nil
		})
	})
	g.Go(func() error {
		return trackPhase("1b_fetch_consumptions", func() (*model.PhaseResult, error) {
			f, fetchErr := fetch.LoadExtract(gCtx, p.cfg.Fetch, input.ConsumptionsFile)
			if fetchErr != nil {
				return nil, fetchErr
			}
			consumptionsRaw = f
			return &model.PhaseResult{
				Metadata: map[string]any{"rows": f.Len()},
			}, nil
		})
	})
	if err := g.Wait(); err != nil {
		return fail(eris.Wrap(err, "pipeline: fetch"))
	}

	// ===== Phase 2: clean =====
	setStatus(model.RunStatusCleaning)

	var costsClean, consumptionsClean *dataset.Frame

	err = trackPhase("2a_clean_costs", func() (*model.PhaseResult, error) {
		f, report, cleanErr := Clean(config.DatasetCosts, p.specs[config.DatasetCosts], costsRaw)
		if cleanErr != nil {
			return nil, cleanErr
		}
		costsClean = f
		result.CostsCleaning = &report
		return &model.PhaseResult{
			Metadata: map[string]any{
				"initial_rows": report.InitialRows,
				"final_rows":   report.FinalRows,
				"invalid_rows": report.InvalidRows,
			},
		}, nil
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: clean costs"))
	}

	err = trackPhase("2b_clean_consumptions", func() (*model.PhaseResult, error) {
		f, report, cleanErr := Clean(config.DatasetConsumptions, p.specs[config.DatasetConsumptions], consumptionsRaw)
		if cleanErr != nil {
			return nil, cleanErr
		}
		consumptionsClean = f
		result.ConsumptionsCleaning = &report
		return &model.PhaseResult{
			Metadata: map[string]any{
				"initial_rows": report.InitialRows,
				"final_rows":   report.FinalRows,
				"invalid_rows": report.InvalidRows,
			},
		}, nil
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: clean consumptions"))
	}

	// ===== Phase 3: reconcile cost outliers =====
	setStatus(model.RunStatusReconciling)

	spec := p.specs[config.DatasetCosts]
	if spec.OutlierValueColumn != "" {
		err = trackPhase("3_reconcile_outliers", func() (*model.PhaseResult, error) {
			f, summary, recErr := outlier.Reconcile(ctx, costsClean, outlier.Params{
				ValueColumn:   spec.OutlierValueColumn,
				GroupColumn:   spec.OutlierGroupColumn,
				ZScore:        p.cfg.Outliers.ZScore,
				MinThreshold:  p.cfg.Outliers.MinThreshold,
				MaxIterations: p.cfg.Outliers.MaxIterations,
			})
			if recErr != nil {
				return nil, recErr
			}
			costsClean = f
			result.Outliers = &summary
			return &model.PhaseResult{
				Metadata: map[string]any{
					"initial_outliers":   summary.InitialOutliers,
					"replaced_outliers":  summary.ReplacedOutliers,
					"remaining_outliers": summary.RemainingOutliers,
					"iterations":         summary.Iterations,
				},
			}, nil
		})
		if err != nil {
			return fail(eris.Wrap(err, "pipeline: reconcile"))
		}
	}

	// ===== Phase 4: bind, merge, propagate =====
	setStatus(model.RunStatusPropagating)

	var consumptions []model.ConsumptionRecord

	err = trackPhase("4_propagate_costs", func() (*model.PhaseResult, error) {
		costs, bindErr := dataset.BindCostRecords(costsClean)
		if bindErr != nil {
			return nil, bindErr
		}
		rows, bindErr := dataset.BindConsumptionRecords(consumptionsClean)
		if bindErr != nil {
			return nil, bindErr
		}
		rows = dataset.MergeCosts(rows, costs)

		propagated, propResult, propErr := bom.Propagate(rows, bom.Params{
			SemiFinishedPrefix: p.cfg.Propagation.SemiFinishedPrefix,
			MaxIterations:      p.cfg.Propagation.MaxIterations,
		})
		if propErr != nil {
			return nil, propErr
		}
		consumptions = propagated
		result.Propagation = &propResult

		if !propResult.Complete() {
			log.Warn("pipeline: cost propagation incomplete",
				zap.Int("unresolved", propResult.Unresolved),
				zap.Strings("components", propResult.UnresolvedComponents),
			)
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"initial_unresolved": propResult.InitialUnresolved,
				"unresolved":         propResult.Unresolved,
				"resolved":           propResult.Resolved,
				"iterations":         propResult.Iterations,
			},
		}, nil
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: propagate"))
	}

	// ===== Phase 5: aggregate orders =====
	setStatus(model.RunStatusAggregating)

	var orders []model.OrderCost

	err = trackPhase("5_aggregate_orders", func() (*model.PhaseResult, error) {
		aggregated, summary := bom.AggregateOrders(consumptions)
		orders = aggregated
		result.Aggregation = &summary
		result.Orders = len(aggregated)
		return &model.PhaseResult{
			Metadata: map[string]any{
				"orders":            summary.Orders,
				"incomplete_orders": summary.IncompleteOrders,
			},
		}, nil
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: aggregate"))
	}

	// ===== Phase 6: persist and export =====
	err = trackPhase("6_persist", func() (*model.PhaseResult, error) {
		if saveErr := p.store.SaveOrderCosts(ctx, run.ID, orders); saveErr != nil {
			return nil, saveErr
		}
		path, exportErr := export.Write(p.cfg.Export, "order_costs_"+run.ID, orders)
		if exportErr != nil {
			return nil, exportErr
		}
		return &model.PhaseResult{
			Metadata: map[string]any{"export_path": path},
		}, nil
	})
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: persist"))
	}

	setStatus(model.RunStatusComplete)
	if saveErr := p.store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
	}

	log.Info("pipeline: costing run complete",
		zap.Int("orders", result.Orders),
		zap.Int("phases", len(result.Phases)),
	)

	return result, nil
}
