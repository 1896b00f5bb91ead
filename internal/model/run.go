package model

import "time"

// RunStatus tracks pipeline progress for a costing run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusCleaning    RunStatus = "cleaning"
	RunStatusReconciling RunStatus = "reconciling"
	RunStatusPropagating RunStatus = "propagating"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// RunInput identifies the extracts a run was started from.
type RunInput struct {
	CostsFile        string `json:"costs_file"`
	ConsumptionsFile string `json:"consumptions_file"`
}

// Run is one execution of the costing pipeline.
type Run struct {
	ID        string     `json:"id"`
	Input     RunInput   `json:"input"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PhaseStatus is the outcome of a single pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// RunPhase is a persisted phase record.
type RunPhase struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Name      string      `json:"name"`
	Status    PhaseStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
}

// PhaseResult captures the outcome and metadata of one phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResult is the full structured outcome of a costing run.
type RunResult struct {
	CostsCleaning        *CleaningReport     `json:"costs_cleaning,omitempty"`
	ConsumptionsCleaning *CleaningReport     `json:"consumptions_cleaning,omitempty"`
	Outliers             *OutlierSummary     `json:"outliers,omitempty"`
	Propagation          *PropagationResult  `json:"propagation,omitempty"`
	Aggregation          *AggregationSummary `json:"aggregation,omitempty"`
	Orders               int                 `json:"orders"`
	Phases               []PhaseResult       `json:"phases,omitempty"`
}
