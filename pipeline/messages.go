// Package pipeline implements the four stage actors of the job
// pipeline and the wiring that connects them: validation, job
// management, analysis and response assembly.
package pipeline

import (
	"encoding/json"
	"time"
)

// Pipeline modes accepted at ingress.
const (
	ModeRDD       = "rdd"
	ModeDataframe = "dataframe"
)

// Tuning defaults applied when the optional configuration omits a
// field.
const (
	DefaultUnitCount  = 2
	DefaultMemorySize = "2g"
)

// TuningConfig tunes the remote transform stage.
type TuningConfig struct {
	// UnitCount is the declared number of parallel compute units
	UnitCount int `json:"unit_count" yaml:"unit_count"`

	// MemorySize per unit, as <number><k|m|g>
	MemorySize string `json:"memory_size" yaml:"memory_size"`
}

// SubmitRequest is the payload of a submit message.
type SubmitRequest struct {
	Data   []float64    `json:"data"`
	Mode   string       `json:"mode"`
	Tuning TuningConfig `json:"tuning"`
}

// ValidationFailure carries every failed check, in evaluation order.
type ValidationFailure struct {
	Errors []string `json:"errors"`
}

// StageStarted acknowledges a fire-and-forget dispatch.
type StageStarted struct {
	Stage string `json:"stage"`
}

// NormalizeOutcome is the normalize stage result as it travels
// between actors.
type NormalizeOutcome struct {
	Data     []float64 `json:"data"`
	Duration float64   `json:"duration_seconds"`

	// Raw is opaque collaborator output, passed through unparsed.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// TransformOutcome is the transform stage result as it travels
// between actors.
type TransformOutcome struct {
	Mode     string  `json:"mode"`
	Duration float64 `json:"duration_seconds"`

	// Comparative timings, present when the remote stage ran both
	// pipeline modes.
	RDDSeconds       float64 `json:"rdd_seconds,omitempty"`
	DataframeSeconds float64 `json:"dataframe_seconds,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

// CombinedResult stitches both stage results together.
type CombinedResult struct {
	JobID        string           `json:"job_id"`
	Mode         string           `json:"mode"`
	Tuning       TuningConfig     `json:"tuning"`
	Normalize    NormalizeOutcome `json:"normalize"`
	Transform    TransformOutcome `json:"transform"`
	TotalSeconds float64          `json:"total_processing_time"`
}

// JobCompleted is the payload of a job_complete message.
type JobCompleted struct {
	Result CombinedResult `json:"result"`

	// Location of the persisted combined result
	Location string `json:"location"`
}

// PerformanceMetrics describes where the job spent its time.
type PerformanceMetrics struct {
	NormalizeSeconds float64 `json:"normalize_seconds"`
	TransformSeconds float64 `json:"transform_seconds"`
	TotalSeconds     float64 `json:"total_seconds"`

	// Per-stage share of total elapsed time, in percent
	NormalizeShare float64 `json:"normalize_share"`
	TransformShare float64 `json:"transform_share"`

	// Mutual speedups, present when both mode timings were reported
	DataframeSpeedup float64 `json:"dataframe_speedup,omitempty"`
	RDDSpeedup       float64 `json:"rdd_speedup,omitempty"`

	// ParallelEfficiency is an estimate built on a fixed efficiency
	// assumption, not a measurement.
	ParallelEfficiency  float64 `json:"parallel_efficiency,omitempty"`
	EfficiencyEstimated bool    `json:"efficiency_estimated,omitempty"`
}

// QualityMetrics describes the normalized data quality.
type QualityMetrics struct {
	DataProcessed int     `json:"data_processed"`
	QualityScore  float64 `json:"quality_score"`
	Outliers      int     `json:"outliers_detected"`
	Missing       int     `json:"missing_values"`
}

// CostMetrics is a fixed linear cost model over the job timings.
type CostMetrics struct {
	ComputeUSD float64 `json:"compute_cost_usd"`
	StorageUSD float64 `json:"storage_cost_usd"`
	ClusterUSD float64 `json:"cluster_cost_usd"`
	TotalUSD   float64 `json:"total_cost_usd"`
}

// AnalysisReport bundles the derived metric groups.
type AnalysisReport struct {
	JobID           string             `json:"job_id"`
	Performance     PerformanceMetrics `json:"performance_metrics"`
	Quality         QualityMetrics     `json:"data_quality_metrics"`
	Cost            CostMetrics        `json:"cost_metrics"`
	ResultsLocation string             `json:"results_location,omitempty"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
}

// AnalysisCompleted is the payload of an analysis_complete message.
type AnalysisCompleted struct {
	Report AnalysisReport `json:"report"`

	// Location of the persisted analysis object
	Location string `json:"location"`
}

// Recommendations groups threshold-driven advice per concern.
type Recommendations struct {
	Performance []string `json:"performance"`
	Cost        []string `json:"cost_optimization"`
	Quality     []string `json:"data_quality"`
}

// ProcessingSummary is the headline timing block of a final response.
type ProcessingSummary struct {
	NormalizeSeconds float64 `json:"normalize_seconds"`
	TransformSeconds float64 `json:"transform_seconds"`
	TotalSeconds     float64 `json:"total_processing_time"`
	DataProcessed    int     `json:"data_processed"`
}

// FinalResponse is the client-facing success payload.
type FinalResponse struct {
	JobID           string             `json:"job_id"`
	Status          string             `json:"status"`
	StatusCode      int                `json:"status_code"`
	Summary         ProcessingSummary  `json:"processing_summary"`
	Performance     PerformanceMetrics `json:"performance_metrics"`
	Quality         QualityMetrics     `json:"data_quality"`
	Cost            CostMetrics        `json:"cost_analysis"`
	Recommendations Recommendations    `json:"recommendations"`
	Locations       map[string]string  `json:"locations,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// ErrorResponse is the client-facing failure payload.
type ErrorResponse struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	StatusCode  int       `json:"status_code"`
	Error       string    `json:"error"`
	Actor       string    `json:"actor,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
