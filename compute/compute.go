// Package compute adapts the pipeline to its remote compute stages.
// The normalize and transform services are opaque collaborators: a
// dispatch is fire-and-forget, and the outcome arrives later through
// the ResultSink as an independent event.
package compute

import (
	"context"
	"encoding/json"
)

// NormalizeRequest is the payload sent to the remote normalize stage.
type NormalizeRequest struct {
	JobID string    `json:"job_id"`
	Data  []float64 `json:"data"`
}

// TransformRequest is the payload sent to the remote transform stage.
// DataRef points at the normalized data in the object store.
type TransformRequest struct {
	JobID      string `json:"job_id"`
	DataRef    string `json:"data_ref"`
	Mode       string `json:"mode"`
	UnitCount  int    `json:"unit_count"`
	MemorySize string `json:"memory_size"`
}

// NormalizeResult is the remote normalize stage outcome.
type NormalizeResult struct {
	JobID    string    `json:"job_id"`
	Data     []float64 `json:"data"`
	Duration float64   `json:"duration_seconds"`

	// Raw is the collaborator-produced payload this core passes
	// through without interpreting.
	Raw json.RawMessage `json:"raw,omitempty"`

	// Error is set when the remote stage failed.
	Error string `json:"error,omitempty"`
}

// TransformResult is the remote transform stage outcome.
type TransformResult struct {
	JobID    string  `json:"job_id"`
	Mode     string  `json:"mode"`
	Duration float64 `json:"duration_seconds"`

	// Comparative timings, present when the remote stage ran both
	// pipeline modes.
	RDDSeconds       float64 `json:"rdd_seconds,omitempty"`
	DataframeSeconds float64 `json:"dataframe_seconds,omitempty"`

	Raw   json.RawMessage `json:"raw,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ResultSink receives stage outcomes. The pipeline binds a sink that
// converts outcomes into inbound messages for the job manager.
type ResultSink interface {
	NormalizeDone(res NormalizeResult)
	TransformDone(res TransformResult)
	StageFailed(jobID, stage string, err error)
}

// Dispatcher starts remote compute stages. Dispatching the same
// (job, stage) pair twice must not invoke the remote service twice:
// a retried dispatch is a no-op once the first one was accepted.
type Dispatcher interface {
	// Bind connects the sink that receives stage outcomes. It must be
	// called before the first dispatch.
	Bind(sink ResultSink)

	// DispatchNormalize starts the normalize stage and returns
	// immediately.
	DispatchNormalize(ctx context.Context, req NormalizeRequest) error

	// DispatchTransform starts the transform stage and returns
	// immediately.
	DispatchTransform(ctx context.Context, req TransformRequest) error
}

// Stage names used in dispatch bookkeeping and failure reports.
const (
	StageNormalize = "normalize"
	StageTransform = "transform"
)
