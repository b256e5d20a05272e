package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Local runs the compute stages in-process, for demos and tests. The
// normalize stage applies a z-score transform; the transform stage
// produces summary timings per pipeline mode. Both report elapsed
// wall time the same way the remote services would.
type Local struct {
	mu         sync.Mutex
	sink       ResultSink
	dispatched map[string]struct{}
	normalized map[string][]float64
}

// NewLocal creates an unbound local dispatcher.
func NewLocal() *Local {
	return &Local{
		dispatched: make(map[string]struct{}),
		normalized: make(map[string][]float64),
	}
}

// Bind connects the result sink.
func (l *Local) Bind(sink ResultSink) {
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

// DispatchNormalize starts the simulated normalize stage.
func (l *Local) DispatchNormalize(ctx context.Context, req NormalizeRequest) error {
	sink, first, err := l.accept(req.JobID, StageNormalize)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	go func() {
		start := time.Now()
		data := normalize(req.Data)
		elapsed := time.Since(start).Seconds()

		l.mu.Lock()
		l.normalized[req.JobID] = data
		l.mu.Unlock()

		raw, _ := json.Marshal(map[string]any{
			"statistics": summarize(data),
		})
		sink.NormalizeDone(NormalizeResult{
			JobID:    req.JobID,
			Data:     data,
			Duration: elapsed,
			Raw:      raw,
		})
	}()
	return nil
}

// DispatchTransform starts the simulated transform stage.
func (l *Local) DispatchTransform(ctx context.Context, req TransformRequest) error {
	sink, first, err := l.accept(req.JobID, StageTransform)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	go func() {
		l.mu.Lock()
		data := l.normalized[req.JobID]
		l.mu.Unlock()

		start := time.Now()
		rddStats := summarize(data)
		rddSeconds := time.Since(start).Seconds()

		start = time.Now()
		dfStats := summarize(data)
		dfSeconds := time.Since(start).Seconds()

		raw, _ := json.Marshal(map[string]any{
			"rdd_statistics":       rddStats,
			"dataframe_statistics": dfStats,
			"unit_count":           req.UnitCount,
			"memory_size":          req.MemorySize,
			"data_ref":             req.DataRef,
		})
		sink.TransformDone(TransformResult{
			JobID:            req.JobID,
			Mode:             req.Mode,
			Duration:         rddSeconds + dfSeconds,
			RDDSeconds:       rddSeconds,
			DataframeSeconds: dfSeconds,
			Raw:              raw,
		})
	}()
	return nil
}

// accept records a dispatch and reports whether it is the first one
// for this (job, stage) pair.
func (l *Local) accept(jobID, stage string) (ResultSink, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sink == nil {
		return nil, false, errors.New("local dispatcher has no bound sink")
	}

	key := fmt.Sprintf("%s/%s", jobID, stage)
	if _, seen := l.dispatched[key]; seen {
		return l.sink, false, nil
	}
	l.dispatched[key] = struct{}{}
	return l.sink, true, nil
}

// Dispatched returns how many distinct (job, stage) pairs were
// actually started.
func (l *Local) Dispatched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.dispatched)
}

// normalize applies a z-score transform. A zero standard deviation is
// treated as one so constant inputs pass through centered.
func normalize(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}

	var sum float64
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	var variance float64
	for _, v := range data {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(data)))
	if std == 0 {
		std = 1
	}

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = (v - mean) / std
	}
	return out
}

// summarize computes the basic statistics the remote stages report.
func summarize(data []float64) map[string]float64 {
	if len(data) == 0 {
		return map[string]float64{"count": 0}
	}

	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += v
	}
	mean := sum / float64(len(data))

	var variance float64
	for _, v := range data {
		d := v - mean
		variance += d * d
	}

	return map[string]float64{
		"count": float64(len(data)),
		"min":   minVal,
		"max":   maxVal,
		"mean":  mean,
		"std":   math.Sqrt(variance / float64(len(data))),
	}
}
