package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/keasley/jobflow/core"
	"github.com/keasley/jobflow/storage"
)

// Fixed model constants for the derived metrics. The parallel
// efficiency figure is an assumption, not a measurement, and is
// flagged as such in the report.
const (
	parallelEfficiencyEstimate = 0.8

	// computeUnitPriceUSD is the price of one 100ms billing unit.
	computeUnitPriceUSD   = 0.0000002083
	storagePricePerGBUSD  = 0.023
	clusterPricePerHrUSD  = 0.27
	assumedPayloadSizeGB  = 0.001
	outlierSigmaThreshold = 3.0
)

// Analyzer derives performance, quality and cost metrics from a
// completed job's combined result.
type Analyzer struct {
	store  storage.Store
	next   core.Ref
	logger *slog.Logger
}

// NewAnalyzer creates the analysis processor. next is the response
// actor's address.
func NewAnalyzer(store storage.Store, next core.Ref, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: store, next: next, logger: logger}
}

// Process handles one inbound message.
func (a *Analyzer) Process(ctx context.Context, msg *core.Message, sender core.Ref) (*core.Message, error) {
	switch msg.Kind {
	case core.KindJobComplete:
		return a.analyze(ctx, msg, sender)

	case core.KindError:
		a.forward(msg, sender)
		return nil, nil

	default:
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("unexpected message kind %s", msg.Kind), "analysis"), nil
	}
}

func (a *Analyzer) analyze(ctx context.Context, msg *core.Message, sender core.Ref) (*core.Message, error) {
	done, ok := msg.Payload.(JobCompleted)
	if !ok {
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("job_complete payload has unexpected type %T", msg.Payload), "analysis"), nil
	}

	report := AnalysisReport{
		JobID:           msg.JobID,
		Performance:     perfMetrics(done.Result),
		Quality:         qualityMetrics(done.Result.Normalize.Data),
		Cost:            costMetrics(done.Result),
		ResultsLocation: done.Location,
		AnalyzedAt:      time.Now().UTC(),
	}

	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode analysis report: %w", err)
	}
	key := storage.AnalysisKey(msg.JobID)
	if err := a.store.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("store analysis report: %w", err)
	}

	a.logger.Info("analysis complete", "job_id", msg.JobID,
		"quality_score", report.Quality.QualityScore,
		"total_cost_usd", report.Cost.TotalUSD, "location", key)

	out := core.NewMessage(core.KindAnalysisComplete, msg.JobID, AnalysisCompleted{
		Report:   report,
		Location: key,
	})
	a.forward(out, sender)
	return out, nil
}

// perfMetrics breaks the elapsed time down per stage and, when the
// transform stage ran both modes, compares them.
func perfMetrics(result CombinedResult) PerformanceMetrics {
	m := PerformanceMetrics{
		NormalizeSeconds: result.Normalize.Duration,
		TransformSeconds: result.Transform.Duration,
		TotalSeconds:     result.TotalSeconds,
	}

	if result.TotalSeconds > 0 {
		m.NormalizeShare = result.Normalize.Duration / result.TotalSeconds * 100
		m.TransformShare = result.Transform.Duration / result.TotalSeconds * 100
	}

	if result.Transform.RDDSeconds > 0 && result.Transform.DataframeSeconds > 0 {
		m.DataframeSpeedup = result.Transform.RDDSeconds / result.Transform.DataframeSeconds
		m.RDDSpeedup = result.Transform.DataframeSeconds / result.Transform.RDDSeconds
	}

	// Estimated sequential time over measured parallel time, under a
	// fixed 80% efficiency assumption. An estimate, not a measurement.
	if result.Tuning.UnitCount > 1 && result.Transform.Duration > 0 {
		m.ParallelEfficiency = float64(result.Tuning.UnitCount) * parallelEfficiencyEstimate
		m.EfficiencyEstimated = true
	}
	return m
}

// qualityMetrics scores the normalized output. Outliers are values
// more than three standard deviations from the mean; missing values
// are NaN or infinite entries.
func qualityMetrics(data []float64) QualityMetrics {
	m := QualityMetrics{DataProcessed: len(data)}
	if len(data) == 0 {
		return m
	}

	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m.Missing++
			continue
		}
		finite = append(finite, v)
	}

	if len(finite) > 0 {
		var sum float64
		for _, v := range finite {
			sum += v
		}
		mean := sum / float64(len(finite))

		var variance float64
		for _, v := range finite {
			variance += (v - mean) * (v - mean)
		}
		stddev := math.Sqrt(variance / float64(len(finite)))

		if stddev > 0 {
			for _, v := range finite {
				if math.Abs(v-mean) > outlierSigmaThreshold*stddev {
					m.Outliers++
				}
			}
		}
	}

	score := float64(len(data)-m.Missing-m.Outliers) / float64(len(data))
	m.QualityScore = math.Max(0, score)
	return m
}

// costMetrics applies the fixed linear pricing model to the job
// timings. Each compute stage is billed in 100ms units, rounded up,
// with a one unit minimum.
func costMetrics(result CombinedResult) CostMetrics {
	units := billingUnits(result.Normalize.Duration) + billingUnits(result.Transform.Duration)

	m := CostMetrics{
		ComputeUSD: float64(units) * computeUnitPriceUSD,
		StorageUSD: storagePricePerGBUSD * assumedPayloadSizeGB,
		ClusterUSD: clusterPricePerHrUSD * (result.Transform.Duration / 3600),
	}
	m.TotalUSD = m.ComputeUSD + m.StorageUSD + m.ClusterUSD
	return m
}

func billingUnits(seconds float64) int {
	units := int(math.Ceil(seconds * 10))
	if units < 1 {
		return 1
	}
	return units
}

func (a *Analyzer) forward(msg *core.Message, sender core.Ref) {
	if a.next == nil {
		return
	}
	if err := a.next.Deliver(msg, sender); err != nil {
		a.logger.Error("forward failed",
			"job_id", msg.JobID, "kind", msg.Kind.String(), "err", err)
	}
}
