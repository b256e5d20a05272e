package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keasley/jobflow/core"
	"github.com/keasley/jobflow/storage"
)

// Recommendation thresholds.
const (
	normalizeShareAdviceLimit = 10.0
	transformShareAdviceLimit = 80.0
	dataframeSpeedupLimit     = 1.5
	clusterCostShareLimit     = 0.7
	totalCostAdviceLimitUSD   = 1.0
	qualityScoreAdviceLimit   = 0.9
)

// Responder assembles the client-facing terminal payload, successful
// or not. It is the last stage; nothing is forwarded further.
type Responder struct {
	logger *slog.Logger
}

// NewResponder creates the response assembly processor.
func NewResponder(logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger}
}

// Process handles one inbound message.
func (r *Responder) Process(ctx context.Context, msg *core.Message, sender core.Ref) (*core.Message, error) {
	switch msg.Kind {
	case core.KindAnalysisComplete:
		return r.success(msg)

	case core.KindError:
		return r.failure(msg), nil

	default:
		r.logger.Warn("unexpected message kind", "kind", msg.Kind.String(), "job_id", msg.JobID)
		return core.NewMessage(core.KindErrorResponseReady, msg.JobID, ErrorResponse{
			JobID:       msg.JobID,
			Status:      "error",
			StatusCode:  500,
			Error:       fmt.Sprintf("unexpected message kind %s", msg.Kind),
			Actor:       "response",
			GeneratedAt: time.Now().UTC(),
		}), nil
	}
}

func (r *Responder) success(msg *core.Message) (*core.Message, error) {
	done, ok := msg.Payload.(AnalysisCompleted)
	if !ok {
		return core.NewMessage(core.KindErrorResponseReady, msg.JobID, ErrorResponse{
			JobID:       msg.JobID,
			Status:      "error",
			StatusCode:  500,
			Error:       fmt.Sprintf("analysis_complete payload has unexpected type %T", msg.Payload),
			Actor:       "response",
			GeneratedAt: time.Now().UTC(),
		}), nil
	}

	report := done.Report
	resp := FinalResponse{
		JobID:      msg.JobID,
		Status:     "success",
		StatusCode: 200,
		Summary: ProcessingSummary{
			NormalizeSeconds: report.Performance.NormalizeSeconds,
			TransformSeconds: report.Performance.TransformSeconds,
			TotalSeconds:     report.Performance.TotalSeconds,
			DataProcessed:    report.Quality.DataProcessed,
		},
		Performance:     report.Performance,
		Quality:         report.Quality,
		Cost:            report.Cost,
		Recommendations: recommend(report),
		Locations: map[string]string{
			"normalized": storage.NormalizedKey(msg.JobID),
			"results":    report.ResultsLocation,
			"analysis":   done.Location,
		},
		GeneratedAt: time.Now().UTC(),
	}

	r.logger.Info("final response ready", "job_id", msg.JobID,
		"status_code", resp.StatusCode, "total_seconds", resp.Summary.TotalSeconds)
	return core.NewMessage(core.KindFinalResponseReady, msg.JobID, resp), nil
}

func (r *Responder) failure(msg *core.Message) *core.Message {
	resp := ErrorResponse{
		JobID:       msg.JobID,
		Status:      "error",
		StatusCode:  500,
		GeneratedAt: time.Now().UTC(),
	}
	if info, ok := msg.Payload.(core.ErrorInfo); ok {
		resp.Error = info.Error
		resp.Actor = info.Actor
	} else {
		resp.Error = "job failed"
	}

	r.logger.Warn("error response ready", "job_id", msg.JobID, "actor", resp.Actor)
	return core.NewMessage(core.KindErrorResponseReady, msg.JobID, resp)
}

// recommend turns the report metrics into threshold-driven advice.
func recommend(report AnalysisReport) Recommendations {
	rec := Recommendations{
		Performance: []string{},
		Cost:        []string{},
		Quality:     []string{},
	}

	perf := report.Performance
	if perf.NormalizeShare < normalizeShareAdviceLimit {
		rec.Performance = append(rec.Performance,
			"normalize stage is a small fraction of the run; larger batches would amortize its overhead")
	}
	if perf.TransformShare > transformShareAdviceLimit {
		rec.Performance = append(rec.Performance,
			"transform stage dominates processing time; consider raising unit_count")
	}
	if perf.DataframeSpeedup > dataframeSpeedupLimit {
		rec.Performance = append(rec.Performance,
			fmt.Sprintf("dataframe mode was %.1fx faster; consider mode=dataframe for this workload",
				perf.DataframeSpeedup))
	}

	cost := report.Cost
	if cost.TotalUSD > 0 && cost.ClusterUSD > clusterCostShareLimit*cost.TotalUSD {
		rec.Cost = append(rec.Cost,
			"cluster time dominates cost; shorter transform runs or smaller units would reduce spend")
	}
	if cost.TotalUSD > totalCostAdviceLimitUSD {
		rec.Cost = append(rec.Cost,
			fmt.Sprintf("total cost $%.2f exceeds budget guidance; review tuning configuration", cost.TotalUSD))
	}

	quality := report.Quality
	if quality.QualityScore < qualityScoreAdviceLimit {
		rec.Quality = append(rec.Quality,
			fmt.Sprintf("quality score %.2f is below 0.90; inspect the input for bad records",
				quality.QualityScore))
	}
	if quality.Outliers > 0 {
		rec.Quality = append(rec.Quality,
			fmt.Sprintf("%d outliers detected; consider filtering before submission", quality.Outliers))
	}
	return rec
}
