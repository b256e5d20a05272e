package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keasley/jobflow/core"
	"github.com/keasley/jobflow/storage"
)

func sampleResult() CombinedResult {
	return CombinedResult{
		JobID:  "job-1",
		Mode:   ModeRDD,
		Tuning: TuningConfig{UnitCount: 2, MemorySize: "2g"},
		Normalize: NormalizeOutcome{
			Data:     []float64{-1, 0, 1},
			Duration: 0.05,
		},
		Transform: TransformOutcome{
			Mode:             ModeRDD,
			Duration:         0.15,
			RDDSeconds:       0.10,
			DataframeSeconds: 0.05,
		},
		TotalSeconds: 0.2,
	}
}

func TestAnalyzerProducesReport(t *testing.T) {
	store := storage.NewMemoryStore()
	next := core.NewInbox("response", 4)
	a := NewAnalyzer(store, next, nil)

	msg := core.NewMessage(core.KindJobComplete, "job-1", JobCompleted{
		Result:   sampleResult(),
		Location: storage.ResultsKey("job-1"),
	})
	reply, err := a.Process(context.Background(), msg, nil)
	require.NoError(t, err)
	require.Equal(t, core.KindAnalysisComplete, reply.Kind)

	done := reply.Payload.(AnalysisCompleted)
	report := done.Report
	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, storage.ResultsKey("job-1"), report.ResultsLocation)
	assert.Equal(t, storage.AnalysisKey("job-1"), done.Location)
	assert.False(t, report.AnalyzedAt.IsZero())

	// Report is persisted and forwarded downstream.
	_, err = store.Get(context.Background(), storage.AnalysisKey("job-1"))
	assert.NoError(t, err)
	select {
	case fwd := <-next.C():
		assert.Equal(t, core.KindAnalysisComplete, fwd.Kind)
	default:
		t.Fatal("analysis_complete was not forwarded")
	}
}

func TestPerfMetricsShares(t *testing.T) {
	m := perfMetrics(sampleResult())

	assert.InDelta(t, 25.0, m.NormalizeShare, 1e-9)
	assert.InDelta(t, 75.0, m.TransformShare, 1e-9)
	assert.InDelta(t, 2.0, m.DataframeSpeedup, 1e-9)
	assert.InDelta(t, 0.5, m.RDDSpeedup, 1e-9)

	// Parallel efficiency is a flagged estimate, not a measurement:
	// unit count times the fixed 80% assumption.
	assert.InDelta(t, 1.6, m.ParallelEfficiency, 1e-9)
	assert.True(t, m.EfficiencyEstimated)
}

func TestPerfMetricsSingleUnit(t *testing.T) {
	result := sampleResult()
	result.Tuning.UnitCount = 1

	m := perfMetrics(result)
	assert.Zero(t, m.ParallelEfficiency)
	assert.False(t, m.EfficiencyEstimated)
}

func TestPerfMetricsZeroTotal(t *testing.T) {
	m := perfMetrics(CombinedResult{})
	assert.Zero(t, m.NormalizeShare)
	assert.Zero(t, m.TransformShare)
}

func TestQualityMetricsCleanData(t *testing.T) {
	m := qualityMetrics([]float64{-1, -0.5, 0, 0.5, 1})

	assert.Equal(t, 5, m.DataProcessed)
	assert.Equal(t, 0, m.Outliers)
	assert.Equal(t, 0, m.Missing)
	assert.Equal(t, 1.0, m.QualityScore)
}

func TestQualityMetricsCountsOutliers(t *testing.T) {
	// 100 tight values and one far excursion
	data := make([]float64, 0, 101)
	for i := 0; i < 50; i++ {
		data = append(data, -0.1, 0.1)
	}
	data = append(data, 1000)

	m := qualityMetrics(data)
	assert.Equal(t, 1, m.Outliers)
	assert.InDelta(t, 100.0/101.0, m.QualityScore, 1e-9)
}

func TestQualityMetricsEmptyData(t *testing.T) {
	m := qualityMetrics(nil)
	assert.Equal(t, 0, m.DataProcessed)
	assert.Zero(t, m.QualityScore)
}

func TestCostMetricsBillingFloor(t *testing.T) {
	// A zero-duration stage still bills its one unit minimum.
	result := CombinedResult{
		Normalize: NormalizeOutcome{Duration: 0},
		Transform: TransformOutcome{Duration: 0.02},
	}
	m := costMetrics(result)
	assert.InDelta(t, 2*computeUnitPriceUSD, m.ComputeUSD, 1e-12)
}

func TestCostMetricsScalesWithDuration(t *testing.T) {
	result := sampleResult()
	m := costMetrics(result)

	// 0.05s normalize rounds up to one unit; 0.15s transform rounds
	// up to two.
	assert.InDelta(t, 3*computeUnitPriceUSD, m.ComputeUSD, 1e-12)
	assert.InDelta(t, storagePricePerGBUSD*assumedPayloadSizeGB, m.StorageUSD, 1e-12)
	assert.InDelta(t, clusterPricePerHrUSD*(0.15/3600), m.ClusterUSD, 1e-12)
	assert.InDelta(t, m.ComputeUSD+m.StorageUSD+m.ClusterUSD, m.TotalUSD, 1e-12)
}

func TestAnalyzerForwardsErrors(t *testing.T) {
	next := core.NewInbox("response", 4)
	a := NewAnalyzer(storage.NewMemoryStore(), next, nil)

	reply, err := a.Process(context.Background(),
		core.NewErrorMessage("job-1", assert.AnError, "job-manager"), nil)
	require.NoError(t, err)
	assert.Nil(t, reply)

	select {
	case fwd := <-next.C():
		assert.Equal(t, core.KindError, fwd.Kind)
	default:
		t.Fatal("error message was not forwarded")
	}
}

func TestAnalyzerRejectsUnexpectedKind(t *testing.T) {
	a := NewAnalyzer(storage.NewMemoryStore(), nil, nil)

	reply, err := a.Process(context.Background(),
		core.NewMessage(core.KindSubmit, "job-1", nil), nil)
	require.NoError(t, err)
	require.Equal(t, core.KindError, reply.Kind)
}
