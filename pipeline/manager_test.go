package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keasley/jobflow/compute"
	"github.com/keasley/jobflow/core"
	"github.com/keasley/jobflow/storage"
)

// fakeDispatcher records requests and dedupes per job and stage, the
// same contract the real dispatchers honor.
type fakeDispatcher struct {
	mu         sync.Mutex
	sink       compute.ResultSink
	normalize  []compute.NormalizeRequest
	transform  []compute.TransformRequest
	dispatched map[string]struct{}
	failWith   error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{dispatched: make(map[string]struct{})}
}

func (d *fakeDispatcher) Bind(sink compute.ResultSink) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}

func (d *fakeDispatcher) DispatchNormalize(ctx context.Context, req compute.NormalizeRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return d.failWith
	}
	key := req.JobID + "/" + compute.StageNormalize
	if _, seen := d.dispatched[key]; seen {
		return nil
	}
	d.dispatched[key] = struct{}{}
	d.normalize = append(d.normalize, req)
	return nil
}

func (d *fakeDispatcher) DispatchTransform(ctx context.Context, req compute.TransformRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return d.failWith
	}
	key := req.JobID + "/" + compute.StageTransform
	if _, seen := d.dispatched[key]; seen {
		return nil
	}
	d.dispatched[key] = struct{}{}
	d.transform = append(d.transform, req)
	return nil
}

type managerFixture struct {
	manager *Manager
	disp    *fakeDispatcher
	store   *storage.MemoryStore
	next    *core.Inbox
	client  *core.Inbox
}

func newManagerFixture() *managerFixture {
	disp := newFakeDispatcher()
	store := storage.NewMemoryStore()
	next := core.NewInbox("analysis", 8)
	return &managerFixture{
		manager: NewManager(disp, store, next, nil),
		disp:    disp,
		store:   store,
		next:    next,
		client:  core.NewInbox("client", 8),
	}
}

func (f *managerFixture) acceptJob(t *testing.T, jobID string) {
	t.Helper()

	msg := core.NewMessage(core.KindValidationSuccess, jobID, SubmitRequest{
		Data:   []float64{1, 2, 3},
		Mode:   ModeRDD,
		Tuning: TuningConfig{UnitCount: 2, MemorySize: "2g"},
	})
	reply, err := f.manager.Process(context.Background(), msg, f.client)
	require.NoError(t, err)
	require.Equal(t, core.KindNormalizeStarted, reply.Kind)
}

func TestManagerDispatchesNormalize(t *testing.T) {
	f := newManagerFixture()
	f.acceptJob(t, "job-1")

	require.Len(t, f.disp.normalize, 1)
	assert.Equal(t, "job-1", f.disp.normalize[0].JobID)
	assert.Equal(t, []float64{1, 2, 3}, f.disp.normalize[0].Data)

	// A retried attempt re-issues the dispatch; the dedupe keeps the
	// remote stage single-invoked.
	f.acceptJob(t, "job-1")
	assert.Len(t, f.disp.normalize, 1)
}

func TestManagerPersistsAndDispatchesTransform(t *testing.T) {
	f := newManagerFixture()
	f.acceptJob(t, "job-1")

	msg := core.NewMessage(core.KindNormalizeComplete, "job-1", NormalizeOutcome{
		Data:     []float64{-1, 0, 1},
		Duration: 0.05,
	})
	reply, err := f.manager.Process(context.Background(), msg, nil)
	require.NoError(t, err)
	require.Equal(t, core.KindTransformStarted, reply.Kind)

	// Normalized data is persisted under the job's deterministic key.
	body, err := f.store.Get(context.Background(), storage.NormalizedKey("job-1"))
	require.NoError(t, err)
	var stored []float64
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, []float64{-1, 0, 1}, stored)

	require.Len(t, f.disp.transform, 1)
	req := f.disp.transform[0]
	assert.Equal(t, storage.NormalizedKey("job-1"), req.DataRef)
	assert.Equal(t, ModeRDD, req.Mode)
	assert.Equal(t, 2, req.UnitCount)

	// The dispatch acknowledgement reaches the tracked client.
	select {
	case ack := <-f.client.C():
		assert.Equal(t, core.KindTransformStarted, ack.Kind)
	default:
		t.Fatal("transform_started was not delivered to the client")
	}
}

func TestManagerStageHandlingIsIdempotent(t *testing.T) {
	f := newManagerFixture()
	f.acceptJob(t, "job-1")

	msg := core.NewMessage(core.KindNormalizeComplete, "job-1", NormalizeOutcome{
		Data:     []float64{-1, 0, 1},
		Duration: 0.05,
	})

	// A retried attempt repeats the persist and dispatch; the key is
	// stable and the dispatcher dedupes, so the effect is unchanged.
	_, err := f.manager.Process(context.Background(), msg, nil)
	require.NoError(t, err)
	_, err = f.manager.Process(context.Background(), msg, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.disp.transform, 1)
}

func TestManagerCombinesResults(t *testing.T) {
	f := newManagerFixture()
	f.acceptJob(t, "job-1")

	_, err := f.manager.Process(context.Background(),
		core.NewMessage(core.KindNormalizeComplete, "job-1", NormalizeOutcome{
			Data:     []float64{-1, 0, 1},
			Duration: 0.05,
		}), nil)
	require.NoError(t, err)
	<-f.client.C() // transform_started

	reply, err := f.manager.Process(context.Background(),
		core.NewMessage(core.KindTransformComplete, "job-1", TransformOutcome{
			Mode:             ModeRDD,
			Duration:         0.08,
			RDDSeconds:       0.05,
			DataframeSeconds: 0.03,
		}), nil)
	require.NoError(t, err)
	require.Equal(t, core.KindJobComplete, reply.Kind)

	done := reply.Payload.(JobCompleted)
	assert.InDelta(t, 0.13, done.Result.TotalSeconds, 1e-9)
	assert.Equal(t, storage.ResultsKey("job-1"), done.Location)

	// Forwarded downstream with the client as sender, and echoed to
	// the client directly.
	select {
	case fwd := <-f.next.C():
		assert.Equal(t, core.KindJobComplete, fwd.Kind)
	default:
		t.Fatal("job_complete was not forwarded to analysis")
	}
	select {
	case echo := <-f.client.C():
		assert.Equal(t, core.KindJobComplete, echo.Kind)
	default:
		t.Fatal("job_complete was not delivered to the client")
	}

	_, err = f.store.Get(context.Background(), storage.ResultsKey("job-1"))
	assert.NoError(t, err)
}

func TestManagerReleasesStateOnCompletion(t *testing.T) {
	f := newManagerFixture()
	f.acceptJob(t, "job-1")

	_, err := f.manager.Process(context.Background(),
		core.NewMessage(core.KindNormalizeComplete, "job-1", NormalizeOutcome{
			Data:     []float64{-1, 0, 1},
			Duration: 0.05,
		}), nil)
	require.NoError(t, err)
	<-f.client.C() // transform_started

	_, err = f.manager.Process(context.Background(),
		core.NewMessage(core.KindTransformComplete, "job-1", TransformOutcome{
			Mode:     ModeRDD,
			Duration: 0.08,
		}), nil)
	require.NoError(t, err)

	// Completed jobs leave no tracked state behind.
	assert.Nil(t, f.manager.lookup("job-1"))
}

func TestManagerReturnsErrorOnDispatchFailure(t *testing.T) {
	f := newManagerFixture()
	f.disp.failWith = errors.New("broker unavailable")

	msg := core.NewMessage(core.KindValidationSuccess, "job-1", SubmitRequest{
		Data: []float64{1},
		Mode: ModeRDD,
	})
	_, err := f.manager.Process(context.Background(), msg, f.client)
	assert.Error(t, err)
}

func TestManagerRejectsUnknownJobCompletion(t *testing.T) {
	f := newManagerFixture()

	reply, err := f.manager.Process(context.Background(),
		core.NewMessage(core.KindNormalizeComplete, "ghost", NormalizeOutcome{}), nil)
	require.NoError(t, err)
	require.Equal(t, core.KindError, reply.Kind)
}

func TestManagerDropsStateOnError(t *testing.T) {
	f := newManagerFixture()
	f.acceptJob(t, "job-1")

	errMsg := core.NewErrorMessage("job-1", errors.New("normalize stage failed"), "compute")
	reply, err := f.manager.Process(context.Background(), errMsg, nil)
	require.NoError(t, err)
	assert.Nil(t, reply)

	// Error travels downstream toward the responder.
	select {
	case fwd := <-f.next.C():
		assert.Equal(t, core.KindError, fwd.Kind)
	default:
		t.Fatal("error was not forwarded")
	}

	// A late completion for the abandoned job is rejected.
	late, err := f.manager.Process(context.Background(),
		core.NewMessage(core.KindNormalizeComplete, "job-1", NormalizeOutcome{}), nil)
	require.NoError(t, err)
	assert.Equal(t, core.KindError, late.Kind)
}

func TestSinkConvertsResultsToMessages(t *testing.T) {
	target := core.NewInbox("job-manager", 8)
	sink := Sink(target, nil)

	sink.NormalizeDone(compute.NormalizeResult{JobID: "job-1", Data: []float64{0}, Duration: 0.01})
	sink.TransformDone(compute.TransformResult{JobID: "job-1", Mode: ModeRDD, Duration: 0.02})
	sink.StageFailed("job-2", compute.StageTransform, errors.New("oom"))

	kinds := make([]core.Kind, 0, 3)
	for i := 0; i < 3; i++ {
		select {
		case msg := <-target.C():
			kinds = append(kinds, msg.Kind)
		default:
			t.Fatal("missing converted message")
		}
	}
	assert.Equal(t, []core.Kind{
		core.KindNormalizeComplete,
		core.KindTransformComplete,
		core.KindError,
	}, kinds)
}
