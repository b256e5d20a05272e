package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/keasley/jobflow/compute"
	"github.com/keasley/jobflow/core"
	"github.com/keasley/jobflow/storage"
)

// managedJob is the Manager's private per-job pipeline state.
type managedJob struct {
	replyTo   core.Ref
	mode      string
	tuning    TuningConfig
	normalize *NormalizeOutcome
}

// Manager coordinates the two sequential external-compute calls:
// normalize, then transform. Both are dispatched fire-and-forget;
// their outcomes arrive later as separate inbound messages.
type Manager struct {
	disp   compute.Dispatcher
	store  storage.Store
	next   core.Ref
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*managedJob
}

// NewManager creates the job management processor. next is the
// analysis actor's address.
func NewManager(disp compute.Dispatcher, store storage.Store, next core.Ref, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		disp:   disp,
		store:  store,
		next:   next,
		logger: logger,
		jobs:   make(map[string]*managedJob),
	}
}

// Process handles one inbound message.
func (m *Manager) Process(ctx context.Context, msg *core.Message, sender core.Ref) (*core.Message, error) {
	switch msg.Kind {
	case core.KindValidationSuccess:
		return m.startNormalize(ctx, msg, sender)

	case core.KindNormalizeComplete:
		return m.startTransform(ctx, msg)

	case core.KindTransformComplete:
		return m.finishJob(ctx, msg)

	case core.KindError:
		// Compute failures arrive without a sender; restore the job's
		// reply address so the eventual error response reaches the
		// client.
		if job := m.lookup(msg.JobID); job != nil && sender == nil {
			sender = job.replyTo
		}
		m.abandon(msg.JobID)
		m.forward(msg, sender)
		return nil, nil

	default:
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("unexpected message kind %s", msg.Kind), "job-manager"), nil
	}
}

// startNormalize dispatches the normalize stage. The dispatch is
// idempotent, so a retried attempt re-issues the same request without
// double-invoking the remote service.
func (m *Manager) startNormalize(ctx context.Context, msg *core.Message, sender core.Ref) (*core.Message, error) {
	req, ok := msg.Payload.(SubmitRequest)
	if !ok {
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("validation_success payload has unexpected type %T", msg.Payload), "job-manager"), nil
	}

	m.mu.Lock()
	m.jobs[msg.JobID] = &managedJob{
		replyTo: sender,
		mode:    req.Mode,
		tuning:  req.Tuning,
	}
	m.mu.Unlock()

	err := m.disp.DispatchNormalize(ctx, compute.NormalizeRequest{
		JobID: msg.JobID,
		Data:  req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch normalize: %w", err)
	}

	m.logger.Info("normalize dispatched", "job_id", msg.JobID, "records", len(req.Data))
	return core.NewMessage(core.KindNormalizeStarted, msg.JobID,
		StageStarted{Stage: compute.StageNormalize}), nil
}

// startTransform persists the normalized data and dispatches the
// transform stage with a reference to it.
func (m *Manager) startTransform(ctx context.Context, msg *core.Message) (*core.Message, error) {
	outcome, ok := msg.Payload.(NormalizeOutcome)
	if !ok {
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("normalize_complete payload has unexpected type %T", msg.Payload), "job-manager"), nil
	}

	job := m.lookup(msg.JobID)
	if job == nil {
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("normalize_complete for unknown job"), "job-manager"), nil
	}

	body, err := json.Marshal(outcome.Data)
	if err != nil {
		return nil, fmt.Errorf("encode normalized data: %w", err)
	}
	key := storage.NormalizedKey(msg.JobID)
	if err := m.store.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("store normalized data: %w", err)
	}

	err = m.disp.DispatchTransform(ctx, compute.TransformRequest{
		JobID:      msg.JobID,
		DataRef:    key,
		Mode:       job.mode,
		UnitCount:  job.tuning.UnitCount,
		MemorySize: job.tuning.MemorySize,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch transform: %w", err)
	}

	m.mu.Lock()
	job.normalize = &outcome
	m.mu.Unlock()

	m.logger.Info("transform dispatched", "job_id", msg.JobID, "data_ref", key, "mode", job.mode)

	// Stage outcomes arrive without a sender; the acknowledgement goes
	// to the job's tracked reply address.
	started := core.NewMessage(core.KindTransformStarted, msg.JobID,
		StageStarted{Stage: compute.StageTransform})
	m.deliverTo(job.replyTo, started)
	return started, nil
}

// finishJob merges both stage results, persists the combination and
// emits job_complete.
func (m *Manager) finishJob(ctx context.Context, msg *core.Message) (*core.Message, error) {
	outcome, ok := msg.Payload.(TransformOutcome)
	if !ok {
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("transform_complete payload has unexpected type %T", msg.Payload), "job-manager"), nil
	}

	job := m.lookup(msg.JobID)
	if job == nil || job.normalize == nil {
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("transform_complete arrived before normalize_complete"), "job-manager"), nil
	}

	combined := CombinedResult{
		JobID:        msg.JobID,
		Mode:         job.mode,
		Tuning:       job.tuning,
		Normalize:    *job.normalize,
		Transform:    outcome,
		TotalSeconds: job.normalize.Duration + outcome.Duration,
	}

	body, err := json.Marshal(combined)
	if err != nil {
		return nil, fmt.Errorf("encode combined result: %w", err)
	}
	key := storage.ResultsKey(msg.JobID)
	if err := m.store.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("store combined result: %w", err)
	}

	m.logger.Info("job complete", "job_id", msg.JobID,
		"total_seconds", combined.TotalSeconds, "location", key)

	done := core.NewMessage(core.KindJobComplete, msg.JobID, JobCompleted{
		Result:   combined,
		Location: key,
	})
	m.forward(done, job.replyTo)
	m.deliverTo(job.replyTo, done)

	// The job is out of this actor's hands; release its state.
	m.abandon(msg.JobID)
	return done, nil
}

// Sink returns a compute.ResultSink that turns stage outcomes into
// inbound messages for the given actor (normally the manager's own
// hosting actor).
func Sink(target core.Ref, logger *slog.Logger) compute.ResultSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &computeSink{target: target, logger: logger}
}

type computeSink struct {
	target core.Ref
	logger *slog.Logger
}

func (s *computeSink) NormalizeDone(res compute.NormalizeResult) {
	s.deliver(core.NewMessage(core.KindNormalizeComplete, res.JobID, NormalizeOutcome{
		Data:     res.Data,
		Duration: res.Duration,
		Raw:      res.Raw,
	}))
}

func (s *computeSink) TransformDone(res compute.TransformResult) {
	s.deliver(core.NewMessage(core.KindTransformComplete, res.JobID, TransformOutcome{
		Mode:             res.Mode,
		Duration:         res.Duration,
		RDDSeconds:       res.RDDSeconds,
		DataframeSeconds: res.DataframeSeconds,
		Raw:              res.Raw,
	}))
}

func (s *computeSink) StageFailed(jobID, stage string, err error) {
	s.deliver(core.NewErrorMessage(jobID,
		fmt.Errorf("%s stage failed: %w", stage, err), "compute"))
}

func (s *computeSink) deliver(msg *core.Message) {
	if err := s.target.Deliver(msg, nil); err != nil {
		s.logger.Error("compute result delivery failed",
			"job_id", msg.JobID, "kind", msg.Kind.String(), "err", err)
	}
}

func (m *Manager) lookup(jobID string) *managedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[jobID]
}

// abandon drops the pipeline state for a job whose progression has
// halted.
func (m *Manager) abandon(jobID string) {
	m.mu.Lock()
	delete(m.jobs, jobID)
	m.mu.Unlock()
}

func (m *Manager) forward(msg *core.Message, sender core.Ref) {
	if m.next == nil {
		return
	}
	if err := m.next.Deliver(msg, sender); err != nil {
		m.logger.Error("forward failed",
			"job_id", msg.JobID, "kind", msg.Kind.String(), "err", err)
	}
}

func (m *Manager) deliverTo(ref core.Ref, msg *core.Message) {
	if ref == nil {
		return
	}
	if err := ref.Deliver(msg, nil); err != nil {
		m.logger.Warn("reply delivery failed",
			"job_id", msg.JobID, "kind", msg.Kind.String(), "err", err)
	}
}
