package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keasley/jobflow/compute"
	"github.com/keasley/jobflow/core"
	"github.com/keasley/jobflow/storage"
)

// Options configures a System.
type Options struct {
	// Validation is the gatekeeper's limits. Zero fields take defaults.
	Validation ValidatorConfig

	// MailboxSize applies to every stage actor.
	MailboxSize int

	// ProcessTimeout bounds each processing attempt.
	ProcessTimeout time.Duration

	// MaxRetries is the per-job retry ceiling in each stage actor.
	MaxRetries int

	// BackoffUnit is the base retry delay, doubled per attempt.
	BackoffUnit time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns the standard system configuration.
func DefaultOptions() Options {
	base := core.DefaultActorOptions()
	return Options{
		Validation:     DefaultValidatorConfig(),
		MailboxSize:    base.MailboxSize,
		ProcessTimeout: base.ProcessTimeout,
		MaxRetries:     base.MaxRetries,
		BackoffUnit:    base.BackoffUnit,
	}
}

// System assembles the four stage actors into one pipeline. Actor
// references are injected at construction; each stage only knows the
// next one.
type System struct {
	validation core.Actor
	manager    core.Actor
	analysis   core.Actor
	response   core.Actor

	disp   compute.Dispatcher
	logger *slog.Logger
}

// NewSystem wires the pipeline back to front so each stage receives
// its successor's address, then binds the compute dispatcher's results
// to the job manager.
func NewSystem(disp compute.Dispatcher, store storage.Store, opts Options) *System {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	actorOpts := func(name string) core.ActorOptions {
		return core.ActorOptions{
			Name:           name,
			MailboxSize:    opts.MailboxSize,
			ProcessTimeout: opts.ProcessTimeout,
			MaxRetries:     opts.MaxRetries,
			BackoffUnit:    opts.BackoffUnit,
			Logger:         logger,
		}
	}

	response := core.NewActor(NewResponder(logger), actorOpts("response"))
	analysis := core.NewActor(NewAnalyzer(store, response, logger), actorOpts("analysis"))
	manager := core.NewActor(NewManager(disp, store, analysis, logger), actorOpts("job-manager"))
	validation := core.NewActor(NewValidator(opts.Validation, manager, logger), actorOpts("validation"))

	disp.Bind(Sink(manager, logger))

	return &System{
		validation: validation,
		manager:    manager,
		analysis:   analysis,
		response:   response,
		disp:       disp,
		logger:     logger,
	}
}

// Start launches every stage actor.
func (s *System) Start(ctx context.Context) error {
	for _, a := range s.actors() {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", a.Name(), err)
		}
	}
	s.logger.Info("pipeline started")
	return nil
}

// Shutdown stops the stage actors front to back so in-flight work can
// drain downstream.
func (s *System) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, a := range s.actors() {
		if err := a.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", a.Name(), err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	s.logger.Info("pipeline stopped")
	return firstErr
}

// Submit starts a new job and returns its generated identifier. All
// progress and terminal messages for the job are delivered to replyTo.
func (s *System) Submit(data []float64, mode string, tuning TuningConfig, replyTo core.Ref) (string, error) {
	jobID := uuid.NewString()

	msg := core.NewMessage(core.KindSubmit, jobID, SubmitRequest{
		Data:   data,
		Mode:   mode,
		Tuning: tuning,
	})
	if err := s.validation.Deliver(msg, replyTo); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}

	s.logger.Info("job submitted", "job_id", jobID, "mode", mode, "records", len(data))
	return jobID, nil
}

// Validation exposes the ingress actor for direct delivery.
func (s *System) Validation() core.Actor { return s.validation }

// Manager exposes the job management actor.
func (s *System) Manager() core.Actor { return s.manager }

// Stats returns per-actor runtime statistics, front to back.
func (s *System) Stats() []core.ActorStats {
	actors := s.actors()
	stats := make([]core.ActorStats, 0, len(actors))
	for _, a := range actors {
		stats = append(stats, a.Stats())
	}
	return stats
}

// CleanupJob removes the job's tracked state from every stage actor.
func (s *System) CleanupJob(jobID string) {
	for _, a := range s.actors() {
		a.CleanupJob(jobID)
	}
}

func (s *System) actors() []core.Actor {
	return []core.Actor{s.validation, s.manager, s.analysis, s.response}
}
