package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// envelope pairs an inbound message with the sender's reply address.
type envelope struct {
	msg    *Message
	sender Ref
}

// actor implements the Actor interface.
type actor struct {
	name string
	proc Processor

	// Channel for receiving messages
	mailbox chan envelope

	// Context for controlling the actor lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for graceful shutdown
	wg sync.WaitGroup

	// Atomic counters for statistics
	state             int32 // ActorState
	messagesProcessed uint64
	createdAt         time.Time
	lastMessageAt     int64 // Unix timestamp

	// Per-job tracking, private to this actor
	jobs *jobTracker

	logger *slog.Logger
	opts   ActorOptions
}

// NewActor creates a new Actor hosting the given processor.
func NewActor(proc Processor, opts ActorOptions) Actor {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultActorOptions().MailboxSize
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultActorOptions().ProcessTimeout
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = DefaultActorOptions().BackoffUnit
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &actor{
		name:      opts.Name,
		proc:      proc,
		mailbox:   make(chan envelope, opts.MailboxSize),
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
		jobs:      newJobTracker(),
		logger:    logger.With("actor", opts.Name),
		opts:      opts,
	}

	atomic.StoreInt32(&a.state, int32(ActorStateIdle))

	return a
}

// Name returns the actor's name.
func (a *actor) Name() string {
	return a.name
}

// Start begins the actor's message processing loop.
func (a *actor) Start(ctx context.Context) error {
	currentState := ActorState(atomic.LoadInt32(&a.state))
	if currentState != ActorStateIdle {
		return fmt.Errorf("actor %s is already started (state: %s)", a.name, currentState)
	}

	a.wg.Add(1)
	go a.messageLoop()

	return nil
}

// Stop gracefully shuts down the actor.
func (a *actor) Stop() error {
	if !atomic.CompareAndSwapInt32(&a.state, int32(ActorStateIdle), int32(ActorStateStopping)) &&
		!atomic.CompareAndSwapInt32(&a.state, int32(ActorStateRunning), int32(ActorStateStopping)) {
		return fmt.Errorf("actor %s cannot be stopped from state %s",
			a.name, ActorState(atomic.LoadInt32(&a.state)))
	}

	a.cancel()
	a.wg.Wait()

	atomic.StoreInt32(&a.state, int32(ActorStateStopped))

	return nil
}

// Deliver enqueues a message into this actor's mailbox.
func (a *actor) Deliver(msg *Message, sender Ref) error {
	currentState := ActorState(atomic.LoadInt32(&a.state))
	if currentState == ActorStateStopped || currentState == ActorStateStopping {
		return fmt.Errorf("actor %s is not running (state: %s)", a.name, currentState)
	}

	select {
	case a.mailbox <- envelope{msg: msg, sender: sender}:
		return nil
	case <-a.ctx.Done():
		return fmt.Errorf("actor %s is shutting down", a.name)
	default:
		return fmt.Errorf("actor %s mailbox is full", a.name)
	}
}

// JobStatus returns the tracked record for a job, if any.
func (a *actor) JobStatus(jobID string) (JobRecord, bool) {
	return a.jobs.get(jobID)
}

// CleanupJob removes the tracked record for a job.
func (a *actor) CleanupJob(jobID string) {
	a.jobs.remove(jobID)
}

// Stats returns current runtime statistics for this actor.
func (a *actor) Stats() ActorStats {
	lastMsg := atomic.LoadInt64(&a.lastMessageAt)
	var lastMessageAt time.Time
	if lastMsg > 0 {
		lastMessageAt = time.Unix(lastMsg, 0)
	}

	return ActorStats{
		Name:              a.name,
		State:             ActorState(atomic.LoadInt32(&a.state)),
		MessagesProcessed: atomic.LoadUint64(&a.messagesProcessed),
		MailboxSize:       len(a.mailbox),
		TrackedJobs:       a.jobs.count(),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}

// messageLoop is the main processing loop for the actor.
func (a *actor) messageLoop() {
	defer a.wg.Done()

	for {
		select {
		case env := <-a.mailbox:
			if env.msg == nil {
				continue
			}
			a.processEnvelope(env)

		case <-a.ctx.Done():
			return
		}
	}
}

// processEnvelope handles a single message, applying the retry policy.
func (a *actor) processEnvelope(env envelope) {
	msg := env.msg

	atomic.StoreInt32(&a.state, int32(ActorStateRunning))
	defer atomic.StoreInt32(&a.state, int32(ActorStateIdle))

	atomic.AddUint64(&a.messagesProcessed, 1)
	atomic.StoreInt64(&a.lastMessageAt, time.Now().Unix())

	// A job this actor already failed gets no further transitions.
	if a.jobs.failed(msg.JobID) {
		a.logger.Warn("dropping message for failed job",
			"job_id", msg.JobID, "kind", msg.Kind.String())
		return
	}

	a.jobs.touch(msg.JobID, stageForKind(msg.Kind))
	a.logger.Info("received message", "job_id", msg.JobID, "kind", msg.Kind.String())

	for {
		reply, err := a.processOnce(env)
		if err == nil {
			a.jobs.complete(msg.JobID)
			a.reply(env.sender, reply)
			return
		}

		if a.jobs.retries(msg.JobID) >= a.opts.MaxRetries {
			a.escalate(env, err)
			return
		}

		retries := a.jobs.bumpRetry(msg.JobID, err)
		delay := a.opts.BackoffUnit * time.Duration(1<<retries)
		a.logger.Warn("retrying job",
			"job_id", msg.JobID, "kind", msg.Kind.String(),
			"attempt", retries, "delay", delay, "err", err)

		// The wait defers only this actor's own loop.
		select {
		case <-time.After(delay):
		case <-a.ctx.Done():
			return
		}
	}
}

// processOnce runs a single bounded processing attempt.
func (a *actor) processOnce(env envelope) (reply *Message, err error) {
	ctx, cancel := context.WithTimeout(a.ctx, a.opts.ProcessTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = fmt.Errorf("panic in processor: %v", r)
		}
	}()

	return a.proc.Process(ctx, env.msg, env.sender)
}

// escalate marks the job failed and converts the failure into an
// explicit error message for the sender. There is no rollback of
// partial effects.
func (a *actor) escalate(env envelope, err error) {
	msg := env.msg
	a.jobs.fail(msg.JobID, err)
	a.logger.Error("retries exhausted",
		"job_id", msg.JobID, "kind", msg.Kind.String(), "err", err)

	a.reply(env.sender, NewErrorMessage(msg.JobID, err, a.name))
}

// reply delivers a message back to the sender when both are present.
// Replies without a sender address are dropped.
func (a *actor) reply(sender Ref, msg *Message) {
	if sender == nil || msg == nil {
		return
	}
	if err := sender.Deliver(msg, a); err != nil {
		a.logger.Warn("reply delivery failed",
			"job_id", msg.JobID, "kind", msg.Kind.String(),
			"to", sender.Name(), "err", err)
	}
}
