package core

import (
	"log/slog"
	"time"
)

// Kind defines the type of message being sent. The set is closed:
// every actor matches exhaustively and rejects anything it does not
// handle through its default arm.
type Kind uint8

const (
	// KindSubmit is a new job entering the pipeline.
	KindSubmit Kind = iota

	// KindValidationSuccess carries the validated input, unchanged.
	KindValidationSuccess

	// KindValidationFailed carries the full list of validation errors.
	KindValidationFailed

	// KindNormalizeStarted acknowledges a normalize dispatch.
	KindNormalizeStarted

	// KindNormalizeComplete is the remote normalize stage outcome.
	KindNormalizeComplete

	// KindTransformStarted acknowledges a transform dispatch.
	KindTransformStarted

	// KindTransformComplete is the remote transform stage outcome.
	KindTransformComplete

	// KindJobComplete carries the combined stage results.
	KindJobComplete

	// KindAnalysisComplete carries the derived metric groups.
	KindAnalysisComplete

	// KindFinalResponseReady is the client-facing success payload.
	KindFinalResponseReady

	// KindErrorResponseReady is the client-facing failure payload.
	KindErrorResponseReady

	// KindError is a converted local failure escalated to the caller.
	KindError
)

// String returns the wire name of the message kind.
func (k Kind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindValidationSuccess:
		return "validation_success"
	case KindValidationFailed:
		return "validation_failed"
	case KindNormalizeStarted:
		return "normalize_started"
	case KindNormalizeComplete:
		return "normalize_complete"
	case KindTransformStarted:
		return "transform_started"
	case KindTransformComplete:
		return "transform_complete"
	case KindJobComplete:
		return "job_complete"
	case KindAnalysisComplete:
		return "analysis_complete"
	case KindFinalResponseReady:
		return "final_response_ready"
	case KindErrorResponseReady:
		return "error_response_ready"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is the immutable tagged envelope passed between actors.
// Payload holds the structured payload type for the Kind; actors
// assert the concrete type inside their Kind switch.
type Message struct {
	// Kind indicates the message category
	Kind Kind

	// JobID identifies the job this message belongs to.
	// It is assigned once at ingress and never mutated.
	JobID string

	// Timestamp when the message was created
	Timestamp time.Time

	// Payload contains the kind-specific payload
	Payload any
}

// NewMessage creates a message stamped with the current time.
func NewMessage(kind Kind, jobID string, payload any) *Message {
	return &Message{
		Kind:      kind,
		JobID:     jobID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// ErrorInfo is the payload of a KindError message.
type ErrorInfo struct {
	// Error describes the failure
	Error string `json:"error"`

	// JobID of the failed job
	JobID string `json:"job_id"`

	// Actor that converted the failure
	Actor string `json:"actor"`
}

// NewErrorMessage converts a local failure into an explicit
// error-typed message for the caller.
func NewErrorMessage(jobID string, err error, actor string) *Message {
	return NewMessage(KindError, jobID, ErrorInfo{
		Error: err.Error(),
		JobID: jobID,
		Actor: actor,
	})
}

// Stage represents one phase of the job pipeline.
type Stage uint8

const (
	// StageValidating means the job is being checked at ingress
	StageValidating Stage = iota

	// StageNormalizing means the normalize stage is in flight
	StageNormalizing

	// StageTransforming means the transform stage is in flight
	StageTransforming

	// StageAnalyzing means metrics are being derived
	StageAnalyzing

	// StageResponding means the client payload is being assembled
	StageResponding

	// StageDone means the job traversed all stages
	StageDone

	// StageFailed means the job terminated with an error
	StageFailed
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case StageValidating:
		return "validating"
	case StageNormalizing:
		return "normalizing"
	case StageTransforming:
		return "transforming"
	case StageAnalyzing:
		return "analyzing"
	case StageResponding:
		return "responding"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stageForKind maps an inbound message kind to the pipeline stage a
// job is in while that message is being processed.
func stageForKind(k Kind) Stage {
	switch k {
	case KindSubmit, KindValidationFailed:
		return StageValidating
	case KindValidationSuccess, KindNormalizeStarted:
		return StageNormalizing
	case KindNormalizeComplete, KindTransformStarted, KindTransformComplete:
		return StageTransforming
	case KindJobComplete:
		return StageAnalyzing
	case KindAnalysisComplete, KindError:
		return StageResponding
	case KindFinalResponseReady, KindErrorResponseReady:
		return StageDone
	default:
		return StageValidating
	}
}

// JobStatus represents the per-actor processing status of a job.
type JobStatus uint8

const (
	// JobProcessing means the actor is working on the job
	JobProcessing JobStatus = iota

	// JobCompleted means the actor finished its part of the job
	JobCompleted

	// JobFailed means the actor exhausted its retries for the job
	JobFailed
)

// String returns the string representation of JobStatus.
func (s JobStatus) String() string {
	switch s {
	case JobProcessing:
		return "processing"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobRecord tracks one job inside one actor. Records are private to
// the owning actor and removed only by an explicit cleanup call.
type JobRecord struct {
	// JobID of the tracked job
	JobID string

	// Stage the job is in at this actor
	Stage Stage

	// Status of the job at this actor
	Status JobStatus

	// StartTime is when the actor first saw the job
	StartTime time.Time

	// EndTime is when the actor last completed or failed the job
	EndTime time.Time

	// Retries spent on this job so far
	Retries int

	// LastError from the most recent failed attempt
	LastError string
}

// ActorState represents the current state of an Actor.
type ActorState uint8

const (
	// ActorStateIdle means the Actor is waiting for messages
	ActorStateIdle ActorState = iota

	// ActorStateRunning means the Actor is processing a message
	ActorStateRunning

	// ActorStateStopping means the Actor is shutting down
	ActorStateStopping

	// ActorStateStopped means the Actor has been stopped
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateRunning:
		return "running"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ActorOptions contains configuration options for creating an Actor.
type ActorOptions struct {
	// Name is a human-readable name for the Actor
	Name string

	// MailboxSize sets the size of the Actor's message queue
	MailboxSize int

	// ProcessTimeout bounds a single processing attempt
	ProcessTimeout time.Duration

	// MaxRetries is the retry ceiling per job for failed attempts
	MaxRetries int

	// BackoffUnit scales the exponential retry delay: the n-th retry
	// waits 2^n backoff units before re-invoking the processor.
	BackoffUnit time.Duration

	// Logger receives the actor's structured log output.
	// Defaults to slog.Default when nil.
	Logger *slog.Logger
}

// DefaultActorOptions returns sensible default options.
func DefaultActorOptions() ActorOptions {
	return ActorOptions{
		MailboxSize:    1000,
		ProcessTimeout: 30 * time.Second,
		MaxRetries:     3,
		BackoffUnit:    time.Second,
	}
}

// ActorStats contains runtime statistics for an Actor.
type ActorStats struct {
	// Name of the Actor
	Name string

	// Current state
	State ActorState

	// Total messages processed
	MessagesProcessed uint64

	// Messages currently in mailbox
	MailboxSize int

	// Jobs currently tracked
	TrackedJobs int

	// Time when Actor was created
	CreatedAt time.Time

	// Last message processing time
	LastMessageAt time.Time
}
