package core

import (
	"context"
)

// Ref is a deliverable actor address. Refs are handed to actors at
// construction time; there is no ambient directory to look them up in.
type Ref interface {
	// Name returns the human-readable name of the destination.
	Name() string

	// Deliver enqueues a message for the destination. The sender ref,
	// when non-nil, is where the destination addresses its reply.
	// Deliver never blocks on the destination's processing.
	Deliver(msg *Message, sender Ref) error
}

// Processor implements one actor's message handling. Process is
// invoked by the hosting actor once per inbound message, strictly
// sequentially.
//
// A returned error marks the attempt as failed and is retried by the
// hosting actor with backoff, so side effects inside Process must be
// idempotent. A structural rejection (such as a validation failure)
// is not an error: it is returned as a normal reply message.
type Processor interface {
	// Process handles a single message and returns the reply to send
	// to the sender, or nil when there is nothing to reply.
	Process(ctx context.Context, msg *Message, sender Ref) (*Message, error)
}

// Actor hosts a Processor with an isolated mailbox, per-job state
// tracking and retry handling. An Actor is itself a Ref.
type Actor interface {
	Ref

	// Start begins the Actor's message processing loop.
	// It should be called only once per Actor instance.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the Actor.
	// It will finish processing the current message before stopping.
	Stop() error

	// JobStatus returns the tracked record for a job, if any.
	JobStatus(jobID string) (JobRecord, bool)

	// CleanupJob removes the tracked record for a job. Records are
	// never removed implicitly.
	CleanupJob(jobID string)

	// Stats returns current runtime statistics for this Actor.
	Stats() ActorStats
}
