package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	"github.com/keasley/jobflow/core"
)

// Validation limits.
const (
	DefaultMaxDataSize  = 1000000
	DefaultMaxUnitCount = 10
)

// memorySizePattern accepts sizes like "2g", "512m", "64K".
var memorySizePattern = regexp.MustCompile(`(?i)^[0-9]+[kmg]$`)

// ValidatorConfig bounds what the gatekeeper accepts.
type ValidatorConfig struct {
	MaxDataSize  int
	MaxUnitCount int
}

// DefaultValidatorConfig returns the default validation limits.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxDataSize:  DefaultMaxDataSize,
		MaxUnitCount: DefaultMaxUnitCount,
	}
}

// Validator is the pipeline's gatekeeper stage. It rejects malformed
// jobs before any resource is committed. A rejection is a normal
// reply, never a retried failure.
type Validator struct {
	cfg    ValidatorConfig
	next   core.Ref
	logger *slog.Logger
}

// NewValidator creates the validation processor. next is the job
// manager's address; validated jobs are forwarded there.
func NewValidator(cfg ValidatorConfig, next core.Ref, logger *slog.Logger) *Validator {
	if cfg.MaxDataSize <= 0 {
		cfg.MaxDataSize = DefaultMaxDataSize
	}
	if cfg.MaxUnitCount <= 0 {
		cfg.MaxUnitCount = DefaultMaxUnitCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{cfg: cfg, next: next, logger: logger}
}

// Process handles one inbound message.
func (v *Validator) Process(ctx context.Context, msg *core.Message, sender core.Ref) (*core.Message, error) {
	switch msg.Kind {
	case core.KindSubmit:
		req, ok := msg.Payload.(SubmitRequest)
		if !ok {
			return core.NewErrorMessage(msg.JobID,
				fmt.Errorf("submit payload has unexpected type %T", msg.Payload), "validation"), nil
		}
		return v.validate(msg.JobID, req, sender), nil

	case core.KindError:
		// Converted failures travel downstream to the responder.
		v.forward(msg, sender)
		return nil, nil

	default:
		return core.NewErrorMessage(msg.JobID,
			fmt.Errorf("unexpected message kind %s", msg.Kind), "validation"), nil
	}
}

// validate runs every check and collects all failures; checks are
// never short-circuited.
func (v *Validator) validate(jobID string, req SubmitRequest, sender core.Ref) *core.Message {
	var errs []string

	errs = append(errs, v.checkData(req.Data)...)
	errs = append(errs, v.checkMode(req.Mode)...)

	tuning := req.Tuning
	if tuning.UnitCount == 0 {
		tuning.UnitCount = DefaultUnitCount
	}
	if tuning.MemorySize == "" {
		tuning.MemorySize = DefaultMemorySize
	}
	errs = append(errs, v.checkTuning(tuning)...)

	if len(errs) > 0 {
		v.logger.Warn("validation failed", "job_id", jobID, "errors", len(errs))
		return core.NewMessage(core.KindValidationFailed, jobID, ValidationFailure{Errors: errs})
	}

	// The data and mode pass through unchanged; tuning gains defaults
	// for omitted fields.
	out := core.NewMessage(core.KindValidationSuccess, jobID, SubmitRequest{
		Data:   req.Data,
		Mode:   req.Mode,
		Tuning: tuning,
	})
	v.forward(out, sender)
	return out
}

func (v *Validator) checkData(data []float64) []string {
	var errs []string

	if len(data) == 0 {
		errs = append(errs, "data cannot be empty")
	}
	if len(data) > v.cfg.MaxDataSize {
		errs = append(errs, fmt.Sprintf("data size (%d) exceeds maximum allowed (%d)",
			len(data), v.cfg.MaxDataSize))
	}
	for i, value := range data {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			errs = append(errs, fmt.Sprintf("element at index %d is not finite: %v", i, value))
		}
	}
	return errs
}

func (v *Validator) checkMode(mode string) []string {
	switch mode {
	case ModeRDD, ModeDataframe:
		return nil
	default:
		return []string{fmt.Sprintf("invalid pipeline mode: %q (must be one of %q, %q)",
			mode, ModeRDD, ModeDataframe)}
	}
}

func (v *Validator) checkTuning(tuning TuningConfig) []string {
	var errs []string

	if tuning.UnitCount <= 0 {
		errs = append(errs, "unit_count must be a positive integer")
	} else if tuning.UnitCount > v.cfg.MaxUnitCount {
		errs = append(errs, fmt.Sprintf("unit_count (%d) exceeds maximum (%d)",
			tuning.UnitCount, v.cfg.MaxUnitCount))
	}

	if !memorySizePattern.MatchString(tuning.MemorySize) {
		errs = append(errs, fmt.Sprintf("memory_size must match <number>[k|m|g] (got %q)",
			tuning.MemorySize))
	}
	return errs
}

// forward hands a message to the next stage, preserving the original
// sender so replies keep flowing to the client.
func (v *Validator) forward(msg *core.Message, sender core.Ref) {
	if v.next == nil {
		return
	}
	if err := v.next.Deliver(msg, sender); err != nil {
		v.logger.Error("forward failed",
			"job_id", msg.JobID, "kind", msg.Kind.String(), "err", err)
	}
}
