// Package storage provides the durable object store consumed by the
// pipeline. Stage results are written under job-scoped keys; writing
// the same key twice with the same bytes is idempotent.
package storage

import (
	"context"
	"errors"
)

// Store errors
var (
	ErrNotFound = errors.New("object not found")
)

// Store is a durable key-value object store.
type Store interface {
	// Put writes an object. Overwriting a key is allowed and must
	// yield the same stored object for the same bytes.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads an object, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}

// NormalizedKey is the job-scoped key for normalized stage data.
func NormalizedKey(jobID string) string {
	return "normalized/" + jobID + "/data.json"
}

// ResultsKey is the job-scoped key for combined job results.
func ResultsKey(jobID string) string {
	return "results/" + jobID + "/results.json"
}

// AnalysisKey is the job-scoped key for derived analysis metrics.
func AnalysisKey(jobID string) string {
	return "analysis/" + jobID + "/analysis.json"
}
