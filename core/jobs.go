package core

import (
	"sync"
	"time"
)

// jobTracker holds one actor's private per-job records. It is only
// ever written from the owning actor's loop; the mutex exists for the
// JobStatus/CleanupJob accessors called from outside.
type jobTracker struct {
	mu      sync.RWMutex
	records map[string]*JobRecord
}

func newJobTracker() *jobTracker {
	return &jobTracker{records: make(map[string]*JobRecord)}
}

// touch returns the record for a job, creating a Processing record on
// first contact. For an existing record that has not failed, the
// stage is advanced and status reset to Processing.
func (t *jobTracker) touch(jobID string, stage Stage) *JobRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[jobID]
	if !ok {
		rec = &JobRecord{
			JobID:     jobID,
			Stage:     stage,
			Status:    JobProcessing,
			StartTime: time.Now(),
		}
		t.records[jobID] = rec
		return rec
	}

	if rec.Status != JobFailed {
		rec.Stage = stage
		rec.Status = JobProcessing
	}
	return rec
}

// complete marks the job finished for this actor.
func (t *jobTracker) complete(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[jobID]; ok && rec.Status != JobFailed {
		rec.Status = JobCompleted
		rec.EndTime = time.Now()
	}
}

// fail marks the job failed. Once failed, no further stage
// transition happens for this job at this actor.
func (t *jobTracker) fail(jobID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[jobID]; ok {
		rec.Status = JobFailed
		rec.Stage = StageFailed
		rec.EndTime = time.Now()
		if err != nil {
			rec.LastError = err.Error()
		}
	}
}

// retries returns the retry count spent on a job so far.
func (t *jobTracker) retries(jobID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rec, ok := t.records[jobID]; ok {
		return rec.Retries
	}
	return 0
}

// bumpRetry increments and returns the retry count for a job,
// recording the error that triggered it.
func (t *jobTracker) bumpRetry(jobID string, err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[jobID]
	if !ok {
		return 0
	}
	rec.Retries++
	if err != nil {
		rec.LastError = err.Error()
	}
	return rec.Retries
}

// failed reports whether the job has been marked failed.
func (t *jobTracker) failed(jobID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[jobID]
	return ok && rec.Status == JobFailed
}

// get returns a copy of the record for a job.
func (t *jobTracker) get(jobID string) (JobRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rec, ok := t.records[jobID]; ok {
		return *rec, true
	}
	return JobRecord{}, false
}

// remove deletes the record for a job.
func (t *jobTracker) remove(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, jobID)
}

// count returns the number of tracked jobs.
func (t *jobTracker) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
