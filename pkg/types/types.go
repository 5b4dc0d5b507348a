package types

import (
	"fmt"
	"time"
)

// Ordering selects which scores count as better
type Ordering int

const (
	// PreferLarger keeps the highest scores
	PreferLarger Ordering = iota
	// PreferSmaller keeps the lowest scores
	PreferSmaller
)

// String returns the ordering name used in logs and config
func (o Ordering) String() string {
	if o == PreferSmaller {
		return "prefer-smaller"
	}
	return "prefer-larger"
}

// Job is one unit of work assigned by the server
type Job struct {
	ID           string
	KernelSource string
	ReuseKernel  bool // Server sent an empty source: run the previously compiled kernel
	Key          []byte
	TotalSize    int32
	Ordering     Ordering
	Capacity     int32 // Requested result list size (K)
	ReceivedAt   time.Time
}

// PreferLarger reports whether larger scores are better for this job
func (j *Job) PreferLarger() bool {
	return j.Ordering == PreferLarger
}

// Validate checks the job parameters before any device work starts
func (j *Job) Validate() error {
	if j.TotalSize < 0 {
		return fmt.Errorf("job %s: negative total size %d", j.ID, j.TotalSize)
	}
	if j.Capacity < 1 {
		return fmt.Errorf("job %s: result capacity must be at least 1, got %d", j.ID, j.Capacity)
	}
	if !j.ReuseKernel && j.KernelSource == "" {
		return fmt.Errorf("job %s: empty kernel source without reuse flag", j.ID)
	}
	return nil
}

// Candidate is a scored index in the job's key space
type Candidate struct {
	Index int32   `json:"index"`
	Score float32 `json:"score"`
}

// JobResult is the finalized best-first candidate list for a job
type JobResult struct {
	JobID       string      `json:"job_id"`
	Candidates  []Candidate `json:"candidates"`
	CompletedAt time.Time   `json:"completed_at"`
}
