package pipeline

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a generation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusSplitting  JobStatus = "splitting"
	StatusGenerating JobStatus = "generating"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Kind selects what a job generates.
type Kind string

const (
	KindPairs    Kind = "pairs"
	KindTriplets Kind = "triplets"
)

// ParseKind accepts pairs or triplets, case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPairs:
		return KindPairs, nil
	case KindTriplets:
		return KindTriplets, nil
	default:
		return "", fmt.Errorf("kind must be %q or %q, got %q", KindPairs, KindTriplets, s)
	}
}

// Job tracks the state of a single document through generation.
type Job struct {
	mu sync.Mutex

	ID   string `json:"job_id"`
	Kind Kind   `json:"kind"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Force    bool      `json:"force"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	Output      string    `json:"output,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	Records         int      `json:"records"`
	Failed          int      `json:"failed"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
}

// NewJob returns a queued job holding data.
func NewJob(filename string, kind Kind, data []byte, force bool) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Force:     force,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddBatch records the outcome of one generation batch.
func (j *Job) AddBatch(chunks, records, failed, skipped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed += chunks
	j.Progress.Records += records
	j.Progress.Failed += failed
	j.Progress.Skipped += skipped
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetOutput records where the job's records were stored.
func (j *Job) SetOutput(loc string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Output = loc
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the uploaded bytes.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once it is no longer needed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Kind        Kind      `json:"kind"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	Output      string    `json:"output,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Progress:    p,
		ContentHash: j.ContentHash,
		Output:      j.Output,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// Done reports whether the job reached a terminal status.
func (s JobSnapshot) Done() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// OutputObject is the bucket object a job's records are stored under.
func OutputObject(contentHash string, kind Kind) string {
	prefix := contentHash
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return prefix + "/" + string(kind) + ".jsonl"
}
