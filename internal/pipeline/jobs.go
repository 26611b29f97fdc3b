package pipeline

import (
	"sync"
	"time"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/proposal"
)

// JobStatus represents the state of a generation job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRendering JobStatus = "rendering"
	StatusMerging   JobStatus = "merging"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the state of a single proposal generation.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	ProposalID string `json:"proposal_id"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	proposal *proposal.Proposal
	result   *Result
	errors   []string
}

// Progress tracks rendering progress.
type Progress struct {
	TotalStages    int      `json:"total_stages"`
	StagesRendered int      `json:"stages_rendered"`
	Pages          int      `json:"pages"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job for p.
func NewJob(id string, p *proposal.Proposal) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		ProposalID: p.ID,
		Status:     StatusQueued,
		Phase:      "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
		proposal:   p,
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

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
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

// SetTotalStages records how many page renders the job needs.
func (j *Job) SetTotalStages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalStages = n
	j.UpdatedAt = time.Now()
}

// StageRendered counts one finished stage and its pages.
func (j *Job) StageRendered(pages int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.StagesRendered++
	j.Progress.Pages += pages
	j.UpdatedAt = time.Now()
}

// Complete stores the finished document.
func (j *Job) Complete(r *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = r
	j.Status = StatusCompleted
	j.Phase = "done"
	j.Progress.Pages = r.PageCount
	j.UpdatedAt = time.Now()
}

// Result returns the finished document, or nil before completion.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Proposal returns the job's input.
func (j *Job) Proposal() *proposal.Proposal {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.proposal
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	ProposalID string    `json:"proposal_id"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Progress   Progress  `json:"progress"`
	FileName   string    `json:"file_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:         j.ID,
		ProposalID: j.ProposalID,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress: Progress{
			TotalStages:    j.Progress.TotalStages,
			StagesRendered: j.Progress.StagesRendered,
			Pages:          j.Progress.Pages,
			Errors:         append([]string(nil), j.Progress.Errors...),
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if snap.Progress.Errors == nil {
		snap.Progress.Errors = []string{}
	}
	if j.result != nil {
		snap.FileName = j.result.FileName
	}
	return snap
}
