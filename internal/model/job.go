package model

import "time"

// JobStatus represents the current state of a queued discovery job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// AllJobStatuses returns all defined job statuses.
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending,
		JobStatusProcessing,
		JobStatusCompleted,
		JobStatusFailed,
	}
}

// Terminal reports whether the status is an end state. Terminal jobs persist
// until explicitly cleared.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Phase identifies a stage of a discovery session.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDispatching Phase = "dispatching"
	PhaseCollecting  Phase = "collecting"
	PhaseVerifying   Phase = "verifying"
	PhaseDone        Phase = "done"
)

// PhaseEvent is a progress event emitted during a discovery session. Events
// are a side channel: delivery is best-effort and never affects control flow.
type PhaseEvent struct {
	Phase     Phase  `json:"phase"`
	Message   string `json:"message"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// WorkerReport records one strategy worker's outcome within a session.
type WorkerReport struct {
	Strategy   string `json:"strategy"`
	Candidates int    `json:"candidates"`
	Error      string `json:"error,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

// DiscoveryResult holds the outcome of one discovery session.
type DiscoveryResult struct {
	Domain             string            `json:"domain"`
	Success            bool              `json:"success"`
	Documents          []PolicyDocument  `json:"documents,omitempty"`
	CandidatesFound    int               `json:"candidates_found"`
	CandidatesVerified int               `json:"candidates_verified"`
	Workers            []WorkerReport    `json:"workers"`
	ElapsedMs          int64             `json:"elapsed_ms"`
	Training           []TrainingExample `json:"training,omitempty"`
}

// ErrorType tags job failures for retry decisions.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// DiscoveryJob is a durable queue item for one domain. Status transitions
// are owned exclusively by the queue processor.
type DiscoveryJob struct {
	ID        string           `json:"id"`
	Domain    string           `json:"domain"`
	Status    JobStatus        `json:"status"`
	Attempts  int              `json:"attempts"`
	Result    *DiscoveryResult `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
