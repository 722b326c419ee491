package store

import (
	"context"
	"time"

	"github.com/policyscout/discovery-cli/internal/model"
)

// JobFilter specifies criteria for listing queue jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the discovery engine.
type Store interface {
	// Model weights
	SaveModel(ctx context.Context, key string, state []byte, generation int) error
	LoadModel(ctx context.Context, key string) ([]byte, int, error)
	DeleteModel(ctx context.Context, key string) error

	// Queue
	EnqueueDomains(ctx context.Context, domains []string) (int, error)
	ClaimNext(ctx context.Context) (*model.DiscoveryJob, error)
	CompleteJob(ctx context.Context, jobID string, result *model.DiscoveryResult) error
	FailJob(ctx context.Context, jobID string, jobErr string, errorType string) error
	CountByStatus(ctx context.Context) (map[model.JobStatus]int, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.DiscoveryJob, error)
	RequeueTransient(ctx context.Context, maxAttempts int) (int, error)
	ClearJobs(ctx context.Context, status model.JobStatus) (int, error)

	// Document cache
	SaveDocuments(ctx context.Context, domain string, docs []model.PolicyDocument, ttl time.Duration) error
	GetDocuments(ctx context.Context, domain string) ([]model.PolicyDocument, error)
	ListDocuments(ctx context.Context) (map[string][]model.PolicyDocument, error)
	DeleteExpiredDocuments(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
