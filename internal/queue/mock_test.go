package queue

import (
	"context"
	"time"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/store"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	enqueued     []string
	enqueueN     int
	enqueueErr   error
	claimJob     *model.DiscoveryJob
	claimErr     error
	completedIDs []string
	completeErr  error
	failedIDs    []string
	failedErrs   []string
	failedTypes  []string
	failErr      error
	counts       map[model.JobStatus]int
	countsErr    error
	requeueN     int
	requeueMax   int
	requeueErr   error
}

func (m *mockStore) SaveModel(context.Context, string, []byte, int) error { return nil }
func (m *mockStore) LoadModel(context.Context, string) ([]byte, int, error) {
	return nil, 0, nil
}
func (m *mockStore) DeleteModel(context.Context, string) error { return nil }

func (m *mockStore) EnqueueDomains(_ context.Context, domains []string) (int, error) {
	if m.enqueueErr != nil {
		return 0, m.enqueueErr
	}
	m.enqueued = append(m.enqueued, domains...)
	if m.enqueueN > 0 {
		return m.enqueueN, nil
	}
	return len(domains), nil
}

func (m *mockStore) ClaimNext(context.Context) (*model.DiscoveryJob, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	job := m.claimJob
	m.claimJob = nil
	return job, nil
}

func (m *mockStore) CompleteJob(_ context.Context, jobID string, _ *model.DiscoveryResult) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	m.completedIDs = append(m.completedIDs, jobID)
	return nil
}

func (m *mockStore) FailJob(_ context.Context, jobID, jobErr, errorType string) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.failedIDs = append(m.failedIDs, jobID)
	m.failedErrs = append(m.failedErrs, jobErr)
	m.failedTypes = append(m.failedTypes, errorType)
	return nil
}

func (m *mockStore) CountByStatus(context.Context) (map[model.JobStatus]int, error) {
	return m.counts, m.countsErr
}

func (m *mockStore) ListJobs(context.Context, store.JobFilter) ([]model.DiscoveryJob, error) {
	return nil, nil
}

func (m *mockStore) RequeueTransient(_ context.Context, maxAttempts int) (int, error) {
	m.requeueMax = maxAttempts
	return m.requeueN, m.requeueErr
}

func (m *mockStore) ClearJobs(context.Context, model.JobStatus) (int, error) { return 0, nil }

func (m *mockStore) SaveDocuments(context.Context, string, []model.PolicyDocument, time.Duration) error {
	return nil
}
func (m *mockStore) GetDocuments(context.Context, string) ([]model.PolicyDocument, error) {
	return nil, nil
}
func (m *mockStore) ListDocuments(context.Context) (map[string][]model.PolicyDocument, error) {
	return nil, nil
}
func (m *mockStore) DeleteExpiredDocuments(context.Context) (int, error) { return 0, nil }

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Ping(context.Context) error    { return nil }
func (m *mockStore) Close() error                  { return nil }

// mockEngine implements Discoverer for testing.
type mockEngine struct {
	result  *model.DiscoveryResult
	err     error
	domains []string
}

func (m *mockEngine) Run(_ context.Context, domain string) (*model.DiscoveryResult, error) {
	m.domains = append(m.domains, domain)
	return m.result, m.err
}

// mockTrainer implements Trainer for testing.
type mockTrainer struct {
	labels []float64
	err    error
}

func (m *mockTrainer) Train(_ context.Context, _ []float64, target float64) error {
	if m.err != nil {
		return m.err
	}
	m.labels = append(m.labels, target)
	return nil
}
