//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/queue"
	"github.com/policyscout/discovery-cli/internal/store"
)

// fakeEngine satisfies queue.Discoverer with a canned outcome.
type fakeEngine struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeEngine) Run(_ context.Context, domain string) (*model.DiscoveryResult, error) {
	f.calls.Add(1)
	if f.fail {
		return &model.DiscoveryResult{Domain: domain}, eris.New("fetch: connection refused")
	}
	return &model.DiscoveryResult{
		Domain:  domain,
		Success: true,
		Documents: []model.PolicyDocument{
			{URL: "https://" + domain + "/privacy", Type: model.DocTypePrivacy, Confidence: 0.9, Source: "direct"},
		},
	}, nil
}

func newWorkerStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRunWorkers_DrainEmptyQueue(t *testing.T) {
	st := newWorkerStore(t)
	eng := &fakeEngine{}
	proc := queue.NewProcessor(st, eng, nil, 3)

	err := runWorkers(context.Background(), proc, 2, time.Millisecond, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), eng.calls.Load())
}

func TestRunWorkers_DrainProcessesAll(t *testing.T) {
	st := newWorkerStore(t)
	eng := &fakeEngine{}
	proc := queue.NewProcessor(st, eng, nil, 3)

	added, err := proc.AddDomains(context.Background(), []string{"acme.com", "beta.io", "gamma.dev"})
	require.NoError(t, err)
	require.Equal(t, 3, added)

	require.NoError(t, runWorkers(context.Background(), proc, 2, time.Millisecond, true))
	assert.Equal(t, int64(3), eng.calls.Load())

	counts, err := proc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.JobStatusCompleted])
	assert.Equal(t, 0, counts[model.JobStatusPending])
}

func TestRunWorkers_JobFailuresDoNotAbort(t *testing.T) {
	st := newWorkerStore(t)
	eng := &fakeEngine{fail: true}
	proc := queue.NewProcessor(st, eng, nil, 3)

	_, err := proc.AddDomains(context.Background(), []string{"acme.com", "beta.io"})
	require.NoError(t, err)

	// Session failures land on the jobs, not on the worker pool.
	require.NoError(t, runWorkers(context.Background(), proc, 1, time.Millisecond, true))

	counts, err := proc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.JobStatusFailed])
	assert.Equal(t, 0, counts[model.JobStatusPending])
}

func TestWorkerLoop_StopsOnCancel(t *testing.T) {
	st := newWorkerStore(t)
	eng := &fakeEngine{}
	proc := queue.NewProcessor(st, eng, nil, 3)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	var completed, failed atomic.Int64
	go func() {
		done <- workerLoop(ctx, proc, 20*time.Millisecond, false, &completed, &failed)
	}()

	// Let the loop reach the empty-queue poll, then cancel.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker loop did not stop after cancel")
	}
}
