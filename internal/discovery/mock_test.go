package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/policyscout/discovery-cli/internal/fetch"
	"github.com/policyscout/discovery-cli/internal/model"
)

// mockStrategy implements Strategy for testing.
type mockStrategy struct {
	name  string
	links []model.CandidateLink
	err   error
	delay time.Duration
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Discover(ctx context.Context, _ string) ([]model.CandidateLink, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.links, m.err
}

// mockFetcher implements fetch.Fetcher for testing. URLs without a
// registered page return a not-found error, like the real client on 404.
type mockFetcher struct {
	mu      sync.Mutex
	pages   map[string]*fetch.Result
	errs    map[string]error
	fetched []string
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Result, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, rawURL)
	m.mu.Unlock()

	if err, ok := m.errs[rawURL]; ok {
		return nil, err
	}
	if res, ok := m.pages[rawURL]; ok {
		return res, nil
	}
	return nil, eris.Errorf("fetch: unexpected status 404 for %s", rawURL)
}

func (m *mockFetcher) Name() string { return "mock" }

func (m *mockFetcher) Supports(string) bool { return true }

func (m *mockFetcher) fetchedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// mockScorer implements LinkScorer for testing.
type mockScorer struct {
	score float64
	err   error
}

func (m *mockScorer) Predict(_ []float64) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.score, nil
}

// mockCache implements DocumentCache for testing.
type mockCache struct {
	mu     sync.Mutex
	domain string
	docs   []model.PolicyDocument
	ttl    time.Duration
	err    error
	calls  int
}

func (m *mockCache) SaveDocuments(_ context.Context, domain string, docs []model.PolicyDocument, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.domain = domain
	m.docs = docs
	m.ttl = ttl
	return m.err
}
