// Package discovery runs multi-strategy policy discovery sessions: probe,
// search, and crawl workers propose candidate links, a combined rule/model
// score ranks them, and the top candidates are fetched and classified.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/policyscout/discovery-cli/internal/model"
)

// Strategy produces candidate links for a domain. Implementations may
// return partial results alongside an error; the engine keeps both.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, domain string) ([]model.CandidateLink, error)
}

// Config bounds a discovery session.
type Config struct {
	Budget        time.Duration // wall clock for the whole session
	WorkerTimeout time.Duration // per strategy worker
	MaxVerify     int           // candidates fetched during verification
	MaxResults    int           // documents collected before stopping
	CacheTTL      time.Duration // document cache retention
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = 90 * time.Second
	}
	if c.WorkerTimeout <= 0 {
		c.WorkerTimeout = 30 * time.Second
	}
	if c.MaxVerify <= 0 {
		c.MaxVerify = 8
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 7 * 24 * time.Hour
	}
	return c
}

// SessionExhaustedError reports a session that ended with no verified
// documents. Worker reports carry per-strategy diagnostics.
type SessionExhaustedError struct {
	Domain  string
	Workers []model.WorkerReport
}

func (e *SessionExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Workers))
	for _, w := range e.Workers {
		if w.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", w.Strategy, w.Error))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %d candidates", w.Strategy, w.Candidates))
		}
	}
	return fmt.Sprintf("discovery: no policy documents found for %s (%s)", e.Domain, strings.Join(parts, "; "))
}
