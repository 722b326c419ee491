// Package queue turns the discovery engine into a durable batch worker:
// domains go in once, each is claimed and processed exactly once, and the
// outcome (including the trained labels) is recorded on the job.
package queue

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/resilience"
	"github.com/policyscout/discovery-cli/internal/store"
)

// ErrQueueEmpty reports that no pending job exists. Callers poll or stop;
// it is never a failure.
var ErrQueueEmpty = eris.New("queue: no pending jobs")

// Discoverer runs one discovery session. The engine satisfies it.
type Discoverer interface {
	Run(ctx context.Context, domain string) (*model.DiscoveryResult, error)
}

// Trainer applies one labeled example to the scoring model. The neural
// scorer satisfies it.
type Trainer interface {
	Train(ctx context.Context, features []float64, target float64) error
}

// Processor drains the domain queue through the discovery engine. trainer
// may be nil (labels are discarded).
type Processor struct {
	store       store.Store
	engine      Discoverer
	trainer     Trainer
	maxAttempts int
}

// NewProcessor creates a Processor. maxAttempts bounds transient-failure
// retries per job.
func NewProcessor(st store.Store, engine Discoverer, trainer Trainer, maxAttempts int) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Processor{
		store:       st,
		engine:      engine,
		trainer:     trainer,
		maxAttempts: maxAttempts,
	}
}

// AddDomains normalizes and enqueues domains, skipping invalid entries,
// duplicates within the input, and domains already present in any status.
// Returns the count actually added.
func (p *Processor) AddDomains(ctx context.Context, domains []string) (int, error) {
	seen := make(map[string]bool, len(domains))
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		nd, err := NormalizeDomain(d)
		if err != nil {
			zap.L().Warn("queue: skipping invalid domain", zap.String("input", d), zap.Error(err))
			continue
		}
		if seen[nd] {
			continue
		}
		seen[nd] = true
		normalized = append(normalized, nd)
	}
	if len(normalized) == 0 {
		return 0, nil
	}

	added, err := p.store.EnqueueDomains(ctx, normalized)
	if err != nil {
		return 0, eris.Wrap(err, "queue: enqueue domains")
	}
	zap.L().Info("queue: domains enqueued",
		zap.Int("input", len(domains)),
		zap.Int("added", added),
		zap.Int("skipped", len(domains)-added),
	)
	return added, nil
}

// ProcessNext claims the oldest pending job and runs it to a terminal
// state. The returned job carries the outcome; a non-nil error means the
// queue itself misbehaved (claim or transition failure), not that the
// session failed. Returns ErrQueueEmpty when nothing is pending.
func (p *Processor) ProcessNext(ctx context.Context) (*model.DiscoveryJob, error) {
	job, err := p.store.ClaimNext(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "queue: claim next")
	}
	if job == nil {
		return nil, ErrQueueEmpty
	}

	log := zap.L().With(zap.String("job_id", job.ID), zap.String("domain", job.Domain))
	log.Info("queue: job claimed", zap.Int("attempt", job.Attempts))

	result, runErr := p.engine.Run(ctx, job.Domain)
	p.train(ctx, result)

	if runErr != nil {
		errType := resilience.ClassifyError(runErr)
		if failErr := p.store.FailJob(ctx, job.ID, runErr.Error(), errType); failErr != nil {
			return nil, eris.Wrapf(failErr, "queue: fail job %s", job.ID)
		}
		job.Status = model.JobStatusFailed
		job.Error = runErr.Error()
		job.ErrorType = errType
		job.Result = result
		log.Warn("queue: job failed", zap.String("error_type", errType), zap.Error(runErr))
		return job, nil
	}

	if err := p.store.CompleteJob(ctx, job.ID, result); err != nil {
		return nil, eris.Wrapf(err, "queue: complete job %s", job.ID)
	}
	job.Status = model.JobStatusCompleted
	job.Result = result
	log.Info("queue: job completed", zap.Int("documents", len(result.Documents)))
	return job, nil
}

// train applies the session's labeled examples. Best-effort: a training
// failure never changes the job outcome. Rejected candidates from failed
// sessions are fed too; a fetched-and-rejected page is an honest negative
// whichever way the session ended.
func (p *Processor) train(ctx context.Context, result *model.DiscoveryResult) {
	if p.trainer == nil || result == nil {
		return
	}
	for _, ex := range result.Training {
		if err := p.trainer.Train(ctx, ex.Features.Slice(), ex.Label); err != nil {
			zap.L().Warn("queue: training example discarded", zap.Error(err))
		}
	}
}

// Status returns the per-status job counts in one snapshot.
func (p *Processor) Status(ctx context.Context) (map[model.JobStatus]int, error) {
	counts, err := p.store.CountByStatus(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "queue: count by status")
	}
	return counts, nil
}

// RequeueFailed moves transient-failed jobs still under the attempt limit
// back to pending. Returns the number requeued.
func (p *Processor) RequeueFailed(ctx context.Context) (int, error) {
	n, err := p.store.RequeueTransient(ctx, p.maxAttempts)
	if err != nil {
		return 0, eris.Wrap(err, "queue: requeue transient")
	}
	if n > 0 {
		zap.L().Info("queue: transient failures requeued", zap.Int("count", n))
	}
	return n, nil
}

// NormalizeDomain reduces raw input (URL or bare host) to a lowercase
// registrable host: scheme, path, port, and a leading www. stripped.
func NormalizeDomain(raw string) (string, error) {
	d := strings.TrimSpace(strings.ToLower(raw))
	if d == "" {
		return "", eris.New("queue: empty domain")
	}

	if strings.Contains(d, "://") {
		u, err := url.Parse(d)
		if err != nil || u.Host == "" {
			return "", eris.Errorf("queue: invalid domain %q", raw)
		}
		d = u.Host
	} else if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}

	if i := strings.LastIndex(d, ":"); i >= 0 && !strings.Contains(d, "]") {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, ".")

	if d == "" || !strings.Contains(d, ".") || strings.ContainsAny(d, " \t") {
		return "", eris.Errorf("queue: invalid domain %q", raw)
	}
	return d, nil
}
