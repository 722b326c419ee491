package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/policyscout/discovery-cli/internal/classify"
	"github.com/policyscout/discovery-cli/internal/feature"
	"github.com/policyscout/discovery-cli/internal/fetch"
	"github.com/policyscout/discovery-cli/internal/model"
)

// LinkScorer scores feature vectors; the persisted neural scorer
// satisfies it.
type LinkScorer interface {
	Predict(features []float64) (float64, error)
}

// DocumentCache persists verified documents between sessions.
type DocumentCache interface {
	SaveDocuments(ctx context.Context, domain string, docs []model.PolicyDocument, ttl time.Duration) error
}

// Engine orchestrates a discovery session: it fans out to strategies,
// merges and ranks their candidates, and verifies the best ones. It is
// the only fan-out/fan-in point; strategy workers share no state while
// running.
type Engine struct {
	cfg        Config
	strategies []Strategy
	fetcher    fetch.Fetcher
	scorer     LinkScorer
	classifier *classify.Refiner
	scoring    feature.Config
	cache      DocumentCache
	events     chan<- model.PhaseEvent
}

// New creates an Engine. scorer and cache may be nil (no model
// contribution, no cache writes); a nil classifier falls back to pure
// keyword classification. events is an optional progress side channel;
// sends never block.
func New(
	cfg Config,
	strategies []Strategy,
	fetcher fetch.Fetcher,
	scorer LinkScorer,
	classifier *classify.Refiner,
	scoring feature.Config,
	cache DocumentCache,
	events chan<- model.PhaseEvent,
) *Engine {
	if classifier == nil {
		classifier = classify.NewRefiner(nil, 0)
	}
	return &Engine{
		cfg:        cfg.withDefaults(),
		strategies: strategies,
		fetcher:    fetcher,
		scorer:     scorer,
		classifier: classifier,
		scoring:    scoring,
		cache:      cache,
		events:     events,
	}
}

// Run executes one discovery session for domain. The configured budget
// bounds the whole session; on expiry in-flight work is cancelled and
// whatever verified so far is returned.
func (e *Engine) Run(ctx context.Context, domain string) (*model.DiscoveryResult, error) {
	start := time.Now()
	log := zap.L().With(zap.String("domain", domain))
	log.Info("discovery: session start", zap.Int("strategies", len(e.strategies)))

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Budget)
	defer cancel()

	result := &model.DiscoveryResult{Domain: domain}
	e.emit(start, model.PhaseIdle, "session start")

	// Dispatching: one worker per strategy. Worker errors are recorded in
	// the report, never propagated; a failing strategy costs its own
	// candidates only.
	e.emit(start, model.PhaseDispatching, fmt.Sprintf("dispatching %d strategies", len(e.strategies)))

	reports := make([]model.WorkerReport, len(e.strategies))
	found := make([][]model.CandidateLink, len(e.strategies))

	g, gCtx := errgroup.WithContext(ctx)
	for i, s := range e.strategies {
		g.Go(func() error {
			wStart := time.Now()
			wCtx, wCancel := context.WithTimeout(gCtx, e.cfg.WorkerTimeout)
			defer wCancel()

			links, err := s.Discover(wCtx, domain)
			for j := range links {
				links[j].Strategy = s.Name()
			}
			report := model.WorkerReport{
				Strategy:   s.Name(),
				Candidates: len(links),
				ElapsedMs:  time.Since(wStart).Milliseconds(),
			}
			if err != nil {
				report.Error = err.Error()
				log.Warn("discovery: strategy failed",
					zap.String("strategy", s.Name()),
					zap.Error(err),
				)
			}
			found[i], reports[i] = links, report
			return nil
		})
	}
	_ = g.Wait()
	result.Workers = reports

	// Collecting: merge is single-owner once every worker has reported.
	var raw []model.CandidateLink
	for _, links := range found {
		raw = append(raw, links...)
	}
	e.emit(start, model.PhaseCollecting, fmt.Sprintf("%d raw candidates", len(raw)))

	ranked := rank(dedupe(e.scoreCandidates(raw, domain)))
	result.CandidatesFound = len(ranked)
	log.Info("discovery: candidates collected",
		zap.Int("raw", len(raw)),
		zap.Int("ranked", len(ranked)),
	)

	limit := min(e.cfg.MaxVerify, len(ranked))
	e.emit(start, model.PhaseVerifying, fmt.Sprintf("verifying top %d of %d", limit, len(ranked)))

	docs, training, verified := e.verify(ctx, ranked)
	result.Documents = docs
	result.Training = training
	result.CandidatesVerified = verified

	if e.cache != nil && len(docs) > 0 {
		// The session budget may already be spent; the cache write gets
		// its own short deadline.
		saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer saveCancel()
		if err := e.cache.SaveDocuments(saveCtx, domain, docs, e.cfg.CacheTTL); err != nil {
			log.Warn("discovery: document cache save failed", zap.Error(err))
		}
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	if len(docs) == 0 {
		e.emit(start, model.PhaseDone, "no documents verified")
		log.Warn("discovery: session exhausted",
			zap.Int("candidates", result.CandidatesFound),
			zap.Int64("elapsed_ms", result.ElapsedMs),
		)
		return result, &SessionExhaustedError{Domain: domain, Workers: reports}
	}

	result.Success = true
	e.emit(start, model.PhaseDone, fmt.Sprintf("%d documents verified", len(docs)))
	log.Info("discovery: session complete",
		zap.Int("documents", len(docs)),
		zap.Int("verified", verified),
		zap.Int64("elapsed_ms", result.ElapsedMs),
	)
	return result, nil
}

// emit reports progress without blocking. A full or absent channel never
// stalls the session.
func (e *Engine) emit(start time.Time, phase model.Phase, msg string) {
	if e.events == nil {
		return
	}
	ev := model.PhaseEvent{
		Phase:     phase,
		Message:   msg,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	select {
	case e.events <- ev:
	default:
	}
}
