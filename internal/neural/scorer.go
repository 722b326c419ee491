package neural

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/resilience"
)

// DefaultModelKey is the logical key the link scorer persists under.
const DefaultModelKey = "link-scorer-v1"

// ModelStore persists serialized model state under a logical key. LoadModel
// returns (nil, 0, nil) when no model exists for the key.
type ModelStore interface {
	SaveModel(ctx context.Context, key string, state []byte, generation int) error
	LoadModel(ctx context.Context, key string) (state []byte, generation int, err error)
}

// Scorer serves predictions from an immutable snapshot of the persisted
// link-scoring model. Predict is lock-free and may trail an in-flight
// Train by one generation; Train is serialized and swaps the snapshot
// only after the full step, so readers never see half-updated weights.
type Scorer struct {
	store ModelStore
	key   string

	mu      sync.Mutex // serializes Train
	current atomic.Pointer[Network]
}

// NewScorer loads the model stored under key, or initializes a fresh
// network and persists it as generation 0 when none exists. A stored
// model whose feature width no longer matches is rejected rather than
// silently reinitialized; clearing it is an operator action.
func NewScorer(ctx context.Context, store ModelStore, key string) (*Scorer, error) {
	if key == "" {
		key = DefaultModelKey
	}
	s := &Scorer{store: store, key: key}

	data, _, err := store.LoadModel(ctx, key)
	if err != nil {
		return nil, eris.Wrapf(err, "neural: load model %q", key)
	}

	var net *Network
	if data == nil {
		net = NewNetwork(nil)
		if err := s.saveRetrying(ctx, net); err != nil {
			return nil, eris.Wrapf(err, "neural: persist initial model %q", key)
		}
		zap.L().Info("neural: initialized model",
			zap.String("key", key),
			zap.Int("inputs", net.InputSize()),
		)
	} else {
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, eris.Wrapf(err, "neural: decode model %q", key)
		}
		net, err = RestoreNetwork(st)
		if err != nil {
			return nil, eris.Wrapf(err, "neural: restore model %q", key)
		}
		if net.InputSize() != defaultInputSize {
			return nil, eris.Errorf("neural: model %q has %d inputs, scorer requires %d",
				key, net.InputSize(), defaultInputSize)
		}
		zap.L().Info("neural: loaded model",
			zap.String("key", key),
			zap.Uint64("generation", net.Generation()),
		)
	}

	s.current.Store(net)
	return s, nil
}

// Predict runs a forward pass against the current snapshot.
func (s *Scorer) Predict(features []float64) (float64, error) {
	return s.current.Load().Predict(features)
}

// Train applies one backpropagation step and persists the stepped
// weights. A failed save is logged and the in-memory model still
// advances, so training continues and the next successful save catches
// the store up.
func (s *Scorer) Train(ctx context.Context, features []float64, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	net := s.current.Load().clone()
	if err := net.Train(features, target); err != nil {
		return err
	}

	if err := s.saveRetrying(ctx, net); err != nil {
		zap.L().Warn("neural: model save failed, keeping in-memory weights",
			zap.String("key", s.key),
			zap.Uint64("generation", net.Generation()),
			zap.Error(err),
		)
	}

	s.current.Store(net)
	return nil
}

// Generation returns the current in-memory generation, which may be ahead
// of the store after a failed save.
func (s *Scorer) Generation() uint64 {
	return s.current.Load().Generation()
}

// Snapshot returns a copy of the current model state.
func (s *Scorer) Snapshot() State {
	return s.current.Load().Snapshot()
}

// Key returns the logical key the scorer persists under.
func (s *Scorer) Key() string { return s.key }

func (s *Scorer) saveRetrying(ctx context.Context, net *Network) error {
	data, err := json.Marshal(net.Snapshot())
	if err != nil {
		return eris.Wrap(err, "neural: encode model state")
	}
	return resilience.Do(ctx, resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		ShouldRetry:    func(error) bool { return true },
		OnRetry:        resilience.RetryLogger("store", "save model"),
	}, func(ctx context.Context) error {
		return s.store.SaveModel(ctx, s.key, data, int(net.Generation()))
	})
}
