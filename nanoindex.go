// Package nanoindex is a persistent, memory-mapped vector similarity
// search engine: a growable store of fixed-dimension vectors, an inverted
// file index trained by mini-batch K-means, and an adaptive bandit that
// learns which search strategy to dispatch to. Engine is the single
// explicit application context threading through every operation; there
// are no package-level globals, in the spirit of the teacher's Database
// but scoped to one fixed-dimension collection rather than a named
// multi-collection registry.
package nanoindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nanoindex/nanoindex/internal/agent"
	"github.com/nanoindex/nanoindex/internal/cluster"
	"github.com/nanoindex/nanoindex/internal/index/ivf"
	"github.com/nanoindex/nanoindex/internal/obs"
	"github.com/nanoindex/nanoindex/internal/service"
	"github.com/nanoindex/nanoindex/internal/store"
)

// Engine is the top-level handle: a DataStore, a swappable IVF index built
// off-band and installed atomically, and an AdaptiveAgent, all guarded by
// a single reader-writer lock over the store+index pair (the agent keeps
// its own internal mutex, per the concurrency design).
type Engine struct {
	mu sync.RWMutex

	cfg *Config
	ds  *store.DataStore
	idx *ivf.Index // never nil; untrained zero value until Train succeeds

	agent   *agent.Agent
	svc     *service.Service
	metrics *obs.Metrics
	health  *obs.HealthChecker

	closed bool
}

// Open creates or opens an Engine rooted at the configured data directory.
func Open(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("nanoindex: applying option: %w", err)
		}
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("%w: dimension is required", ErrInvalidInput)
	}

	ds, err := store.Open(cfg.DataDir, cfg.Dim, cfg.InitialCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	ag, err := agent.Open(cfg.DataDir,
		agent.WithAlgorithm(cfg.AgentAlgorithm),
		agent.WithEpsilon(cfg.AgentEpsilon),
		agent.WithCheckpointEvery(cfg.CheckpointEvery),
	)
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("nanoindex: opening agent state: %w", err)
	}

	svc := service.New()
	svc.DefaultNProbe = cfg.DefaultNProbe
	svc.DefaultMaxCodes = cfg.DefaultMaxCodes
	svc.Metric = cfg.Metric

	e := &Engine{
		cfg:   cfg,
		ds:    ds,
		idx:   &ivf.Index{},
		agent: ag,
		svc:   svc,
	}
	if cfg.MetricsEnabled {
		e.metrics = obs.NewMetrics()
		e.metrics.AgentEpsilon.Set(cfg.AgentEpsilon)
	}
	e.health = obs.NewHealthChecker(e)

	return e, nil
}

// Add inserts a batch of vectors bound to external IDs, atomically.
func (e *Engine) Add(vectors [][]float32, ids []int64) (*AddResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	rows, err := e.ds.Add(vectors, ids)
	if err != nil {
		if e.metrics != nil {
			e.metrics.InsertErrors.Inc()
			if e.ds.IsPoisoned() {
				e.metrics.StorePoisoned.Set(1)
			}
		}
		return nil, translateStoreErr(err)
	}
	if e.metrics != nil {
		e.metrics.VectorInserts.Add(float64(len(rows)))
	}

	return &AddResult{Inserted: len(rows), Total: e.ds.N()}, nil
}

// Train clusters the current store contents into k inverted lists. It holds
// the exclusive lock for the whole call, so no add or reset can change the
// store mid-training; the new index is built separately and replaces the
// old one only once training succeeds.
func (e *Engine) Train(ctx context.Context, k int) (*TrainResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	cfg := cluster.DefaultConfig(k)
	newIdx, err := ivf.Train(ctx, e.ds, k, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e.idx = newIdx

	if e.metrics != nil {
		e.metrics.TrainRuns.Inc()
		e.metrics.TrainDuration.Observe(time.Since(start).Seconds())
	}

	return &TrainResult{K: newIdx.K(), NTrained: newIdx.NTrained()}, nil
}

// Search dispatches a query to the flat scan or the trained IVF index,
// optionally through the adaptive agent.
func (e *Engine) Search(ctx context.Context, query []float32, topK int, useIndex, useAgent bool) (*SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.metrics != nil {
		e.metrics.SearchQueries.Inc()
	}

	out, err := e.svc.Search(ctx, e.ds, e.idx, e.agent, query, topK, useIndex, useAgent)
	if err != nil {
		if e.metrics != nil {
			e.metrics.SearchErrors.Inc()
		}
		return nil, translateServiceErr(err)
	}
	if e.metrics != nil {
		e.metrics.SearchLatency.Observe(out.LatencyMs / 1000.0)
		e.metrics.AgentArmPulls.WithLabelValues(out.Strategy).Inc()
	}

	hits := make([]SearchHit, len(out.Hits))
	for i, h := range out.Hits {
		hits[i] = SearchHit{ID: h.ID, Distance: h.Distance}
	}
	return &SearchResult{Results: hits, LatencyMs: out.LatencyMs, Strategy: out.Strategy}, nil
}

// Reset clears the data store and drops the IVF index. Agent state is left
// untouched; call AgentReset separately if that is also desired.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if err := e.ds.Reset(); err != nil {
		if e.metrics != nil && e.ds.IsPoisoned() {
			e.metrics.StorePoisoned.Set(1)
		}
		return translateStoreErr(err)
	}
	e.idx = &ivf.Index{}
	return nil
}

// AgentStats returns a snapshot of the adaptive agent's statistics.
func (e *Engine) AgentStats() *AgentStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := e.agent.Stats()
	out := &AgentStats{
		Algorithm:  string(e.cfg.AgentAlgorithm),
		Epsilon:    e.cfg.AgentEpsilon,
		TotalPulls: e.agent.TotalPulls(),
		Statistics: make(map[string]ArmStatSnapshot, len(stats)),
	}
	for name, s := range stats {
		out.Statistics[name] = ArmStatSnapshot{
			Pulls:        s.Pulls,
			TotalReward:  s.TotalReward,
			AvgReward:    s.AvgReward,
			AvgLatencyMs: s.AvgLatencyMs,
		}
	}
	return out
}

// AgentReset zeroes the adaptive agent's statistics and checkpoint file.
func (e *Engine) AgentReset() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agent.Reset()
}

// Health runs the engine's health checks.
func (e *Engine) Health(ctx context.Context) (*obs.HealthStatus, error) {
	return e.health.Check(ctx)
}

// StorePoisoned implements obs.Subject.
func (e *Engine) StorePoisoned() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ds.IsPoisoned()
}

// IVFTrainedFraction implements obs.Subject.
func (e *Engine) IVFTrainedFraction() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := e.ds.N()
	if n == 0 || !e.idx.IsTrained() {
		return 0
	}
	return float64(e.idx.NTrained()) / float64(n)
}

// AgentCheckpointStale implements obs.Subject: true whenever there are
// updates in memory that have not yet been flushed to agent_state.json.
func (e *Engine) AgentCheckpointStale() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agent.UpdatesSincePersist() > 0
}

// Close flushes and releases every underlying resource.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if err := e.agent.Save(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.ds.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// translateStoreErr maps the store package's sentinels onto this package's
// public error kinds, keeping errors.Is(err, nanoindex.ErrX) working for
// callers who only import the top-level package.
func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrInvalidInput):
		return wrapf(ErrInvalidInput, "%s", err.Error())
	case errors.Is(err, store.ErrConflict):
		return wrapf(ErrConflict, "%s", err.Error())
	case errors.Is(err, store.ErrNotFound):
		return wrapf(ErrNotFound, "%s", err.Error())
	case errors.Is(err, store.ErrStorageFatal):
		return wrapf(ErrStorageFatal, "%s", err.Error())
	default:
		return err
	}
}

func translateServiceErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w", err)
}
