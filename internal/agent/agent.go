// Package agent implements the adaptive dispatcher (component C5): a
// fixed-arm multi-armed bandit choosing between flat scan and three IVF
// probe profiles, with epsilon-greedy or UCB1 selection and periodic JSON
// checkpointing. The persistence shape follows the teacher's
// write-tmp-then-rename pattern used by internal/store for its metadata
// sidecar; there is no bandit in the teacher to ground the selection math
// on, so it is built directly from the design's formulas.
package agent

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
)

// Algorithm selects which arm-selection rule the agent uses.
type Algorithm string

const (
	EpsilonGreedy Algorithm = "epsilon-greedy"
	UCB1          Algorithm = "ucb1"
)

// schemaVersion guards agent_state.json against incompatible layouts.
const schemaVersion = 1

// rewardEpsFloor avoids dividing by zero for a near-instantaneous query.
const rewardEpsFloor = 1e-6

// ArmNames is the fixed, declared-order set of dispatch strategies.
var ArmNames = []string{"flat", "ivf_conservative", "ivf_balanced", "ivf_aggressive"}

// ArmParams describes the IVF parameters bound to each non-flat arm.
type ArmParams struct {
	NProbe   int
	MaxCodes int
}

// Params returns the nprobe/max_codes pair for the named IVF arm, or the
// zero value (ignored by callers) for "flat".
func Params(arm string) ArmParams {
	switch arm {
	case "ivf_conservative":
		return ArmParams{NProbe: 5, MaxCodes: 10000}
	case "ivf_balanced":
		return ArmParams{NProbe: 10, MaxCodes: 50000}
	case "ivf_aggressive":
		return ArmParams{NProbe: 20, MaxCodes: 100000}
	default:
		return ArmParams{}
	}
}

// armStat holds the running statistics for one arm.
type armStat struct {
	Pulls        int64   `json:"pulls"`
	TotalReward  float64 `json:"total_reward"`
	AvgReward    float64 `json:"avg_reward"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	totalLatencyMs float64
}

// state is the full on-disk shape of agent_state.json.
type state struct {
	SchemaVersion int                 `json:"schema_version"`
	Algorithm     Algorithm           `json:"algorithm"`
	Epsilon       float64             `json:"epsilon"`
	TotalPulls    int64               `json:"total_pulls"`
	Statistics    map[string]*armStat `json:"statistics"`
}

// Agent dispatches queries to a strategy and learns which one performs
// best, persisting its statistics every checkpointEvery updates.
type Agent struct {
	mu sync.Mutex

	path            string
	algorithm       Algorithm
	epsilon         float64
	checkpointEvery int
	rng             *rand.Rand

	st               state
	updatesSinceSave int
}

// Option configures a new Agent.
type Option func(*Agent) error

func WithAlgorithm(alg Algorithm) Option {
	return func(a *Agent) error {
		a.algorithm = alg
		return nil
	}
}

func WithEpsilon(eps float64) Option {
	return func(a *Agent) error {
		a.epsilon = eps
		return nil
	}
}

func WithCheckpointEvery(n int) Option {
	return func(a *Agent) error {
		if n <= 0 {
			n = 10
		}
		a.checkpointEvery = n
		return nil
	}
}

func WithSeed(seed int64) Option {
	return func(a *Agent) error {
		a.rng = rand.New(rand.NewSource(seed))
		return nil
	}
}

// Open loads (or initializes) an Agent whose state file lives under dir. A
// missing file, schema mismatch, or parse failure is non-fatal: the agent
// starts from zero statistics.
func Open(dir string, opts ...Option) (*Agent, error) {
	a := &Agent{
		path:            filepath.Join(dir, "agent_state.json"),
		algorithm:       EpsilonGreedy,
		epsilon:         0.1,
		checkpointEvery: 10,
		rng:             rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	a.st = a.zeroState()

	if data, err := os.ReadFile(a.path); err == nil {
		var loaded state
		if err := json.Unmarshal(data, &loaded); err == nil && loaded.SchemaVersion == schemaVersion {
			for _, name := range ArmNames {
				if s, ok := loaded.Statistics[name]; ok {
					s.totalLatencyMs = s.AvgLatencyMs * float64(s.Pulls)
					a.st.Statistics[name] = s
				}
			}
			a.st.TotalPulls = loaded.TotalPulls
			a.st.Algorithm = a.algorithm
			a.st.Epsilon = a.epsilon
		}
	}

	return a, nil
}

func (a *Agent) zeroState() state {
	stats := make(map[string]*armStat, len(ArmNames))
	for _, name := range ArmNames {
		stats[name] = &armStat{}
	}
	return state{
		SchemaVersion: schemaVersion,
		Algorithm:     a.algorithm,
		Epsilon:       a.epsilon,
		TotalPulls:    0,
		Statistics:    stats,
	}
}

// Select picks an arm name according to the configured algorithm.
func (a *Agent) Select() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.algorithm {
	case UCB1:
		return a.selectUCB1Locked()
	default:
		return a.selectEpsilonGreedyLocked()
	}
}

func (a *Agent) selectEpsilonGreedyLocked() string {
	if a.rng.Float64() < a.epsilon {
		return ArmNames[a.rng.Intn(len(ArmNames))]
	}

	for _, name := range ArmNames {
		if a.st.Statistics[name].Pulls == 0 {
			return name
		}
	}

	best := ArmNames[0]
	bestReward := a.st.Statistics[best].AvgReward
	for _, name := range ArmNames[1:] {
		r := a.st.Statistics[name].AvgReward
		if r > bestReward {
			best = name
			bestReward = r
		}
	}
	return best
}

func (a *Agent) selectUCB1Locked() string {
	for _, name := range ArmNames {
		if a.st.Statistics[name].Pulls == 0 {
			return name
		}
	}

	total := float64(a.st.TotalPulls)
	best := ArmNames[0]
	bestScore := math.Inf(-1)
	for _, name := range ArmNames {
		s := a.st.Statistics[name]
		score := s.AvgReward + math.Sqrt(2*math.Log(total)/float64(s.Pulls))
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	return best
}

// Update records the outcome of dispatching to arm, computing reward as
// 1000/max(latencyMs, rewardEpsFloor). An unknown arm name is a silent
// no-op. Checkpoints to disk every checkpointEvery updates; a write
// failure is swallowed (the in-memory state remains valid).
func (a *Agent) Update(arm string, latencyMs float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.st.Statistics[arm]
	if !ok {
		return
	}

	reward := 1000.0 / math.Max(latencyMs, rewardEpsFloor)

	s.Pulls++
	s.TotalReward += reward
	s.AvgReward = s.TotalReward / float64(s.Pulls)
	s.totalLatencyMs += latencyMs
	s.AvgLatencyMs = s.totalLatencyMs / float64(s.Pulls)

	a.st.TotalPulls++
	a.updatesSinceSave++

	if a.updatesSinceSave >= a.checkpointEvery {
		a.saveLocked()
		a.updatesSinceSave = 0
	}
}

// UpdatesSincePersist reports how many Update calls have accumulated since
// the last checkpoint write, for staleness reporting.
func (a *Agent) UpdatesSincePersist() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updatesSinceSave
}

// Stats returns a snapshot of the agent's current statistics, safe to
// serialize directly as the agent_stats() service response.
func (a *Agent) Stats() map[string]ArmStat {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]ArmStat, len(ArmNames))
	for _, name := range ArmNames {
		s := a.st.Statistics[name]
		out[name] = ArmStat{
			Pulls:        s.Pulls,
			TotalReward:  s.TotalReward,
			AvgReward:    s.AvgReward,
			AvgLatencyMs: s.AvgLatencyMs,
		}
	}
	return out
}

// ArmStat is the public, read-only view of a single arm's statistics.
type ArmStat struct {
	Pulls        int64
	TotalReward  float64
	AvgReward    float64
	AvgLatencyMs float64
}

// TotalPulls returns the number of updates recorded across all arms.
func (a *Agent) TotalPulls() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.TotalPulls
}

// Save forces an immediate checkpoint to disk.
func (a *Agent) Save() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveLocked()
}

// Reset zeroes all statistics and removes the persisted checkpoint.
func (a *Agent) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st = a.zeroState()
	a.updatesSinceSave = 0

	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (a *Agent) saveLocked() error {
	tmp := a.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(a.st); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}
