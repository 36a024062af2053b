package nanoindex

import (
	"fmt"

	"github.com/nanoindex/nanoindex/internal/agent"
	"github.com/nanoindex/nanoindex/internal/distance"
)

// Config holds every enumerated configuration knob, applied via Option
// before the engine opens its on-disk state.
type Config struct {
	DataDir         string
	Dim             int
	InitialCapacity int
	DefaultNProbe   int
	DefaultMaxCodes int
	AgentAlgorithm  agent.Algorithm
	AgentEpsilon    float64
	CheckpointEvery int
	MetricsEnabled  bool
	Metric          distance.Metric
}

// Option configures a new Engine, in the same functional-options shape the
// teacher uses for its Database/Collection configuration.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		DataDir:         "./data",
		InitialCapacity: 1024,
		DefaultNProbe:   10,
		DefaultMaxCodes: 50000,
		AgentAlgorithm:  agent.EpsilonGreedy,
		AgentEpsilon:    0.1,
		CheckpointEvery: 10,
		MetricsEnabled:  true,
		Metric:          distance.L2,
	}
}

// WithMetric selects the distance metric the flat-scan path uses. IVF
// search always uses L2 internally (centroids are trained by L2 K-means);
// this only affects Engine.Search's flat fallback. "l2" and "cosine" are
// the only recognized names.
func WithMetric(name string) Option {
	return func(c *Config) error {
		switch name {
		case "l2":
			c.Metric = distance.L2
		case "cosine":
			c.Metric = distance.MetricCosine
		default:
			return fmt.Errorf("%w: %w: %q", ErrInvalidInput, ErrUnknownMetric, name)
		}
		return nil
	}
}

// WithDataDir sets the root directory for persistence.
func WithDataDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("%w: data dir must not be empty", ErrInvalidInput)
		}
		c.DataDir = dir
		return nil
	}
}

// WithDimension sets the fixed vector dimension. Required at create time.
func WithDimension(dim int) Option {
	return func(c *Config) error {
		if dim <= 0 {
			return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidInput, dim)
		}
		c.Dim = dim
		return nil
	}
}

// WithInitialCapacity sets the initial row allocation for a new store.
func WithInitialCapacity(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("%w: initial capacity must be positive, got %d", ErrInvalidInput, n)
		}
		c.InitialCapacity = n
		return nil
	}
}

// WithDefaultProbe sets the nprobe/max_codes pair used when a search asks
// for the index without going through the agent.
func WithDefaultProbe(nprobe, maxCodes int) Option {
	return func(c *Config) error {
		if nprobe <= 0 || maxCodes <= 0 {
			return fmt.Errorf("%w: nprobe and max_codes must be positive", ErrInvalidInput)
		}
		c.DefaultNProbe = nprobe
		c.DefaultMaxCodes = maxCodes
		return nil
	}
}

// WithAgentAlgorithm selects epsilon-greedy or UCB1 arm selection.
func WithAgentAlgorithm(alg agent.Algorithm) Option {
	return func(c *Config) error {
		if alg != agent.EpsilonGreedy && alg != agent.UCB1 {
			return fmt.Errorf("%w: unknown agent algorithm %q", ErrInvalidInput, alg)
		}
		c.AgentAlgorithm = alg
		return nil
	}
}

// WithAgentEpsilon sets the epsilon-greedy exploration rate.
func WithAgentEpsilon(eps float64) Option {
	return func(c *Config) error {
		if eps < 0 || eps > 1 {
			return fmt.Errorf("%w: epsilon must be in [0,1], got %v", ErrInvalidInput, eps)
		}
		c.AgentEpsilon = eps
		return nil
	}
}

// WithCheckpointEvery sets how many agent updates elapse between
// checkpoints.
func WithCheckpointEvery(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("%w: checkpoint_every must be positive, got %d", ErrInvalidInput, n)
		}
		c.CheckpointEvery = n
		return nil
	}
}

// WithMetrics toggles Prometheus metric registration.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}
