// Command nanoindex is a cobra CLI over the nanoindex.Engine facade,
// patterned on the pack's sqvect CLI (global persistent flags, one cobra
// Command per service operation, comma-separated vector flags). Commands
// that return a result print it as indented JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nanoindex/nanoindex"
	"github.com/nanoindex/nanoindex/internal/agent"
	"github.com/nanoindex/nanoindex/internal/bench"
)

var (
	dataDir         string
	dim             int
	nprobe          int
	maxCodes        int
	agentAlgorithm  string
	agentEpsilon    float64
	checkpointEvery int
	metricsEnabled  bool
	metric          string
)

var rootCmd = &cobra.Command{
	Use:           "nanoindex",
	Short:         "CLI for the nanoindex vector similarity engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func openEngine() (*nanoindex.Engine, error) {
	opts := []nanoindex.Option{
		nanoindex.WithDataDir(dataDir),
		nanoindex.WithDimension(dim),
		nanoindex.WithDefaultProbe(nprobe, maxCodes),
		nanoindex.WithAgentAlgorithm(agent.Algorithm(agentAlgorithm)),
		nanoindex.WithAgentEpsilon(agentEpsilon),
		nanoindex.WithCheckpointEvery(checkpointEvery),
		nanoindex.WithMetrics(metricsEnabled),
		nanoindex.WithMetric(metric),
	}
	return nanoindex.Open(opts...)
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	v := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid vector component %q", nanoindex.ErrInvalidInput, p)
		}
		v = append(v, float32(f))
	}
	return v, nil
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert one or more vectors bound to external IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorFlags, _ := cmd.Flags().GetStringArray("vector")
		idFlags, _ := cmd.Flags().GetInt64Slice("id")
		file, _ := cmd.Flags().GetString("file")

		var vectors [][]float32
		var ids []int64

		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading batch file: %w", err)
			}
			var batch struct {
				Vectors [][]float32 `json:"vectors"`
				IDs     []int64     `json:"ids"`
			}
			if err := json.Unmarshal(data, &batch); err != nil {
				return fmt.Errorf("%w: parsing batch file: %v", nanoindex.ErrInvalidInput, err)
			}
			vectors, ids = batch.Vectors, batch.IDs
		} else {
			if len(vectorFlags) != len(idFlags) {
				return fmt.Errorf("%w: --vector and --id must be supplied the same number of times", nanoindex.ErrInvalidInput)
			}
			for _, vs := range vectorFlags {
				v, err := parseVector(vs)
				if err != nil {
					return err
				}
				vectors = append(vectors, v)
			}
			ids = idFlags
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		res, err := eng.Add(vectors, ids)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Cluster the current store into an inverted file index",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		res, err := eng.Train(cmd.Context(), k)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for the nearest vectors to a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		topK, _ := cmd.Flags().GetInt("top-k")
		useIndex, _ := cmd.Flags().GetBool("use-index")
		useAgent, _ := cmd.Flags().GetBool("use-agent")

		query, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		res, err := eng.Search(cmd.Context(), query, topK, useIndex, useAgent)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the data store and drop the IVF index",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Reset(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var agentStatsCmd = &cobra.Command{
	Use:   "agent-stats",
	Short: "Print the adaptive agent's per-arm statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		return printJSON(eng.AgentStats())
	},
}

var agentResetCmd = &cobra.Command{
	Use:   "agent-reset",
	Short: "Zero the adaptive agent's statistics and checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.AgentReset(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /healthz and /metrics over HTTP until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			status, err := eng.Health(r.Context())
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if status.Status != "healthy" {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			json.NewEncoder(w).Encode(status)
		})

		srv := &http.Server{Addr: addr, Handler: mux}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.ListenAndServe() }()

		fmt.Printf("nanoindex serving on %s\n", addr)
		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a synthetic recall/latency benchmark against a fresh store",
	RunE: func(cmd *cobra.Command, args []string) error {
		numVectors, _ := cmd.Flags().GetInt("num-vectors")
		numQueries, _ := cmd.Flags().GetInt("num-queries")
		topK, _ := cmd.Flags().GetInt("top-k")
		clusters, _ := cmd.Flags().GetInt("clusters")
		useIndex, _ := cmd.Flags().GetBool("use-index")
		useAgent, _ := cmd.Flags().GetBool("use-agent")
		seed, _ := cmd.Flags().GetInt64("seed")

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		cfg := bench.Config{
			NumVectors: numVectors,
			Dim:        dim,
			NumQueries: numQueries,
			TopK:       topK,
			Clusters:   clusters,
			UseIndex:   useIndex,
			UseAgent:   useAgent,
			Seed:       seed,
		}
		report, err := bench.Run(cmd.Context(), eng, cfg)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "root directory for persistence")
	rootCmd.PersistentFlags().IntVar(&dim, "dim", 0, "vector dimension (required)")
	rootCmd.PersistentFlags().IntVar(&nprobe, "nprobe", 10, "default number of IVF cells to probe")
	rootCmd.PersistentFlags().IntVar(&maxCodes, "max-codes", 50000, "default scan budget across probed cells")
	rootCmd.PersistentFlags().StringVar(&agentAlgorithm, "agent-algorithm", "epsilon-greedy", "bandit algorithm: epsilon-greedy or ucb1")
	rootCmd.PersistentFlags().Float64Var(&agentEpsilon, "agent-epsilon", 0.1, "epsilon-greedy exploration rate")
	rootCmd.PersistentFlags().IntVar(&checkpointEvery, "checkpoint-every", 10, "agent updates between checkpoints")
	rootCmd.PersistentFlags().BoolVar(&metricsEnabled, "metrics", true, "register Prometheus metrics")
	rootCmd.PersistentFlags().StringVar(&metric, "metric", "l2", "flat-scan distance metric: l2 or cosine")

	addCmd.Flags().StringArray("vector", nil, "vector values, comma-separated (repeatable)")
	addCmd.Flags().Int64Slice("id", nil, "external ID paired by position with --vector (repeatable)")
	addCmd.Flags().String("file", "", "JSON file of {\"vectors\": [[...]], \"ids\": [...]}")

	trainCmd.Flags().Int("k", 1, "number of clusters")

	searchCmd.Flags().String("vector", "", "query vector, comma-separated")
	searchCmd.Flags().Int("top-k", 10, "number of results")
	searchCmd.Flags().Bool("use-index", false, "search via the trained IVF index")
	searchCmd.Flags().Bool("use-agent", false, "let the adaptive agent pick the strategy")
	searchCmd.MarkFlagRequired("vector")

	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")

	benchCmd.Flags().Int("num-vectors", 5000, "synthetic vectors to seed")
	benchCmd.Flags().Int("num-queries", 200, "queries to issue")
	benchCmd.Flags().Int("top-k", 10, "top-k per query")
	benchCmd.Flags().Int("clusters", 32, "IVF clusters to train")
	benchCmd.Flags().Bool("use-index", true, "search via the trained IVF index")
	benchCmd.Flags().Bool("use-agent", false, "let the adaptive agent pick the strategy")
	benchCmd.Flags().Int64("seed", 1, "RNG seed for synthetic data")

	rootCmd.AddCommand(addCmd, trainCmd, searchCmd, resetCmd, agentStatsCmd, agentResetCmd, serveCmd, benchCmd)
}

// exitCode maps an engine/CLI error onto spec.md's §6 exit-code contract:
// 0 success, 2 invalid configuration, 3 I/O failure on open.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, nanoindex.ErrInvalidInput):
		return 2
	case errors.Is(err, nanoindex.ErrCorruptState), errors.Is(err, nanoindex.ErrStorageFatal):
		return 3
	default:
		return 1
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nanoindex: [%s] %v\n", nanoindex.CodeOf(err), err)
		os.Exit(exitCode(err))
	}
}
