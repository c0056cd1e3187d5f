// ============================================================================
// aio-aws-batch CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command line interface for the batch job engine.
//
// Command Structure:
//   batchctl
//   ├── run        # Submit jobs from a JSON file and drive them to completion
//   ├── status     # Print store occupancy by job status
//   └── recover    # Re-drive non-terminal rows found in the State Store
//
// Grounded on the teacher's internal/cli.BuildCLI: a root command plus
// verb subcommands, YAML config loaded via --config, signal handling for
// SIGINT/SIGTERM, and an optional background metrics HTTP server.
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mhconradt/aio-aws/internal/batchapi"
	"github.com/mhconradt/aio-aws/internal/batchapi/awsbatch"
	"github.com/mhconradt/aio-aws/internal/batchjob"
	"github.com/mhconradt/aio-aws/internal/config"
	"github.com/mhconradt/aio-aws/internal/jobmanager"
	"github.com/mhconradt/aio-aws/internal/metrics"
	"github.com/mhconradt/aio-aws/internal/query"
	"github.com/mhconradt/aio-aws/internal/rategate"
	"github.com/mhconradt/aio-aws/internal/runner"
	"github.com/mhconradt/aio-aws/internal/store"
	"github.com/mhconradt/aio-aws/internal/store/filestore"
	"github.com/mhconradt/aio-aws/internal/store/redisstore"
	"github.com/mhconradt/aio-aws/internal/waiter"
)

var log = slog.Default()

var configPath string

// BuildCLI assembles the batchctl root command and its subcommands.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "batchctl",
		Short:   "Submit and drive AWS Batch jobs through to completion",
		Version: "1.0.0",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildStatusCommand())
	root.AddCommand(buildRecoverCommand())
	return root
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.Redis.Addr})
		opts := redisstore.DefaultOptions()
		if cfg.Store.Redis.Prefix != "" {
			opts.Prefix = cfg.Store.Redis.Prefix
		}
		return redisstore.New(client, opts), nil
	case "file", "":
		return filestore.New(cfg.Store.File.Path), nil
	default:
		return nil, fmt.Errorf("cli: unknown store backend %q", cfg.Store.Backend)
	}
}

func buildEngine(ctx context.Context, cfg config.Config) (*runner.Runner, store.Store, *rategate.Gate, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	gate := rategate.New(rategate.Config{
		Width:     cfg.Gate.Width,
		MinJitter: cfg.Retries.MinJitter,
		MaxJitter: cfg.Retries.MaxJitter,
	})

	client, err := awsbatch.New(ctx, cfg.Gate.Width)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cli: build aws batch client: %w", err)
	}

	adapter := batchapi.New(client, gate, cfg.Retries.MaxAttempts, awsbatch.IsThrottled)
	w := waiter.New(adapter, waiter.Config{
		StartPause: cfg.Retries.StartPause,
		MinPause:   cfg.Retries.MinPause,
		MaxPause:   cfg.Retries.MaxPause,
		MinJitter:  cfg.Retries.MinJitter,
		MaxJitter:  cfg.Retries.MaxJitter,
		MaxMisses:  cfg.Jobs.MaxMisses,
	})
	mgr := jobmanager.New(adapter, w, st)
	return runner.New(mgr), st, gate, nil
}

type jobSpec struct {
	JobName       string   `json:"job_name"`
	JobQueue      string   `json:"job_queue"`
	JobDefinition string   `json:"job_definition"`
	Command       []string `json:"command,omitempty"`
	MaxTries      int      `json:"max_tries,omitempty"`
}

func readJobSpecs(path string) ([]*batchjob.Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read job file %s: %w", path, err)
	}
	var specs []jobSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("cli: parse job file %s: %w", path, err)
	}
	jobs := make([]*batchjob.Job, 0, len(specs))
	for _, s := range specs {
		j := batchjob.New(s.JobName, s.JobQueue, s.JobDefinition)
		j.Command = s.Command
		if s.MaxTries > 0 {
			j.MaxTries = s.MaxTries
		}
		j.Normalize()
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func buildRunCommand() *cobra.Command {
	var jobFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit jobs from a JSON file and drive them to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(jobFile)
		},
	}
	cmd.Flags().StringVarP(&jobFile, "file", "f", "", "JSON file of job definitions")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runJobs(jobFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	jobs, err := readJobSpecs(jobFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, st, gate, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer gate.Close()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(prometheus.DefaultRegisterer)
		go func() {
			log.Info("starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	toRun, err := store.JobsToRun(ctx, jobs, st)
	if err != nil {
		return fmt.Errorf("cli: determine jobs to run: %w", err)
	}
	log.Info("submitting jobs", "total", len(jobs), "to_run", len(toRun))
	if collector != nil {
		collector.UpdateJobStats(0, len(toRun))
		for range toRun {
			collector.RecordSubmitted()
		}
	}

	results := eng.Run(ctx, toRun)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	succeeded, failed := 0, 0
	for {
		select {
		case res, ok := <-results:
			if !ok {
				log.Info("run complete", "succeeded", succeeded, "failed", failed)
				return nil
			}
			latency := resultLatencySeconds(res)
			if res.Err != nil {
				failed++
				log.Error("job did not succeed", "job_name", res.Job.JobName, "error", res.Err)
				if collector != nil {
					collector.RecordFailed(latency)
				}
			} else {
				succeeded++
				log.Info("job succeeded", "job_name", res.Job.JobName)
				if collector != nil {
					collector.RecordSucceeded(latency)
				}
			}
			if collector != nil {
				collector.UpdateJobStats(len(toRun)-succeeded-failed, 0)
				collector.UpdateGateStats(gate.InFlight())
			}
		case <-sigCh:
			log.Info("received shutdown signal, stopping gracefully")
			eng.Stop()
			return nil
		}
	}
}

func resultLatencySeconds(res runner.Result) float64 {
	if elapsed, ok := res.Job.Elapsed(); ok {
		return elapsed.Seconds()
	}
	return 0
}

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print store occupancy by job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus()
		},
	}
}

func printStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	all, err := st.All(ctx)
	if err != nil {
		return fmt.Errorf("cli: list jobs: %w", err)
	}

	running, err := query.FindRunning(ctx, all, nil)
	if err != nil {
		return err
	}
	complete, err := query.FindComplete(ctx, all, nil)
	if err != nil {
		return err
	}

	fmt.Printf("total: %d running: %d complete: %d\n", len(all), len(running), len(complete))
	return nil
}

func buildRecoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-drive every non-terminal row found in the State Store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return recoverJobs()
		},
	}
}

func recoverJobs() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, st, gate, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer gate.Close()

	all, err := st.All(ctx)
	if err != nil {
		return fmt.Errorf("cli: list jobs: %w", err)
	}
	running, err := query.FindRunning(ctx, all, nil)
	if err != nil {
		return err
	}
	log.Info("recovering in-flight jobs", "count", len(running))

	start := time.Now()
	results := eng.Run(ctx, running)
	succeeded, failed := 0, 0
	for res := range results {
		if res.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	log.Info("recovery complete", "succeeded", succeeded, "failed", failed, "elapsed", time.Since(start))
	return nil
}
