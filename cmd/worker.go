package main

import (
	"context"
	"errors"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/queue"
)

var (
	workerDrain       bool
	workerConcurrency int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued discovery jobs",
	Long:  "Claims pending jobs and runs a discovery session for each. Verification labels from every session train the link scorer. Runs until interrupted, or until the queue empties with --drain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDiscovery(ctx, "worker", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		// Cache hygiene on startup so long-lived workers don't accumulate
		// stale entries.
		if n, err := env.Store.DeleteExpiredDocuments(ctx); err != nil {
			zap.L().Warn("expired cache sweep failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("expired cache entries removed", zap.Int("count", n))
		}

		var trainer queue.Trainer
		if env.Scorer != nil {
			trainer = env.Scorer
		}
		proc := queue.NewProcessor(env.Store, env.Engine, trainer, cfg.Queue.MaxAttempts)

		concurrency := workerConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Queue.Concurrency
		}

		return runWorkers(ctx, proc, concurrency, time.Duration(cfg.Queue.PollSecs)*time.Second, workerDrain)
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerDrain, "drain", false, "exit when the queue is empty instead of polling")
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "concurrent jobs (default queue.concurrency)")
	rootCmd.AddCommand(workerCmd)
}

// runWorkers processes jobs with the given concurrency until ctx is
// cancelled, or until the queue empties when drain is set.
func runWorkers(ctx context.Context, proc *queue.Processor, concurrency int, poll time.Duration, drain bool) error {
	zap.L().Info("worker started",
		zap.Int("concurrency", concurrency),
		zap.Bool("drain", drain),
	)

	g, gctx := errgroup.WithContext(ctx)

	var completed, failed atomic.Int64
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return workerLoop(gctx, proc, poll, drain, &completed, &failed)
		})
	}

	err := g.Wait()
	zap.L().Info("worker stopped",
		zap.Int64("completed", completed.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return err
}

// workerLoop claims and runs jobs until the context ends. Job-level
// failures are recorded on the job and counted; only queue infrastructure
// errors abort the loop.
func workerLoop(ctx context.Context, proc *queue.Processor, poll time.Duration, drain bool, completed, failed *atomic.Int64) error {
	for {
		job, err := proc.ProcessNext(ctx)
		switch {
		case errors.Is(err, queue.ErrQueueEmpty):
			if drain {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poll):
			}
		case err != nil:
			if ctx.Err() != nil {
				return nil // shutdown, not a queue fault
			}
			return err
		case job.Status == model.JobStatusCompleted:
			completed.Add(1)
		default:
			failed.Add(1)
		}
	}
}
