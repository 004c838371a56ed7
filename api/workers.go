package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"portscan/scanner"
)

// popRetryDelay throttles a worker after a failed queue read.
const popRetryDelay = time.Second

// Runner executes a single scan request. *scanner.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, req scanner.Request) (scanner.Result, error)
}

// StartWorkers launches background goroutines that process scan tasks until
// ctx is done. The returned WaitGroup completes when every worker has exited.
func StartWorkers(ctx context.Context, store TaskStore, runner Runner, logger *slog.Logger, numWorkers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			workerLoop(ctx, store, runner, logger)
		}()
	}
	return &wg
}

func workerLoop(ctx context.Context, store TaskStore, runner Runner, logger *slog.Logger) {
	for {
		taskID, err := store.PopFromQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker failed to pop task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(popRetryDelay):
			}
			continue
		}

		processTask(ctx, store, runner, logger, taskID)
	}
}

func processTask(ctx context.Context, store TaskStore, runner Runner, logger *slog.Logger, taskID string) {
	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			logger.Warn("worker task disappeared", "task_id", taskID)
			return
		}
		logger.Error("worker failed to load task", "task_id", taskID, "error", err)
		return
	}

	task.Status = StatusRunning
	task.Error = ""
	task.Results = nil
	task.Counts = nil
	task.CompletedAt = nil
	if err := store.UpdateTask(ctx, task); err != nil {
		logger.Error("worker failed to mark task running", "task_id", taskID, "error", err)
		return
	}

	ports, err := scanner.ResolvePorts(task.Ports)
	if err != nil {
		failTask(ctx, task, store, logger, err)
		return
	}

	req, err := scanner.NewRequest(task.Host, ports, time.Duration(task.TimeoutMS)*time.Millisecond, task.Concurrency)
	if err != nil {
		failTask(ctx, task, store, logger, err)
		return
	}

	result, err := runner.Run(ctx, req)
	if err != nil {
		failTask(ctx, task, store, logger, err)
		return
	}
	// A shutdown mid-scan leaves canceled outcomes behind; that is not a
	// finished scan.
	if ctx.Err() != nil {
		failTask(ctx, task, store, logger, fmt.Errorf("scan %s: %w", scanner.CauseCanceled, ctx.Err()))
		return
	}

	task.Status = StatusCompleted
	task.Results = result.Outcomes
	task.Counts = countsFor(result.Outcomes)
	now := time.Now().UTC()
	task.CompletedAt = &now

	if err := store.UpdateTask(context.WithoutCancel(ctx), task); err != nil {
		logger.Error("worker failed to update task", "task_id", task.ID, "error", err)
		return
	}
	logger.Info("worker task completed", "task_id", task.ID, "ports", len(result.Outcomes))
}

// failTask persists the terminal failed state even when ctx is already done.
func failTask(ctx context.Context, task *ScanTask, store TaskStore, logger *slog.Logger, err error) {
	logger.Error("worker task failed", "task_id", task.ID, "error", err)
	task.Status = StatusFailed
	task.Error = err.Error()
	task.Results = nil
	task.Counts = nil
	now := time.Now().UTC()
	task.CompletedAt = &now
	if updateErr := store.UpdateTask(context.WithoutCancel(ctx), task); updateErr != nil {
		logger.Error("worker failed to persist failed task", "task_id", task.ID, "error", updateErr)
	}
}
