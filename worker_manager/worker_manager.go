package worker_manager

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/fornellas/slogxt/log"
)

type workerType struct {
	name       string
	fn         func(context.Context) error
	cancelFunc context.CancelFunc
	errCh      chan error
}

// WorkerManager runs a group of workers that live and die together: the last added worker is the
// main one, and when any worker returns the main worker is cancelled. Wait then cancels the rest
// in reverse order of addition, so consumers stop before the producers they depend on.
type WorkerManager struct {
	mu      sync.Mutex
	workers []*workerType
}

func NewWorkerManager() *WorkerManager {
	return &WorkerManager{}
}

func (wm *WorkerManager) AddWorker(name string, fn func(context.Context) error) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.workers = append([]*workerType{{name: name, fn: fn}}, wm.workers...)
}

func (wm *WorkerManager) Start(ctx context.Context) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	ctx, logger := log.MustWithGroup(ctx, "Worker Manager > Workers")
	logger.Debug("Starting workers")
	for _, worker := range wm.workers {
		workerCtx, workerLogger := log.MustWithGroup(ctx, worker.name)
		workerCtx, worker.cancelFunc = context.WithCancel(workerCtx)
		worker.errCh = make(chan error, 1)
		go func() {
			var err error
			defer func() {
				if r := recover(); r != nil {
					workerLogger.Error("Panic", "recovered", r, "stack", string(debug.Stack()))
					err = fmt.Errorf("panic: %v", r)
				}
				workerLogger.Debug("Finished", "err", err)
				wm.Cancel(workerCtx)
				worker.errCh <- err
			}()
			workerLogger.Debug("Starting")
			err = worker.fn(workerCtx)
		}()
	}
	logger.Debug("All workers started")
}

// Cancel cancels the main worker.
func (wm *WorkerManager) Cancel(ctx context.Context) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if len(wm.workers) == 0 {
		return
	}
	worker := wm.workers[0]
	if worker.cancelFunc == nil {
		return
	}
	log.MustLogger(ctx).WithGroup("Worker Manager > Cancel").Debug("Cancelling", "name", worker.name)
	worker.cancelFunc()
}

// Wait waits for the main worker to return, then cancels and waits for the others. It returns
// each worker error by name.
func (wm *WorkerManager) Wait(ctx context.Context) map[string]error {
	wm.mu.Lock()
	workers := wm.workers
	wm.mu.Unlock()

	logger := log.MustLogger(ctx).WithGroup("Worker Manager > Wait")
	logger.Debug("Waiting for all workers")
	errMap := map[string]error{}
	for i, worker := range workers {
		workerLogger := logger.WithGroup(worker.name)
		if i > 0 {
			workerLogger.Debug("Cancelling")
			worker.cancelFunc()
		}
		workerLogger.Debug("Waiting")
		errMap[worker.name] = <-worker.errCh
	}

	wm.mu.Lock()
	wm.workers = nil
	wm.mu.Unlock()

	logger.Debug("All workers returned")
	return errMap
}

// JoinErrors joins the non nil errors returned by Wait, prefixed by worker name.
func JoinErrors(errMap map[string]error) error {
	names := make([]string, 0, len(errMap))
	for name := range errMap {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := errMap[name]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
