package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"linkup/contract"
	"linkup/errors"
)

const (
	initialRestartDelay = 200 * time.Millisecond
	maxRestartDelay     = 5 * time.Second
)

// Supervisor keeps the presence, capacity, health and reporter workers alive.
// A worker returning an error or panicking is restarted with a growing delay;
// a worker returning nil is done. Everything stops with the parent context or Stop.
type Supervisor struct {
	log *slog.Logger
	wg  sync.WaitGroup

	mu       sync.Mutex
	cancel   context.CancelFunc
	workers  []contract.Worker
	restarts map[string]int
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log, restarts: make(map[string]int)}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every added worker and blocks until all of them are done.
func (s *Supervisor) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	workers := append([]contract.Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, worker := range workers {
		s.Start(ctx, worker)
	}
	s.wg.Wait()
}

// Start supervises a single worker in its own goroutine.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	delay := initialRestartDelay
	s.log.Debug("Worker started", "worker", name)

	for {
		err := runProtected(ctx, worker)
		switch {
		case ctx.Err() != nil:
			s.log.Debug("Worker stopped", "worker", name)
			return
		case err == nil:
			s.log.Info("Worker finished", "worker", name)
			return
		}

		restarts := s.recordRestart(name)
		s.log.Warn("Worker failed, restarting",
			"worker", name, "restarts", restarts, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRestartDelay)
	}
}

// runProtected turns a panic of the worker into an ErrWorkerPanic error.
func runProtected(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

func (s *Supervisor) recordRestart(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts[name]++
	return s.restarts[name]
}

// Restarts returns how many times the named worker was restarted.
func (s *Supervisor) Restarts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[name]
}

// Stop cancels the supervised workers; Run returns once they are done.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
