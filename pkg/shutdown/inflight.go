package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InFlightTracker counts units of work still being applied — webhook
// deliveries mid-reconciliation, auto-settle passes mid-capture — so
// shutdown can drain them before the process exits. Work refused during
// shutdown is not lost: the gateway redelivers refused webhooks and
// unsettled items are picked up by the next settle pass.
type InFlightTracker struct {
	wg         sync.WaitGroup
	shutdownCh chan struct{}
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a named in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add registers one unit of work. Returns false once shutdown has started;
// the caller must not begin the work.
func (ift *InFlightTracker) Add() bool {
	select {
	case <-ift.shutdownCh:
		return false
	default:
		ift.wg.Add(1)
		return true
	}
}

// Done marks one unit of work finished (typically via defer)
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// Shutdown refuses new work and waits for everything in flight. Returns the
// context error when the drain does not finish in time; webhook deliveries
// cut off here are redelivered by the gateway.
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	close(ift.shutdownCh)

	ift.logger.Info("Draining in-flight work",
		zap.String("tracker", ift.name),
	)

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("In-flight work drained",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Drain timeout, abandoning remaining work",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// backgroundWorker runs one goroutine until shutdown
type backgroundWorker struct {
	name   string
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBackgroundWorker(name string, logger *zap.Logger) *backgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &backgroundWorker{
		name:   name,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// start runs work in its own goroutine. The work function must return when
// its context is cancelled.
func (bw *backgroundWorker) start(work func(ctx context.Context)) {
	bw.wg.Add(1)

	go func() {
		defer bw.wg.Done()

		bw.logger.Info("Background worker started",
			zap.String("worker", bw.name),
		)
		work(bw.ctx)
		bw.logger.Info("Background worker stopped",
			zap.String("worker", bw.name),
		)
	}()
}

// Shutdown cancels the worker and waits for it, bounded by ctx
func (bw *backgroundWorker) Shutdown(ctx context.Context) error {
	bw.cancel()

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bw.logger.Warn("Background worker shutdown timeout",
			zap.String("worker", bw.name),
		)
		return ctx.Err()
	}
}

// PeriodicWorker reruns a function on a fixed interval: once immediately on
// Start, then every tick until shutdown. The gateway webhook-settings sync
// runs on one of these.
type PeriodicWorker struct {
	*backgroundWorker
	interval time.Duration
}

// NewPeriodicWorker creates a periodic worker with the given interval
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		backgroundWorker: newBackgroundWorker(name, logger),
		interval:         interval,
	}
}

// Start begins the periodic runs
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	pw.backgroundWorker.start(func(ctx context.Context) {
		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		work(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	})
}
