package settlement

import (
	"context"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/events"
	"github.com/stenbridge/settlement-service/pkg/resilience"
	"github.com/stenbridge/settlement-service/pkg/shutdown"
)

// AutoSettler runs an instant-settle pass whenever a fresh authorization is
// recorded on the ledger. The pass runs in its own goroutine with its own
// timeout budget so webhook handling never waits on the gateway capture; the
// tracker lets shutdown drain passes that are already in flight.
//
// A pass that is skipped (shutdown) or fails is not lost work: the eligible
// items stay unsettled and the next InstantSettle for the handle picks them
// up.
type AutoSettler struct {
	svc      *Service
	policy   Policy
	timeouts *resilience.TimeoutConfig
	tracker  *shutdown.InFlightTracker
	logger   *zap.Logger
}

// NewAutoSettler creates an auto settler applying policy on every
// authorization
func NewAutoSettler(svc *Service, policy Policy, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *AutoSettler {
	return &AutoSettler{
		svc:      svc,
		policy:   policy,
		timeouts: timeouts,
		tracker:  shutdown.NewInFlightTracker("auto-settle", logger),
		logger:   logger,
	}
}

// Subscribe registers the settler on the bus
func (a *AutoSettler) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.OrderAuthorized{}.Name(), a.onAuthorized)
}

func (a *AutoSettler) onAuthorized(_ context.Context, e events.Event) {
	authorized, ok := e.(events.OrderAuthorized)
	if !ok {
		return
	}
	if !a.tracker.Add() {
		// Shutting down; the items settle on the next pass for this handle.
		return
	}
	go func() {
		defer a.tracker.Done()

		// Detached from the webhook request context: the delivery has been
		// acknowledged by the time this runs.
		ctx, cancel := a.timeouts.CriticalPathContext(context.Background())
		defer cancel()

		result, err := a.svc.InstantSettle(ctx, authorized.Handle, a.policy)
		if err != nil {
			a.logger.Error("auto settle failed",
				zap.String("handle", authorized.Handle),
				zap.Error(err),
			)
			return
		}
		if len(result.SettledItems) > 0 {
			a.logger.Info("auto settle completed",
				zap.String("handle", authorized.Handle),
				zap.Int("items", len(result.SettledItems)),
				zap.Int64("amount", result.SettledAmount),
			)
		}
	}()
}

// Shutdown waits for settle passes already started
func (a *AutoSettler) Shutdown(ctx context.Context) error {
	return a.tracker.Shutdown(ctx)
}
