package executor

import (
	"context"
	"log/slog"
	"time"

	"hyperdrift-taker/internal/detector"
	"hyperdrift-taker/internal/position"
	"hyperdrift-taker/pkg/domain"
)

// registerFallbackTimeout bounds the actor-only slow path a dropped
// mailbox send falls back to; it is not the executor's own tick
// cadence, just a guard against a wedged actor never making progress.
const registerFallbackTimeout = time.Second

// Submitter is the tail of §4.5: given a dislocation signal that has
// already cleared the caller's READY-TRADING contract, it runs the
// admission gates, enqueues the resulting order on the batch scheduler,
// and informs the position tracker of the new reservation.
type Submitter struct {
	gates     *Gates
	scheduler *Scheduler
	tracker   *position.Tracker
	hardStop  *domain.HardStopLatch
	logger    *slog.Logger
}

// NewSubmitter wires the three collaborators together.
func NewSubmitter(gates *Gates, scheduler *Scheduler, tracker *position.Tracker, hardStop *domain.HardStopLatch, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{gates: gates, scheduler: scheduler, tracker: tracker, hardStop: hardStop, logger: logger.With("component", "executor_submit")}
}

// Submit turns one accepted dislocation signal into a pending order, or
// reports why it did not. A returned error is always either Rejected
// or Skipped per §4.5 — never a transport fault, since nothing here
// touches the network (that is the tick loop's job).
func (s *Submitter) Submit(sig detector.Signal, tif domain.TimeInForce) error {
	cand := Candidate{Key: sig.Market, Side: sig.Side, Price: sig.LimitPrice, Size: sig.SuggestedSize}

	cloid, err := s.gates.Admit(cand)
	if err != nil {
		return err
	}

	order := domain.PendingOrder{
		Cloid:       cloid,
		Key:         sig.Market,
		Side:        sig.Side,
		Price:       sig.LimitPrice,
		Size:        sig.SuggestedSize,
		Tif:         tif,
		ReduceOnly:  false,
		SubmittedAt: time.Now(),
	}

	if result := s.scheduler.EnqueueNewOrder(order); result != Queued {
		s.gates.Release(cand.Key)
		s.logger.Warn("new order dropped at the scheduler", "market", cand.Key.String(), "result", result)
		return nil
	}

	if err := s.tracker.Handle().FinalizeOrder(order); err != nil {
		// Mailbox momentarily full: fall back to the actor-only slow
		// path in its own goroutine so Submit never blocks the caller's
		// signal loop. The fallback re-checks the hard-stop latch first
		// — if it tripped in the interim, registering now would only
		// create zombie tracker state for an order the scheduler is
		// about to drop anyway.
		go func() {
			if s.hardStop.IsTripped() {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), registerFallbackTimeout)
			defer cancel()
			if err := s.tracker.RegisterOrderActorOnly(ctx, order); err != nil {
				s.logger.Error("fallback order registration failed", "market", cand.Key.String(), "error", err)
			}
		}()
	}

	return nil
}
