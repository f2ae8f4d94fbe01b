package executor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/position"
	"hyperdrift-taker/pkg/domain"
)

// testState bundles the shared singletons an admission-pipeline test
// needs: the position tracker's handle plus the latch and budget Gates
// was built against.
type testState struct {
	handle   *position.Handle
	tracker  *position.Tracker
	hardStop *domain.HardStopLatch
	budget   *domain.ActionBudget
}

func newTestTracker(t *testing.T) (*position.Handle, *position.Tracker) {
	t.Helper()
	tr := position.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go tr.Run(ctx)
	return tr.Handle(), tr
}

// setPosition drives a synthetic fill through the real actor so the
// resulting cached position is visible via the handle, exactly as the
// executor would observe it in production (no unexported-field pokes).
func setPosition(t *testing.T, h *position.Handle, key domain.MarketKey, side domain.Side, size, price decimal.Decimal) {
	t.Helper()
	if !h.TrySend(position.Message{Kind: position.Fill, Market: key, FillSide: side, FillSize: size, FillPrice: price}) {
		t.Fatal("expected TrySend to succeed")
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pos, ok := h.Position(key); ok && !pos.IsFlat() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("position was not applied before deadline")
}
