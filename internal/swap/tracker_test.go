package swap

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"swapScope/internal/ledger"
)

func awaitTracker(t *testing.T, tr *Tracker) Outcome {
	t.Helper()
	select {
	case outcome := <-tr.Done():
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("tracker never finished")
		return Outcome{}
	}
}

func TestTrackerSettlesOnAllSuccess(t *testing.T) {
	events := make(chan ledger.Event, 4)
	disposed := 0
	tr := NewTracker([]uint64{11, 22, 33}, events, func() { disposed++ })
	go tr.Run(context.Background())

	// Out-of-order delivery must not matter.
	events <- ledger.Event{CorrelationID: 33, Kind: ledger.EventSuccess, Spent: decimal.NewFromInt(30), Received: decimal.NewFromInt(31)}
	events <- ledger.Event{CorrelationID: 11, Kind: ledger.EventSuccess, Spent: decimal.NewFromInt(10), Received: decimal.NewFromInt(11)}
	events <- ledger.Event{CorrelationID: 22, Kind: ledger.EventSuccess, Spent: decimal.NewFromInt(20), Received: decimal.NewFromInt(21)}

	outcome := awaitTracker(t, tr)
	if outcome.Status != TrackSettled {
		t.Fatalf("expected settled, got %v", outcome.Status)
	}
	if len(outcome.Hops) != 3 {
		t.Fatalf("expected 3 hop results, got %d", len(outcome.Hops))
	}
	// Results come back in hop order regardless of arrival order.
	for i, id := range []uint64{11, 22, 33} {
		if outcome.Hops[i].CorrelationID != id {
			t.Fatalf("hop %d carries id %d, want %d", i, outcome.Hops[i].CorrelationID, id)
		}
	}
	if disposed != 1 {
		t.Fatalf("dispose called %d times", disposed)
	}
}

func TestTrackerCancelFinalizesEarly(t *testing.T) {
	events := make(chan ledger.Event, 4)
	tr := NewTracker([]uint64{11, 22, 33}, events, nil)
	go tr.Run(context.Background())

	events <- ledger.Event{CorrelationID: 11, Kind: ledger.EventSuccess, Spent: decimal.NewFromInt(10), Received: decimal.NewFromInt(11)}
	events <- ledger.Event{CorrelationID: 22, Kind: ledger.EventCancelled}

	outcome := awaitTracker(t, tr)
	if outcome.Status != TrackCancelled {
		t.Fatalf("expected cancelled, got %v", outcome.Status)
	}
	if outcome.CancelledHop != 1 {
		t.Fatalf("expected cancellation at hop 1, got %d", outcome.CancelledHop)
	}
	// The settled first hop is carried for partial-execution reporting.
	if len(outcome.Hops) != 1 || outcome.Hops[0].CorrelationID != 11 {
		t.Fatalf("expected hop 0 result only, got %+v", outcome.Hops)
	}
}

func TestTrackerIgnoresForeignEvents(t *testing.T) {
	events := make(chan ledger.Event, 4)
	tr := NewTracker([]uint64{11}, events, nil)
	go tr.Run(context.Background())

	events <- ledger.Event{CorrelationID: 99, Kind: ledger.EventCancelled}
	events <- ledger.Event{CorrelationID: 11, Kind: ledger.EventSuccess, Spent: decimal.NewFromInt(10), Received: decimal.NewFromInt(9)}

	outcome := awaitTracker(t, tr)
	if outcome.Status != TrackSettled {
		t.Fatalf("foreign cancel must not finalize, got %v", outcome.Status)
	}
}

func TestTrackerAbortsOnClosedStream(t *testing.T) {
	events := make(chan ledger.Event, 4)
	tr := NewTracker([]uint64{11, 22}, events, nil)
	go tr.Run(context.Background())

	events <- ledger.Event{CorrelationID: 11, Kind: ledger.EventSuccess, Spent: decimal.NewFromInt(10), Received: decimal.NewFromInt(11)}
	close(events)

	outcome := awaitTracker(t, tr)
	if outcome.Status != TrackAborted {
		t.Fatalf("expected aborted, got %v", outcome.Status)
	}
	if len(outcome.Hops) != 1 {
		t.Fatalf("expected the settled hop carried over, got %d", len(outcome.Hops))
	}
}

func TestTrackerAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan ledger.Event)
	disposed := 0
	tr := NewTracker([]uint64{11}, events, func() { disposed++ })
	go tr.Run(ctx)

	cancel()
	outcome := awaitTracker(t, tr)
	if outcome.Status != TrackAborted {
		t.Fatalf("expected aborted, got %v", outcome.Status)
	}
	if disposed != 1 {
		t.Fatalf("dispose called %d times", disposed)
	}
}
