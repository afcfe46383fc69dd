package swap

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"swapScope/internal/ledger"
)

// TrackerStatus is the terminal status of a tracked swap.
type TrackerStatus int

const (
	// TrackSettled means success events arrived for every hop.
	TrackSettled TrackerStatus = iota
	// TrackCancelled means some hop was rejected; earlier hops may have
	// settled and their results are carried for partial-execution reporting.
	TrackCancelled
	// TrackAborted means the subscription ended before a terminal event.
	TrackAborted
)

// HopOutcome is the confirmed result of a single hop.
type HopOutcome struct {
	CorrelationID uint64
	Spent         decimal.Decimal
	Received      decimal.Decimal
}

// Outcome is the tracker's terminal result.
type Outcome struct {
	Status       TrackerStatus
	CancelledHop int          // valid when Status == TrackCancelled
	Hops         []HopOutcome // settled hops, in hop order
}

// Tracker correlates an in-flight swap's hop correlation ids against the
// ledger's merged historical+live event stream. Overall success requires a
// success event for every hop; the first cancellation at hop k finalizes the
// swap as cancelled-at-k without waiting for later hops.
type Tracker struct {
	ids     []uint64
	index   map[uint64]int
	events  <-chan ledger.Event
	dispose func()

	once sync.Once
	done chan Outcome
}

// NewTracker builds a tracker over an already-open subscription. ids are the
// hop correlation ids in execution order; dispose tears the subscription down
// and is invoked exactly once, on settlement or Dispose.
func NewTracker(ids []uint64, events <-chan ledger.Event, dispose func()) *Tracker {
	index := make(map[uint64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	return &Tracker{
		ids:     ids,
		index:   index,
		events:  events,
		dispose: dispose,
		done:    make(chan Outcome, 1),
	}
}

// Run consumes the event stream until a terminal outcome. It is meant to be
// run in its own goroutine; the outcome is delivered through Done.
func (t *Tracker) Run(ctx context.Context) {
	settled := make(map[int]HopOutcome, len(t.ids))

	finish := func(outcome Outcome) {
		t.once.Do(func() {
			if t.dispose != nil {
				t.dispose()
			}
			t.done <- outcome
		})
	}

	for {
		select {
		case <-ctx.Done():
			finish(Outcome{Status: TrackAborted, Hops: collect(t.ids, settled)})
			return
		case ev, ok := <-t.events:
			if !ok {
				finish(Outcome{Status: TrackAborted, Hops: collect(t.ids, settled)})
				return
			}
			hop, known := t.index[ev.CorrelationID]
			if !known {
				continue
			}
			switch ev.Kind {
			case ledger.EventCancelled:
				finish(Outcome{
					Status:       TrackCancelled,
					CancelledHop: hop,
					Hops:         collect(t.ids, settled),
				})
				return
			case ledger.EventSuccess:
				settled[hop] = HopOutcome{
					CorrelationID: ev.CorrelationID,
					Spent:         ev.Spent,
					Received:      ev.Received,
				}
				if len(settled) == len(t.ids) {
					finish(Outcome{Status: TrackSettled, Hops: collect(t.ids, settled)})
					return
				}
			}
		}
	}
}

// Done delivers the terminal outcome once.
func (t *Tracker) Done() <-chan Outcome {
	return t.done
}

// Dispose unsubscribes without waiting for an outcome. Safe to call after
// settlement.
func (t *Tracker) Dispose() {
	t.once.Do(func() {
		if t.dispose != nil {
			t.dispose()
		}
		t.done <- Outcome{Status: TrackAborted}
	})
}

func collect(ids []uint64, settled map[int]HopOutcome) []HopOutcome {
	out := make([]HopOutcome, 0, len(settled))
	for i := range ids {
		if hop, ok := settled[i]; ok {
			out = append(out, hop)
		}
	}
	return out
}
