package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"swapScope/internal/ledger"
)

const defaultLookbackBlocks = 128

// SubscribeEvents streams decoded router confirmations for the owner. The
// first poll replays not-yet-seen historical logs from the lookback window;
// later polls deliver live logs, so the channel carries both merged in
// observation order. The returned dispose func stops the poller and closes
// the channel.
func (c *Client) SubscribeEvents(ctx context.Context, _ string) (<-chan ledger.Event, func(), error) {
	latest, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("latest block: %w", err)
	}

	lookback := c.opts.LookbackBlocks
	if lookback == 0 {
		lookback = defaultLookbackBlocks
	}
	from := uint64(0)
	if latest > lookback {
		from = latest - lookback
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan ledger.Event, 16)

	go c.pollEvents(streamCtx, from, events)

	var once sync.Once
	dispose := func() { once.Do(cancel) }
	return events, dispose, nil
}

func (c *Client) pollEvents(ctx context.Context, from uint64, out chan<- ledger.Event) {
	defer close(out)

	seen := make(map[string]uint64)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		to, err := c.ethClient.BlockNumber(ctx)
		if err == nil && to >= from {
			logs, err := c.ethClient.FilterLogs(ctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(from),
				ToBlock:   new(big.Int).SetUint64(to),
				Addresses: []common.Address{c.router},
			})
			if err != nil {
				c.logger.Warn("filter confirmation logs", zap.Error(err))
			} else {
				for _, log := range logs {
					key := fmt.Sprintf("%s:%d", log.TxHash.Hex(), log.Index)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = log.BlockNumber

					event, ok := c.decodeEvent(log)
					if !ok {
						continue
					}
					select {
					case out <- event:
					case <-ctx.Done():
						return
					}
				}
				from = to + 1
				pruneSeen(seen, from)
			}
		} else if err != nil {
			c.logger.Warn("latest block for event poll", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pruneSeen drops dedup entries below the poll window; those blocks are never
// queried again.
func pruneSeen(seen map[string]uint64, from uint64) {
	for key, block := range seen {
		if block < from {
			delete(seen, key)
		}
	}
}

// decodeEvent matches a raw log against the router's known confirmation
// shapes. Unknown logs are skipped.
func (c *Client) decodeEvent(log types.Log) (ledger.Event, bool) {
	routerABI, err := routerABIInstance()
	if err != nil || len(log.Topics) == 0 {
		return ledger.Event{}, false
	}

	event, err := routerABI.EventByID(log.Topics[0])
	if err != nil {
		return ledger.Event{}, false
	}

	values, err := routerABI.Unpack(event.Name, log.Data)
	if err != nil {
		c.logger.Warn("decode confirmation event", zap.String("event", event.Name), zap.Error(err))
		return ledger.Event{}, false
	}

	switch event.Name {
	case "SwapSucceeded":
		if len(values) < 3 {
			return ledger.Event{}, false
		}
		callID, ok := values[0].(uint64)
		if !ok {
			return ledger.Event{}, false
		}
		amountIn, err := asBigInt(values[1])
		if err != nil {
			return ledger.Event{}, false
		}
		amountOut, err := asBigInt(values[2])
		if err != nil {
			return ledger.Event{}, false
		}
		return ledger.Event{
			CorrelationID: callID,
			Kind:          ledger.EventSuccess,
			Spent:         decimal.NewFromBigInt(amountIn, 0),
			Received:      decimal.NewFromBigInt(amountOut, 0),
		}, true
	case "SwapCancelled":
		if len(values) < 1 {
			return ledger.Event{}, false
		}
		callID, ok := values[0].(uint64)
		if !ok {
			return ledger.Event{}, false
		}
		return ledger.Event{CorrelationID: callID, Kind: ledger.EventCancelled}, true
	default:
		return ledger.Event{}, false
	}
}
