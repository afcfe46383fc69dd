package storage

import "swapScope/internal/model"

// JournalSink defines a sink for finished swap records.
type JournalSink interface {
	PutSwapBatch(records []model.SwapRecord) error
}
