// Package signal defines persistence for inbound signal source records.
// Raw payloads are saved before processing so nothing is ever silently
// dropped, and the pipeline writes its outcome back to the source record.
package signal

import (
	"context"
	"time"

	"github.com/clahage/my-clever-crm-sub012/internal/model"
)

// Result is the processing outcome written back to a source record.
type Result struct {
	ContactID   string
	Action      string // "created" or "updated"
	Err         string // non-empty marks the signal failed
	ProcessedAt time.Time
}

// Store persists inbound signal records.
type Store interface {
	// SaveSignal stores a raw signal with processed=false and returns the
	// record id.
	SaveSignal(ctx context.Context, sig model.Signal) (string, error)

	// GetSignal returns (nil, nil) when no record matches.
	GetSignal(ctx context.Context, id string) (*model.SignalRecord, error)

	// ListPendingSignals returns unprocessed records, oldest first.
	ListPendingSignals(ctx context.Context, limit int) ([]model.SignalRecord, error)

	// MarkProcessed writes the pipeline outcome back to the source record.
	// A Result with a non-empty Err marks the record failed (processed
	// stays false so it can be retried by the caller).
	MarkProcessed(ctx context.Context, id string, res Result) error
}
