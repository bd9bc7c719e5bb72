// Package store provides SQLite and Postgres persistence for contacts and
// inbound signal records.
package store

import (
	"context"
	"time"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/signal"
)

// MergeLeaseName is the single lease guarding the duplicate-merge pass.
const MergeLeaseName = "merge"

// Store is the full persistence interface: canonical contacts, signal
// source records, and the lease that serializes merge passes.
type Store interface {
	contact.Store
	signal.Store

	// AcquireMergeLease takes the merge lease for holder. Returns false
	// when another live holder has it. Expired leases are stolen.
	AcquireMergeLease(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseMergeLease(ctx context.Context, holder string) error

	Migrate(ctx context.Context) error
	Close() error
}
