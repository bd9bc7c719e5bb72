package contact

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrVersionConflict is returned by UpdateContact when the record changed
// underneath the caller. Safe to retry after re-reading.
var ErrVersionConflict = eris.New("contact: version conflict")

// Store defines persistence operations for canonical contacts.
// Lookups return (nil, nil) when no record matches.
type Store interface {
	CreateContact(ctx context.Context, c *Contact) error

	// UpdateContact writes c conditionally on c.Version matching the stored
	// record and increments the version. Returns ErrVersionConflict on a
	// lost race.
	UpdateContact(ctx context.Context, c *Contact) error

	GetContact(ctx context.Context, id string) (*Contact, error)
	FindByPhone(ctx context.Context, phone string) (*Contact, error)
	FindByEmail(ctx context.Context, email string) (*Contact, error)
	FindByName(ctx context.Context, firstName, lastName string) (*Contact, error)

	// ListContacts performs a full scan, used by the merge engine and the
	// lifecycle sweep.
	ListContacts(ctx context.Context) ([]Contact, error)

	// DeleteContact hard-deletes a record. Only the merge engine uses this;
	// user-initiated removal archives instead.
	DeleteContact(ctx context.Context, id string) error
}
