package contact

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MatchTier identifies which lookup stage produced a resolver match.
type MatchTier string

const (
	MatchNone  MatchTier = "none"
	MatchPhone MatchTier = "phone"
	MatchEmail MatchTier = "email"
	// MatchName is the weakest tier: exact first+last name. Updates applied
	// through it are flagged for manual review, never silently trusted.
	MatchName MatchTier = "name"
)

// Keys holds the normalized identity fields of an inbound signal.
type Keys struct {
	Phone     string
	Email     string
	FirstName string
	LastName  string
}

// Resolver finds the canonical contact an inbound signal belongs to.
type Resolver struct {
	store Store
}

// NewResolver creates an identity resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve runs the lookup cascade: exact phone, exact email, exact
// first+last name. The first match wins and no further lookups run.
// Returns (nil, MatchNone, nil) when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, keys Keys) (*Contact, MatchTier, error) {
	if keys.Phone != "" {
		c, err := r.store.FindByPhone(ctx, keys.Phone)
		if err != nil {
			return nil, MatchNone, eris.Wrap(err, "resolve: by phone")
		}
		if c != nil {
			zap.L().Debug("resolve: matched by phone",
				zap.String("phone", keys.Phone),
				zap.String("contact_id", c.ID),
			)
			return c, MatchPhone, nil
		}
	}

	if keys.Email != "" {
		c, err := r.store.FindByEmail(ctx, keys.Email)
		if err != nil {
			return nil, MatchNone, eris.Wrap(err, "resolve: by email")
		}
		if c != nil {
			zap.L().Debug("resolve: matched by email",
				zap.String("email", keys.Email),
				zap.String("contact_id", c.ID),
			)
			return c, MatchEmail, nil
		}
	}

	if keys.FirstName != "" && keys.LastName != "" {
		c, err := r.store.FindByName(ctx, keys.FirstName, keys.LastName)
		if err != nil {
			return nil, MatchNone, eris.Wrap(err, "resolve: by name")
		}
		if c != nil {
			zap.L().Debug("resolve: matched by name",
				zap.String("first_name", keys.FirstName),
				zap.String("last_name", keys.LastName),
				zap.String("contact_id", c.ID),
			)
			return c, MatchName, nil
		}
	}

	return nil, MatchNone, nil
}
