// Package lifecycle moves contacts between categories as their interaction
// history and scores change: lead to client, lead to do-not-call, client to
// previous-client, previous-client back to lead.
package lifecycle

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/resilience"
)

const (
	// positiveSentimentFloor is the sentiment score (0-100) above which an
	// interaction counts toward client conversion.
	positiveSentimentFloor = 50

	// conversionInteractions is how many positive interactions convert a
	// lead to a client.
	conversionInteractions = 3

	// staleInteractions and staleScoreCeiling route unresponsive leads to
	// do-not-call: more than staleInteractions touches while the score
	// stays under the ceiling.
	staleInteractions = 5
	staleScoreCeiling = 3

	// inactivityMonths is the trailing window after which a client with no
	// activity becomes a previous-client.
	inactivityMonths = 6

	// reactivationScore is the lead score at which a previous-client
	// becomes a lead again.
	reactivationScore = 5
)

// Evaluate applies at most one category transition to c and recomputes its
// status. Returns true when anything changed. Contacts in categories with
// no transition rules are left untouched, and archived contacts are never
// touched at all (archiving is the soft delete).
func Evaluate(c *contact.Contact, now time.Time) bool {
	if c.Status == contact.StatusArchived {
		return false
	}

	before := c.Category
	beforeStatus := c.Status

	switch c.Category {
	case contact.CategoryLead:
		switch {
		case hasFlag(c, contact.FlagOptOut):
			c.Category = contact.CategoryDoNotCall
		case paymentReceived(c) || positiveInteractions(c) >= conversionInteractions:
			c.Category = contact.CategoryClient
		case c.ContactFrequency > staleInteractions && c.LeadScore < staleScoreCeiling:
			c.Category = contact.CategoryDoNotCall
		}

	case contact.CategoryClient:
		if lastActivity(c).Before(now.AddDate(0, -inactivityMonths, 0)) {
			c.Category = contact.CategoryPreviousClient
		}

	case contact.CategoryPreviousClient:
		if c.LeadScore >= reactivationScore {
			c.Category = contact.CategoryLead
		}

	case contact.CategoryDoNotCall:
		// Terminal for automated transitions; only a human moves it.

	default:
		zap.L().Debug("lifecycle: no transition rules for category",
			zap.String("contact_id", c.ID),
			zap.String("category", string(c.Category)),
		)
		return false
	}

	if c.Category == contact.CategoryLead {
		c.Status = contact.StatusForScore(c.LeadScore)
	} else if c.Status != contact.StatusArchived {
		c.Status = contact.StatusActive
	}

	changed := c.Category != before || c.Status != beforeStatus
	if c.Category != before {
		zap.L().Info("lifecycle: category transition",
			zap.String("contact_id", c.ID),
			zap.String("from", string(before)),
			zap.String("to", string(c.Category)),
		)
	}
	return changed
}

func hasFlag(c *contact.Contact, flag string) bool {
	for _, f := range c.DataFlags {
		if f == flag {
			return true
		}
	}
	return false
}

func paymentReceived(c *contact.Contact) bool {
	for _, e := range c.ActivityLog {
		if e.Type == "payment" {
			return true
		}
	}
	return false
}

func positiveInteractions(c *contact.Contact) int {
	n := 0
	for _, e := range c.ActivityLog {
		if e.Sentiment != nil && *e.Sentiment > positiveSentimentFloor {
			n++
		}
	}
	return n
}

// lastActivity returns the newest activity timestamp, falling back to
// lastContact and then createdAt for contacts with empty logs.
func lastActivity(c *contact.Contact) time.Time {
	last := c.LastContact
	for _, e := range c.ActivityLog {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	if last.IsZero() {
		last = c.CreatedAt
	}
	return last
}

// Engine runs periodic lifecycle sweeps over the whole contact base.
type Engine struct {
	store contact.Store
	now   func() time.Time
}

// NewEngine creates a sweep engine over the given store.
func NewEngine(store contact.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Sweep evaluates every contact and persists the ones that transitioned.
// Returns the number of contacts changed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	contacts, err := e.store.ListContacts(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "lifecycle: list contacts")
	}

	now := e.now().UTC()
	changed := 0
	for i := range contacts {
		c := contacts[i]
		if c.Status == contact.StatusArchived {
			continue
		}
		if !Evaluate(&c, now) {
			continue
		}
		if err := e.save(ctx, &c, now); err != nil {
			return changed, err
		}
		changed++
	}

	zap.L().Info("lifecycle: sweep complete",
		zap.Int("contacts", len(contacts)),
		zap.Int("changed", changed),
	)
	return changed, nil
}

// save persists a transitioned contact, re-reading and re-evaluating on a
// lost optimistic-concurrency race.
func (e *Engine) save(ctx context.Context, c *contact.Contact, now time.Time) error {
	cfg := resilience.ConflictRetryConfig()
	cfg.ShouldRetry = resilience.RetryAlso(contact.ErrVersionConflict)

	first := true
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		if !first {
			cur, err := e.store.GetContact(ctx, c.ID)
			if err != nil {
				return err
			}
			if cur == nil {
				// Absorbed by a merge mid-sweep.
				return nil
			}
			if !Evaluate(cur, now) {
				return nil
			}
			c = cur
		}
		first = false
		return e.store.UpdateContact(ctx, c)
	})
}

// Run executes Sweep on a fixed interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	log := zap.L().With(zap.String("component", "lifecycle"))
	log.Info("starting lifecycle sweeper", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("lifecycle sweeper stopped")
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				log.Error("lifecycle sweep failed", zap.Error(err))
			}
		}
	}
}
