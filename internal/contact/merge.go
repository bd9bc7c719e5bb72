package contact

import (
	"github.com/clahage/my-clever-crm-sub012/internal/quality"
)

// Update is the field set an inbound signal contributes to an existing
// contact. Every field carries an explicit merge policy in Apply; nothing
// is spread over the record indiscriminately.
type Update struct {
	FirstName  string
	LastName   string
	Provenance quality.NameProvenance
	Email      string
	Phone      string

	LeadScore       float64
	EngagementScore float64
	UrgencyLevel    string

	Roles     []string
	Tags      []string
	DataFlags []string
	Sources   []string
}

// urgencyRank orders urgency levels for the keep-highest policy.
func urgencyRank(u string) int {
	switch u {
	case "critical":
		return 3
	case "high":
		return 2
	case "medium":
		return 1
	case "low":
		return 0
	default:
		return -1
	}
}

// Apply folds an update into an existing contact without discarding
// higher-quality data:
//
//   - name: replace only empty/placeholder values, and never overwrite a
//     captured name with an inferred one
//   - email/phone: fill when empty, keep otherwise
//   - leadScore/engagementScore: max
//   - urgencyLevel: keep the higher level
//   - roles/tags/dataFlags/sources: set union
//
// Callers must Recompute afterwards and append their own activity entry.
func (c *Contact) Apply(u Update) {
	incomingInferred := u.Provenance == quality.NameInferred

	if u.FirstName != "" || u.LastName != "" {
		switch {
		case !c.HasRealName():
			c.FirstName = u.FirstName
			c.LastName = u.LastName
			c.NameProvenance = u.Provenance
		case incomingInferred:
			// Existing captured name beats an inferred one.
		case c.NameProvenance == quality.NameInferred:
			// Captured name replaces a previously inferred one.
			c.FirstName = u.FirstName
			c.LastName = u.LastName
			c.NameProvenance = u.Provenance
		default:
			// Both captured: fill gaps only.
			if c.FirstName == "" {
				c.FirstName = u.FirstName
			}
			if c.LastName == "" {
				c.LastName = u.LastName
			}
		}
	}

	if c.Email == "" {
		c.Email = u.Email
	}
	if c.Phone == "" {
		c.Phone = u.Phone
	}

	if u.LeadScore > c.LeadScore {
		c.LeadScore = u.LeadScore
	}
	if u.EngagementScore > c.EngagementScore {
		c.EngagementScore = u.EngagementScore
	}
	if urgencyRank(u.UrgencyLevel) > urgencyRank(c.UrgencyLevel) {
		c.UrgencyLevel = u.UrgencyLevel
	}

	c.Roles = UnionStrings(c.Roles, u.Roles)
	c.Tags = UnionStrings(c.Tags, u.Tags)
	c.DataFlags = UnionStrings(c.DataFlags, u.DataFlags)
	c.Sources = UnionStrings(c.Sources, u.Sources)
}
