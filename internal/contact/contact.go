// Package contact defines the canonical contact record and the identity
// resolution and merge semantics that keep one record per real person.
package contact

import (
	"time"

	"github.com/clahage/my-clever-crm-sub012/internal/quality"
)

// Category is a contact's lifecycle classification.
type Category string

const (
	CategoryLead           Category = "lead"
	CategoryClient         Category = "client"
	CategoryPreviousClient Category = "previous-client"
	CategoryDoNotCall      Category = "do-not-call"
	CategoryVendor         Category = "vendor"
	CategoryAffiliate      Category = "affiliate"
	CategoryEmployee       Category = "employee"
)

// Status values. Leads carry a temperature; other categories use
// active/archived.
const (
	StatusHot      = "hot"
	StatusWarm     = "warm"
	StatusCold     = "cold"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// RoleContact is the baseline role every classified contact carries.
const RoleContact = "contact"

// FlagNameOnlyMatch marks an update applied via the weakest resolver tier
// (first+last name). Such updates always need a human look.
const FlagNameOnlyMatch = "NAME_ONLY_MATCH"

// FlagOptOut marks an explicit do-not-contact request carried on a signal.
// The lifecycle engine turns it into the do-not-call category.
const FlagOptOut = "OPT_OUT"

// ActivityEntry is one interaction in a contact's append-only history.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Note      string    `json:"note,omitempty"`
	Sentiment *float64  `json:"sentiment,omitempty"` // 0-100 when present
}

// MergeEvent records one absorption of duplicate records into this contact.
type MergeEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	AbsorbedIDs []string  `json:"absorbed_ids"`
}

// Contact is the golden record for a person.
type Contact struct {
	ID string `json:"id"`

	// Identity keys, stored normalized.
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	FirstName      string                 `json:"first_name,omitempty"`
	LastName       string                 `json:"last_name,omitempty"`
	NameProvenance quality.NameProvenance `json:"name_provenance"`

	Category Category `json:"category"`
	Status   string   `json:"status"`

	LeadScore       float64 `json:"lead_score"`
	EngagementScore float64 `json:"engagement_score"`
	UrgencyLevel    string  `json:"urgency_level,omitempty"`

	Roles     []string `json:"roles"`
	Tags      []string `json:"tags,omitempty"`
	DataFlags []string `json:"data_flags,omitempty"`
	Sources   []string `json:"sources,omitempty"`

	// Derived fields; set only through Recompute.
	DataQuality       quality.Tier `json:"data_quality"`
	NeedsManualReview bool         `json:"needs_manual_review"`

	Notes       string          `json:"notes,omitempty"`
	ActivityLog []ActivityEntry `json:"activity_log"`
	LastContact time.Time       `json:"last_contact"`

	ContactFrequency int     `json:"contact_frequency"`
	TotalRevenue     float64 `json:"total_revenue"`

	// ProcessedSignalIDs makes ingestion idempotent per source record.
	ProcessedSignalIDs []string `json:"processed_signal_ids,omitempty"`

	MergeHistory []MergeEvent `json:"merge_history,omitempty"`

	// Version guards concurrent updates (optimistic concurrency).
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusForScore derives a lead's temperature from its score:
// >=8 hot, 5-7 warm, below 5 cold.
func StatusForScore(score float64) string {
	switch {
	case score >= 8:
		return StatusHot
	case score >= 5:
		return StatusWarm
	default:
		return StatusCold
	}
}

// HasProcessedSignal reports whether the given source id was already folded
// into this contact.
func (c *Contact) HasProcessedSignal(sourceID string) bool {
	for _, id := range c.ProcessedSignalIDs {
		if id == sourceID {
			return true
		}
	}
	return false
}

// HasRealName reports whether the contact carries a non-placeholder name.
func (c *Contact) HasRealName() bool {
	return (c.FirstName != "" || c.LastName != "") && c.FirstName != "Unknown"
}

// Recompute refreshes the derived dataQuality and needsManualReview fields
// from the contact's current identity and score fields. It must be called
// after any change to those fields; the derived values are never hand-set.
func (c *Contact) Recompute() {
	a := quality.Assess(quality.Candidate{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Provenance: c.NameProvenance,
		Email:      c.Email,
		Phone:      c.Phone,
		Urgency:    c.UrgencyLevel,
		Score:      c.LeadScore,
	})
	c.DataQuality = a.Quality
	c.DataFlags = UnionStrings(c.DataFlags, a.Flags)
	c.NeedsManualReview = a.NeedsManualReview || containsString(c.DataFlags, FlagNameOnlyMatch)
}

// UnionStrings merges b into a preserving a's order and deduplicating.
func UnionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
