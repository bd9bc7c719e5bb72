// Package quality scores the completeness and trustworthiness of an inbound
// contact-update candidate and raises review flags.
package quality

// Tier is a data-quality tier. Rules only ever hold or lower the tier.
type Tier string

const (
	TierGood Tier = "good"
	TierFair Tier = "fair"
	TierPoor Tier = "poor"
)

// rank orders tiers for downgrade comparison: good < fair < poor.
func rank(t Tier) int {
	switch t {
	case TierGood:
		return 0
	case TierFair:
		return 1
	default:
		return 2
	}
}

// Data flags raised during assessment.
const (
	FlagMissingName     = "MISSING_NAME"
	FlagNameFromEmail   = "NAME_FROM_EMAIL"
	FlagMissingLastName = "MISSING_LAST_NAME"
	FlagMissingEmail    = "MISSING_EMAIL"
	FlagMissingPhone    = "MISSING_PHONE"
	FlagHighPriority    = "HIGH_PRIORITY"
	FlagHotLead         = "HOT_LEAD"
)

// NameProvenance records how a contact's name was obtained.
type NameProvenance string

const (
	NameCaptured NameProvenance = "captured"
	NameInferred NameProvenance = "inferred-from-email"
	NameUnknown  NameProvenance = "unknown"
)

// Candidate is the partially-populated contact update being assessed.
type Candidate struct {
	FirstName  string
	LastName   string
	Provenance NameProvenance
	Email      string
	Phone      string
	Urgency    string  // low, medium, high, critical
	Score      float64 // lead score on a 0-10 scale
}

// Assessment is the result of evaluating a candidate.
type Assessment struct {
	Quality           Tier
	Flags             []string
	NeedsManualReview bool
}

// Assess applies the quality rules in order. Flags accumulate and the tier
// only ever downgrades from good.
func Assess(c Candidate) Assessment {
	a := Assessment{Quality: TierGood}

	atWorst := func(t Tier) {
		if rank(t) > rank(a.Quality) {
			a.Quality = t
		}
	}

	if c.FirstName == "" && c.LastName == "" {
		atWorst(TierPoor)
		a.Flags = append(a.Flags, FlagMissingName)
		a.NeedsManualReview = true
	}

	if c.Provenance == NameInferred {
		atWorst(TierFair)
		a.Flags = append(a.Flags, FlagNameFromEmail)
		a.NeedsManualReview = true
	}

	if c.FirstName != "" && c.LastName == "" && c.Provenance != NameInferred {
		atWorst(TierFair)
		a.Flags = append(a.Flags, FlagMissingLastName)
	}

	if c.Email == "" {
		// One-step downgrade: good→fair, anything lower→poor.
		if a.Quality == TierGood {
			a.Quality = TierFair
		} else {
			a.Quality = TierPoor
		}
		a.Flags = append(a.Flags, FlagMissingEmail)
	}

	if c.Phone == "" {
		atWorst(TierPoor)
		a.Flags = append(a.Flags, FlagMissingPhone)
	}

	if c.Urgency == "high" || c.Urgency == "critical" {
		a.Flags = append(a.Flags, FlagHighPriority)
		a.NeedsManualReview = true
	}

	if c.Score >= 8 {
		a.Flags = append(a.Flags, FlagHotLead)
		a.NeedsManualReview = true
	}

	return a
}
