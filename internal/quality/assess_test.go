package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssess_NoNameNoEmail(t *testing.T) {
	a := Assess(Candidate{Phone: "(555) 123-4567"})
	assert.Equal(t, TierPoor, a.Quality)
	assert.Contains(t, a.Flags, FlagMissingName)
	assert.Contains(t, a.Flags, FlagMissingEmail)
	assert.True(t, a.NeedsManualReview)
}

func TestAssess_InferredNameNoEmail(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Kuva",
		LastName:   "Caid",
		Provenance: NameInferred,
		Phone:      "(555) 123-4567",
	})
	// fair from inference, then one-step downgrade for missing email → poor.
	assert.Equal(t, TierPoor, a.Quality)
	assert.Contains(t, a.Flags, FlagNameFromEmail)
	assert.Contains(t, a.Flags, FlagMissingEmail)
	assert.True(t, a.NeedsManualReview)
}

func TestAssess_CompleteCandidate(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Jane",
		LastName:   "Doe",
		Provenance: NameCaptured,
		Email:      "jane@example.com",
		Phone:      "(555) 123-4567",
		Urgency:    "medium",
		Score:      5,
	})
	assert.Equal(t, TierGood, a.Quality)
	assert.Empty(t, a.Flags)
	assert.False(t, a.NeedsManualReview)
}

func TestAssess_MissingLastName(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Jane",
		Provenance: NameCaptured,
		Email:      "jane@example.com",
		Phone:      "(555) 123-4567",
	})
	assert.Equal(t, TierFair, a.Quality)
	assert.Contains(t, a.Flags, FlagMissingLastName)
	assert.False(t, a.NeedsManualReview)
}

func TestAssess_MissingLastNameSkippedWhenInferred(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Jsmith",
		Provenance: NameInferred,
		Email:      "jsmith@x.com",
		Phone:      "(555) 123-4567",
	})
	assert.NotContains(t, a.Flags, FlagMissingLastName)
	assert.Contains(t, a.Flags, FlagNameFromEmail)
}

func TestAssess_MissingPhoneForcesPoor(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Jane",
		LastName:   "Doe",
		Provenance: NameCaptured,
		Email:      "jane@example.com",
	})
	assert.Equal(t, TierPoor, a.Quality)
	assert.Contains(t, a.Flags, FlagMissingPhone)
}

func TestAssess_HighUrgencyFlagsWithoutDowngrade(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Jane",
		LastName:   "Doe",
		Provenance: NameCaptured,
		Email:      "jane@example.com",
		Phone:      "(555) 123-4567",
		Urgency:    "critical",
	})
	assert.Equal(t, TierGood, a.Quality)
	assert.Contains(t, a.Flags, FlagHighPriority)
	assert.True(t, a.NeedsManualReview)
}

func TestAssess_HotLead(t *testing.T) {
	a := Assess(Candidate{
		FirstName:  "Jane",
		LastName:   "Doe",
		Provenance: NameCaptured,
		Email:      "jane@example.com",
		Phone:      "(555) 123-4567",
		Score:      9,
	})
	assert.Contains(t, a.Flags, FlagHotLead)
	assert.True(t, a.NeedsManualReview)
	assert.Equal(t, TierGood, a.Quality)
}

func TestAssess_NeverUpgrades(t *testing.T) {
	// A candidate that trips the poor rule stays poor no matter what else holds.
	a := Assess(Candidate{
		Email: "x@y.com",
		Phone: "(555) 123-4567",
		Score: 9,
	})
	assert.Equal(t, TierPoor, a.Quality)
}
