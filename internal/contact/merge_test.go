package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clahage/my-clever-crm-sub012/internal/quality"
)

func TestApply_InferredNeverOverwritesCaptured(t *testing.T) {
	c := &Contact{
		FirstName:      "Jane",
		LastName:       "Doe",
		NameProvenance: quality.NameCaptured,
	}
	c.Apply(Update{
		FirstName:  "Jdoe",
		Provenance: quality.NameInferred,
	})
	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "Doe", c.LastName)
	assert.Equal(t, quality.NameCaptured, c.NameProvenance)
}

func TestApply_CapturedReplacesInferred(t *testing.T) {
	c := &Contact{
		FirstName:      "Jdoe",
		NameProvenance: quality.NameInferred,
	}
	c.Apply(Update{
		FirstName:  "Jane",
		LastName:   "Doe",
		Provenance: quality.NameCaptured,
	})
	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "Doe", c.LastName)
	assert.Equal(t, quality.NameCaptured, c.NameProvenance)
}

func TestApply_FillsPlaceholderName(t *testing.T) {
	c := &Contact{FirstName: "Unknown", NameProvenance: quality.NameUnknown}
	c.Apply(Update{FirstName: "Kuva", LastName: "Caid", Provenance: quality.NameInferred})
	assert.Equal(t, "Kuva", c.FirstName)
	assert.Equal(t, "Caid", c.LastName)
	assert.Equal(t, quality.NameInferred, c.NameProvenance)
}

func TestApply_ScoresTakeMax(t *testing.T) {
	c := &Contact{LeadScore: 7, EngagementScore: 3}
	c.Apply(Update{LeadScore: 4, EngagementScore: 6})
	assert.Equal(t, 7.0, c.LeadScore)
	assert.Equal(t, 6.0, c.EngagementScore)
}

func TestApply_UrgencyKeepsHigher(t *testing.T) {
	c := &Contact{UrgencyLevel: "high"}
	c.Apply(Update{UrgencyLevel: "medium"})
	assert.Equal(t, "high", c.UrgencyLevel)

	c.Apply(Update{UrgencyLevel: "critical"})
	assert.Equal(t, "critical", c.UrgencyLevel)
}

func TestApply_SetsUnion(t *testing.T) {
	c := &Contact{Roles: []string{"contact", "lead"}, Tags: []string{"vip"}}
	c.Apply(Update{Roles: []string{"lead", "client"}, Tags: []string{"vip", "referral"}})
	assert.Equal(t, []string{"contact", "lead", "client"}, c.Roles)
	assert.Equal(t, []string{"vip", "referral"}, c.Tags)
}

func TestApply_IdentityFilledOnlyWhenEmpty(t *testing.T) {
	c := &Contact{Email: "jane@example.com"}
	c.Apply(Update{Email: "other@example.com", Phone: "(555) 123-4567"})
	assert.Equal(t, "jane@example.com", c.Email)
	assert.Equal(t, "(555) 123-4567", c.Phone)
}

func TestRecompute_DerivedFields(t *testing.T) {
	c := &Contact{
		FirstName:      "Jane",
		LastName:       "Doe",
		NameProvenance: quality.NameCaptured,
		Email:          "jane@example.com",
		Phone:          "(555) 123-4567",
	}
	c.Recompute()
	assert.Equal(t, quality.TierGood, c.DataQuality)
	assert.False(t, c.NeedsManualReview)

	c.Email = ""
	c.Recompute()
	assert.Equal(t, quality.TierFair, c.DataQuality)
}

func TestRecompute_NameOnlyMatchForcesReview(t *testing.T) {
	c := &Contact{
		FirstName:      "Jane",
		LastName:       "Doe",
		NameProvenance: quality.NameCaptured,
		Email:          "jane@example.com",
		Phone:          "(555) 123-4567",
		DataFlags:      []string{FlagNameOnlyMatch},
	}
	c.Recompute()
	assert.True(t, c.NeedsManualReview)
}

func TestStatusForScore_Boundaries(t *testing.T) {
	assert.Equal(t, StatusHot, StatusForScore(8))
	assert.Equal(t, StatusHot, StatusForScore(10))
	assert.Equal(t, StatusWarm, StatusForScore(5))
	assert.Equal(t, StatusWarm, StatusForScore(7.9))
	assert.Equal(t, StatusCold, StatusForScore(4.9))
	assert.Equal(t, StatusCold, StatusForScore(0))
}
