// Package model defines the inbound signal types consumed by the ingestion
// pipeline. The analysis result is produced by an external text-analysis
// collaborator; its schema is fixed here but its logic is opaque.
package model

import "time"

// SourceType identifies where a signal originated.
type SourceType string

const (
	SourceAIReceptionist SourceType = "ai-receptionist"
	SourceWebForm        SourceType = "web-form"
	SourceManualEntry    SourceType = "manual-entry"
)

// Signal is a single inbound event that may identify or update a contact.
type Signal struct {
	SourceID   string     `json:"source_id"`
	SourceType SourceType `json:"source_type"`
	ReceivedAt time.Time  `json:"received_at"`

	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// DurationSecs is the call duration for phone-sourced signals; zero
	// for forms and manual entry.
	DurationSecs int `json:"duration_secs,omitempty"`

	// OptOut marks an explicit do-not-contact request.
	OptOut bool `json:"opt_out,omitempty"`

	// PaymentCompleted marks a payment event carried on the signal.
	PaymentCompleted bool `json:"payment_completed,omitempty"`

	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// AnalysisResult is the structured output of the text-analysis service.
// Fields are optional at the wire level; DefaultAnalysis fills every field
// so downstream code never branches on presence.
type AnalysisResult struct {
	Roles                 []string `json:"roles"`
	LeadTemperature       string   `json:"lead_temperature"`
	UrgencyScore          float64  `json:"urgency_score"`
	Priority              string   `json:"priority"`
	Intent                string   `json:"intent"`
	Sentiment             float64  `json:"sentiment"`
	KeyInsights           []string `json:"key_insights"`
	RecommendedNextAction string   `json:"recommended_next_action"`
	RecommendedAssignee   string   `json:"recommended_assignee"`
}

// DefaultAnalysis returns an AnalysisResult with every field populated to
// its neutral value. Used when a signal arrives without analysis.
func DefaultAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Roles:                 []string{},
		LeadTemperature:       "warm",
		UrgencyScore:          0,
		Priority:              "medium",
		Intent:                "",
		Sentiment:             50,
		KeyInsights:           []string{},
		RecommendedNextAction: "",
		RecommendedAssignee:   "",
	}
}

// SignalRecord is the persisted form of a signal: the raw payload plus
// processing state written back after the pipeline runs.
type SignalRecord struct {
	ID          string     `json:"id"`
	Signal      Signal     `json:"signal"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ContactID   string     `json:"contact_id,omitempty"`
	Action      string     `json:"action,omitempty"`
	Error       string     `json:"error,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}
