// Package ingest turns raw inbound signals (calls, web forms, manual
// entries) into canonical contact records: normalize, infer, assess,
// resolve, then create or merge.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/lifecycle"
	"github.com/clahage/my-clever-crm-sub012/internal/model"
	"github.com/clahage/my-clever-crm-sub012/internal/monitoring"
	"github.com/clahage/my-clever-crm-sub012/internal/normalize"
	"github.com/clahage/my-clever-crm-sub012/internal/quality"
	"github.com/clahage/my-clever-crm-sub012/internal/resilience"
	"github.com/clahage/my-clever-crm-sub012/internal/signal"
)

// Actions reported in the signal write-back.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// Outcome describes what processing one signal did.
type Outcome struct {
	ContactID string
	Action    string
	MatchTier contact.MatchTier
}

// Pipeline orchestrates signal ingestion. Safe for concurrent use; races
// on the same contact are resolved by optimistic-concurrency retry, so no
// signal silently loses its activity entry.
type Pipeline struct {
	contacts contact.Store
	signals  signal.Store
	resolver *contact.Resolver
	rules    *Rules
	notifier monitoring.Notifier
	now      func() time.Time
}

// NewPipeline wires an ingestion pipeline over the given stores.
func NewPipeline(contacts contact.Store, signals signal.Store, rules *Rules, notifier monitoring.Notifier) *Pipeline {
	if rules == nil {
		rules = DefaultRules()
	}
	if notifier == nil {
		notifier = monitoring.NopNotifier{}
	}
	return &Pipeline{
		contacts: contacts,
		signals:  signals,
		resolver: contact.NewResolver(contacts),
		rules:    rules,
		notifier: notifier,
		now:      time.Now,
	}
}

// Process ingests one stored signal and writes the outcome back to its
// source record. On failure the record keeps processed=false, carries the
// error, and a failure event is emitted; the error is also returned.
func (p *Pipeline) Process(ctx context.Context, recordID string, sig model.Signal) (*Outcome, error) {
	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("source_id", sig.SourceID),
		zap.String("source_type", string(sig.SourceType)),
	)

	out, err := p.ingest(ctx, sig)
	if err != nil {
		log.Error("signal processing failed", zap.Error(err))
		p.notifier.Notify(ctx, monitoring.Event{
			Type:     monitoring.EventSignalFailure,
			Severity: "high",
			SourceID: sig.SourceID,
			Message:  fmt.Sprintf("signal %s failed: %v", sig.SourceID, err),
		})
		if mErr := p.signals.MarkProcessed(ctx, recordID, signal.Result{
			Err:         err.Error(),
			ProcessedAt: p.now().UTC(),
		}); mErr != nil {
			log.Error("failed to record processing error", zap.Error(mErr))
		}
		return nil, err
	}

	if err := p.signals.MarkProcessed(ctx, recordID, signal.Result{
		ContactID:   out.ContactID,
		Action:      out.Action,
		ProcessedAt: p.now().UTC(),
	}); err != nil {
		return nil, eris.Wrap(err, "ingest: write back outcome")
	}

	log.Info("signal processed",
		zap.String("contact_id", out.ContactID),
		zap.String("action", out.Action),
		zap.String("match_tier", string(out.MatchTier)),
	)
	return out, nil
}

func (p *Pipeline) ingest(ctx context.Context, sig model.Signal) (*Outcome, error) {
	if sig.SourceID == "" {
		return nil, eris.New("ingest: signal missing source id")
	}

	analysis := sig.Analysis
	if analysis == nil {
		analysis = model.DefaultAnalysis()
	}

	keys := identityKeys(sig)
	existing, tier, err := p.resolver.Resolve(ctx, keys)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return p.create(ctx, sig, analysis, keys)
	}
	return p.update(ctx, existing.ID, tier, sig, analysis, keys)
}

// identityKeys normalizes the signal's identity fields and falls back to
// name inference from the email local part when no name was captured.
func identityKeys(sig model.Signal) contact.Keys {
	keys := contact.Keys{
		Phone: normalize.Phone(sig.Phone),
		Email: normalize.Email(sig.Email),
	}

	name := strings.TrimSpace(sig.Name)
	if name != "" && !strings.EqualFold(name, "Unknown") {
		parts := strings.Fields(name)
		keys.FirstName = parts[0]
		keys.LastName = strings.Join(parts[1:], " ")
	} else if keys.Email != "" {
		keys.FirstName, keys.LastName = normalize.NameFromEmail(keys.Email)
	}
	return keys
}

// provenanceFor reports how the keys' name came to be, given the raw signal.
func provenanceFor(sig model.Signal, keys contact.Keys) quality.NameProvenance {
	switch {
	case keys.FirstName == "" && keys.LastName == "":
		return quality.NameUnknown
	case strings.TrimSpace(sig.Name) != "" && !strings.EqualFold(strings.TrimSpace(sig.Name), "Unknown"):
		return quality.NameCaptured
	default:
		return quality.NameInferred
	}
}

func (p *Pipeline) create(ctx context.Context, sig model.Signal, analysis *model.AnalysisResult, keys contact.Keys) (*Outcome, error) {
	now := p.now().UTC()
	receivedAt := sig.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	category, roles := p.rules.Classify(sig.SourceType)
	roles = contact.UnionStrings(roles, analysis.Roles)
	score := leadScoreFor(sig, analysis)

	c := &contact.Contact{
		Phone:            keys.Phone,
		Email:            keys.Email,
		FirstName:        keys.FirstName,
		LastName:         keys.LastName,
		NameProvenance:   provenanceFor(sig, keys),
		Category:         category,
		LeadScore:        score,
		EngagementScore:  engagementFor(sig),
		UrgencyLevel:     urgencyFor(sig, analysis),
		Roles:            roles,
		Sources:          []string{string(sig.SourceType)},
		Notes:            notesFor(sig),
		ActivityLog:      []contact.ActivityEntry{activityEntry(sig, analysis, receivedAt)},
		LastContact:      receivedAt,
		ContactFrequency: 1,

		ProcessedSignalIDs: []string{sig.SourceID},
		CreatedAt:          now,
	}
	if sig.OptOut {
		c.DataFlags = append(c.DataFlags, contact.FlagOptOut)
	}
	if c.Category == contact.CategoryLead {
		c.Status = contact.StatusForScore(c.LeadScore)
	} else {
		c.Status = contact.StatusActive
	}
	lifecycle.Evaluate(c, now)
	c.Recompute()

	if err := p.contacts.CreateContact(ctx, c); err != nil {
		return nil, err
	}

	p.notifyOn(ctx, c, "", false)
	return &Outcome{ContactID: c.ID, Action: ActionCreated, MatchTier: contact.MatchNone}, nil
}

func (p *Pipeline) update(ctx context.Context, contactID string, tier contact.MatchTier, sig model.Signal, analysis *model.AnalysisResult, keys contact.Keys) (*Outcome, error) {
	receivedAt := sig.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = p.now().UTC()
	}

	u := contact.Update{
		FirstName:       keys.FirstName,
		LastName:        keys.LastName,
		Provenance:      provenanceFor(sig, keys),
		Email:           keys.Email,
		Phone:           keys.Phone,
		LeadScore:       leadScoreFor(sig, analysis),
		EngagementScore: engagementFor(sig),
		UrgencyLevel:    urgencyFor(sig, analysis),
		Roles:           analysis.Roles,
		Sources:         []string{string(sig.SourceType)},
	}
	if tier == contact.MatchName {
		u.DataFlags = append(u.DataFlags, contact.FlagNameOnlyMatch)
	}
	if sig.OptOut {
		u.DataFlags = append(u.DataFlags, contact.FlagOptOut)
	}

	cfg := resilience.ConflictRetryConfig()
	cfg.ShouldRetry = resilience.RetryAlso(contact.ErrVersionConflict)
	cfg.OnRetry = resilience.RetryLogger("ingest", "update contact")

	type result struct {
		c          *contact.Contact
		action     string
		prevStatus string
		wasReview  bool
	}

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (result, error) {
		cur, err := p.contacts.GetContact(ctx, contactID)
		if err != nil {
			return result{}, err
		}
		if cur == nil {
			return result{}, eris.Errorf("ingest: contact %s disappeared during update", contactID)
		}
		if cur.HasProcessedSignal(sig.SourceID) {
			return result{c: cur, action: ActionSkipped}, nil
		}

		prevStatus := cur.Status
		wasReview := cur.NeedsManualReview

		cur.Apply(u)
		cur.ActivityLog = append(cur.ActivityLog, activityEntry(sig, analysis, receivedAt))
		cur.ContactFrequency++
		cur.ProcessedSignalIDs = append(cur.ProcessedSignalIDs, sig.SourceID)
		if receivedAt.After(cur.LastContact) {
			cur.LastContact = receivedAt
		}
		if cur.Category == contact.CategoryLead && cur.Status != contact.StatusArchived {
			cur.Status = contact.StatusForScore(cur.LeadScore)
		}
		lifecycle.Evaluate(cur, p.now().UTC())
		cur.Recompute()

		if err := p.contacts.UpdateContact(ctx, cur); err != nil {
			return result{}, err
		}
		return result{c: cur, action: ActionUpdated, prevStatus: prevStatus, wasReview: wasReview}, nil
	})
	if err != nil {
		return nil, err
	}

	if res.action == ActionSkipped {
		zap.L().Debug("ingest: signal already processed",
			zap.String("source_id", sig.SourceID),
			zap.String("contact_id", contactID),
		)
		return &Outcome{ContactID: contactID, Action: ActionSkipped, MatchTier: tier}, nil
	}

	p.notifyOn(ctx, res.c, res.prevStatus, res.wasReview)
	return &Outcome{ContactID: res.c.ID, Action: ActionUpdated, MatchTier: tier}, nil
}

// notifyOn emits events for newly hot leads and newly review-flagged
// contacts. prevStatus/wasReview suppress repeats on every touch.
func (p *Pipeline) notifyOn(ctx context.Context, c *contact.Contact, prevStatus string, wasReview bool) {
	if c.Category == contact.CategoryLead && c.Status == contact.StatusHot && prevStatus != contact.StatusHot {
		p.notifier.Notify(ctx, monitoring.Event{
			Type:      monitoring.EventHotLead,
			Severity:  "high",
			ContactID: c.ID,
			Message:   fmt.Sprintf("hot lead: %s %s (score %.0f)", c.FirstName, c.LastName, c.LeadScore),
			Details: map[string]any{
				"lead_score":    c.LeadScore,
				"urgency_level": c.UrgencyLevel,
			},
		})
	}
	if c.NeedsManualReview && !wasReview {
		p.notifier.Notify(ctx, monitoring.Event{
			Type:      monitoring.EventManualReview,
			Severity:  "medium",
			ContactID: c.ID,
			Message:   fmt.Sprintf("contact needs manual review (%s)", strings.Join(c.DataFlags, ", ")),
		})
	}
}

// leadScoreFor derives a 0-10 score from the analysis temperature plus
// call-engagement boosts, capped at 10.
func leadScoreFor(sig model.Signal, analysis *model.AnalysisResult) float64 {
	score := 5.0
	switch strings.ToLower(analysis.LeadTemperature) {
	case "hot":
		score = 8
	case "cold":
		score = 2
	}

	if sig.DurationSecs > 120 {
		score += 2
	}
	if sig.DurationSecs > 300 {
		score++
	}
	transcript := strings.ToLower(sig.Transcript)
	if strings.Contains(transcript, "credit") {
		score++
	}
	if strings.Contains(transcript, "help") {
		score++
	}

	if score > 10 {
		score = 10
	}
	return score
}

// engagementFor scores engagement from time invested: one point per minute
// of call time, capped at 10. Non-call signals contribute a single point.
func engagementFor(sig model.Signal) float64 {
	if sig.DurationSecs <= 0 {
		return 1
	}
	e := float64(sig.DurationSecs) / 60
	if e > 10 {
		e = 10
	}
	return e
}

func urgencyFor(sig model.Signal, analysis *model.AnalysisResult) string {
	switch {
	case strings.EqualFold(analysis.Priority, "critical"):
		return "critical"
	case strings.EqualFold(analysis.Priority, "high"),
		analysis.UrgencyScore >= 8,
		sig.DurationSecs > 180:
		return "high"
	case strings.EqualFold(analysis.Priority, "low") && analysis.UrgencyScore < 4:
		return "low"
	default:
		return "medium"
	}
}

func activityEntry(sig model.Signal, analysis *model.AnalysisResult, at time.Time) contact.ActivityEntry {
	entry := contact.ActivityEntry{
		Timestamp: at,
		Type:      activityType(sig),
		Note:      activityNote(sig),
	}
	sentiment := analysis.Sentiment
	entry.Sentiment = &sentiment
	return entry
}

func activityType(sig model.Signal) string {
	if sig.PaymentCompleted {
		return "payment"
	}
	switch sig.SourceType {
	case model.SourceAIReceptionist:
		return "call"
	case model.SourceWebForm:
		return "form"
	default:
		return "note"
	}
}

func activityNote(sig model.Signal) string {
	if sig.Transcript != "" {
		return snippet(sig.Transcript, 200)
	}
	if sig.DurationSecs > 0 {
		return fmt.Sprintf("Call duration: %ds", sig.DurationSecs)
	}
	return fmt.Sprintf("Signal from %s", sig.SourceType)
}

func notesFor(sig model.Signal) string {
	if sig.DurationSecs > 0 {
		return fmt.Sprintf("Call duration: %ds", sig.DurationSecs)
	}
	return ""
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
