// Package monitoring delivers pipeline events to an external webhook so
// staff hear about hot leads and processing failures without watching logs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clahage/my-clever-crm-sub012/internal/resilience"
)

// EventType identifies the kind of notification.
type EventType string

const (
	EventHotLead       EventType = "hot_lead"
	EventManualReview  EventType = "manual_review"
	EventSignalFailure EventType = "signal_failure"
	EventMergeComplete EventType = "merge_complete"
)

// Event represents a single notification to be delivered.
type Event struct {
	Type      EventType      `json:"type"`
	Severity  string         `json:"severity"`
	ContactID string         `json:"contact_id,omitempty"`
	SourceID  string         `json:"source_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NopNotifier drops all events. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// WebhookNotifier posts events as JSON to a webhook URL with retry on
// transient failures. Delivery is best effort: failures are logged, never
// propagated, so a dead webhook cannot stall ingestion.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	err := resilience.Do(ctx, n.retry, func(ctx context.Context) error {
		return n.post(ctx, ev)
	})
	if err != nil {
		zap.L().Error("monitoring: failed to deliver event",
			zap.String("type", string(ev.Type)),
			zap.String("contact_id", ev.ContactID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("monitoring: event delivered",
		zap.String("type", string(ev.Type)),
		zap.String("severity", ev.Severity),
	)
}

func (n *WebhookNotifier) post(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(
			eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
