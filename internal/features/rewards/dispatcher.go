// Package rewards delivers analysis results to the external reward
// distribution system over a JSON webhook. The engine decides who earned
// what; actual fulfilment happens on the other side of this call.
package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stats mirrors one category's counters in the wire format.
type Stats struct {
	TotalUsersAnalyzed int `json:"total_users_analyzed"`
	QualifiedCount     int `json:"qualified_count"`
	EmpathyCandidates  int `json:"empathy_candidates"`
	EmpathyRecipients  int `json:"empathy_recipients"`
}

// CategoryOutcome is one category's result sets in the wire format.
type CategoryOutcome struct {
	Qualified []string `json:"qualified"`
	Empathy   []string `json:"empathy"`
	Stats     Stats    `json:"stats"`
}

// Summary aggregates the whole run for quick consumption downstream.
type Summary struct {
	TotalCategories     int `json:"total_categories"`
	TotalQualifiedUsers int `json:"total_qualified_users"`
	TotalEmpathyUsers   int `json:"total_empathy_users"`
}

// Payload is the webhook body for one analysis run.
type Payload struct {
	RewardType string                     `json:"reward_type"`
	RunID      string                     `json:"run_id"`
	Categories map[string]CategoryOutcome `json:"categories"`
	Timestamp  time.Time                  `json:"timestamp"`
	Summary    Summary                    `json:"summary"`
}

// WebhookDispatcher posts payloads to the configured reward endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

// NewWebhookDispatcher creates a dispatcher for the given endpoint.
func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver posts p to the reward endpoint. Any non-2xx response is an
// error; the caller decides whether to retry.
func (d *WebhookDispatcher) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode reward payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build reward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("reward webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded slice of the body for the log line.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.WithFields(log.Fields{
			"run_id": p.RunID,
			"status": resp.StatusCode,
			"body":   string(snippet),
		}).Warn("Reward webhook rejected payload")
		return fmt.Errorf("reward webhook returned status %d", resp.StatusCode)
	}

	log.WithFields(log.Fields{
		"run_id":     p.RunID,
		"categories": len(p.Categories),
	}).Info("Reward payload delivered")
	return nil
}
