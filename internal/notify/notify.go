// Package notify announces investigation outcomes to chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/incidentfox/incidentfox/internal/database"
)

// Notifier is told about completed investigations
type Notifier interface {
	InvestigationCompleted(ctx context.Context, inv *database.Investigation) error
}

// Nop discards notifications
type Nop struct{}

func (Nop) InvestigationCompleted(context.Context, *database.Investigation) error { return nil }

const defaultTimeout = 5 * time.Second

// SlackNotifier posts completions to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a notifier for the given webhook. Channel is
// optional and only honored by legacy webhooks.
func NewSlackNotifier(webhookURL, channel string) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, errors.New("slack webhook URL is required")
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: defaultTimeout},
	}, nil
}

// InvestigationCompleted posts a summary of a completed investigation
func (n *SlackNotifier) InvestigationCompleted(ctx context.Context, inv *database.Investigation) error {
	msg := &slack.WebhookMessage{
		Channel: n.channel,
		Text:    FormatCompletion(inv),
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, msg); err != nil {
		return fmt.Errorf("failed to post slack notification: %w", err)
	}
	return nil
}

// New returns a Slack notifier when a webhook is configured and Nop otherwise
func New(webhookURL, channel string) Notifier {
	if webhookURL == "" {
		return Nop{}
	}
	n, err := NewSlackNotifier(webhookURL, channel)
	if err != nil {
		log.Warn().Err(err).Msg("Slack notifications disabled")
		return Nop{}
	}
	log.Info().Msg("Slack completion notifications enabled")
	return n
}

// Dispatcher delivers notifications in the background so a slow webhook
// never holds up the tool call that triggered it. Failures are logged.
type Dispatcher struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps n; a nil n discards everything
func NewDispatcher(n Notifier) *Dispatcher {
	if n == nil {
		n = Nop{}
	}
	return &Dispatcher{next: n, timeout: defaultTimeout}
}

// InvestigationCompleted queues a completion notice. The delivery outlives
// ctx cancellation but is bounded by the dispatcher timeout.
func (d *Dispatcher) InvestigationCompleted(ctx context.Context, inv *database.Investigation) {
	snapshot := *inv
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.next.InvestigationCompleted(ctx, &snapshot); err != nil {
			log.Warn().Err(err).Str("investigation_id", snapshot.ID).Msg("Completion notification failed")
		}
	}()
}

// Wait blocks until every queued notification has been delivered or failed
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
