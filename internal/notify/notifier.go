package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/sync/errgroup"

	"opsportal/internal/config"
	"opsportal/internal/events"
)

const defaultWebhookTimeout = 5 * time.Second

// Intent is a notification the portal would send for an event.
type Intent struct {
	Type       string
	EventID    int64
	LeadID     string
	ProjectID  string
	InstanceID string
}

// Notifier consumes Topic. Configured event types produce a logged intent and
// matching webhooks receive the envelope. Delivery is best effort: failures
// are logged and every message is acked.
type Notifier struct {
	Subscriber message.Subscriber
	Webhooks   []config.WebhookConfig
	Client     *http.Client
	Logger     *slog.Logger
	// OnIntent, when set, is called for each intent after it is logged.
	OnIntent func(Intent)

	intents eventFilter
}

func NewNotifier(sub message.Subscriber, cfg *config.Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		Subscriber: sub,
		Client:     &http.Client{Timeout: defaultWebhookTimeout},
		Logger:     logger,
		intents:    eventFilter{set: map[string]struct{}{}},
	}
	if cfg != nil {
		n.Webhooks = cfg.Notifications.Webhooks
		if len(cfg.Notifications.Intents) > 0 {
			n.intents = newEventFilter(cfg.Notifications.Intents)
		}
	}
	return n
}

func (n *Notifier) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return n.Subscriber.Subscribe(ctx, Topic)
}

// Consume handles messages until the channel closes or ctx is canceled.
func (n *Notifier) Consume(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				n.Logger.Warn("drop undecodable event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			n.Handle(ctx, env)
			msg.Ack()
		}
	}
}

// Serve subscribes n before the relay publishes anything, then runs both
// until ctx is canceled.
func Serve(ctx context.Context, relay *Relay, n *Notifier) error {
	messages, err := n.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.Consume(gctx, messages)
		return nil
	})
	g.Go(func() error { return relay.Run(gctx) })
	return g.Wait()
}

// Handle processes one event.
func (n *Notifier) Handle(ctx context.Context, env Envelope) {
	if n.wantsIntent(env) {
		intent := Intent{Type: env.Type, EventID: env.ID, LeadID: env.LeadID, ProjectID: env.ProjectID, InstanceID: env.InstanceID}
		n.Logger.Info("notification intent",
			"type", intent.Type,
			"event_id", intent.EventID,
			"lead_id", intent.LeadID,
			"project_id", intent.ProjectID,
		)
		if n.OnIntent != nil {
			n.OnIntent(intent)
		}
	}
	for _, hook := range n.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" || !newEventFilter(hook.Events).match(env.Type) {
			continue
		}
		if err := n.post(ctx, hook, env); err != nil {
			n.Logger.Warn("webhook delivery failed", "url", hook.URL, "event_id", env.ID, "error", err)
		}
	}
}

// wantsIntent reports whether env is a configured intent type. Scored leads
// only notify when they qualified.
func (n *Notifier) wantsIntent(env Envelope) bool {
	if !n.intents.match(env.Type) {
		return false
	}
	if env.Type == events.LeadScored {
		var p struct {
			IsQualified bool `json:"isQualified"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil || !p.IsQualified {
			return false
		}
	}
	return true
}

func (n *Notifier) post(ctx context.Context, hook config.WebhookConfig, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		timeout := time.Duration(hook.TimeoutSeconds) * time.Second
		if timeout != client.Timeout {
			client = &http.Client{Timeout: timeout, Transport: client.Transport}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Opsportal-Event", env.Type)
	req.Header.Set("X-Opsportal-Delivery", strconv.FormatInt(env.ID, 10))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Opsportal-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

// newEventFilter matches everything when events is empty.
func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
