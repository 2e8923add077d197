package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"opsportal/internal/domain"
)

const (
	defaultRelayInterval = 2 * time.Second
	defaultRelayBatch    = 100
)

// EventSource is the read side of the event log.
type EventSource interface {
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// Relay polls the event log and publishes each new event to Topic. Events
// only become visible after their transaction commits, so nothing is relayed
// for work that was rolled back.
type Relay struct {
	Source    EventSource
	Publisher message.Publisher
	Interval  time.Duration
	Batch     int
	Logger    *slog.Logger

	mu     sync.Mutex
	cursor int64
	primed bool
}

func NewRelay(src EventSource, pub message.Publisher, interval time.Duration, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{Source: src, Publisher: pub, Interval: interval, Logger: logger}
}

// SetCursor makes the relay resume after id instead of the current tail.
func (r *Relay) SetCursor(id int64) {
	r.mu.Lock()
	r.cursor = id
	r.primed = true
	r.mu.Unlock()
}

func (r *Relay) Cursor() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// prime starts from the newest event so history is not replayed on boot.
func (r *Relay) prime(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primed {
		return nil
	}
	cur, err := r.Source.LatestEventID(ctx)
	if err != nil {
		return fmt.Errorf("init relay cursor: %w", err)
	}
	r.cursor = cur
	r.primed = true
	return nil
}

// PollOnce publishes every event after the cursor and returns how many were sent.
// The cursor only moves past events that were published.
func (r *Relay) PollOnce(ctx context.Context) (int, error) {
	if err := r.prime(ctx); err != nil {
		return 0, err
	}
	batch := r.Batch
	if batch <= 0 {
		batch = defaultRelayBatch
	}
	evts, err := r.Source.EventsAfter(ctx, batch, r.Cursor())
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}
	sent := 0
	for _, evt := range evts {
		data, err := json.Marshal(envelopeFor(evt))
		if err != nil {
			return sent, err
		}
		msg := message.NewMessage(watermill.NewULID(), data)
		msg.Metadata.Set("type", evt.Type)
		msg.Metadata.Set("event_id", strconv.FormatInt(evt.ID, 10))
		if err := r.Publisher.Publish(Topic, msg); err != nil {
			return sent, fmt.Errorf("publish event %d: %w", evt.ID, err)
		}
		r.SetCursor(evt.ID)
		sent++
	}
	return sent, nil
}

// Run polls until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := r.PollOnce(ctx); err != nil {
			r.Logger.Warn("relay poll failed", "error", err)
		} else if n > 0 {
			r.Logger.Debug("relayed events", "count", n, "cursor", r.Cursor())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
