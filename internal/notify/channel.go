// Package notify relays committed portal events onto a watermill topic and
// turns them into best-effort notifications.
package notify

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"opsportal/internal/domain"
)

// Topic carries every relayed event.
const Topic = "portal.events"

// NewChannel returns the in-process pub/sub used by ops serve.
func NewChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)
}

// NewTestChannel blocks publishers until the subscriber acks, which makes
// delivery order observable in tests.
func NewTestChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)
}

// Envelope is the wire form of an event on the topic and in webhook bodies.
type Envelope struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	LeadID      string          `json:"leadId,omitempty"`
	ProjectID   string          `json:"projectId,omitempty"`
	InstanceID  string          `json:"instanceId,omitempty"`
	ActorUserID string          `json:"actorUserId,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	Payload     json.RawMessage `json:"payload"`
	PayloadRaw  string          `json:"payloadRaw,omitempty"`
}

func envelopeFor(evt domain.Event) Envelope {
	env := Envelope{
		ID:          evt.ID,
		Type:        evt.Type,
		LeadID:      evt.LeadID,
		ProjectID:   evt.ProjectID,
		InstanceID:  evt.InstanceID,
		ActorUserID: evt.ActorUserID,
		CreatedAt:   evt.CreatedAt,
		Payload:     json.RawMessage("{}"),
	}
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			env.Payload = json.RawMessage(evt.Payload)
		} else {
			env.PayloadRaw = evt.Payload
		}
	}
	return env
}
