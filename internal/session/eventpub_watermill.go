package session

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// EventsTopic is the watermill topic session events are published on.
const EventsTopic = "llamad.events"

// WatermillPublisher publishes events as JSON messages on a watermill
// publisher, so any number of subscribers (e.g. GET /events) can follow them.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	log       zerolog.Logger
}

// NewWatermillPublisher publishes to topic on publisher.
func NewWatermillPublisher(publisher message.Publisher, topic string, log zerolog.Logger) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, topic: topic, log: log}
}

// Publish never fails the caller; delivery errors are logged.
func (w *WatermillPublisher) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		w.log.Error().Err(err).Str("event", e.Name).Msg("marshal event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event", e.Name)
	msg.Metadata.Set("session_id", e.SessionID)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		w.log.Error().Err(err).Str("topic", w.topic).Str("event", e.Name).Msg("publish event")
		return
	}
	w.log.Trace().Str("topic", w.topic).Str("event", e.Name).Msg("published event")
}
