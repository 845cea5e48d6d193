package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"gamechannels/domain/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// subjectPrefix namespaces every event subject this service publishes.
const subjectPrefix = "gamechannels.events."

// eventEnvelope wraps every published event with routing metadata.
type eventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventPublisher implements the EventPublisher interface using NATS
type NATSEventPublisher struct {
	natsClient *NATSClient
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(natsClient *NATSClient) *NATSEventPublisher {
	return &NATSEventPublisher{natsClient: natsClient}
}

// Publish publishes an event to NATS using a subject derived from its type
func (p *NATSEventPublisher) Publish(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := eventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "gamechannels",
		Payload:       payload,
	}

	envelopeData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := subjectPrefix + string(event.Type())
	if err := p.natsClient.Publish(subject, envelopeData); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"event_type": event.Type(),
		"subject":    subject,
	}).Debug("Published event")
	return nil
}
