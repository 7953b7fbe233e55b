package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	VoterID   string           `json:"voter_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, voterID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		VoterID:   voterID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTokenIssued publishes election.token.issued events.
func (p *EventPublisher) PublishTokenIssued(ctx context.Context, event domain.TokenIssuedEvent) error {
	payload := struct {
		VoterID    string         `json:"voter_id"`
		TokenID    string         `json:"token_id"`
		IssuedBy   string         `json:"issued_by"`
		IssuedAt   time.Time      `json:"issued_at"`
		ExpiresAt  time.Time      `json:"expires_at"`
		Regenerate bool           `json:"regenerate"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		VoterID:    event.VoterID,
		TokenID:    event.TokenID,
		IssuedBy:   event.IssuedBy,
		IssuedAt:   event.IssuedAt.UTC(),
		ExpiresAt:  event.ExpiresAt.UTC(),
		Regenerate: event.Regenerate,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "election.token.issued", event.VoterID, event.IssuedAt, payload)
}

// PublishSessionCreated publishes election.session.created events.
func (p *EventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		VoterID   string    `json:"voter_id"`
		IP        string    `json:"ip_address"`
		CreatedAt time.Time `json:"created_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		SessionID: event.SessionID,
		VoterID:   event.VoterID,
		IP:        event.IP,
		CreatedAt: event.CreatedAt.UTC(),
		ExpiresAt: event.ExpiresAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "election.session.created", event.VoterID, event.CreatedAt, payload)
}

// PublishSessionFlagged publishes election.session.flagged events.
func (p *EventPublisher) PublishSessionFlagged(ctx context.Context, event domain.SessionFlaggedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		VoterID   string    `json:"voter_id"`
		BoundIP   string    `json:"bound_ip"`
		SeenIP    string    `json:"seen_ip"`
		FlaggedAt time.Time `json:"flagged_at"`
	}{
		SessionID: event.SessionID,
		VoterID:   event.VoterID,
		BoundIP:   event.BoundIP,
		SeenIP:    event.SeenIP,
		FlaggedAt: event.FlaggedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "election.session.flagged", event.VoterID, event.FlaggedAt, payload)
}

// PublishSessionTerminated publishes election.session.terminated events.
func (p *EventPublisher) PublishSessionTerminated(ctx context.Context, event domain.SessionTerminatedEvent) error {
	payload := struct {
		SessionID    string    `json:"session_id"`
		VoterID      string    `json:"voter_id"`
		Reason       string    `json:"reason"`
		TerminatedAt time.Time `json:"terminated_at"`
	}{
		SessionID:    event.SessionID,
		VoterID:      event.VoterID,
		Reason:       event.Reason,
		TerminatedAt: event.TerminatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "election.session.terminated", event.VoterID, event.TerminatedAt, payload)
}

// PublishVoteCast publishes election.vote.cast events. The payload carries
// the portfolios voted on but never the chosen candidates.
func (p *EventPublisher) PublishVoteCast(ctx context.Context, event domain.VoteCastEvent) error {
	payload := struct {
		VoterID    string    `json:"voter_id"`
		SessionID  string    `json:"session_id"`
		VotesCast  int       `json:"votes_cast"`
		Portfolios []string  `json:"portfolios"`
		CastAt     time.Time `json:"cast_at"`
	}{
		VoterID:    event.VoterID,
		SessionID:  event.SessionID,
		VotesCast:  event.VotesCast,
		Portfolios: event.Portfolios,
		CastAt:     event.CastAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "election.vote.cast", event.VoterID, event.CastAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
