package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, voterID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("voter_id", voterID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishTokenIssued logs election.token.issued events.
func (p *StubPublisher) PublishTokenIssued(_ context.Context, event domain.TokenIssuedEvent) error {
	payload := map[string]any{
		"voter_id":   event.VoterID,
		"token_id":   event.TokenID,
		"issued_by":  event.IssuedBy,
		"issued_at":  event.IssuedAt,
		"expires_at": event.ExpiresAt,
		"regenerate": event.Regenerate,
		"metadata":   event.Metadata,
	}
	p.logEvent("election.token.issued", event.VoterID, event.IssuedAt, payload)
	return nil
}

// PublishSessionCreated logs election.session.created events.
func (p *StubPublisher) PublishSessionCreated(_ context.Context, event domain.SessionCreatedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"voter_id":   event.VoterID,
		"ip_address": event.IP,
		"created_at": event.CreatedAt,
		"expires_at": event.ExpiresAt,
	}
	p.logEvent("election.session.created", event.VoterID, event.CreatedAt, payload)
	return nil
}

// PublishSessionFlagged logs election.session.flagged events.
func (p *StubPublisher) PublishSessionFlagged(_ context.Context, event domain.SessionFlaggedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"voter_id":   event.VoterID,
		"bound_ip":   event.BoundIP,
		"seen_ip":    event.SeenIP,
		"flagged_at": event.FlaggedAt,
	}
	p.logEvent("election.session.flagged", event.VoterID, event.FlaggedAt, payload)
	return nil
}

// PublishSessionTerminated logs election.session.terminated events.
func (p *StubPublisher) PublishSessionTerminated(_ context.Context, event domain.SessionTerminatedEvent) error {
	payload := map[string]any{
		"session_id":    event.SessionID,
		"voter_id":      event.VoterID,
		"reason":        event.Reason,
		"terminated_at": event.TerminatedAt,
	}
	p.logEvent("election.session.terminated", event.VoterID, event.TerminatedAt, payload)
	return nil
}

// PublishVoteCast logs election.vote.cast events.
func (p *StubPublisher) PublishVoteCast(_ context.Context, event domain.VoteCastEvent) error {
	payload := map[string]any{
		"voter_id":   event.VoterID,
		"session_id": event.SessionID,
		"votes_cast": event.VotesCast,
		"portfolios": event.Portfolios,
		"cast_at":    event.CastAt,
	}
	p.logEvent("election.vote.cast", event.VoterID, event.CastAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
