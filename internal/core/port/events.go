package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// EventPublisher emits audit events for downstream consumers (dashboards,
// audit trails). Publication failures must never block the voting path.
type EventPublisher interface {
	PublishTokenIssued(ctx context.Context, event domain.TokenIssuedEvent) error
	PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error
	PublishSessionFlagged(ctx context.Context, event domain.SessionFlaggedEvent) error
	PublishSessionTerminated(ctx context.Context, event domain.SessionTerminatedEvent) error
	PublishVoteCast(ctx context.Context, event domain.VoteCastEvent) error
}
