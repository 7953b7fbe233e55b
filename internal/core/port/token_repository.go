package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// TokenRepository manages voting token records.
type TokenRepository interface {
	Create(ctx context.Context, token domain.VotingToken) error
	GetByHash(ctx context.Context, hash string) (*domain.VotingToken, error)
	// Consume atomically marks an unconsumed, unrevoked token as consumed.
	// Returns repository.ErrNotFound when the token was already consumed,
	// revoked, or missing: concurrent redemptions serialize here.
	Consume(ctx context.Context, tokenID string) error
	// RevokeActiveForVoter revokes every unconsumed token owned by the voter
	// and returns how many were revoked.
	RevokeActiveForVoter(ctx context.Context, voterID string, reason string) (int, error)
	HasActiveToken(ctx context.Context, voterID string) (bool, error)
	CountActive(ctx context.Context) (int, error)
}
