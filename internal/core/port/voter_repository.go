package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// VoterFilter narrows voter listings.
type VoterFilter struct {
	HasVoted *bool
	Offset   int
	Limit    int
}

// VoterRepository deals with electorate storage.
type VoterRepository interface {
	GetByID(ctx context.Context, voterID string) (*domain.Voter, error)
	List(ctx context.Context, filter VoterFilter) ([]domain.Voter, error)
	ListEligibleIDs(ctx context.Context, excludeVoted bool) ([]string, error)
	// ListIDsWithoutVoteFor returns voters who have not yet cast a vote for
	// the supplied portfolio.
	ListIDsWithoutVoteFor(ctx context.Context, portfolioID string) ([]string, error)
	// MarkVoted flips the has_voted flag; returns repository.ErrNotFound when
	// the voter does not exist.
	MarkVoted(ctx context.Context, voterID string) error
	CountTotal(ctx context.Context) (int, error)
	CountVoted(ctx context.Context) (int, error)
}
