package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// VoteRepository persists and aggregates vote records.
type VoteRepository interface {
	// CreateBatch inserts all records atomically: either every record lands
	// or none do. A unique violation on (voter, portfolio) surfaces as
	// repository.ErrDuplicate.
	CreateBatch(ctx context.Context, records []domain.VoteRecord) error
	ListByVoter(ctx context.Context, voterID string) ([]domain.VoteRecord, error)
	// VotedPortfolios returns the set of portfolio IDs the voter has already
	// cast a vote for.
	VotedPortfolios(ctx context.Context, voterID string) (map[string]struct{}, error)
	Results(ctx context.Context) ([]domain.PortfolioResult, error)
	ListRecent(ctx context.Context, limit int) ([]domain.VoteRecord, error)
	CountTotal(ctx context.Context) (int, error)
}
