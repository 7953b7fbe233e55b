package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// BallotRepository provides read access to portfolios and candidates.
type BallotRepository interface {
	// ActiveBallot returns active portfolios in voting order, each with its
	// active candidates in display order.
	ActiveBallot(ctx context.Context) ([]domain.BallotEntry, error)
	GetPortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error)
	CountActivePortfolios(ctx context.Context) (int, error)
}
