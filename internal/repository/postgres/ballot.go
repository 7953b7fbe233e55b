package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/repository"
)

// BallotRepository implements port.BallotRepository backed by PostgreSQL.
type BallotRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewBallotRepository constructs a repository backed by any executor that satisfies pgExecutor.
// Statements issued with a context carrying an open transaction join it.
func NewBallotRepository(exec pgExecutor) *BallotRepository {
	return &BallotRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var portfolioColumns = []string{
	"id",
	"name",
	"description",
	"is_active",
	"max_candidates",
	"voting_order",
	"created_at",
	"updated_at",
}

var candidateColumns = []string{
	"id",
	"portfolio_id",
	"name",
	"picture_url",
	"manifesto",
	"bio",
	"is_active",
	"display_order",
	"created_at",
	"updated_at",
}

// ActiveBallot returns active portfolios in voting order, each with its
// active candidates in display order.
func (r *BallotRepository) ActiveBallot(ctx context.Context) ([]domain.BallotEntry, error) {
	portfolios, err := r.listActivePortfolios(ctx)
	if err != nil {
		return nil, err
	}

	if len(portfolios) == 0 {
		return []domain.BallotEntry{}, nil
	}

	candidatesByPortfolio, err := r.listActiveCandidates(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.BallotEntry, 0, len(portfolios))
	for _, portfolio := range portfolios {
		candidates := candidatesByPortfolio[portfolio.ID]
		if candidates == nil {
			candidates = []domain.Candidate{}
		}
		entries = append(entries, domain.BallotEntry{
			Portfolio:  portfolio,
			Candidates: candidates,
		})
	}

	return entries, nil
}

func (r *BallotRepository) listActivePortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	stmt, args, err := r.builder.
		Select(portfolioColumns...).
		From("election.portfolios").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("voting_order ASC", "name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list portfolios sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]domain.Portfolio, 0)
	for rows.Next() {
		portfolio, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		portfolios = append(portfolios, *portfolio)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolios: %w", err)
	}

	return portfolios, nil
}

func (r *BallotRepository) listActiveCandidates(ctx context.Context) (map[string][]domain.Candidate, error) {
	stmt, args, err := r.builder.
		Select(candidateColumns...).
		From("election.candidates").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("portfolio_id ASC", "display_order ASC", "name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list candidates sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]domain.Candidate)
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		grouped[candidate.PortfolioID] = append(grouped[candidate.PortfolioID], *candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	return grouped, nil
}

// GetPortfolio fetches a portfolio by its identifier.
func (r *BallotRepository) GetPortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error) {
	stmt, args, err := r.builder.
		Select(portfolioColumns...).
		From("election.portfolios").
		Where(squirrel.Eq{"id": portfolioID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select portfolio sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	portfolio, err := scanPortfolio(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan portfolio: %w", err)
	}

	return portfolio, nil
}

// CountActivePortfolios returns the number of portfolios on the ballot.
func (r *BallotRepository) CountActivePortfolios(ctx context.Context) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("election.portfolios").
		Where(squirrel.Eq{"is_active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count portfolios sql: %w", err)
	}

	var count int
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count portfolios: %w", err)
	}

	return count, nil
}

func scanPortfolio(row pgx.Row) (*domain.Portfolio, error) {
	var (
		portfolio   domain.Portfolio
		description sql.NullString
	)

	if err := row.Scan(
		&portfolio.ID,
		&portfolio.Name,
		&description,
		&portfolio.IsActive,
		&portfolio.MaxCandidates,
		&portfolio.VotingOrder,
		&portfolio.CreatedAt,
		&portfolio.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	portfolio.Description = nullableStringPtr(description)

	return &portfolio, nil
}

func scanCandidate(row pgx.Row) (*domain.Candidate, error) {
	var (
		candidate  domain.Candidate
		pictureURL sql.NullString
		manifesto  sql.NullString
		bio        sql.NullString
	)

	if err := row.Scan(
		&candidate.ID,
		&candidate.PortfolioID,
		&candidate.Name,
		&pictureURL,
		&manifesto,
		&bio,
		&candidate.IsActive,
		&candidate.DisplayOrder,
		&candidate.CreatedAt,
		&candidate.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	candidate.PictureURL = nullableStringPtr(pictureURL)
	candidate.Manifesto = nullableStringPtr(manifesto)
	candidate.Bio = nullableStringPtr(bio)

	return &candidate, nil
}

var _ port.BallotRepository = (*BallotRepository)(nil)
