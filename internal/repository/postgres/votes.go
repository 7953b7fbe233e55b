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

// VoteRepository implements port.VoteRepository backed by PostgreSQL.
type VoteRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewVoteRepository constructs a repository backed by any executor that satisfies pgExecutor.
// Statements issued with a context carrying an open transaction join it.
func NewVoteRepository(exec pgExecutor) *VoteRepository {
	return &VoteRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var voteColumns = []string{
	"id",
	"voter_id",
	"portfolio_id",
	"candidate_id",
	"session_id",
	"ip_address",
	"user_agent",
	"cast_at",
}

// CreateBatch inserts all records in one statement: either every record
// lands or none do. The unique index on (voter_id, portfolio_id) turns a
// concurrent double submission into repository.ErrDuplicate. Callers own
// the surrounding transaction when the batch must commit together with
// other writes.
func (r *VoteRepository) CreateBatch(ctx context.Context, records []domain.VoteRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("create vote batch: no records")
	}

	insert := r.builder.Insert("election.votes").Columns(voteColumns...)
	for _, record := range records {
		insert = insert.Values(
			record.ID,
			record.VoterID,
			record.PortfolioID,
			optionalString(record.CandidateID),
			optionalString(record.SessionID),
			record.IP,
			optionalString(record.UserAgent),
			record.CastAt,
		)
	}

	stmt, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert votes sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert votes: %w", err)
	}

	return nil
}

// ListByVoter returns the voter's records ordered by portfolio.
func (r *VoteRepository) ListByVoter(ctx context.Context, voterID string) ([]domain.VoteRecord, error) {
	stmt, args, err := r.builder.
		Select(voteColumns...).
		From("election.votes").
		Where(squirrel.Eq{"voter_id": voterID}).
		OrderBy("cast_at ASC", "portfolio_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list votes sql: %w", err)
	}

	return r.queryRecords(ctx, stmt, args)
}

// VotedPortfolios returns the set of portfolio IDs the voter has already
// cast a vote for.
func (r *VoteRepository) VotedPortfolios(ctx context.Context, voterID string) (map[string]struct{}, error) {
	stmt, args, err := r.builder.
		Select("portfolio_id").
		From("election.votes").
		Where(squirrel.Eq{"voter_id": voterID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build voted portfolios sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query voted portfolios: %w", err)
	}
	defer rows.Close()

	voted := make(map[string]struct{})
	for rows.Next() {
		var portfolioID string
		if err := rows.Scan(&portfolioID); err != nil {
			return nil, fmt.Errorf("scan portfolio id: %w", err)
		}
		voted[portfolioID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voted portfolios: %w", err)
	}

	return voted, nil
}

// Results aggregates tallies per portfolio, including explicit rejections.
func (r *VoteRepository) Results(ctx context.Context) ([]domain.PortfolioResult, error) {
	ballot := NewBallotRepository(r.exec)
	entries, err := ballot.ActiveBallot(ctx)
	if err != nil {
		return nil, err
	}

	tallies, rejections, err := r.tallyVotes(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.PortfolioResult, 0, len(entries))
	for _, entry := range entries {
		result := domain.PortfolioResult{
			Portfolio:  entry.Portfolio,
			Tallies:    make([]domain.CandidateTally, 0, len(entry.Candidates)),
			Rejections: rejections[entry.Portfolio.ID],
		}

		total := result.Rejections
		for _, candidate := range entry.Candidates {
			votes := tallies[candidate.ID]
			total += votes
			result.Tallies = append(result.Tallies, domain.CandidateTally{
				Candidate: candidate,
				Votes:     votes,
			})
		}
		result.TotalVotes = total

		results = append(results, result)
	}

	return results, nil
}

func (r *VoteRepository) tallyVotes(ctx context.Context) (map[string]int, map[string]int, error) {
	stmt := `
        SELECT portfolio_id, candidate_id, COUNT(*)
          FROM election.votes
         GROUP BY portfolio_id, candidate_id
    `

	rows, err := executor(ctx, r.exec).Query(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("query vote tallies: %w", err)
	}
	defer rows.Close()

	tallies := make(map[string]int)
	rejections := make(map[string]int)
	for rows.Next() {
		var (
			portfolioID string
			candidateID sql.NullString
			count       int
		)
		if err := rows.Scan(&portfolioID, &candidateID, &count); err != nil {
			return nil, nil, fmt.Errorf("scan vote tally: %w", err)
		}

		if candidateID.Valid {
			tallies[candidateID.String] = count
		} else {
			rejections[portfolioID] = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate vote tallies: %w", err)
	}

	return tallies, rejections, nil
}

// ListRecent returns the most recently cast records.
func (r *VoteRepository) ListRecent(ctx context.Context, limit int) ([]domain.VoteRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	stmt, args, err := r.builder.
		Select(voteColumns...).
		From("election.votes").
		OrderBy("cast_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent votes sql: %w", err)
	}

	return r.queryRecords(ctx, stmt, args)
}

// CountTotal returns the number of recorded votes.
func (r *VoteRepository) CountTotal(ctx context.Context) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("election.votes").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count votes sql: %w", err)
	}

	var count int
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}

	return count, nil
}

func (r *VoteRepository) queryRecords(ctx context.Context, stmt string, args []any) ([]domain.VoteRecord, error) {
	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	records := make([]domain.VoteRecord, 0)
	for rows.Next() {
		record, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}

	return records, nil
}

func scanVote(row pgx.Row) (*domain.VoteRecord, error) {
	var (
		record      domain.VoteRecord
		candidateID sql.NullString
		sessionID   sql.NullString
		userAgent   sql.NullString
	)

	if err := row.Scan(
		&record.ID,
		&record.VoterID,
		&record.PortfolioID,
		&candidateID,
		&sessionID,
		&record.IP,
		&userAgent,
		&record.CastAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	record.CandidateID = nullableStringPtr(candidateID)
	record.SessionID = nullableStringPtr(sessionID)
	record.UserAgent = nullableStringPtr(userAgent)

	return &record, nil
}

var _ port.VoteRepository = (*VoteRepository)(nil)
