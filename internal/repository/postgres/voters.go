package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/repository"
)

// VoterRepository implements port.VoterRepository backed by PostgreSQL.
type VoterRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewVoterRepository constructs a repository backed by any executor that satisfies pgExecutor.
// Statements issued with a context carrying an open transaction join it.
func NewVoterRepository(exec pgExecutor) *VoterRepository {
	return &VoterRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var voterColumns = []string{
	"id",
	"student_id",
	"name",
	"program",
	"year_level",
	"email",
	"phone",
	"has_voted",
	"voted_at",
	"is_deleted",
	"is_banned",
	"created_at",
	"updated_at",
}

// GetByID fetches a voter by the canonicalized student identifier.
func (r *VoterRepository) GetByID(ctx context.Context, voterID string) (*domain.Voter, error) {
	stmt, args, err := r.builder.
		Select(voterColumns...).
		From("election.voters").
		Where(squirrel.Eq{"id": voterID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select voter sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	voter, err := scanVoter(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan voter: %w", err)
	}

	return voter, nil
}

// List returns voters matching the filter ordered by student identifier.
func (r *VoterRepository) List(ctx context.Context, filter port.VoterFilter) ([]domain.Voter, error) {
	query := r.builder.
		Select(voterColumns...).
		From("election.voters").
		Where(squirrel.Eq{"is_deleted": false}).
		OrderBy("student_id ASC")

	if filter.HasVoted != nil {
		query = query.Where(squirrel.Eq{"has_voted": *filter.HasVoted})
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list voters sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query voters: %w", err)
	}
	defer rows.Close()

	voters := make([]domain.Voter, 0)
	for rows.Next() {
		voter, err := scanVoter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		voters = append(voters, *voter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voters: %w", err)
	}

	return voters, nil
}

// ListEligibleIDs returns IDs of voters who may still participate.
func (r *VoterRepository) ListEligibleIDs(ctx context.Context, excludeVoted bool) ([]string, error) {
	query := r.builder.
		Select("id").
		From("election.voters").
		Where(squirrel.Eq{"is_deleted": false, "is_banned": false}).
		OrderBy("student_id ASC")

	if excludeVoted {
		query = query.Where(squirrel.Eq{"has_voted": false})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list eligible voters sql: %w", err)
	}

	return r.queryIDs(ctx, stmt, args)
}

// ListIDsWithoutVoteFor returns eligible voters with no vote record for the portfolio.
func (r *VoterRepository) ListIDsWithoutVoteFor(ctx context.Context, portfolioID string) ([]string, error) {
	stmt := `
        SELECT v.id
          FROM election.voters AS v
         WHERE v.is_deleted = FALSE
           AND v.is_banned = FALSE
           AND NOT EXISTS (
                SELECT 1 FROM election.votes AS vt
                 WHERE vt.voter_id = v.id AND vt.portfolio_id = $1
           )
         ORDER BY v.student_id ASC
    `

	return r.queryIDs(ctx, stmt, []any{portfolioID})
}

// MarkVoted flips the has_voted flag for the voter.
func (r *VoterRepository) MarkVoted(ctx context.Context, voterID string) error {
	now := time.Now().UTC()
	stmt, args, err := r.builder.
		Update("election.voters").
		Set("has_voted", true).
		Set("voted_at", now).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": voterID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark voted sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark voter voted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// CountTotal returns the size of the electorate excluding removed voters.
func (r *VoterRepository) CountTotal(ctx context.Context) (int, error) {
	return r.count(ctx, squirrel.Eq{"is_deleted": false})
}

// CountVoted returns how many voters have cast a ballot.
func (r *VoterRepository) CountVoted(ctx context.Context) (int, error) {
	return r.count(ctx, squirrel.Eq{"is_deleted": false, "has_voted": true})
}

func (r *VoterRepository) count(ctx context.Context, where squirrel.Eq) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("election.voters").
		Where(where).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count voters sql: %w", err)
	}

	var count int
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count voters: %w", err)
	}

	return count, nil
}

func (r *VoterRepository) queryIDs(ctx context.Context, stmt string, args []any) ([]string, error) {
	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query voter ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan voter id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voter ids: %w", err)
	}

	return ids, nil
}

func scanVoter(row pgx.Row) (*domain.Voter, error) {
	var (
		voter     domain.Voter
		program   sql.NullString
		yearLevel sql.NullString
		email     sql.NullString
		phone     sql.NullString
		votedAt   sql.NullTime
	)

	if err := row.Scan(
		&voter.ID,
		&voter.StudentID,
		&voter.Name,
		&program,
		&yearLevel,
		&email,
		&phone,
		&voter.HasVoted,
		&votedAt,
		&voter.IsDeleted,
		&voter.IsBanned,
		&voter.CreatedAt,
		&voter.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	voter.Program = nullableStringPtr(program)
	voter.YearLevel = nullableStringPtr(yearLevel)
	voter.Email = nullableStringPtr(email)
	voter.Phone = nullableStringPtr(phone)
	voter.VotedAt = nullableTimePtr(votedAt)

	return &voter, nil
}

var _ port.VoterRepository = (*VoterRepository)(nil)
