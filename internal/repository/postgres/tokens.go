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

// TokenRepository implements port.TokenRepository backed by PostgreSQL.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
// Statements issued with a context carrying an open transaction join it.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a freshly issued token record.
func (r *TokenRepository) Create(ctx context.Context, token domain.VotingToken) error {
	stmt, args, err := r.builder.Insert("election.voting_tokens").
		Columns(
			"id",
			"voter_id",
			"token_hash",
			"created_at",
			"expires_at",
			"consumed_at",
			"revoked",
			"revoked_at",
			"revoked_reason",
		).
		Values(
			token.ID,
			token.VoterID,
			token.TokenHash,
			token.CreatedAt,
			token.ExpiresAt,
			optionalTime(token.ConsumedAt),
			token.Revoked,
			optionalTime(token.RevokedAt),
			optionalString(token.RevokedReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert token: %w", err)
	}

	return nil
}

// GetByHash fetches a token record by the hash of its code.
func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*domain.VotingToken, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"voter_id",
			"token_hash",
			"created_at",
			"expires_at",
			"consumed_at",
			"revoked",
			"revoked_at",
			"revoked_reason",
		).
		From("election.voting_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	return token, nil
}

// Consume marks a token as exchanged. The WHERE clause only matches tokens
// that are still unconsumed and unrevoked, so two concurrent redemptions of
// the same code cannot both succeed.
func (r *TokenRepository) Consume(ctx context.Context, tokenID string) error {
	now := time.Now().UTC()
	stmt := `
        UPDATE election.voting_tokens
           SET consumed_at = $2
         WHERE id = $1
           AND consumed_at IS NULL
           AND revoked = FALSE
    `

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, tokenID, now)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeActiveForVoter revokes every unconsumed token owned by the voter.
func (r *TokenRepository) RevokeActiveForVoter(ctx context.Context, voterID string, reason string) (int, error) {
	now := time.Now().UTC()
	stmt := `
        UPDATE election.voting_tokens
           SET revoked = TRUE,
               revoked_at = $2,
               revoked_reason = $3
         WHERE voter_id = $1
           AND consumed_at IS NULL
           AND revoked = FALSE
    `

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, voterID, now, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens for voter: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// HasActiveToken reports whether the voter holds an unconsumed, unrevoked,
// unexpired token.
func (r *TokenRepository) HasActiveToken(ctx context.Context, voterID string) (bool, error) {
	stmt := `
        SELECT EXISTS (
            SELECT 1 FROM election.voting_tokens
             WHERE voter_id = $1
               AND consumed_at IS NULL
               AND revoked = FALSE
               AND expires_at > NOW()
        )
    `

	var exists bool
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt, voterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active token: %w", err)
	}

	return exists, nil
}

// CountActive returns how many tokens are currently redeemable.
func (r *TokenRepository) CountActive(ctx context.Context) (int, error) {
	stmt := `
        SELECT COUNT(*) FROM election.voting_tokens
         WHERE consumed_at IS NULL
           AND revoked = FALSE
           AND expires_at > NOW()
    `

	var count int
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active tokens: %w", err)
	}

	return count, nil
}

func scanToken(row pgx.Row) (*domain.VotingToken, error) {
	var (
		token         domain.VotingToken
		consumedAt    sql.NullTime
		revokedAt     sql.NullTime
		revokedReason sql.NullString
	)

	if err := row.Scan(
		&token.ID,
		&token.VoterID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&consumedAt,
		&token.Revoked,
		&revokedAt,
		&revokedReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	token.ConsumedAt = nullableTimePtr(consumedAt)
	token.RevokedAt = nullableTimePtr(revokedAt)
	token.RevokedReason = nullableStringPtr(revokedReason)

	return &token, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
