package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/repository"
)

func TestTokenRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	createdAt := time.Now().UTC()
	token := domain.VotingToken{
		ID:        "token-123",
		VoterID:   "UEB3512823",
		TokenHash: "deadbeef",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO election\.voting_tokens`).
		WithArgs(
			token.ID,
			token.VoterID,
			token.TokenHash,
			token.CreatedAt,
			token.ExpiresAt,
			nil,
			false,
			nil,
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_CreateDuplicateHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	createdAt := time.Now().UTC()
	token := domain.VotingToken{
		ID:        "token-123",
		VoterID:   "UEB3512823",
		TokenHash: "deadbeef",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO election\.voting_tokens`).
		WithArgs(
			token.ID,
			token.VoterID,
			token.TokenHash,
			token.CreatedAt,
			token.ExpiresAt,
			nil,
			false,
			nil,
			nil,
		).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.Create(context.Background(), token); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	createdAt := time.Now().UTC()
	expiresAt := createdAt.Add(24 * time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "voter_id", "token_hash", "created_at", "expires_at", "consumed_at", "revoked", "revoked_at", "revoked_reason",
	}).AddRow(
		"token-1", "UEB3512823", "deadbeef", createdAt, expiresAt, nil, false, nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM election\.voting_tokens`).
		WithArgs("deadbeef").
		WillReturnRows(rows)

	token, err := repo.GetByHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("GetByHash returned error: %v", err)
	}
	if token.ID != "token-1" {
		t.Fatalf("expected token id token-1, got %s", token.ID)
	}
	if token.ConsumedAt != nil || token.Revoked {
		t.Fatalf("expected a fresh token, got %+v", token)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetByHashNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM election\.voting_tokens`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByHash(context.Background(), "unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_Consume(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	mock.ExpectExec(`UPDATE election\.voting_tokens`).
		WithArgs("token-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Consume(context.Background(), "token-1"); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_ConsumeAlreadyConsumed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	mock.ExpectExec(`UPDATE election\.voting_tokens`).
		WithArgs("token-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Consume(context.Background(), "token-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for consumed token, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_RevokeActiveForVoter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	mock.ExpectExec(`UPDATE election\.voting_tokens`).
		WithArgs("UEB3512823", pgxmock.AnyArg(), "regenerated").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	revoked, err := repo.RevokeActiveForVoter(context.Background(), "UEB3512823", "regenerated")
	if err != nil {
		t.Fatalf("RevokeActiveForVoter returned error: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("expected 2 revoked tokens, got %d", revoked)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_HasActiveToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	rows := pgxmock.NewRows([]string{"exists"}).AddRow(true)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("UEB3512823").
		WillReturnRows(rows)

	active, err := repo.HasActiveToken(context.Background(), "UEB3512823")
	if err != nil {
		t.Fatalf("HasActiveToken returned error: %v", err)
	}
	if !active {
		t.Fatal("expected an active token")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
