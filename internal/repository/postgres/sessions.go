package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/repository"
)

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
// Statements issued with a context carrying an open transaction join it.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new voting session.
func (r *SessionRepository) Create(ctx context.Context, session domain.VotingSession) error {
	stmt, args, err := r.builder.Insert("election.voting_sessions").
		Columns(
			"id",
			"voter_id",
			"bound_ip",
			"last_ip",
			"user_agent",
			"created_at",
			"last_activity_at",
			"expires_at",
			"activity_count",
			"ip_changes",
			"suspicious",
			"terminated_at",
			"termination_reason",
		).
		Values(
			session.ID,
			session.VoterID,
			session.BoundIP,
			session.LastIP,
			optionalString(session.UserAgent),
			session.CreatedAt,
			session.LastActivityAt,
			session.ExpiresAt,
			session.ActivityCount,
			session.IPChanges,
			session.Suspicious,
			optionalTime(session.TerminatedAt),
			optionalString(session.TerminationReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Get fetches a session by its identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.VotingSession, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"voter_id",
			"bound_ip",
			"last_ip",
			"user_agent",
			"created_at",
			"last_activity_at",
			"expires_at",
			"activity_count",
			"ip_changes",
			"suspicious",
			"terminated_at",
			"termination_reason",
		).
		From("election.voting_sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// Touch records request activity: last activity timestamp, counter, and
// observed IP. The ip_changes counter only advances when the caller saw
// a different address than the previous request.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, ip string, ipChanged bool) error {
	now := time.Now().UTC()
	stmt := `
        UPDATE election.voting_sessions
           SET last_activity_at = $2,
               activity_count = activity_count + 1,
               last_ip = CASE WHEN $3::text IS NULL OR $3::text = '' THEN last_ip ELSE $3::text END,
               ip_changes = ip_changes + CASE WHEN $4 THEN 1 ELSE 0 END
         WHERE id = $1
    `

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, sessionID, now, ip, ipChanged)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Flag sets the suspicious marker. Monotonic: a flag is never cleared.
func (r *SessionRepository) Flag(ctx context.Context, sessionID string) error {
	stmt := `
        UPDATE election.voting_sessions
           SET suspicious = TRUE
         WHERE id = $1
    `

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, sessionID)
	if err != nil {
		return fmt.Errorf("flag session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Terminate closes the session when still open. Already-terminated sessions
// keep their original reason and timestamp.
func (r *SessionRepository) Terminate(ctx context.Context, sessionID string, reason string) error {
	now := time.Now().UTC()
	stmt := `
        UPDATE election.voting_sessions
           SET terminated_at = $2,
               termination_reason = $3
         WHERE id = $1
           AND terminated_at IS NULL
    `

	if _, err := executor(ctx, r.exec).Exec(ctx, stmt, sessionID, now, reason); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}

	return nil
}

// TerminateActiveForVoter closes every open session for the voter.
func (r *SessionRepository) TerminateActiveForVoter(ctx context.Context, voterID string, reason string) (int, error) {
	now := time.Now().UTC()
	stmt := `
        UPDATE election.voting_sessions
           SET terminated_at = $2,
               termination_reason = $3
         WHERE voter_id = $1
           AND terminated_at IS NULL
    `

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, voterID, now, reason)
	if err != nil {
		return 0, fmt.Errorf("terminate sessions for voter: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// StoreEvent persists lifecycle events for auditability.
func (r *SessionRepository) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	details, err := marshalSessionEventDetails(event.Details)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert("election.session_events").
		Columns(
			"id",
			"session_id",
			"kind",
			"at",
			"ip",
			"user_agent",
			"details",
		).
		Values(
			event.ID,
			event.SessionID,
			event.Kind,
			event.At,
			optionalString(event.IP),
			optionalString(event.UserAgent),
			details,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session event sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}

	return nil
}

func scanSession(row pgx.Row) (*domain.VotingSession, error) {
	var (
		session           domain.VotingSession
		userAgent         sql.NullString
		terminatedAt      sql.NullTime
		terminationReason sql.NullString
	)

	if err := row.Scan(
		&session.ID,
		&session.VoterID,
		&session.BoundIP,
		&session.LastIP,
		&userAgent,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.ExpiresAt,
		&session.ActivityCount,
		&session.IPChanges,
		&session.Suspicious,
		&terminatedAt,
		&terminationReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	session.UserAgent = nullableStringPtr(userAgent)
	session.TerminatedAt = nullableTimePtr(terminatedAt)
	session.TerminationReason = nullableStringPtr(terminationReason)

	return &session, nil
}

func marshalSessionEventDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal session event details: %w", err)
	}
	return payload, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
