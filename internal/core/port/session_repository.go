package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// SessionRepository deals with voting session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.VotingSession) error
	Get(ctx context.Context, sessionID string) (*domain.VotingSession, error)
	// Touch persists activity metadata: last activity timestamp, activity
	// counter, last observed IP, and accumulated IP change count.
	Touch(ctx context.Context, sessionID string, ip string, ipChanged bool) error
	// Flag sets the suspicious marker. The transition is monotonic: the
	// repository never clears an existing flag.
	Flag(ctx context.Context, sessionID string) error
	// Terminate closes the session when still open; already-terminated
	// sessions are left untouched (idempotent).
	Terminate(ctx context.Context, sessionID string, reason string) error
	// TerminateActiveForVoter closes every open session for the voter and
	// returns how many sessions were closed.
	TerminateActiveForVoter(ctx context.Context, voterID string, reason string) (int, error)
	StoreEvent(ctx context.Context, event domain.SessionEvent) error
}
