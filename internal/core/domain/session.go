package domain

import "time"

// Session termination reasons recorded for auditability.
const (
	TerminationVoteCast   = "vote_cast"
	TerminationExpired    = "session_expired"
	TerminationSuspicious = "suspicious_activity"
	TerminationSuperseded = "superseded"
	TerminationMismatch   = "session_mismatch"
)

// VotingSession represents the authenticated window during which a voter may
// fetch the ballot and cast votes. It is bound to the IP observed at creation.
type VotingSession struct {
	ID                string
	VoterID           string
	BoundIP           string
	LastIP            string
	UserAgent         *string
	CreatedAt         time.Time
	LastActivityAt    time.Time
	ExpiresAt         time.Time
	ActivityCount     int
	IPChanges         int
	Suspicious        bool
	TerminatedAt      *time.Time
	TerminationReason *string
}

// IsTerminated reports whether the session has been permanently closed.
func (s VotingSession) IsTerminated() bool {
	return s.TerminatedAt != nil
}

// IsExpired reports whether the session has elapsed its lifetime at the supplied moment.
func (s VotingSession) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// IsActive reports whether the session can still authenticate requests.
// A flagged session is not active: the flag forces termination on the next validation.
func (s VotingSession) IsActive(at time.Time) bool {
	if s.IsTerminated() || s.Suspicious {
		return false
	}
	return !s.IsExpired(at)
}

// Touch records request activity against the session. The suspicious flag is
// monotonic: once set it is never cleared.
func (s *VotingSession) Touch(at time.Time, ip string) {
	s.LastActivityAt = at
	s.ActivityCount++
	if ip != "" && ip != s.LastIP {
		if s.LastIP != "" {
			s.IPChanges++
		}
		s.LastIP = ip
	}
}

// Flag marks the session as suspicious. Returns true when the flag transitioned.
func (s *VotingSession) Flag() bool {
	if s.Suspicious {
		return false
	}
	s.Suspicious = true
	return true
}

// Terminate closes the session permanently. Idempotent: a terminated session
// keeps its original reason. Returns true when the session changed state.
func (s *VotingSession) Terminate(at time.Time, reason string) bool {
	if s.TerminatedAt != nil {
		return false
	}
	timeCopy := at
	s.TerminatedAt = &timeCopy
	s.TerminationReason = &reason
	return true
}

// SessionEvent captures lifecycle changes for sessions.
type SessionEvent struct {
	ID        string
	SessionID string
	Kind      string
	At        time.Time
	IP        *string
	UserAgent *string
	Details   map[string]any
}
