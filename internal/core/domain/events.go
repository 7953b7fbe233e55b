package domain

import "time"

// TokenIssuedEvent is published whenever a voting token is generated for a voter.
type TokenIssuedEvent struct {
	EventID    string
	VoterID    string
	TokenID    string
	IssuedBy   string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Regenerate bool
	Metadata   map[string]any
}

// SessionCreatedEvent is published when a token redemption opens a voting session.
type SessionCreatedEvent struct {
	EventID   string
	SessionID string
	VoterID   string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionFlaggedEvent is published when anomaly detection marks a session suspicious.
type SessionFlaggedEvent struct {
	EventID   string
	SessionID string
	VoterID   string
	BoundIP   string
	SeenIP    string
	FlaggedAt time.Time
}

// SessionTerminatedEvent is published when a session is permanently closed.
type SessionTerminatedEvent struct {
	EventID      string
	SessionID    string
	VoterID      string
	Reason       string
	TerminatedAt time.Time
}

// VoteCastEvent is published after a ballot has been durably recorded.
type VoteCastEvent struct {
	EventID    string
	VoterID    string
	SessionID  string
	VotesCast  int
	Portfolios []string
	CastAt     time.Time
}
