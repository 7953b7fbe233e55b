package domain

import "time"

// VotingToken represents a single-use code a voter exchanges for a voting session.
// Only the SHA-256 hash of the code is persisted; the plaintext exists once at issuance.
type VotingToken struct {
	ID            string
	VoterID       string
	TokenHash     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason *string
}

// IsExpired reports whether the token has elapsed its validity window.
func (t VotingToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRedeemable returns true when the token can still be exchanged for a session.
func (t VotingToken) IsRedeemable(at time.Time) bool {
	if t.Revoked || t.ConsumedAt != nil {
		return false
	}
	return !t.IsExpired(at)
}

// Consume marks the token as exchanged.
// Returns true if the value changed (i.e. token was previously unconsumed).
func (t *VotingToken) Consume(at time.Time) bool {
	if t.ConsumedAt != nil {
		return false
	}
	timeCopy := at
	t.ConsumedAt = &timeCopy
	return true
}

// Revoke marks the token as revoked.
// Returns true if the token transitioned to the revoked state.
func (t *VotingToken) Revoke(at time.Time, reason string) bool {
	if t.Revoked {
		return false
	}
	t.Revoked = true
	timeCopy := at
	t.RevokedAt = &timeCopy
	t.RevokedReason = &reason
	return true
}

// IssuedToken pairs a persisted token record with the plaintext code for
// one-time delivery to the voter.
type IssuedToken struct {
	Token     VotingToken
	Code      string
	VoterID   string
	StudentID string
}
