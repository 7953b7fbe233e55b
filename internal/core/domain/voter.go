package domain

import (
	"strings"
	"time"
)

// Voter is an eligible member of the electorate. Eligibility rows are loaded
// from the student register ahead of the election; the service itself never
// creates voters.
type Voter struct {
	ID        string
	StudentID string
	Name      string
	Program   *string
	YearLevel *string
	Email     *string
	Phone     *string
	HasVoted  bool
	VotedAt   *time.Time
	IsDeleted bool
	IsBanned  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanVote reports whether the voter may be issued a token or cast a ballot.
func (v Voter) CanVote() bool {
	return !v.HasVoted && !v.IsDeleted && !v.IsBanned
}

// MarkVoted records that the voter has cast their ballot.
// Returns true if the state changed.
func (v *Voter) MarkVoted(at time.Time) bool {
	if v.HasVoted {
		return false
	}
	v.HasVoted = true
	timeCopy := at
	v.VotedAt = &timeCopy
	return true
}

// StudentIDForStorage canonicalizes a student identifier for lookups.
// Register exports use slashes (UEB/3512/823) while ID cards print
// hyphens; both forms must resolve to the same voter.
func StudentIDForStorage(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	id = strings.ReplaceAll(id, "/", "")
	id = strings.ReplaceAll(id, "-", "")
	id = strings.ReplaceAll(id, " ", "")
	return id
}

// StudentIDForDisplay returns the identifier as shown to voters.
func (v Voter) StudentIDForDisplay() string {
	return v.StudentID
}
