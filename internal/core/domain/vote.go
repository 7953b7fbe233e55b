package domain

import "time"

// VoteRecord is the durable, immutable record of a voter's choice for one
// portfolio. CandidateID is nil when the selection was an explicit rejection
// of a single-candidate portfolio. At most one record exists per
// (voter, portfolio) pair, ever.
type VoteRecord struct {
	ID          string
	VoterID     string
	PortfolioID string
	CandidateID *string
	SessionID   *string
	IP          string
	UserAgent   *string
	CastAt      time.Time
}

// IsRejection reports whether the record is an explicit rejection rather than
// an endorsement of a candidate.
func (v VoteRecord) IsRejection() bool {
	return v.CandidateID == nil
}

// Selection is one portfolio/candidate choice within a submitted ballot.
// Reject marks an explicit rejection; when set, CandidateID identifies the
// sole candidate being rejected and no endorsement is recorded.
type Selection struct {
	PortfolioID string
	CandidateID string
	Reject      bool
}

// SelectionFailure describes why one selection in a ballot was refused.
type SelectionFailure struct {
	PortfolioID string
	CandidateID string
	Reason      string
}

// BallotResult summarizes the outcome of a ballot submission.
type BallotResult struct {
	VotesCast int
	Records   []VoteRecord
	CastAt    time.Time
}
