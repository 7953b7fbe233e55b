package domain

import "time"

// Portfolio is an electoral office being contested. A portfolio with a single
// candidate is decided by approval: voters either endorse the candidate or
// cast an explicit rejection.
type Portfolio struct {
	ID            string
	Name          string
	Description   *string
	IsActive      bool
	MaxCandidates int
	VotingOrder   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Candidate stands for a portfolio.
type Candidate struct {
	ID           string
	PortfolioID  string
	Name         string
	PictureURL   *string
	Manifesto    *string
	Bio          *string
	IsActive     bool
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BallotEntry groups a portfolio with its active candidates for presentation
// to an authenticated voter.
type BallotEntry struct {
	Portfolio  Portfolio
	Candidates []Candidate
}

// PortfolioResult aggregates vote counts for one portfolio.
type PortfolioResult struct {
	Portfolio  Portfolio
	Tallies    []CandidateTally
	Rejections int
	TotalVotes int
}

// CandidateTally is the vote count for a single candidate.
type CandidateTally struct {
	Candidate Candidate
	Votes     int
}
