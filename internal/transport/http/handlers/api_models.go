package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyIDRequest carries a raw voting code from the login form.
type VerifyIDRequest struct {
	Token string `json:"token" binding:"required"`
}

// VoterSummary describes the voter view returned after authentication.
type VoterSummary struct {
	ID        string  `json:"id"`
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	Program   *string `json:"program,omitempty"`
	YearLevel *string `json:"year_level,omitempty"`
	HasVoted  bool    `json:"has_voted"`
}

// SessionSummary provides a compact view of session context in login responses.
type SessionSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// VoterLoginResponse is returned on successful token redemption.
type VoterLoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Voter       VoterSummary   `json:"voter"`
	Session     SessionSummary `json:"session"`
}

// RefreshResponse is returned when a session credential is reissued.
type RefreshResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionStatusResponse reports verification of the current session.
type SessionStatusResponse struct {
	Valid     bool           `json:"valid"`
	Voter     VoterSummary   `json:"voter"`
	Session   SessionSummary `json:"session"`
	HasVoted  bool           `json:"has_voted"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// AdminLoginRequest defines the payload for the staff login endpoint.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse is returned on successful staff login.
type AdminLoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
}

// AdminVerifyResponse reports the authenticated staff identity.
type AdminVerifyResponse struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// CandidateView is a candidate as presented on the ballot.
type CandidateView struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PictureURL   *string `json:"picture_url,omitempty"`
	Manifesto    *string `json:"manifesto,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	DisplayOrder int     `json:"display_order"`
}

// PortfolioView is a portfolio with its candidates as presented on the ballot.
type PortfolioView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	VotingOrder int             `json:"voting_order"`
	Candidates  []CandidateView `json:"candidates"`
}

// BallotResponse is the full ballot for an authenticated voter.
type BallotResponse struct {
	Portfolios []PortfolioView `json:"portfolios"`
}

// SelectionRequest is one choice within a submitted ballot.
type SelectionRequest struct {
	PortfolioID string `json:"portfolio_id" binding:"required"`
	CandidateID string `json:"candidate_id"`
	Reject      bool   `json:"reject"`
}

// CastVoteRequest is a complete ballot submission.
type CastVoteRequest struct {
	Selections []SelectionRequest `json:"selections" binding:"required"`
}

// CastVoteResponse confirms a recorded ballot.
type CastVoteResponse struct {
	Message   string    `json:"message"`
	VotesCast int       `json:"votes_cast"`
	CastAt    time.Time `json:"cast_at"`
}

// SelectionFailureView describes one refused selection.
type SelectionFailureView struct {
	PortfolioID string `json:"portfolio_id"`
	CandidateID string `json:"candidate_id,omitempty"`
	Reason      string `json:"reason"`
}

// BallotRejectedResponse reports a ballot refused by validation. Nothing was
// recorded and the session remains usable.
type BallotRejectedResponse struct {
	Error    string                 `json:"error"`
	Failures []SelectionFailureView `json:"failures"`
	TraceID  string                 `json:"trace_id,omitempty"`
}

// VoteRecordView is one recorded choice shown back to its voter.
type VoteRecordView struct {
	PortfolioID string    `json:"portfolio_id"`
	CandidateID *string   `json:"candidate_id,omitempty"`
	Rejected    bool      `json:"rejected"`
	CastAt      time.Time `json:"cast_at"`
}

// MyVotesResponse lists the voter's recorded choices.
type MyVotesResponse struct {
	Votes []VoteRecordView `json:"votes"`
}

// VotingStatusResponse reports a voter's progress through the ballot.
type VotingStatusResponse struct {
	HasVoted         bool     `json:"has_voted"`
	VotedPortfolios  []string `json:"voted_portfolios"`
	TotalPortfolios  int      `json:"total_portfolios"`
	RemainingOffices int      `json:"remaining_offices"`
}

// GenerateAllRequest configures an election-wide token generation run.
type GenerateAllRequest struct {
	ExcludeVoted bool `json:"exclude_voted"`
}

// GenerateBulkRequest lists the voters to issue tokens for.
type GenerateBulkRequest struct {
	StudentIDs []string `json:"student_ids" binding:"required"`
}

// IssuedTokenView pairs a voter with their freshly issued code. Returned
// once; the code is never recoverable afterwards.
type IssuedTokenView struct {
	StudentID string    `json:"student_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BulkSkipView records a voter passed over during bulk issuance.
type BulkSkipView struct {
	VoterID string `json:"voter_id"`
	Reason  string `json:"reason"`
}

// GenerateTokensResponse summarizes a bulk generation run.
type GenerateTokensResponse struct {
	Generated int               `json:"generated"`
	Skipped   []BulkSkipView    `json:"skipped"`
	Tokens    []IssuedTokenView `json:"tokens"`
}

// RegenerateTokenResponse carries a single regenerated code.
type RegenerateTokenResponse struct {
	StudentID string    `json:"student_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VoterAdminView is the voter as shown in the admin listing.
type VoterAdminView struct {
	ID        string     `json:"id"`
	StudentID string     `json:"student_id"`
	Name      string     `json:"name"`
	Program   *string    `json:"program,omitempty"`
	YearLevel *string    `json:"year_level,omitempty"`
	HasVoted  bool       `json:"has_voted"`
	VotedAt   *time.Time `json:"voted_at,omitempty"`
	IsBanned  bool       `json:"is_banned"`
}

// VotersResponse lists voters for the admin dashboard.
type VotersResponse struct {
	Voters []VoterAdminView `json:"voters"`
	Count  int              `json:"count"`
}

// StatisticsResponse summarizes election progress.
type StatisticsResponse struct {
	TotalVoters  int     `json:"total_voters"`
	VotedCount   int     `json:"voted_count"`
	ActiveTokens int     `json:"active_tokens"`
	TotalVotes   int     `json:"total_votes"`
	TurnoutPct   float64 `json:"turnout_pct"`
}

// CandidateTallyView is a candidate's vote count in the results.
type CandidateTallyView struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

// PortfolioResultView aggregates results for one portfolio.
type PortfolioResultView struct {
	PortfolioID string               `json:"portfolio_id"`
	Name        string               `json:"name"`
	Tallies     []CandidateTallyView `json:"tallies"`
	Rejections  int                  `json:"rejections"`
	TotalVotes  int                  `json:"total_votes"`
}

// ResultsResponse carries the full election results.
type ResultsResponse struct {
	Results []PortfolioResultView `json:"results"`
}

// RecentActivityEntry is one recently cast vote, anonymized to portfolio level.
type RecentActivityEntry struct {
	PortfolioID string    `json:"portfolio_id"`
	Rejected    bool      `json:"rejected"`
	CastAt      time.Time `json:"cast_at"`
}

// RecentActivityResponse lists the latest recorded votes.
type RecentActivityResponse struct {
	Activity []RecentActivityEntry `json:"activity"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes the readiness payload with dependency checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func voterSummary(voter domain.Voter) VoterSummary {
	return VoterSummary{
		ID:        voter.ID,
		StudentID: voter.StudentIDForDisplay(),
		Name:      voter.Name,
		Program:   voter.Program,
		YearLevel: voter.YearLevel,
		HasVoted:  voter.HasVoted,
	}
}

func sessionSummary(session domain.VotingSession) SessionSummary {
	return SessionSummary{
		ID:             session.ID,
		CreatedAt:      session.CreatedAt,
		ExpiresAt:      session.ExpiresAt,
		LastActivityAt: session.LastActivityAt,
	}
}

func issuedTokenViews(issued []domain.IssuedToken) []IssuedTokenView {
	views := make([]IssuedTokenView, 0, len(issued))
	for _, token := range issued {
		views = append(views, IssuedTokenView{
			StudentID: token.StudentID,
			Token:     token.Code,
			ExpiresAt: token.Token.ExpiresAt,
		})
	}
	return views
}

func bulkSkipViews(skipped []usecase.BulkSkip) []BulkSkipView {
	views := make([]BulkSkipView, 0, len(skipped))
	for _, skip := range skipped {
		views = append(views, BulkSkipView{VoterID: skip.VoterID, Reason: skip.Reason})
	}
	return views
}
