package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/transport/http/middleware"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// VotingHandler serves the authenticated voter surface: ballot, vote
// submission, and progress views.
type VotingHandler struct {
	votes  *usecase.VoteService
	logger *zap.Logger
}

// NewVotingHandler builds a VotingHandler.
func NewVotingHandler(votes *usecase.VoteService, log *zap.Logger) *VotingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &VotingHandler{votes: votes, logger: log}
}

// Ballot returns the active portfolios and candidates.
// GET /api/v1/voting/ballot
func (h *VotingHandler) Ballot(c *gin.Context) {
	entries, err := h.votes.Ballot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to load ballot"))
		return
	}

	portfolios := make([]PortfolioView, 0, len(entries))
	for _, entry := range entries {
		view := PortfolioView{
			ID:          entry.Portfolio.ID,
			Name:        entry.Portfolio.Name,
			Description: entry.Portfolio.Description,
			VotingOrder: entry.Portfolio.VotingOrder,
			Candidates:  make([]CandidateView, 0, len(entry.Candidates)),
		}
		for _, candidate := range entry.Candidates {
			view.Candidates = append(view.Candidates, CandidateView{
				ID:           candidate.ID,
				Name:         candidate.Name,
				PictureURL:   candidate.PictureURL,
				Manifesto:    candidate.Manifesto,
				Bio:          candidate.Bio,
				DisplayOrder: candidate.DisplayOrder,
			})
		}
		portfolios = append(portfolios, view)
	}

	c.JSON(http.StatusOK, BallotResponse{Portfolios: portfolios})
}

// CastVote records a complete ballot.
// POST /api/v1/voting/vote
func (h *VotingHandler) CastVote(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "selections are required"))
		return
	}

	selections := make([]domain.Selection, 0, len(req.Selections))
	for _, sel := range req.Selections {
		selections = append(selections, domain.Selection{
			PortfolioID: sel.PortfolioID,
			CandidateID: sel.CandidateID,
			Reject:      sel.Reject,
		})
	}

	result, err := h.votes.CastBallot(c.Request.Context(), session, selections, c.ClientIP())
	if err != nil {
		var validation *usecase.BallotValidationError
		if errors.As(err, &validation) {
			failures := make([]SelectionFailureView, 0, len(validation.Failures))
			for _, failure := range validation.Failures {
				failures = append(failures, SelectionFailureView{
					PortfolioID: failure.PortfolioID,
					CandidateID: failure.CandidateID,
					Reason:      failure.Reason,
				})
			}
			c.JSON(http.StatusUnprocessableEntity, BallotRejectedResponse{
				Error:    "Ballot rejected: one or more selections are invalid",
				Failures: failures,
				TraceID:  middleware.GetTraceID(c),
			})
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmptyBallot, Status: http.StatusBadRequest, Message: "Ballot has no selections"},
			{Err: usecase.ErrAlreadyVoted, Status: http.StatusForbidden, Message: "You have already voted"},
			{Err: usecase.ErrVoterIneligible, Status: http.StatusForbidden, Message: "You are not eligible to vote"},
			{Err: usecase.ErrInvalidSession, Status: http.StatusUnauthorized, Message: middleware.SessionExpiredMessage},
		}, http.StatusInternalServerError, "Unable to record your vote")
		return
	}

	c.JSON(http.StatusOK, CastVoteResponse{
		Message:   "Your vote has been recorded",
		VotesCast: result.VotesCast,
		CastAt:    result.CastAt,
	})
}

// MyVotes lists the voter's recorded choices.
// GET /api/v1/voting/my-votes
func (h *VotingHandler) MyVotes(c *gin.Context) {
	voterID := middleware.GetVoterID(c)
	if voterID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
		return
	}

	records, err := h.votes.VotesForVoter(c.Request.Context(), voterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to load votes"))
		return
	}

	views := make([]VoteRecordView, 0, len(records))
	for _, record := range records {
		views = append(views, VoteRecordView{
			PortfolioID: record.PortfolioID,
			CandidateID: record.CandidateID,
			Rejected:    record.IsRejection(),
			CastAt:      record.CastAt,
		})
	}

	c.JSON(http.StatusOK, MyVotesResponse{Votes: views})
}

// Status reports the voter's progress through the ballot.
// GET /api/v1/voting/status
func (h *VotingHandler) Status(c *gin.Context) {
	voterID := middleware.GetVoterID(c)
	if voterID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
		return
	}

	status, err := h.votes.VotingStatus(c.Request.Context(), voterID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVoterNotFound, Status: http.StatusUnauthorized, Message: middleware.SessionExpiredMessage},
		}, http.StatusInternalServerError, "Unable to load voting status")
		return
	}

	c.JSON(http.StatusOK, VotingStatusResponse{
		HasVoted:         status.Voter.HasVoted,
		VotedPortfolios:  status.VotedPortfolios,
		TotalPortfolios:  status.TotalPortfolios,
		RemainingOffices: status.RemainingOffices,
	})
}
