package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/transport/http/middleware"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// AdminHandler serves the staff surface: token issuance, the electorate
// listing, statistics, and results.
type AdminHandler struct {
	tokens *usecase.TokenService
	votes  *usecase.VoteService
	logger *zap.Logger
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(tokens *usecase.TokenService, votes *usecase.VoteService, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{tokens: tokens, votes: votes, logger: log}
}

func issuerUsername(c *gin.Context) string {
	if staff := middleware.GetStaffUser(c); staff != nil {
		return staff.Username
	}
	return ""
}

// GenerateAll issues tokens for the whole electorate.
// POST /api/v1/admin/generate-tokens/all
func (h *AdminHandler) GenerateAll(c *gin.Context) {
	var req GenerateAllRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid request body"))
		return
	}

	result, err := h.tokens.IssueForAll(c.Request.Context(), req.ExcludeVoted, issuerUsername(c))
	if err != nil {
		h.logger.Error("bulk token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to generate tokens"))
		return
	}

	c.JSON(http.StatusOK, generateTokensResponse(result))
}

// GenerateBulk issues tokens for an explicit list of student IDs.
// POST /api/v1/admin/generate-tokens/bulk
func (h *AdminHandler) GenerateBulk(c *gin.Context) {
	var req GenerateBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "student_ids are required"))
		return
	}

	result, err := h.tokens.IssueBulk(c.Request.Context(), req.StudentIDs, issuerUsername(c))
	if err != nil {
		h.logger.Error("bulk token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to generate tokens"))
		return
	}

	c.JSON(http.StatusOK, generateTokensResponse(result))
}

// GenerateForPortfolio issues tokens to voters who have not yet voted for a
// given portfolio, typically ahead of a rerun.
// POST /api/v1/admin/generate-tokens/portfolio/:portfolio_id
func (h *AdminHandler) GenerateForPortfolio(c *gin.Context) {
	portfolioID := c.Param("portfolio_id")

	result, err := h.tokens.IssueForPortfolio(c.Request.Context(), portfolioID, issuerUsername(c))
	if err != nil {
		h.logger.Error("portfolio token generation failed",
			zap.String("portfolio_id", portfolioID),
			zap.Error(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPortfolioNotFound, Status: http.StatusNotFound, Message: "Portfolio not found"},
		}, http.StatusInternalServerError, "Unable to generate tokens")
		return
	}

	c.JSON(http.StatusOK, generateTokensResponse(result))
}

// RegenerateToken revokes and reissues the token for a single voter.
// POST /api/v1/admin/regenerate-token/:voter_id
func (h *AdminHandler) RegenerateToken(c *gin.Context) {
	voterID := c.Param("voter_id")

	issued, err := h.tokens.Issue(c.Request.Context(), voterID, usecase.IssueOptions{
		Regenerate: true,
		IssuedBy:   issuerUsername(c),
		Notify:     true,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVoterNotFound, Status: http.StatusNotFound, Message: "Voter not found"},
			{Err: usecase.ErrAlreadyVoted, Status: http.StatusConflict, Message: "Voter has already voted"},
			{Err: usecase.ErrVoterIneligible, Status: http.StatusConflict, Message: "Voter is not eligible"},
		}, http.StatusInternalServerError, "Unable to regenerate token")
		return
	}

	c.JSON(http.StatusOK, RegenerateTokenResponse{
		StudentID: issued.StudentID,
		Token:     issued.Code,
		ExpiresAt: issued.Token.ExpiresAt,
	})
}

// Voters lists the electorate with an optional has_voted filter.
// GET /api/v1/admin/voters
func (h *AdminHandler) Voters(c *gin.Context) {
	filter := port.VoterFilter{
		Offset: parseIntQuery(c, "offset", 0),
		Limit:  parseIntQuery(c, "limit", 100),
	}
	if raw := c.Query("has_voted"); raw != "" {
		voted, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "has_voted must be true or false"))
			return
		}
		filter.HasVoted = &voted
	}

	voters, err := h.votes.ListVoters(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to list voters"))
		return
	}

	views := make([]VoterAdminView, 0, len(voters))
	for _, voter := range voters {
		views = append(views, VoterAdminView{
			ID:        voter.ID,
			StudentID: voter.StudentIDForDisplay(),
			Name:      voter.Name,
			Program:   voter.Program,
			YearLevel: voter.YearLevel,
			HasVoted:  voter.HasVoted,
			VotedAt:   voter.VotedAt,
			IsBanned:  voter.IsBanned,
		})
	}

	c.JSON(http.StatusOK, VotersResponse{Voters: views, Count: len(views)})
}

// Statistics reports turnout, token, and vote counters.
// GET /api/v1/admin/statistics
func (h *AdminHandler) Statistics(c *gin.Context) {
	stats, err := h.tokens.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to load statistics"))
		return
	}

	totalVotes, err := h.votes.TotalVotes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to load statistics"))
		return
	}

	c.JSON(http.StatusOK, StatisticsResponse{
		TotalVoters:  stats.TotalVoters,
		VotedCount:   stats.VotedCount,
		ActiveTokens: stats.ActiveTokens,
		TotalVotes:   totalVotes,
		TurnoutPct:   stats.TurnoutPct,
	})
}

// Results returns the aggregated tallies per portfolio.
// GET /api/v1/admin/results
func (h *AdminHandler) Results(c *gin.Context) {
	results, err := h.votes.Results(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to load results"))
		return
	}

	views := make([]PortfolioResultView, 0, len(results))
	for _, result := range results {
		view := PortfolioResultView{
			PortfolioID: result.Portfolio.ID,
			Name:        result.Portfolio.Name,
			Tallies:     make([]CandidateTallyView, 0, len(result.Tallies)),
			Rejections:  result.Rejections,
			TotalVotes:  result.TotalVotes,
		}
		for _, tally := range result.Tallies {
			view.Tallies = append(view.Tallies, CandidateTallyView{
				CandidateID: tally.Candidate.ID,
				Name:        tally.Candidate.Name,
				Votes:       tally.Votes,
			})
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, ResultsResponse{Results: views})
}

// RecentActivity returns the latest recorded votes, anonymized to portfolio
// level.
// GET /api/v1/admin/recent-activity
func (h *AdminHandler) RecentActivity(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)

	records, err := h.votes.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to load recent activity"))
		return
	}

	entries := make([]RecentActivityEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, RecentActivityEntry{
			PortfolioID: record.PortfolioID,
			Rejected:    record.IsRejection(),
			CastAt:      record.CastAt,
		})
	}

	c.JSON(http.StatusOK, RecentActivityResponse{Activity: entries})
}

func generateTokensResponse(result *usecase.BulkIssueResult) GenerateTokensResponse {
	return GenerateTokensResponse{
		Generated: len(result.Issued),
		Skipped:   bulkSkipViews(result.Skipped),
		Tokens:    issuedTokenViews(result.Issued),
	}
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
