package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/infra/security"
	"github.com/timothysaatum/election-system/internal/repository"
)

var (
	// ErrVoterNotFound indicates the student identifier matched no voter.
	ErrVoterNotFound = errors.New("voter not found")
	// ErrAlreadyVoted indicates the voter has already cast a ballot.
	ErrAlreadyVoted = errors.New("voter has already voted")
	// ErrVoterIneligible indicates the voter is banned or removed from the register.
	ErrVoterIneligible = errors.New("voter is not eligible")
	// ErrActiveTokenExists indicates the voter already holds a redeemable token.
	ErrActiveTokenExists = errors.New("voter already has an active token")
	// ErrInvalidToken covers every failed redemption shape: unknown code,
	// expired, revoked, or already consumed. Callers cannot distinguish them.
	ErrInvalidToken = errors.New("invalid or expired voting token")
	// ErrPortfolioNotFound indicates a portfolio-scoped issuance named an
	// unknown portfolio.
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// TokenConfig carries the tunables for token issuance.
type TokenConfig struct {
	Length int
	TTL    time.Duration
}

// TokenService coordinates voting token issuance and redemption.
type TokenService struct {
	voters   port.VoterRepository
	tokens   port.TokenRepository
	ballot   port.BallotRepository
	events   port.EventPublisher
	notifier port.Notifier
	logger   *zap.Logger
	cfg      TokenConfig
	now      func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(voters port.VoterRepository, tokens port.TokenRepository, ballot port.BallotRepository, events port.EventPublisher, notifier port.Notifier, cfg TokenConfig, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Length <= 0 {
		cfg.Length = 4
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	service := &TokenService{
		voters:   voters,
		tokens:   tokens,
		ballot:   ballot,
		events:   events,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// IssueOptions controls a single issuance.
type IssueOptions struct {
	// Regenerate revokes any outstanding token instead of failing.
	Regenerate bool
	// IssuedBy identifies the staff user driving the issuance.
	IssuedBy string
	// Notify dispatches the code through the configured notifier.
	Notify bool
}

// Issue generates a fresh voting token for the voter identified by a raw
// student identifier. The plaintext code exists only in the returned value.
func (s *TokenService) Issue(ctx context.Context, rawStudentID string, opts IssueOptions) (*domain.IssuedToken, error) {
	voterID := domain.StudentIDForStorage(rawStudentID)
	if voterID == "" {
		return nil, ErrVoterNotFound
	}

	voter, err := s.voters.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoterNotFound
		}
		return nil, fmt.Errorf("load voter: %w", err)
	}

	return s.issueForVoter(ctx, voter, opts)
}

func (s *TokenService) issueForVoter(ctx context.Context, voter *domain.Voter, opts IssueOptions) (*domain.IssuedToken, error) {
	if voter.HasVoted {
		return nil, ErrAlreadyVoted
	}
	if !voter.CanVote() {
		return nil, ErrVoterIneligible
	}

	if opts.Regenerate {
		revoked, err := s.tokens.RevokeActiveForVoter(ctx, voter.ID, "regenerated")
		if err != nil {
			return nil, fmt.Errorf("revoke prior tokens: %w", err)
		}
		if revoked > 0 {
			s.logger.Info("revoked prior voting tokens",
				zap.String("voter_id", voter.ID),
				zap.Int("count", revoked),
			)
		}
	} else {
		active, err := s.tokens.HasActiveToken(ctx, voter.ID)
		if err != nil {
			return nil, fmt.Errorf("check active token: %w", err)
		}
		if active {
			return nil, ErrActiveTokenExists
		}
	}

	code, err := security.GenerateVotingCode(s.cfg.Length)
	if err != nil {
		return nil, fmt.Errorf("generate voting code: %w", err)
	}

	now := s.now()
	token := domain.VotingToken{
		ID:        uuid.NewString(),
		VoterID:   voter.ID,
		TokenHash: security.HashToken(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Hash collision on a short code. Vanishingly rare; retry once.
			code, err = security.GenerateVotingCode(s.cfg.Length)
			if err != nil {
				return nil, fmt.Errorf("generate voting code: %w", err)
			}
			token.ID = uuid.NewString()
			token.TokenHash = security.HashToken(code)
			if err := s.tokens.Create(ctx, token); err != nil {
				return nil, fmt.Errorf("create token: %w", err)
			}
		} else {
			return nil, fmt.Errorf("create token: %w", err)
		}
	}

	s.publishIssued(ctx, token, opts)

	if opts.Notify && s.notifier != nil {
		if err := s.notifier.NotifyTokenIssued(ctx, *voter, code); err != nil {
			s.logger.Warn("token notification failed",
				zap.String("voter_id", voter.ID),
				zap.Error(err),
			)
		}
	}

	return &domain.IssuedToken{
		Token:     token,
		Code:      code,
		VoterID:   voter.ID,
		StudentID: voter.StudentIDForDisplay(),
	}, nil
}

func (s *TokenService) publishIssued(ctx context.Context, token domain.VotingToken, opts IssueOptions) {
	if s.events == nil {
		return
	}

	event := domain.TokenIssuedEvent{
		EventID:    uuid.NewString(),
		VoterID:    token.VoterID,
		TokenID:    token.ID,
		IssuedBy:   opts.IssuedBy,
		IssuedAt:   token.CreatedAt,
		ExpiresAt:  token.ExpiresAt,
		Regenerate: opts.Regenerate,
	}
	if err := s.events.PublishTokenIssued(ctx, event); err != nil {
		s.logger.Warn("publish token issued event failed", zap.Error(err))
	}
}

// BulkIssueResult summarizes a bulk token generation run.
type BulkIssueResult struct {
	Issued  []domain.IssuedToken
	Skipped []BulkSkip
}

// BulkSkip records a voter passed over during bulk issuance, with the cause.
type BulkSkip struct {
	VoterID string
	Reason  string
}

// IssueForAll generates tokens for every eligible voter. Prior active tokens
// are revoked so each voter ends up with exactly one valid code.
func (s *TokenService) IssueForAll(ctx context.Context, excludeVoted bool, issuedBy string) (*BulkIssueResult, error) {
	ids, err := s.voters.ListEligibleIDs(ctx, excludeVoted)
	if err != nil {
		return nil, fmt.Errorf("list eligible voters: %w", err)
	}

	return s.issueBatch(ctx, ids, issuedBy)
}

// IssueBulk generates tokens for an explicit list of voters.
func (s *TokenService) IssueBulk(ctx context.Context, rawIDs []string, issuedBy string) (*BulkIssueResult, error) {
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id := domain.StudentIDForStorage(raw)
		if id != "" {
			ids = append(ids, id)
		}
	}

	return s.issueBatch(ctx, ids, issuedBy)
}

// IssueForPortfolio generates tokens for voters who have not yet voted on the
// supplied portfolio.
func (s *TokenService) IssueForPortfolio(ctx context.Context, portfolioID string, issuedBy string) (*BulkIssueResult, error) {
	if strings.TrimSpace(portfolioID) == "" {
		return nil, ErrPortfolioNotFound
	}

	if _, err := s.ballot.GetPortfolio(ctx, portfolioID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("load portfolio: %w", err)
	}

	ids, err := s.voters.ListIDsWithoutVoteFor(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("list voters without vote: %w", err)
	}

	return s.issueBatch(ctx, ids, issuedBy)
}

func (s *TokenService) issueBatch(ctx context.Context, voterIDs []string, issuedBy string) (*BulkIssueResult, error) {
	result := &BulkIssueResult{
		Issued:  make([]domain.IssuedToken, 0, len(voterIDs)),
		Skipped: make([]BulkSkip, 0),
	}

	opts := IssueOptions{Regenerate: true, IssuedBy: issuedBy, Notify: true}
	for _, voterID := range voterIDs {
		voter, err := s.voters.GetByID(ctx, voterID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.Skipped = append(result.Skipped, BulkSkip{VoterID: voterID, Reason: "not_found"})
				continue
			}
			return nil, fmt.Errorf("load voter %s: %w", voterID, err)
		}

		issued, err := s.issueForVoter(ctx, voter, opts)
		if err != nil {
			switch {
			case errors.Is(err, ErrAlreadyVoted):
				result.Skipped = append(result.Skipped, BulkSkip{VoterID: voterID, Reason: "already_voted"})
			case errors.Is(err, ErrVoterIneligible):
				result.Skipped = append(result.Skipped, BulkSkip{VoterID: voterID, Reason: "ineligible"})
			default:
				return nil, fmt.Errorf("issue token for %s: %w", voterID, err)
			}
			continue
		}

		result.Issued = append(result.Issued, *issued)
	}

	s.logger.Info("bulk token issuance complete",
		zap.Int("issued", len(result.Issued)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("issued_by", issuedBy),
	)

	return result, nil
}

// Redeem exchanges a raw voting code for its voter. The consume is a
// conditional write: when two redemptions race, exactly one succeeds and the
// other observes ErrInvalidToken.
func (s *TokenService) Redeem(ctx context.Context, rawCode string) (*domain.Voter, *domain.VotingToken, error) {
	code := security.NormalizeVotingCode(rawCode)
	if len(code) < s.cfg.Length {
		return nil, nil, ErrInvalidToken
	}

	token, err := s.tokens.GetByHash(ctx, security.HashToken(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("lookup token: %w", err)
	}

	if !token.IsRedeemable(s.now()) {
		return nil, nil, ErrInvalidToken
	}

	voter, err := s.voters.GetByID(ctx, token.VoterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("load voter: %w", err)
	}

	if voter.HasVoted {
		return nil, nil, ErrAlreadyVoted
	}
	if !voter.CanVote() {
		return nil, nil, ErrVoterIneligible
	}

	if err := s.tokens.Consume(ctx, token.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("consume token: %w", err)
	}

	consumedAt := s.now()
	token.ConsumedAt = &consumedAt

	return voter, token, nil
}

// TokenStatistics summarizes issuance state for the admin dashboard.
type TokenStatistics struct {
	TotalVoters  int
	VotedCount   int
	ActiveTokens int
	TurnoutPct   float64
}

// Statistics aggregates counters for the admin dashboard.
func (s *TokenService) Statistics(ctx context.Context) (*TokenStatistics, error) {
	total, err := s.voters.CountTotal(ctx)
	if err != nil {
		return nil, fmt.Errorf("count voters: %w", err)
	}

	voted, err := s.voters.CountVoted(ctx)
	if err != nil {
		return nil, fmt.Errorf("count voted: %w", err)
	}

	active, err := s.tokens.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active tokens: %w", err)
	}

	stats := &TokenStatistics{
		TotalVoters:  total,
		VotedCount:   voted,
		ActiveTokens: active,
	}
	if total > 0 {
		stats.TurnoutPct = float64(voted) / float64(total) * 100
	}

	return stats, nil
}
