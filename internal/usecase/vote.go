package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/repository"
)

// ErrEmptyBallot indicates a submission carrying no selections.
var ErrEmptyBallot = errors.New("ballot has no selections")

// BallotValidationError reports every refused selection in a submitted
// ballot. Nothing is persisted when it is returned and the session stays
// open so the voter can correct the ballot and resubmit.
type BallotValidationError struct {
	Failures []domain.SelectionFailure
}

func (e *BallotValidationError) Error() string {
	return fmt.Sprintf("ballot validation failed: %d invalid selection(s)", len(e.Failures))
}

// VoteService coordinates ballot presentation and vote recording.
type VoteService struct {
	voters   port.VoterRepository
	ballot   port.BallotRepository
	votes    port.VoteRepository
	sessions *SessionService
	events   port.EventPublisher
	tx       port.Transactor
	logger   *zap.Logger
	now      func() time.Time
}

// NewVoteService constructs a VoteService.
func NewVoteService(voters port.VoterRepository, ballot port.BallotRepository, votes port.VoteRepository, sessions *SessionService, events port.EventPublisher, tx port.Transactor, log *zap.Logger) *VoteService {
	if log == nil {
		log = zap.NewNop()
	}
	service := &VoteService{
		voters:   voters,
		ballot:   ballot,
		votes:    votes,
		sessions: sessions,
		events:   events,
		tx:       tx,
		logger:   log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *VoteService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Ballot returns the active portfolios and candidates in presentation order.
func (s *VoteService) Ballot(ctx context.Context) ([]domain.BallotEntry, error) {
	entries, err := s.ballot.ActiveBallot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ballot: %w", err)
	}
	return entries, nil
}

// CastBallot validates and records a complete ballot. All-or-nothing: any
// invalid selection rejects the whole submission with a
// BallotValidationError and persists nothing. A fully valid ballot commits
// in one transaction together with the voter's has_voted flip, then the
// session terminates with reason "vote_cast".
func (s *VoteService) CastBallot(ctx context.Context, session *domain.VotingSession, selections []domain.Selection, clientIP string) (*domain.BallotResult, error) {
	if session == nil {
		return nil, ErrInvalidSession
	}
	if len(selections) == 0 {
		return nil, ErrEmptyBallot
	}

	voter, err := s.voters.GetByID(ctx, session.VoterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoterNotFound
		}
		return nil, fmt.Errorf("load voter: %w", err)
	}
	if voter.HasVoted {
		return nil, ErrAlreadyVoted
	}
	if !voter.CanVote() {
		return nil, ErrVoterIneligible
	}

	records, err := s.validateSelections(ctx, voter.ID, session, selections, clientIP)
	if err != nil {
		return nil, err
	}

	err = withinTransaction(ctx, s.tx, func(ctx context.Context) error {
		if err := s.votes.CreateBatch(ctx, records); err != nil {
			return err
		}
		return s.voters.MarkVoted(ctx, voter.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent submission won the race; this voter has voted.
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("record votes: %w", err)
	}

	castAt := records[0].CastAt
	if err := s.sessions.Terminate(ctx, session, domain.TerminationVoteCast); err != nil {
		s.logger.Warn("terminate session after vote failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	s.publishVoteCast(ctx, voter.ID, session.ID, records, castAt)

	s.logger.Info("ballot recorded",
		zap.String("voter_id", voter.ID),
		zap.String("session_id", session.ID),
		zap.Int("votes_cast", len(records)),
	)

	return &domain.BallotResult{
		VotesCast: len(records),
		Records:   records,
		CastAt:    castAt,
	}, nil
}

func (s *VoteService) validateSelections(ctx context.Context, voterID string, session *domain.VotingSession, selections []domain.Selection, clientIP string) ([]domain.VoteRecord, error) {
	entries, err := s.ballot.ActiveBallot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ballot: %w", err)
	}

	portfolios := make(map[string]domain.BallotEntry, len(entries))
	for _, entry := range entries {
		portfolios[entry.Portfolio.ID] = entry
	}

	voted, err := s.votes.VotedPortfolios(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("load voted portfolios: %w", err)
	}

	castAt := s.now()
	sessionID := session.ID
	failures := make([]domain.SelectionFailure, 0)
	records := make([]domain.VoteRecord, 0, len(selections))
	seen := make(map[string]struct{}, len(selections))

	for _, selection := range selections {
		fail := func(reason string) {
			failures = append(failures, domain.SelectionFailure{
				PortfolioID: selection.PortfolioID,
				CandidateID: selection.CandidateID,
				Reason:      reason,
			})
		}

		if _, dup := seen[selection.PortfolioID]; dup {
			fail("duplicate portfolio in ballot")
			continue
		}
		seen[selection.PortfolioID] = struct{}{}

		entry, ok := portfolios[selection.PortfolioID]
		if !ok {
			fail("portfolio not found or inactive")
			continue
		}

		if _, already := voted[selection.PortfolioID]; already {
			fail("already voted for this portfolio")
			continue
		}

		record := domain.VoteRecord{
			ID:          uuid.NewString(),
			VoterID:     voterID,
			PortfolioID: selection.PortfolioID,
			SessionID:   &sessionID,
			IP:          clientIP,
			UserAgent:   session.UserAgent,
			CastAt:      castAt,
		}

		if selection.Reject {
			// Explicit rejection only applies to single-candidate races.
			if len(entry.Candidates) != 1 {
				fail("rejection requires a single-candidate portfolio")
				continue
			}
			if selection.CandidateID != "" && selection.CandidateID != entry.Candidates[0].ID {
				fail("rejected candidate does not match portfolio")
				continue
			}
		} else {
			candidate := findCandidate(entry.Candidates, selection.CandidateID)
			if candidate == nil {
				fail("candidate not found in portfolio")
				continue
			}
			candidateID := candidate.ID
			record.CandidateID = &candidateID
		}

		records = append(records, record)
	}

	if len(failures) > 0 {
		return nil, &BallotValidationError{Failures: failures}
	}

	return records, nil
}

func findCandidate(candidates []domain.Candidate, candidateID string) *domain.Candidate {
	for i := range candidates {
		if candidates[i].ID == candidateID {
			return &candidates[i]
		}
	}
	return nil
}

func (s *VoteService) publishVoteCast(ctx context.Context, voterID, sessionID string, records []domain.VoteRecord, castAt time.Time) {
	if s.events == nil {
		return
	}

	portfolios := make([]string, 0, len(records))
	for _, record := range records {
		portfolios = append(portfolios, record.PortfolioID)
	}

	event := domain.VoteCastEvent{
		EventID:    uuid.NewString(),
		VoterID:    voterID,
		SessionID:  sessionID,
		VotesCast:  len(records),
		Portfolios: portfolios,
		CastAt:     castAt,
	}
	if err := s.events.PublishVoteCast(ctx, event); err != nil {
		s.logger.Warn("publish vote cast event failed", zap.Error(err))
	}
}

// VotesForVoter returns the voter's recorded choices.
func (s *VoteService) VotesForVoter(ctx context.Context, voterID string) ([]domain.VoteRecord, error) {
	records, err := s.votes.ListByVoter(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return records, nil
}

// VoterStatus summarizes a voter's progress through the ballot.
type VoterStatus struct {
	Voter            domain.Voter
	VotedPortfolios  []string
	TotalPortfolios  int
	BallotComplete   bool
	RemainingOffices int
}

// VotingStatus reports how far a voter has progressed.
func (s *VoteService) VotingStatus(ctx context.Context, voterID string) (*VoterStatus, error) {
	voter, err := s.voters.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoterNotFound
		}
		return nil, fmt.Errorf("load voter: %w", err)
	}

	voted, err := s.votes.VotedPortfolios(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("load voted portfolios: %w", err)
	}

	total, err := s.ballot.CountActivePortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("count portfolios: %w", err)
	}

	votedIDs := make([]string, 0, len(voted))
	for id := range voted {
		votedIDs = append(votedIDs, id)
	}

	remaining := total - len(voted)
	if remaining < 0 {
		remaining = 0
	}

	return &VoterStatus{
		Voter:            *voter,
		VotedPortfolios:  votedIDs,
		TotalPortfolios:  total,
		BallotComplete:   voter.HasVoted,
		RemainingOffices: remaining,
	}, nil
}

// Results aggregates tallies per portfolio for the admin dashboard.
func (s *VoteService) Results(ctx context.Context) ([]domain.PortfolioResult, error) {
	results, err := s.votes.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	return results, nil
}

// TotalVotes returns the number of recorded votes across all portfolios.
func (s *VoteService) TotalVotes(ctx context.Context) (int, error) {
	count, err := s.votes.CountTotal(ctx)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

// RecentActivity returns the most recent vote records.
func (s *VoteService) RecentActivity(ctx context.Context, limit int) ([]domain.VoteRecord, error) {
	records, err := s.votes.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent votes: %w", err)
	}
	return records, nil
}

// ListVoters returns voters for the admin dashboard.
func (s *VoteService) ListVoters(ctx context.Context, filter port.VoterFilter) ([]domain.Voter, error) {
	voters, err := s.voters.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list voters: %w", err)
	}
	return voters, nil
}
