package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/repository"
)

func testBallot() *fakeBallotRepository {
	return &fakeBallotRepository{entries: []domain.BallotEntry{
		{
			Portfolio: domain.Portfolio{ID: "pf-president", Name: "President", IsActive: true, VotingOrder: 1},
			Candidates: []domain.Candidate{
				{ID: "cand-1", PortfolioID: "pf-president", Name: "Ama Mensah", IsActive: true},
				{ID: "cand-2", PortfolioID: "pf-president", Name: "Kojo Antwi", IsActive: true},
			},
		},
		{
			Portfolio: domain.Portfolio{ID: "pf-secretary", Name: "Secretary", IsActive: true, VotingOrder: 2},
			Candidates: []domain.Candidate{
				{ID: "cand-3", PortfolioID: "pf-secretary", Name: "Efua Owusu", IsActive: true},
			},
		},
	}}
}

type voteServiceFixture struct {
	voters   *fakeVoterRepository
	ballot   *fakeBallotRepository
	votes    *fakeVoteRepository
	sessions *fakeSessionRepository
	events   *fakeEventPublisher
	tx       *fakeTransactor
	service  *VoteService
	session  *domain.VotingSession
}

func newVoteServiceFixture(t *testing.T) *voteServiceFixture {
	t.Helper()

	base := time.Date(2025, 9, 20, 9, 0, 0, 0, time.UTC)
	voters := newFakeVoterRepository(testVoter("UEB3512823"))
	ballot := testBallot()
	votes := newFakeVoteRepository()
	sessionRepo := newFakeSessionRepository(activeSession("sess-1", "UEB3512823", "10.0.0.1", base))
	events := &fakeEventPublisher{}
	tx := &fakeTransactor{}

	sessionService := NewSessionService(sessionRepo, events, SessionConfig{}, nil)
	sessionService.WithClock(func() time.Time { return base.Add(5 * time.Minute) })

	service := NewVoteService(voters, ballot, votes, sessionService, events, tx, nil)
	service.WithClock(func() time.Time { return base.Add(5 * time.Minute) })

	session, err := sessionRepo.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("load fixture session: %v", err)
	}

	return &voteServiceFixture{
		voters:   voters,
		ballot:   ballot,
		votes:    votes,
		sessions: sessionRepo,
		events:   events,
		tx:       tx,
		service:  service,
		session:  session,
	}
}

func TestVoteService_CastBallotRecordsAndCloses(t *testing.T) {
	fx := newVoteServiceFixture(t)

	result, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-2"},
		{PortfolioID: "pf-secretary", Reject: true},
	}, "10.0.0.1")
	if err != nil {
		t.Fatalf("CastBallot returned error: %v", err)
	}

	if result.VotesCast != 2 {
		t.Fatalf("expected 2 votes, got %d", result.VotesCast)
	}
	if len(fx.votes.records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(fx.votes.records))
	}

	var rejection *domain.VoteRecord
	for i := range fx.votes.records {
		if fx.votes.records[i].PortfolioID == "pf-secretary" {
			rejection = &fx.votes.records[i]
		}
	}
	if rejection == nil || !rejection.IsRejection() {
		t.Fatal("secretary rejection was not recorded as a rejection")
	}

	voter, err := fx.voters.GetByID(context.Background(), "UEB3512823")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if !voter.HasVoted {
		t.Fatal("voter was not marked as voted")
	}

	stored := fx.sessions.sessions["sess-1"]
	if !stored.IsTerminated() || *stored.TerminationReason != domain.TerminationVoteCast {
		t.Fatal("session was not terminated with the vote_cast reason")
	}

	if len(fx.events.voteCast) != 1 {
		t.Fatalf("expected 1 vote cast event, got %d", len(fx.events.voteCast))
	}
	event := fx.events.voteCast[0]
	if event.VotesCast != 2 || len(event.Portfolios) != 2 {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestVoteService_CastBallotWritesInOneTransaction(t *testing.T) {
	fx := newVoteServiceFixture(t)

	if _, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-2"},
	}, "10.0.0.1"); err != nil {
		t.Fatalf("CastBallot returned error: %v", err)
	}

	if fx.tx.calls != 1 {
		t.Fatalf("expected 1 transaction, got %d", fx.tx.calls)
	}
	if !fx.votes.batchInTx {
		t.Fatal("vote records were inserted outside the transaction")
	}
	if !fx.voters.markVotedInTx {
		t.Fatal("has_voted flip ran outside the transaction")
	}
}

func TestVoteService_MarkVotedFailureAbortsBallot(t *testing.T) {
	fx := newVoteServiceFixture(t)
	fx.voters.markVotedErr = errors.New("voters table unavailable")

	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-2"},
	}, "10.0.0.1")
	if err == nil {
		t.Fatal("expected CastBallot to fail when the voter flag cannot be set")
	}

	if len(fx.events.voteCast) != 0 {
		t.Fatal("no vote cast event may be published for a failed ballot")
	}
	if fx.sessions.sessions["sess-1"].IsTerminated() {
		t.Fatal("session must stay open after a failed ballot")
	}
}

func TestVoteService_TotalVotes(t *testing.T) {
	fx := newVoteServiceFixture(t)

	if _, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-1"},
		{PortfolioID: "pf-secretary", CandidateID: "cand-3"},
	}, "10.0.0.1"); err != nil {
		t.Fatalf("CastBallot returned error: %v", err)
	}

	total, err := fx.service.TotalVotes(context.Background())
	if err != nil {
		t.Fatalf("TotalVotes returned error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 recorded votes, got %d", total)
	}
}

func TestVoteService_CastBallotIsAllOrNothing(t *testing.T) {
	fx := newVoteServiceFixture(t)

	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-2"},
		{PortfolioID: "pf-unknown", CandidateID: "cand-9"},
	}, "10.0.0.1")

	var validation *BallotValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected BallotValidationError, got %v", err)
	}
	if len(validation.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(validation.Failures))
	}
	if validation.Failures[0].PortfolioID != "pf-unknown" {
		t.Fatalf("unexpected failing portfolio %q", validation.Failures[0].PortfolioID)
	}

	if len(fx.votes.records) != 0 {
		t.Fatal("a partially valid ballot must persist nothing")
	}
	if fx.sessions.sessions["sess-1"].IsTerminated() {
		t.Fatal("session must stay open after a rejected ballot")
	}
}

func TestVoteService_CastBallotCollectsEveryFailure(t *testing.T) {
	fx := newVoteServiceFixture(t)

	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-9"},
		{PortfolioID: "pf-president", CandidateID: "cand-1"},
		{PortfolioID: "pf-unknown", CandidateID: "cand-1"},
	}, "10.0.0.1")

	var validation *BallotValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected BallotValidationError, got %v", err)
	}
	if len(validation.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %d: %+v", len(validation.Failures), validation.Failures)
	}
}

func TestVoteService_RejectionRequiresSingleCandidateRace(t *testing.T) {
	fx := newVoteServiceFixture(t)

	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", Reject: true},
	}, "10.0.0.1")

	var validation *BallotValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected BallotValidationError, got %v", err)
	}

	// Rejecting the sole secretary candidate is valid.
	result, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-secretary", CandidateID: "cand-3", Reject: true},
	}, "10.0.0.1")
	if err != nil {
		t.Fatalf("valid rejection returned error: %v", err)
	}
	if result.VotesCast != 1 || !result.Records[0].IsRejection() {
		t.Fatalf("rejection not recorded correctly: %+v", result.Records)
	}
}

func TestVoteService_RejectionCandidateMustMatch(t *testing.T) {
	fx := newVoteServiceFixture(t)

	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-secretary", CandidateID: "cand-1", Reject: true},
	}, "10.0.0.1")

	var validation *BallotValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected BallotValidationError, got %v", err)
	}
	if validation.Failures[0].Reason != "rejected candidate does not match portfolio" {
		t.Fatalf("unexpected reason %q", validation.Failures[0].Reason)
	}
}

func TestVoteService_CastBallotRejectsAlreadyVotedPortfolio(t *testing.T) {
	fx := newVoteServiceFixture(t)

	if _, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-1"},
	}, "10.0.0.1"); err != nil {
		t.Fatalf("first ballot returned error: %v", err)
	}

	// The voter flag now blocks a second submission outright.
	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-secretary", CandidateID: "cand-3"},
	}, "10.0.0.1")
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestVoteService_ConcurrentSubmissionLosesRace(t *testing.T) {
	fx := newVoteServiceFixture(t)
	fx.votes.batchErr = repository.ErrDuplicate

	_, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-1"},
	}, "10.0.0.1")
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted on duplicate insert, got %v", err)
	}
}

func TestVoteService_CastBallotEmpty(t *testing.T) {
	fx := newVoteServiceFixture(t)

	if _, err := fx.service.CastBallot(context.Background(), fx.session, nil, "10.0.0.1"); !errors.Is(err, ErrEmptyBallot) {
		t.Fatalf("expected ErrEmptyBallot, got %v", err)
	}
}

func TestVoteService_VotingStatus(t *testing.T) {
	fx := newVoteServiceFixture(t)

	status, err := fx.service.VotingStatus(context.Background(), "UEB3512823")
	if err != nil {
		t.Fatalf("VotingStatus returned error: %v", err)
	}
	if status.TotalPortfolios != 2 || status.RemainingOffices != 2 || status.BallotComplete {
		t.Fatalf("unexpected initial status: %+v", status)
	}

	if _, err := fx.service.CastBallot(context.Background(), fx.session, []domain.Selection{
		{PortfolioID: "pf-president", CandidateID: "cand-1"},
		{PortfolioID: "pf-secretary", CandidateID: "cand-3"},
	}, "10.0.0.1"); err != nil {
		t.Fatalf("CastBallot returned error: %v", err)
	}

	status, err = fx.service.VotingStatus(context.Background(), "UEB3512823")
	if err != nil {
		t.Fatalf("VotingStatus returned error: %v", err)
	}
	if !status.BallotComplete || status.RemainingOffices != 0 || len(status.VotedPortfolios) != 2 {
		t.Fatalf("unexpected final status: %+v", status)
	}
}
