package usecase

import (
	"context"
	"time"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/repository"
)

// fakeTransactor implements port.Transactor by tagging the context, so
// repository fakes can record whether a write ran inside the transaction.
type fakeTransactor struct {
	calls int
	err   error
}

type fakeTxKey struct{}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(context.WithValue(ctx, fakeTxKey{}, true))
}

func inFakeTransaction(ctx context.Context) bool {
	joined, _ := ctx.Value(fakeTxKey{}).(bool)
	return joined
}

type fakeVoterRepository struct {
	voters          map[string]*domain.Voter
	markVotedCalls  []string
	markVotedInTx   bool
	markVotedErr    error
	eligibleIDs     []string
	withoutVoteIDs  map[string][]string
	listErr         error
}

func newFakeVoterRepository(voters ...domain.Voter) *fakeVoterRepository {
	repo := &fakeVoterRepository{
		voters:         make(map[string]*domain.Voter),
		withoutVoteIDs: make(map[string][]string),
	}
	for i := range voters {
		voterCopy := voters[i]
		repo.voters[voterCopy.ID] = &voterCopy
	}
	return repo
}

func (f *fakeVoterRepository) GetByID(ctx context.Context, voterID string) (*domain.Voter, error) {
	voter, ok := f.voters[voterID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *voter
	return &copy, nil
}

func (f *fakeVoterRepository) List(ctx context.Context, filter port.VoterFilter) ([]domain.Voter, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := make([]domain.Voter, 0, len(f.voters))
	for _, voter := range f.voters {
		if filter.HasVoted != nil && voter.HasVoted != *filter.HasVoted {
			continue
		}
		result = append(result, *voter)
	}
	return result, nil
}

func (f *fakeVoterRepository) ListEligibleIDs(ctx context.Context, excludeVoted bool) ([]string, error) {
	if f.eligibleIDs != nil {
		return f.eligibleIDs, nil
	}
	ids := make([]string, 0, len(f.voters))
	for id, voter := range f.voters {
		if voter.IsDeleted || voter.IsBanned {
			continue
		}
		if excludeVoted && voter.HasVoted {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeVoterRepository) ListIDsWithoutVoteFor(ctx context.Context, portfolioID string) ([]string, error) {
	return f.withoutVoteIDs[portfolioID], nil
}

func (f *fakeVoterRepository) MarkVoted(ctx context.Context, voterID string) error {
	if f.markVotedErr != nil {
		return f.markVotedErr
	}
	voter, ok := f.voters[voterID]
	if !ok {
		return repository.ErrNotFound
	}
	voter.HasVoted = true
	f.markVotedCalls = append(f.markVotedCalls, voterID)
	f.markVotedInTx = inFakeTransaction(ctx)
	return nil
}

func (f *fakeVoterRepository) CountTotal(ctx context.Context) (int, error) {
	return len(f.voters), nil
}

func (f *fakeVoterRepository) CountVoted(ctx context.Context) (int, error) {
	count := 0
	for _, voter := range f.voters {
		if voter.HasVoted {
			count++
		}
	}
	return count, nil
}

type fakeTokenRepository struct {
	tokens      map[string]*domain.VotingToken
	createErrs  []error
	consumeErr  error
	consumeInTx bool
	revokeCalls []struct {
		voterID string
		reason  string
	}
}

func newFakeTokenRepository(tokens ...domain.VotingToken) *fakeTokenRepository {
	repo := &fakeTokenRepository{tokens: make(map[string]*domain.VotingToken)}
	for i := range tokens {
		tokenCopy := tokens[i]
		repo.tokens[tokenCopy.ID] = &tokenCopy
	}
	return repo
}

func (f *fakeTokenRepository) Create(ctx context.Context, token domain.VotingToken) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	tokenCopy := token
	f.tokens[token.ID] = &tokenCopy
	return nil
}

func (f *fakeTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.VotingToken, error) {
	for _, token := range f.tokens {
		if token.TokenHash == hash {
			copy := *token
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTokenRepository) Consume(ctx context.Context, tokenID string) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	token, ok := f.tokens[tokenID]
	if !ok || token.Revoked || token.ConsumedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	token.ConsumedAt = &now
	f.consumeInTx = inFakeTransaction(ctx)
	return nil
}

func (f *fakeTokenRepository) RevokeActiveForVoter(ctx context.Context, voterID string, reason string) (int, error) {
	count := 0
	for _, token := range f.tokens {
		if token.VoterID != voterID || token.Revoked || token.ConsumedAt != nil {
			continue
		}
		token.Revoke(time.Now().UTC(), reason)
		count++
	}
	f.revokeCalls = append(f.revokeCalls, struct {
		voterID string
		reason  string
	}{voterID: voterID, reason: reason})
	return count, nil
}

func (f *fakeTokenRepository) HasActiveToken(ctx context.Context, voterID string) (bool, error) {
	now := time.Now().UTC()
	for _, token := range f.tokens {
		if token.VoterID == voterID && token.IsRedeemable(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokenRepository) CountActive(ctx context.Context) (int, error) {
	count := 0
	now := time.Now().UTC()
	for _, token := range f.tokens {
		if token.IsRedeemable(now) {
			count++
		}
	}
	return count, nil
}

type fakeSessionRepository struct {
	sessions       map[string]*domain.VotingSession
	storedEvents   []domain.SessionEvent
	createErr      error
	createInTx     bool
	flagCalls      []string
	terminateCalls []struct {
		sessionID string
		reason    string
	}
}

func newFakeSessionRepository(sessions ...domain.VotingSession) *fakeSessionRepository {
	repo := &fakeSessionRepository{sessions: make(map[string]*domain.VotingSession)}
	for i := range sessions {
		sessionCopy := sessions[i]
		repo.sessions[sessionCopy.ID] = &sessionCopy
	}
	return repo
}

func (f *fakeSessionRepository) Create(ctx context.Context, session domain.VotingSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	sessionCopy := session
	f.sessions[session.ID] = &sessionCopy
	f.createInTx = inFakeTransaction(ctx)
	return nil
}

func (f *fakeSessionRepository) Get(ctx context.Context, sessionID string) (*domain.VotingSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *session
	return &copy, nil
}

func (f *fakeSessionRepository) Touch(ctx context.Context, sessionID string, ip string, ipChanged bool) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Touch(time.Now().UTC(), ip)
	return nil
}

func (f *fakeSessionRepository) Flag(ctx context.Context, sessionID string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Suspicious = true
	f.flagCalls = append(f.flagCalls, sessionID)
	return nil
}

func (f *fakeSessionRepository) Terminate(ctx context.Context, sessionID string, reason string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil
	}
	session.Terminate(time.Now().UTC(), reason)
	f.terminateCalls = append(f.terminateCalls, struct {
		sessionID string
		reason    string
	}{sessionID: sessionID, reason: reason})
	return nil
}

func (f *fakeSessionRepository) TerminateActiveForVoter(ctx context.Context, voterID string, reason string) (int, error) {
	count := 0
	for _, session := range f.sessions {
		if session.VoterID != voterID || session.IsTerminated() {
			continue
		}
		session.Terminate(time.Now().UTC(), reason)
		f.terminateCalls = append(f.terminateCalls, struct {
			sessionID string
			reason    string
		}{sessionID: session.ID, reason: reason})
		count++
	}
	return count, nil
}

func (f *fakeSessionRepository) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	f.storedEvents = append(f.storedEvents, event)
	return nil
}

type fakeBallotRepository struct {
	entries []domain.BallotEntry
}

func (f *fakeBallotRepository) ActiveBallot(ctx context.Context) ([]domain.BallotEntry, error) {
	return f.entries, nil
}

func (f *fakeBallotRepository) GetPortfolio(ctx context.Context, portfolioID string) (*domain.Portfolio, error) {
	for _, entry := range f.entries {
		if entry.Portfolio.ID == portfolioID {
			copy := entry.Portfolio
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeBallotRepository) CountActivePortfolios(ctx context.Context) (int, error) {
	return len(f.entries), nil
}

type fakeVoteRepository struct {
	records   []domain.VoteRecord
	voted     map[string]map[string]struct{}
	batchErr  error
	batchInTx bool
}

func newFakeVoteRepository() *fakeVoteRepository {
	return &fakeVoteRepository{
		voted: make(map[string]map[string]struct{}),
	}
}

func (f *fakeVoteRepository) CreateBatch(ctx context.Context, records []domain.VoteRecord) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	for _, record := range records {
		if _, ok := f.voted[record.VoterID][record.PortfolioID]; ok {
			return repository.ErrDuplicate
		}
	}
	for _, record := range records {
		if f.voted[record.VoterID] == nil {
			f.voted[record.VoterID] = make(map[string]struct{})
		}
		f.voted[record.VoterID][record.PortfolioID] = struct{}{}
		f.records = append(f.records, record)
	}
	f.batchInTx = inFakeTransaction(ctx)
	return nil
}

func (f *fakeVoteRepository) ListByVoter(ctx context.Context, voterID string) ([]domain.VoteRecord, error) {
	result := make([]domain.VoteRecord, 0)
	for _, record := range f.records {
		if record.VoterID == voterID {
			result = append(result, record)
		}
	}
	return result, nil
}

func (f *fakeVoteRepository) VotedPortfolios(ctx context.Context, voterID string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	for portfolioID := range f.voted[voterID] {
		result[portfolioID] = struct{}{}
	}
	return result, nil
}

func (f *fakeVoteRepository) Results(ctx context.Context) ([]domain.PortfolioResult, error) {
	return nil, nil
}

func (f *fakeVoteRepository) ListRecent(ctx context.Context, limit int) ([]domain.VoteRecord, error) {
	if limit <= 0 || limit > len(f.records) {
		limit = len(f.records)
	}
	recent := make([]domain.VoteRecord, 0, limit)
	for i := len(f.records) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, f.records[i])
	}
	return recent, nil
}

func (f *fakeVoteRepository) CountTotal(ctx context.Context) (int, error) {
	return len(f.records), nil
}

type fakeEventPublisher struct {
	tokenIssued       []domain.TokenIssuedEvent
	sessionCreated    []domain.SessionCreatedEvent
	sessionFlagged    []domain.SessionFlaggedEvent
	sessionTerminated []domain.SessionTerminatedEvent
	voteCast          []domain.VoteCastEvent
	fail              error
}

func (f *fakeEventPublisher) PublishTokenIssued(ctx context.Context, event domain.TokenIssuedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.tokenIssued = append(f.tokenIssued, event)
	return nil
}

func (f *fakeEventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.sessionCreated = append(f.sessionCreated, event)
	return nil
}

func (f *fakeEventPublisher) PublishSessionFlagged(ctx context.Context, event domain.SessionFlaggedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.sessionFlagged = append(f.sessionFlagged, event)
	return nil
}

func (f *fakeEventPublisher) PublishSessionTerminated(ctx context.Context, event domain.SessionTerminatedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.sessionTerminated = append(f.sessionTerminated, event)
	return nil
}

func (f *fakeEventPublisher) PublishVoteCast(ctx context.Context, event domain.VoteCastEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.voteCast = append(f.voteCast, event)
	return nil
}

type fakeNotifier struct {
	notified []struct {
		voterID string
		code    string
	}
	fail error
}

func (f *fakeNotifier) NotifyTokenIssued(ctx context.Context, voter domain.Voter, code string) error {
	if f.fail != nil {
		return f.fail
	}
	f.notified = append(f.notified, struct {
		voterID string
		code    string
	}{voterID: voter.ID, code: code})
	return nil
}
