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
	"github.com/timothysaatum/election-system/internal/infra/logger"
	"github.com/timothysaatum/election-system/internal/repository"
)

// ErrInvalidSession covers every failed validation shape: missing,
// terminated, expired, or flagged sessions all look identical to callers.
var ErrInvalidSession = errors.New("session expired or invalid")

// IP mismatch policies.
const (
	IPPolicyStrict   = "strict"
	IPPolicyTolerant = "tolerant"
)

// SessionConfig carries the tunables for the session lifecycle.
type SessionConfig struct {
	TTL               time.Duration
	IPPolicy          string
	IPChangeTolerance int
}

// SessionService coordinates the voting session lifecycle.
type SessionService struct {
	sessions port.SessionRepository
	events   port.EventPublisher
	logger   *zap.Logger
	cfg      SessionConfig
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, events port.EventPublisher, cfg SessionConfig, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 20 * time.Minute
	}
	if cfg.IPPolicy == "" {
		cfg.IPPolicy = IPPolicyStrict
	}
	service := &SessionService{
		sessions: sessions,
		events:   events,
		logger:   log,
		cfg:      cfg,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateSession opens a voting session bound to the client IP observed at
// redemption. Any prior open session for the voter is terminated first so a
// voter holds at most one active session.
func (s *SessionService) CreateSession(ctx context.Context, voterID, clientIP string, userAgent *string) (*domain.VotingSession, error) {
	if strings.TrimSpace(voterID) == "" {
		return nil, fmt.Errorf("voter id is required")
	}

	superseded, err := s.sessions.TerminateActiveForVoter(ctx, voterID, domain.TerminationSuperseded)
	if err != nil {
		return nil, fmt.Errorf("supersede sessions: %w", err)
	}
	if superseded > 0 {
		s.logger.Info("superseded prior voting sessions",
			zap.String("voter_id", voterID),
			zap.Int("count", superseded),
		)
	}

	now := s.now()
	session := domain.VotingSession{
		ID:             uuid.NewString(),
		VoterID:        voterID,
		BoundIP:        clientIP,
		LastIP:         clientIP,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.TTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.storeEvent(ctx, session.ID, "created", &clientIP, userAgent, nil)
	s.publishCreated(ctx, session)

	return &session, nil
}

// Validate fetches a session and checks it can authenticate a request.
// Expired sessions terminate here (lazy expiry); flagged sessions terminate
// as suspicious. Both surface as ErrInvalidSession.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*domain.VotingSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.IsTerminated() {
		return nil, ErrInvalidSession
	}

	now := s.now()
	if session.IsExpired(now) {
		if err := s.Terminate(ctx, session, domain.TerminationExpired); err != nil {
			s.logger.Warn("terminate expired session failed", zap.Error(err))
		}
		return nil, ErrInvalidSession
	}

	if session.Suspicious {
		if err := s.Terminate(ctx, session, domain.TerminationSuspicious); err != nil {
			s.logger.Warn("terminate flagged session failed", zap.Error(err))
		}
		return nil, ErrInvalidSession
	}

	return session, nil
}

// RecordActivity updates activity metadata and applies the IP policy. The
// session value is mutated in place so callers observe the new state,
// including a freshly set suspicious flag.
func (s *SessionService) RecordActivity(ctx context.Context, session *domain.VotingSession, clientIP string) error {
	if session == nil {
		return ErrInvalidSession
	}

	now := s.now()
	ipChanged := clientIP != "" && clientIP != session.LastIP
	session.Touch(now, clientIP)

	if err := s.sessions.Touch(ctx, session.ID, clientIP, ipChanged); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidSession
		}
		return fmt.Errorf("touch session: %w", err)
	}

	if s.shouldFlag(session, clientIP) && session.Flag() {
		if err := s.sessions.Flag(ctx, session.ID); err != nil {
			return fmt.Errorf("flag session: %w", err)
		}

		s.logger.Warn("session flagged for IP anomaly",
			zap.String("session_id", session.ID),
			zap.String("voter_id", session.VoterID),
			zap.String("bound_ip", logger.MaskIP(session.BoundIP)),
			zap.String("seen_ip", logger.MaskIP(clientIP)),
		)

		s.storeEvent(ctx, session.ID, "flagged", &clientIP, session.UserAgent, map[string]any{
			"bound_ip":   session.BoundIP,
			"ip_changes": session.IPChanges,
		})
		s.publishFlagged(ctx, *session, clientIP)
	}

	return nil
}

// shouldFlag applies the configured IP policy against the session state.
func (s *SessionService) shouldFlag(session *domain.VotingSession, clientIP string) bool {
	if clientIP == "" || session.Suspicious {
		return false
	}

	switch s.cfg.IPPolicy {
	case IPPolicyTolerant:
		return session.IPChanges > s.cfg.IPChangeTolerance
	default:
		return clientIP != session.BoundIP
	}
}

// Terminate closes the session permanently. Safe to call on an already
// terminated session.
func (s *SessionService) Terminate(ctx context.Context, session *domain.VotingSession, reason string) error {
	if session == nil {
		return ErrInvalidSession
	}

	changed := session.Terminate(s.now(), reason)
	if err := s.sessions.Terminate(ctx, session.ID, reason); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}

	if changed {
		s.storeEvent(ctx, session.ID, "terminated", nil, nil, map[string]any{"reason": reason})
		s.publishTerminated(ctx, *session, reason)
	}

	return nil
}

func (s *SessionService) storeEvent(ctx context.Context, sessionID, kind string, ip *string, userAgent *string, details map[string]any) {
	event := domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		At:        s.now(),
		IP:        ip,
		UserAgent: userAgent,
		Details:   details,
	}
	if err := s.sessions.StoreEvent(ctx, event); err != nil {
		s.logger.Warn("store session event failed",
			zap.String("session_id", sessionID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

func (s *SessionService) publishCreated(ctx context.Context, session domain.VotingSession) {
	if s.events == nil {
		return
	}
	event := domain.SessionCreatedEvent{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		VoterID:   session.VoterID,
		IP:        session.BoundIP,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	if err := s.events.PublishSessionCreated(ctx, event); err != nil {
		s.logger.Warn("publish session created event failed", zap.Error(err))
	}
}

func (s *SessionService) publishFlagged(ctx context.Context, session domain.VotingSession, seenIP string) {
	if s.events == nil {
		return
	}
	event := domain.SessionFlaggedEvent{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		VoterID:   session.VoterID,
		BoundIP:   session.BoundIP,
		SeenIP:    seenIP,
		FlaggedAt: s.now(),
	}
	if err := s.events.PublishSessionFlagged(ctx, event); err != nil {
		s.logger.Warn("publish session flagged event failed", zap.Error(err))
	}
}

func (s *SessionService) publishTerminated(ctx context.Context, session domain.VotingSession, reason string) {
	if s.events == nil {
		return
	}
	event := domain.SessionTerminatedEvent{
		EventID:      uuid.NewString(),
		SessionID:    session.ID,
		VoterID:      session.VoterID,
		Reason:       reason,
		TerminatedAt: s.now(),
	}
	if err := s.events.PublishSessionTerminated(ctx, event); err != nil {
		s.logger.Warn("publish session terminated event failed", zap.Error(err))
	}
}
