package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/infra/logger"
	"github.com/timothysaatum/election-system/internal/infra/security"
)

// ErrInvalidCredentials indicates a failed staff login. Unknown usernames and
// wrong passwords are indistinguishable.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService composes token redemption, session management, and credential
// signing into the login flows.
type AuthService struct {
	tokens        *TokenService
	sessions      *SessionService
	signer        *security.CredentialSigner
	staff         *security.StaffDirectory
	tx            port.Transactor
	adminTokenTTL time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(tokens *TokenService, sessions *SessionService, signer *security.CredentialSigner, staff *security.StaffDirectory, tx port.Transactor, adminTokenTTL time.Duration, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if adminTokenTTL <= 0 {
		adminTokenTTL = 8 * time.Hour
	}
	service := &AuthService{
		tokens:        tokens,
		sessions:      sessions,
		signer:        signer,
		staff:         staff,
		tx:            tx,
		adminTokenTTL: adminTokenTTL,
		logger:        log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// VoterLogin is the outcome of a successful token redemption.
type VoterLogin struct {
	Credential string
	Session    domain.VotingSession
	Voter      domain.Voter
}

// RedeemToken exchanges a voting code for an authenticated session and its
// signed credential. The credential expires with the session. Token
// consumption and session creation share one transaction, so a failure to
// open the session releases the code instead of burning it.
func (s *AuthService) RedeemToken(ctx context.Context, rawCode, clientIP string, userAgent *string) (*VoterLogin, error) {
	var (
		voter   *domain.Voter
		session *domain.VotingSession
	)
	err := withinTransaction(ctx, s.tx, func(ctx context.Context) error {
		redeemed, _, err := s.tokens.Redeem(ctx, rawCode)
		if err != nil {
			return err
		}

		created, err := s.sessions.CreateSession(ctx, redeemed.ID, clientIP, userAgent)
		if err != nil {
			return err
		}

		voter = redeemed
		session = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	credential, err := s.signer.SignVotingSession(voter.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	s.logger.Info("voter authenticated",
		zap.String("voter_id", voter.ID),
		zap.String("session_id", session.ID),
		zap.String("ip", logger.MaskIP(clientIP)),
	)

	return &VoterLogin{
		Credential: credential,
		Session:    *session,
		Voter:      *voter,
	}, nil
}

// RefreshCredential reissues a credential for an active session without
// extending the session lifetime.
func (s *AuthService) RefreshCredential(ctx context.Context, rawCredential string) (string, *domain.VotingSession, error) {
	claims, err := s.signer.ParseVotingSession(rawCredential)
	if err != nil {
		return "", nil, ErrInvalidSession
	}

	session, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return "", nil, err
	}
	if session.VoterID != claims.Subject {
		return "", nil, ErrInvalidSession
	}

	credential, err := s.signer.SignVotingSession(session.VoterID, session.ID, session.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("sign credential: %w", err)
	}

	return credential, session, nil
}

// VerifyVotingCredential parses a voter credential and validates the session
// it references. The session owner must match the credential subject; a
// mismatch terminates the session.
func (s *AuthService) VerifyVotingCredential(ctx context.Context, rawCredential string) (*domain.VotingSession, error) {
	claims, err := s.signer.ParseVotingSession(rawCredential)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}

	if session.VoterID != claims.Subject {
		if termErr := s.sessions.Terminate(ctx, session, domain.TerminationMismatch); termErr != nil {
			s.logger.Warn("terminate mismatched session failed", zap.Error(termErr))
		}
		return nil, ErrInvalidSession
	}

	return session, nil
}

// AdminLogin verifies staff credentials and issues an admin access credential.
type AdminLogin struct {
	Credential string
	User       domain.StaffUser
	ExpiresAt  time.Time
}

// LoginStaff authenticates an env-configured staff user.
func (s *AuthService) LoginStaff(ctx context.Context, username, password string) (*AdminLogin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.staff == nil {
		return nil, ErrInvalidCredentials
	}

	user, ok := s.staff.Authenticate(username, password)
	if !ok {
		s.logger.Warn("failed staff login", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	credential, err := s.signer.SignAdminAccess(user.Username, user.Role, s.adminTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign admin credential: %w", err)
	}

	s.logger.Info("staff authenticated",
		zap.String("username", user.Username),
		zap.String("role", user.Role),
	)

	return &AdminLogin{
		Credential: credential,
		User:       user,
		ExpiresAt:  s.now().Add(s.adminTokenTTL),
	}, nil
}

// VerifyAdminCredential parses a staff credential and resolves the staff user.
func (s *AuthService) VerifyAdminCredential(rawCredential string) (*domain.StaffUser, error) {
	claims, err := s.signer.ParseAdminAccess(rawCredential)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if s.staff != nil {
		if user, ok := s.staff.Lookup(claims.Subject); ok {
			return &user, nil
		}
	}

	// Staff lists can rotate between deployments; fall back to the claims
	// so outstanding credentials keep their role until expiry.
	user := domain.StaffUser{
		Username:    claims.Subject,
		Role:        claims.Role,
		Permissions: domain.PermissionsForRole(claims.Role),
	}
	return &user, nil
}
