package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/infra/security"
	"github.com/timothysaatum/election-system/internal/repository"
	"github.com/timothysaatum/election-system/internal/usecase"
)

type memorySessionRepo struct {
	sessions       map[string]*domain.VotingSession
	terminateCalls []string
}

func newMemorySessionRepo(sessions ...domain.VotingSession) *memorySessionRepo {
	repo := &memorySessionRepo{sessions: make(map[string]*domain.VotingSession)}
	for i := range sessions {
		sessionCopy := sessions[i]
		repo.sessions[sessionCopy.ID] = &sessionCopy
	}
	return repo
}

func (m *memorySessionRepo) Create(ctx context.Context, session domain.VotingSession) error {
	sessionCopy := session
	m.sessions[session.ID] = &sessionCopy
	return nil
}

func (m *memorySessionRepo) Get(ctx context.Context, sessionID string) (*domain.VotingSession, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *session
	return &copy, nil
}

func (m *memorySessionRepo) Touch(ctx context.Context, sessionID string, ip string, ipChanged bool) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Touch(time.Now().UTC(), ip)
	return nil
}

func (m *memorySessionRepo) Flag(ctx context.Context, sessionID string) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Suspicious = true
	return nil
}

func (m *memorySessionRepo) Terminate(ctx context.Context, sessionID string, reason string) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	session.Terminate(time.Now().UTC(), reason)
	m.terminateCalls = append(m.terminateCalls, reason)
	return nil
}

func (m *memorySessionRepo) TerminateActiveForVoter(ctx context.Context, voterID string, reason string) (int, error) {
	count := 0
	for _, session := range m.sessions {
		if session.VoterID == voterID && !session.IsTerminated() {
			session.Terminate(time.Now().UTC(), reason)
			count++
		}
	}
	return count, nil
}

func (m *memorySessionRepo) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	return nil
}

type voterAuthFixture struct {
	repo   *memorySessionRepo
	signer *security.CredentialSigner
	router *gin.Engine
}

func newVoterAuthFixture(t *testing.T, sessions ...domain.VotingSession) *voterAuthFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemorySessionRepo(sessions...)
	signer, err := security.NewCredentialSigner("test-secret-key-for-credentials-only", "election-test")
	if err != nil {
		t.Fatalf("init signer: %v", err)
	}

	log := zaptest.NewLogger(t)
	sessionService := usecase.NewSessionService(repo, nil, usecase.SessionConfig{}, log)
	authService := usecase.NewAuthService(nil, sessionService, signer, nil, nil, time.Hour, log)

	router := gin.New()
	router.GET("/protected", VoterAuth(authService, sessionService, log), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"voter_id": GetVoterID(c)})
	})

	return &voterAuthFixture{
		repo:   repo,
		signer: signer,
		router: router,
	}
}

func openSession(id, voterID, ip string) domain.VotingSession {
	now := time.Now().UTC()
	return domain.VotingSession{
		ID:             id,
		VoterID:        voterID,
		BoundIP:        ip,
		LastIP:         ip,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(20 * time.Minute),
	}
}

func (fx *voterAuthFixture) credential(t *testing.T, voterID, sessionID string) string {
	t.Helper()
	raw, err := fx.signer.SignVotingSession(voterID, sessionID, time.Now().UTC().Add(20*time.Minute))
	if err != nil {
		t.Fatalf("sign credential: %v", err)
	}
	return raw
}

func (fx *voterAuthFixture) request(t *testing.T, target, authHeader, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.RemoteAddr = remoteAddr
	recorder := httptest.NewRecorder()
	fx.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body
}

func TestVoterAuthAcceptsValidCredential(t *testing.T) {
	fx := newVoterAuthFixture(t, openSession("sess-1", "UEB3512823", "10.0.0.1"))
	credential := fx.credential(t, "UEB3512823", "sess-1")

	recorder := fx.request(t, "/protected", "Bearer "+credential, "10.0.0.1:4321")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestVoterAuthAcceptsQueryTokenFallback(t *testing.T) {
	fx := newVoterAuthFixture(t, openSession("sess-1", "UEB3512823", "10.0.0.1"))
	credential := fx.credential(t, "UEB3512823", "sess-1")

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+credential, nil)
	req.RemoteAddr = "10.0.0.1:4321"
	recorder := httptest.NewRecorder()
	fx.router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestVoterAuthRejectsMissingCredential(t *testing.T) {
	fx := newVoterAuthFixture(t)

	recorder := fx.request(t, "/protected", "", "10.0.0.1:4321")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if body := decodeError(t, recorder); body.Error != SessionExpiredMessage {
		t.Fatalf("unexpected message %q", body.Error)
	}
}

func TestVoterAuthRejectsTerminatedSession(t *testing.T) {
	terminated := openSession("sess-1", "UEB3512823", "10.0.0.1")
	terminated.Terminate(time.Now().UTC(), domain.TerminationVoteCast)

	fx := newVoterAuthFixture(t, terminated)
	credential := fx.credential(t, "UEB3512823", "sess-1")

	recorder := fx.request(t, "/protected", "Bearer "+credential, "10.0.0.1:4321")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if body := decodeError(t, recorder); body.Error != SessionExpiredMessage {
		t.Fatalf("unexpected message %q", body.Error)
	}
}

func TestVoterAuthFlagsAndRejectsIPAnomalyInSameRequest(t *testing.T) {
	fx := newVoterAuthFixture(t, openSession("sess-1", "UEB3512823", "10.0.0.1"))
	credential := fx.credential(t, "UEB3512823", "sess-1")

	// The flagging request itself must never reach the handler.
	recorder := fx.request(t, "/protected", "Bearer "+credential, "192.168.9.9:4321")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on anomalous request, got %d", recorder.Code)
	}
	if body := decodeError(t, recorder); body.Error != SessionExpiredMessage {
		t.Fatalf("unexpected message %q", body.Error)
	}

	stored := fx.repo.sessions["sess-1"]
	if !stored.Suspicious {
		t.Fatal("session was not flagged")
	}
	if !stored.IsTerminated() || *stored.TerminationReason != domain.TerminationSuspicious {
		t.Fatalf("session was not terminated as suspicious: %+v", stored)
	}

	// And the session stays dead for every later request, even from the
	// original IP.
	recorder = fx.request(t, "/protected", "Bearer "+credential, "10.0.0.1:4321")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after termination, got %d", recorder.Code)
	}
}

func TestVoterAuthRejectsCredentialForDifferentVoter(t *testing.T) {
	fx := newVoterAuthFixture(t, openSession("sess-1", "UEB3512823", "10.0.0.1"))
	credential := fx.credential(t, "SOMEONE-ELSE", "sess-1")

	recorder := fx.request(t, "/protected", "Bearer "+credential, "10.0.0.1:4321")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}

	stored := fx.repo.sessions["sess-1"]
	if !stored.IsTerminated() || *stored.TerminationReason != domain.TerminationMismatch {
		t.Fatalf("mismatched session was not terminated: %+v", stored)
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/admin", func(c *gin.Context) {
		user := domain.StaffUser{
			Username:    "agent_one",
			Role:        domain.RolePollingAgent,
			Permissions: domain.PermissionsForRole(domain.RolePollingAgent),
		}
		c.Set(StaffUserKey, &user)
	}, RequirePermission("generate_tokens"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/results", func(c *gin.Context) {
		user := domain.StaffUser{
			Username:    "agent_one",
			Role:        domain.RolePollingAgent,
			Permissions: domain.PermissionsForRole(domain.RolePollingAgent),
		}
		c.Set(StaffUserKey, &user)
	}, RequirePermission("view_results"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing permission, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/results", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for granted permission, got %d", recorder.Code)
	}
}
