package security

import (
	"errors"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *CredentialSigner {
	t.Helper()
	signer, err := NewCredentialSigner("test-secret-key-for-credentials-only", "election-test")
	if err != nil {
		t.Fatalf("NewCredentialSigner returned error: %v", err)
	}
	return signer
}

func TestCredentialSignerRequiresSecret(t *testing.T) {
	if _, err := NewCredentialSigner("", "issuer"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestVotingSessionCredentialRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	expiresAt := time.Now().UTC().Add(20 * time.Minute)

	raw, err := signer.SignVotingSession("UEB3512823", "sess-1", expiresAt)
	if err != nil {
		t.Fatalf("SignVotingSession returned error: %v", err)
	}

	claims, err := signer.ParseVotingSession(raw)
	if err != nil {
		t.Fatalf("ParseVotingSession returned error: %v", err)
	}
	if claims.Subject != "UEB3512823" || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != CredentialTypeVotingSession {
		t.Fatalf("unexpected type %q", claims.TokenType)
	}
}

func TestExpiredCredentialRejected(t *testing.T) {
	signer := newTestSigner(t)

	raw, err := signer.SignVotingSession("UEB3512823", "sess-1", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("SignVotingSession returned error: %v", err)
	}

	if _, err := signer.ParseVotingSession(raw); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for expired token, got %v", err)
	}
}

func TestCredentialTypeSeparation(t *testing.T) {
	signer := newTestSigner(t)

	voting, err := signer.SignVotingSession("UEB3512823", "sess-1", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("SignVotingSession returned error: %v", err)
	}
	admin, err := signer.SignAdminAccess("ec_admin", "admin", time.Hour)
	if err != nil {
		t.Fatalf("SignAdminAccess returned error: %v", err)
	}

	if _, err := signer.ParseAdminAccess(voting); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("voting credential must not parse as admin, got %v", err)
	}
	if _, err := signer.ParseVotingSession(admin); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("admin credential must not parse as voting session, got %v", err)
	}
}

func TestCredentialSignatureTampering(t *testing.T) {
	signer := newTestSigner(t)
	other, err := NewCredentialSigner("a-completely-different-signing-key", "election-test")
	if err != nil {
		t.Fatalf("NewCredentialSigner returned error: %v", err)
	}

	raw, err := other.SignVotingSession("UEB3512823", "sess-1", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("SignVotingSession returned error: %v", err)
	}

	if _, err := signer.ParseVotingSession(raw); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("foreign-key credential must not verify, got %v", err)
	}
}
