package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CredentialTypeVotingSession marks tokens held by authenticated voters.
	CredentialTypeVotingSession = "voting_session"
	// CredentialTypeAdminAccess marks tokens held by staff users.
	CredentialTypeAdminAccess = "admin_access"
)

// ErrInvalidCredential indicates a credential that failed signature or
// structural validation.
var ErrInvalidCredential = errors.New("credential: invalid token")

// CredentialClaims is the JWT claim set used across voter and staff tokens.
// SessionID is only set for voting session credentials; Role only for
// staff credentials.
type CredentialClaims struct {
	SessionID string `json:"session_id,omitempty"`
	TokenType string `json:"type"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CredentialSigner issues and parses HMAC-signed credentials.
type CredentialSigner struct {
	secret []byte
	issuer string
}

func NewCredentialSigner(secret, issuer string) (*CredentialSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("credential: empty signing secret")
	}
	return &CredentialSigner{secret: []byte(secret), issuer: issuer}, nil
}

// SignVotingSession issues a credential bound to a voter and their session.
// The expiry mirrors the session expiry so the credential cannot outlive
// the session it authorizes.
func (s *CredentialSigner) SignVotingSession(voterID, sessionID string, expiresAt time.Time) (string, error) {
	return s.sign(CredentialClaims{
		SessionID: sessionID,
		TokenType: CredentialTypeVotingSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   voterID,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// SignAdminAccess issues a credential for a staff user with their role.
func (s *CredentialSigner) SignAdminAccess(username, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	return s.sign(CredentialClaims{
		TokenType: CredentialTypeAdminAccess,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

func (s *CredentialSigner) sign(claims CredentialClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("credential: sign: %w", err)
	}
	return signed, nil
}

// Parse validates the signature and expiry of a credential and returns
// its claims.
func (s *CredentialSigner) Parse(raw string) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.TokenType == "" || claims.Subject == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

// ParseVotingSession parses a credential and ensures it is a voting
// session credential carrying a session identifier.
func (s *CredentialSigner) ParseVotingSession(raw string) (*CredentialClaims, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != CredentialTypeVotingSession || claims.SessionID == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

// ParseAdminAccess parses a credential and ensures it is a staff
// credential carrying a role.
func (s *CredentialSigner) ParseAdminAccess(raw string) (*CredentialClaims, error) {
	claims, err := s.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != CredentialTypeAdminAccess || claims.Role == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
