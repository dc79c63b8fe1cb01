package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/file"
)

// ErrInvalidToken is returned for tokens that are malformed, expired or not signed by us.
var ErrInvalidToken = errors.New("invalid session token")

// SessionManagerInterface issues and verifies signed session tokens.
type SessionManagerInterface interface {
	IssueToken(user models.User) (string, error)
	SessionFromToken(token string) (models.Session, error)
}

// Claims are the claims carried by a session token. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager signs session tokens with an HMAC secret.
type SessionManager struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// NewSessionManager creates a SessionManager from an in-memory secret.
func NewSessionManager(secret []byte, issuer string, ttl time.Duration) (*SessionManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is empty")
	}
	return &SessionManager{
		Secret: secret,
		Issuer: issuer,
		TTL:    ttl,
	}, nil
}

// LoadSessionManager reads the signing secret from secretPath.
func LoadSessionManager(secretPath, issuer string, ttl time.Duration, fileOps file.FileOperations) (*SessionManager, error) {
	secret, err := fileOps.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret key %s: %w", secretPath, err)
	}
	return NewSessionManager([]byte(secret), issuer, ttl)
}

// IssueToken signs a token for user. A zero TTL issues a token that never expires.
func (sm *SessionManager) IssueToken(user models.User) (string, error) {
	if user.ID == "" {
		return "", errors.New("user id is required")
	}

	issuedAt := jwt.TimeFunc()
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			Issuer:   sm.Issuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if sm.TTL != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(sm.TTL))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// SessionFromToken verifies tokenString and returns the session of its user.
func (sm *SessionManager) SessionFromToken(tokenString string) (models.Session, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.Secret, nil
	})
	if err != nil {
		return models.AnonymousSession{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return models.AnonymousSession{}, ErrInvalidToken
	}
	if sm.Issuer != "" && !claims.VerifyIssuer(sm.Issuer, true) {
		return models.AnonymousSession{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	return models.UserSession{User: models.User{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}}, nil
}

// TokenSession is a Session backed by a stored token. The token is verified on every
// CurrentUser call, so the session ends when the token expires.
type TokenSession struct {
	sessions SessionManagerInterface
	token    string
}

// NewTokenSession verifies token once and returns a session that keeps re-verifying it.
func NewTokenSession(sessions SessionManagerInterface, token string) (*TokenSession, error) {
	if _, err := sessions.SessionFromToken(token); err != nil {
		return nil, err
	}
	return &TokenSession{sessions: sessions, token: token}, nil
}

// CurrentUser implements models.Session.
func (s *TokenSession) CurrentUser() (models.User, bool) {
	session, err := s.sessions.SessionFromToken(s.token)
	if err != nil {
		return models.User{}, false
	}
	return session.CurrentUser()
}
