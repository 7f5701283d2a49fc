package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/model"
)

// Identity is the public, read-only view of a user carried by a session.
type Identity struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// IdentityOf copies the public fields of u.
func IdentityOf(u *model.User) Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Session binds a request to a verified identity until ExpiresAt.
// The identity is a snapshot taken at issuance; later changes to the
// stored user do not affect it.
type Session struct {
	ID        string    `json:"id"`
	User      Identity  `json:"user"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining returns the time left until expiry, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsAdmin reports whether the session carries the ADMIN role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.User.Role == model.RoleAdmin
}

// Claims is the JWT encoding of a Session.
type Claims struct {
	User Identity `json:"user"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and parses signed session tokens with a fixed lifetime.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates an issuer signing with secret (HS256).
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	s.now = now
	return s
}

// TTL returns the session lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Now returns the issuer's current time.
func (s *SessionIssuer) Now() time.Time {
	return s.now()
}

// Issue creates a new session for id and returns it with its signed token.
// Every call yields a fresh session ID and its own expiry.
func (s *SessionIssuer) Issue(id Identity) (*Session, string, error) {
	if !id.Role.Valid() {
		return nil, "", fmt.Errorf("issue session: %w", model.ErrInvalidRole)
	}

	now := s.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(s.ttl))

	session := &Session{
		ID:        uuid.New().String(),
		User:      id,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}

	claims := &Claims{
		User: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   id.ID.String(),
			IssuedAt:  issuedAt,
			NotBefore: issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session: %w", err)
	}
	return session, token, nil
}

// Parse validates a session token and returns the session it encodes.
func (s *SessionIssuer) Parse(tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSession, err)
	}
	if !token.Valid || claims.ID == "" || !claims.User.Role.Valid() {
		return nil, apperrors.ErrInvalidSession
	}

	session := &Session{
		ID:        claims.ID,
		User:      claims.User,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}
