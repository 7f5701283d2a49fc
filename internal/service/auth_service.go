package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scholarsite/internal/auth"
	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/logging"
	"scholarsite/internal/repository"
)

// AuthService handles credential verification and the session lifecycle.
type AuthService interface {
	// Verify checks credentials. Unknown email and wrong password both yield
	// apperrors.ErrInvalidCredentials.
	Verify(ctx context.Context, email, password string) (*auth.Identity, error)
	// Login verifies credentials and issues a session.
	Login(ctx context.Context, email, password string) (*auth.Session, string, error)
	// Authenticate resolves a session token, rejecting expired and signed-out sessions.
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
	// Logout ends a session before its expiry.
	Logout(ctx context.Context, session *auth.Session) error
}

type authService struct {
	userRepo     repository.UserRepository
	issuer       *auth.SessionIssuer
	sessionStore auth.SessionStoreInterface
	log          logging.Logger
	// compared against on unknown emails so both failure paths cost one bcrypt run
	dummyHash []byte
}

// NewAuthService creates a new authentication service. bcryptCost should be
// the cost new passwords are hashed with; out-of-range values fall back to the default.
func NewAuthService(userRepo repository.UserRepository, issuer *auth.SessionIssuer, sessionStore auth.SessionStoreInterface, bcryptCost int, log logging.Logger) AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return &authService{
		userRepo:     userRepo,
		issuer:       issuer,
		sessionStore: sessionStore,
		log:          log,
		dummyHash:    dummy,
	}
}

// Verify looks the user up by email and compares the password hash.
func (s *authService) Verify(ctx context.Context, email, password string) (*auth.Identity, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.log.Info(ctx, "login failed", "email", email, "reason", "unknown_email")
			return nil, apperrors.ErrInvalidCredentials
		}
		s.log.Error(ctx, "credential lookup failed", "error", err)
		return nil, fmt.Errorf("%w: find user: %v", apperrors.ErrStoreUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info(ctx, "login failed", "email", email, "reason", apperrors.ErrBadPassword.Error())
		return nil, apperrors.ErrInvalidCredentials
	}

	id := auth.IdentityOf(user)
	return &id, nil
}

// Login authenticates a user and returns a fresh session with its token.
func (s *authService) Login(ctx context.Context, email, password string) (*auth.Session, string, error) {
	id, err := s.Verify(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	session, token, err := s.issuer.Issue(*id)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}

	s.log.Info(ctx, "session issued", "session_id", session.ID, "user_id", id.ID, "role", id.Role)
	return session, token, nil
}

// Authenticate parses token and checks the revocation list. A revocation
// list that cannot be read rejects the session.
func (s *authService) Authenticate(ctx context.Context, token string) (*auth.Session, error) {
	session, err := s.issuer.Parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.sessionStore.IsRevoked(ctx, session.ID)
	if err != nil {
		s.log.Error(ctx, "session revocation check failed", "session_id", session.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: signed out", apperrors.ErrInvalidSession)
	}
	return session, nil
}

// Logout revokes session for the rest of its lifetime.
func (s *authService) Logout(ctx context.Context, session *auth.Session) error {
	if session == nil {
		return apperrors.ErrUnauthenticated
	}
	if err := s.sessionStore.Revoke(ctx, session.ID, session.Remaining(s.issuer.Now())); err != nil {
		s.log.Error(ctx, "logout failed", "session_id", session.ID, "error", err)
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	s.log.Info(ctx, "session signed out", "session_id", session.ID, "user_id", session.User.ID)
	return nil
}
