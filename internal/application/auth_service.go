package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parkshare/internal/persistence"
)

// CredentialStore is the account lookup the auth service needs.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error
}

// SessionRepository stores login sessions keyed by token.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

const defaultSessionTTL = 24 * time.Hour

var errAuthNotConfigured = errors.New("application: auth service not configured")

// AuthService handles login, logout and token checks for the API.
type AuthService struct {
	credentials CredentialStore
	sessions    SessionRepository
	verify      PasswordVerifier
	rehash      PasswordHasher
	newToken    func() string
	now         func() time.Time
	ttl         time.Duration
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService that logs to slog.Default.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, verify, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
// A nil verify uses VerifyPassword, which also upgrades legacy hashes on login.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	svc := &AuthService{
		credentials: credentials,
		sessions:    sessions,
		verify:      verify,
		newToken:    tokenGenerator,
		now:         now,
		ttl:         sessionTTL,
		logger:      defaultLogger(logger),
	}
	if svc.verify == nil {
		svc.verify = VerifyPassword
		svc.rehash = HashPassword
	}
	if svc.newToken == nil {
		svc.newToken = func() string { return "" }
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.ttl <= 0 {
		svc.ttl = defaultSessionTTL
	}
	return svc
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) requireSessions() error {
	if s == nil || s.sessions == nil {
		return errAuthNotConfigured
	}
	return nil
}

func (s *AuthService) requireCredentials() error {
	if s == nil || s.credentials == nil {
		return errAuthNotConfigured
	}
	return nil
}

// Authenticate checks an email and password pair and opens a session.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.requireCredentials(); err != nil {
		return
	}

	email := normalizeUserInput(params.Email, "").Email
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "login rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login accepted", "user_id", result.User.ID, "session_id", result.Session.ID)
	}()

	creds, err := s.checkPassword(ctx, email, params.Password)
	if err != nil {
		return
	}
	s.upgradeHash(ctx, logger, creds, params.Password)

	session, err := s.openSession(ctx, creds.User.ID, params.Fingerprint)
	if err != nil {
		return
	}
	return AuthenticateResult{User: creds.User, Session: session}, nil
}

func (s *AuthService) checkPassword(ctx context.Context, email, password string) (UserCredentials, error) {
	if email == "" || password == "" {
		return UserCredentials{}, ErrInvalidCredentials
	}
	creds, err := s.credentials.GetUserCredentialsByEmail(ctx, email)
	switch {
	case isNotFound(err):
		return UserCredentials{}, ErrInvalidCredentials
	case err != nil:
		return UserCredentials{}, err
	case creds.Disabled:
		return UserCredentials{}, ErrAccountDisabled
	}
	if s.verify(creds.PasswordHash, password) != nil {
		return UserCredentials{}, ErrInvalidCredentials
	}
	return creds, nil
}

// upgradeHash rewrites imported pbkdf2 hashes as argon2id. Failures only log.
func (s *AuthService) upgradeHash(ctx context.Context, logger *slog.Logger, creds UserCredentials, password string) {
	if s.rehash == nil || !NeedsRehash(creds.PasswordHash) {
		return
	}
	hash, err := s.rehash(password)
	if err == nil {
		err = s.credentials.UpdatePasswordHash(ctx, creds.User.ID, hash, s.now())
	}
	if err != nil {
		logger.WarnContext(ctx, "password hash upgrade failed", "user_id", creds.User.ID, "error", err)
		return
	}
	logger.InfoContext(ctx, "password hash upgraded", "user_id", creds.User.ID)
}

func (s *AuthService) openSession(ctx context.Context, userID, fingerprint string) (Session, error) {
	issued := s.now()
	session := Session{
		ID:          s.newToken(),
		UserID:      userID,
		Token:       s.newToken(),
		Fingerprint: strings.TrimSpace(fingerprint),
		CreatedAt:   issued,
		UpdatedAt:   issued,
		ExpiresAt:   issued.Add(s.ttl),
	}
	if session.Token == "" {
		session.Token = session.ID
	}
	if s.sessions == nil {
		return session, nil
	}
	return s.sessions.CreateSession(ctx, session)
}

// RevokeSession ends the session identified by token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) (err error) {
	if err = s.requireSessions(); err != nil {
		return
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session revoked")
	}()

	_, err = s.sessions.RevokeSession(ctx, token, s.now())
	if isNotFound(err) {
		err = ErrInvalidCredentials
	}
	return
}

// ValidateSession resolves a bearer token to the acting Principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.requireSessions(); err != nil {
		return
	}
	if err = s.requireCredentials(); err != nil {
		return
	}

	token = strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if token == "" {
		return Principal{}, ErrInvalidCredentials
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return Principal{}, unauthorizedIfMissing(err)
	}
	if err = s.checkActive(session); err != nil {
		return Principal{}, err
	}
	user, err := s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		return Principal{}, unauthorizedIfMissing(err)
	}
	return Principal{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

func (s *AuthService) checkActive(session Session) error {
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(s.now()) {
		return ErrSessionExpired
	}
	return nil
}

// PruneExpiredSessions deletes sessions that expired or were revoked before now.
func (s *AuthService) PruneExpiredSessions(ctx context.Context) (int64, error) {
	if err := s.requireSessions(); err != nil {
		return 0, err
	}
	removed, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	logger := s.loggerWith(ctx, "PruneExpiredSessions")
	if err != nil {
		logger.ErrorContext(ctx, "session prune failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	logger.DebugContext(ctx, "sessions pruned", "removed", removed)
	return removed, nil
}

func unauthorizedIfMissing(err error) error {
	if isNotFound(err) {
		return ErrUnauthorized
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
