package application

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

var authNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return authNow }

func sequence(values ...string) func() string {
	return func() string {
		if len(values) == 0 {
			return "exhausted"
		}
		next := values[0]
		values = values[1:]
		return next
	}
}

func cheapHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPasswordWith(password, HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	require.NoError(t, err)
	return hash
}

func legacyHash(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return strings.Join([]string{"pbkdf2_sha256", strconv.Itoa(iterations), salt, base64.StdEncoding.EncodeToString(key)}, "$")
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	modern, err := HashPasswordWith("park here", HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	require.NoError(t, err)
	legacy := legacyHash("park here", "s4lt", 1000)

	tests := []struct {
		name     string
		encoded  string
		password string
		want     error
	}{
		{name: "argon2id match", encoded: modern, password: "park here"},
		{name: "argon2id mismatch", encoded: modern, password: "park there", want: ErrInvalidCredentials},
		{name: "pbkdf2 match", encoded: legacy, password: "park here"},
		{name: "pbkdf2 mismatch", encoded: legacy, password: "nope", want: ErrInvalidCredentials},
		{name: "unknown algorithm", encoded: "bcrypt$abc", password: "x", want: ErrUnsupportedHash},
		{name: "truncated argon2id", encoded: "$argon2id$v=19$m=1024", password: "x", want: ErrInvalidPasswordHash},
		{name: "bad pbkdf2 iterations", encoded: "pbkdf2_sha256$zero$salt$AAAA", password: "x", want: ErrInvalidPasswordHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := VerifyPassword(tt.encoded, tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.False(t, NeedsRehash(modern))
	assert.True(t, NeedsRehash(legacy))
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("opens a session for valid credentials", func(t *testing.T) {
		t.Parallel()

		store := &credentialStoreStub{credentials: UserCredentials{
			User:         User{ID: "renter-1", Email: "renter@example.com"},
			PasswordHash: "secret",
		}}
		sessions := newSessionRepositoryStub()
		svc := NewAuthService(store, sessions, plainVerifier, sequence("sess-1", "tok-1"), fixedNow, 2*time.Hour)

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{
			Email:       " Renter@Example.com ",
			Password:    "secret",
			Fingerprint: " phone ",
		})
		require.NoError(t, err)

		assert.Equal(t, "renter-1", result.User.ID)
		assert.Equal(t, "sess-1", result.Session.ID)
		assert.Equal(t, "tok-1", result.Session.Token)
		assert.Equal(t, "phone", result.Session.Fingerprint)
		assert.Equal(t, authNow.Add(2*time.Hour), result.Session.ExpiresAt)
		assert.Equal(t, "renter@example.com", store.lookedUp)
		assert.Contains(t, sessions.tokenToID, "tok-1")
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()

		store := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "u"}, PasswordHash: "secret"}}
		disabled := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "u"}, PasswordHash: "secret", Disabled: true}}
		failing := &credentialStoreStub{err: errors.New("db down")}

		tests := []struct {
			name   string
			store  *credentialStoreStub
			params AuthenticateParams
			want   error
		}{
			{name: "blank email", store: store, params: AuthenticateParams{Password: "secret"}, want: ErrInvalidCredentials},
			{name: "blank password", store: store, params: AuthenticateParams{Email: "a@b.c"}, want: ErrInvalidCredentials},
			{name: "wrong password", store: store, params: AuthenticateParams{Email: "a@b.c", Password: "guess"}, want: ErrInvalidCredentials},
			{name: "unknown email", store: &credentialStoreStub{}, params: AuthenticateParams{Email: "a@b.c", Password: "secret"}, want: ErrInvalidCredentials},
			{name: "disabled account", store: disabled, params: AuthenticateParams{Email: "a@b.c", Password: "secret"}, want: ErrAccountDisabled},
			{name: "store failure", store: failing, params: AuthenticateParams{Email: "a@b.c", Password: "secret"}, want: failing.err},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := NewAuthService(tt.store, newSessionRepositoryStub(), plainVerifier, sequence("id", "tok"), fixedNow, time.Hour)
				_, err := svc.Authenticate(context.Background(), tt.params)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("propagates session storage failures", func(t *testing.T) {
		t.Parallel()

		sessions := newSessionRepositoryStub()
		sessions.createErr = errors.New("insert failed")
		store := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "u"}, PasswordHash: "secret"}}
		svc := NewAuthService(store, sessions, plainVerifier, sequence("id", "tok"), fixedNow, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "a@b.c", Password: "secret"})
		assert.ErrorIs(t, err, sessions.createErr)
	})

	t.Run("verifies argon2id by default and leaves it alone", func(t *testing.T) {
		t.Parallel()

		store := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "u"}, PasswordHash: cheapHash(t, "correct horse")}}
		svc := NewAuthService(store, newSessionRepositoryStub(), nil, sequence("id", "tok"), fixedNow, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "a@b.c", Password: "correct horse"})
		require.NoError(t, err)
		assert.Empty(t, store.upgraded)
	})

	t.Run("upgrades imported pbkdf2 hashes on login", func(t *testing.T) {
		t.Parallel()

		store := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "legacy"}, PasswordHash: legacyHash("old site", "abc", 1000)}}
		svc := NewAuthService(store, newSessionRepositoryStub(), nil, sequence("id", "tok"), fixedNow, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "a@b.c", Password: "old site"})
		require.NoError(t, err)
		require.Contains(t, store.upgraded, "legacy")
		assert.NoError(t, VerifyPassword(store.upgraded["legacy"], "old site"))
		assert.False(t, NeedsRehash(store.upgraded["legacy"]))
	})

	t.Run("login survives a failed hash upgrade", func(t *testing.T) {
		t.Parallel()

		store := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "legacy"}, PasswordHash: legacyHash("old site", "abc", 1000)},
			updateErr:   errors.New("read only"),
		}
		svc := NewAuthService(store, newSessionRepositoryStub(), nil, sequence("id", "tok"), fixedNow, time.Hour)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "a@b.c", Password: "old site"})
		assert.NoError(t, err)
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	seeded := func() *sessionRepositoryStub {
		repo := newSessionRepositoryStub()
		repo.seed(Session{ID: "s1", UserID: "u", Token: "tok", ExpiresAt: authNow.Add(time.Hour)})
		return repo
	}

	t.Run("marks the session revoked", func(t *testing.T) {
		t.Parallel()
		repo := seeded()
		svc := NewAuthService(nil, repo, nil, nil, fixedNow, time.Hour)

		require.NoError(t, svc.RevokeSession(context.Background(), " tok "))
		require.NotNil(t, repo.sessionsByID["s1"].RevokedAt)
		assert.Equal(t, authNow, *repo.sessionsByID["s1"].RevokedAt)
	})

	tests := []struct {
		name      string
		token     string
		revokeErr error
		want      error
	}{
		{name: "blank token", token: "  ", want: ErrInvalidCredentials},
		{name: "unknown token", token: "missing", want: ErrInvalidCredentials},
		{name: "storage failure", token: "tok", revokeErr: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := seeded()
			repo.revokeErr = tt.revokeErr
			svc := NewAuthService(nil, repo, nil, nil, fixedNow, time.Hour)

			want := tt.want
			if want == nil {
				want = tt.revokeErr
			}
			assert.ErrorIs(t, svc.RevokeSession(context.Background(), tt.token), want)
		})
	}

	t.Run("requires a session repository", func(t *testing.T) {
		t.Parallel()
		svc := NewAuthService(nil, nil, nil, nil, fixedNow, time.Hour)
		assert.ErrorIs(t, svc.RevokeSession(context.Background(), "tok"), errAuthNotConfigured)
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	revokedAt := authNow.Add(-time.Minute)
	owner := &credentialStoreStub{credentials: UserCredentials{User: User{ID: "owner-1", IsAdmin: true}}}

	tests := []struct {
		name    string
		store   *credentialStoreStub
		session Session
		token   string
		getErr  error
		want    error
	}{
		{
			name:    "active session",
			store:   owner,
			session: Session{ID: "s", UserID: "owner-1", Token: "tok", ExpiresAt: authNow.Add(time.Hour)},
			token:   " tok ",
		},
		{
			name:    "expired session",
			store:   owner,
			session: Session{ID: "s", UserID: "owner-1", Token: "tok", ExpiresAt: authNow},
			token:   "tok",
			want:    ErrSessionExpired,
		},
		{
			name:    "revoked session",
			store:   owner,
			session: Session{ID: "s", UserID: "owner-1", Token: "tok", ExpiresAt: authNow.Add(time.Hour), RevokedAt: &revokedAt},
			token:   "tok",
			want:    ErrSessionRevoked,
		},
		{
			name:  "blank token",
			store: owner,
			token: " ",
			want:  ErrInvalidCredentials,
		},
		{
			name:  "unknown token",
			store: owner,
			token: "other",
			want:  ErrUnauthorized,
		},
		{
			name:    "deleted user",
			store:   &credentialStoreStub{credentials: UserCredentials{User: User{ID: "someone-else"}}},
			session: Session{ID: "s", UserID: "owner-1", Token: "tok", ExpiresAt: authNow.Add(time.Hour)},
			token:   "tok",
			want:    ErrUnauthorized,
		},
		{
			name:   "storage failure",
			store:  owner,
			token:  "tok",
			getErr: errors.New("boom"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newSessionRepositoryStub()
			if tt.session.ID != "" {
				repo.seed(tt.session)
			}
			repo.getErr = tt.getErr
			svc := NewAuthService(tt.store, repo, nil, nil, fixedNow, time.Hour)

			principal, err := svc.ValidateSession(context.Background(), tt.token)
			switch {
			case tt.getErr != nil:
				assert.ErrorIs(t, err, tt.getErr)
			case tt.want != nil:
				assert.ErrorIs(t, err, tt.want)
			default:
				require.NoError(t, err)
				assert.Equal(t, Principal{UserID: "owner-1", IsAdmin: true}, principal)
			}
		})
	}
}

func TestAuthService_PruneExpiredSessions(t *testing.T) {
	t.Parallel()

	revokedAt := authNow.Add(-time.Minute)
	repo := newSessionRepositoryStub()
	repo.seed(Session{ID: "live", Token: "a", ExpiresAt: authNow.Add(time.Hour)})
	repo.seed(Session{ID: "stale", Token: "b", ExpiresAt: authNow.Add(-time.Hour)})
	repo.seed(Session{ID: "logged-out", Token: "c", ExpiresAt: authNow.Add(time.Hour), RevokedAt: &revokedAt})
	svc := NewAuthService(nil, repo, nil, nil, fixedNow, time.Hour)

	removed, err := svc.PruneExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	assert.Equal(t, []time.Time{authNow}, repo.deleteCalls)
	assert.Contains(t, repo.sessionsByID, "live")

	repo.deleteErr = errors.New("vacuum failed")
	_, err = svc.PruneExpiredSessions(context.Background())
	assert.ErrorIs(t, err, repo.deleteErr)
}

func plainVerifier(hashedPassword, password string) error {
	if hashedPassword != password {
		return errors.New("mismatch")
	}
	return nil
}

type credentialStoreStub struct {
	credentials UserCredentials
	err         error
	updateErr   error

	lookedUp string
	upgraded map[string]string
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(_ context.Context, email string) (UserCredentials, error) {
	c.lookedUp = email
	if c.err != nil {
		return UserCredentials{}, c.err
	}
	if c.credentials.User.ID == "" {
		return UserCredentials{}, ErrNotFound
	}
	return c.credentials, nil
}

func (c *credentialStoreStub) GetUser(_ context.Context, id string) (User, error) {
	if c.err != nil {
		return User{}, c.err
	}
	if c.credentials.User.ID != id {
		return User{}, ErrNotFound
	}
	return c.credentials.User, nil
}

func (c *credentialStoreStub) UpdatePasswordHash(_ context.Context, userID, hash string, _ time.Time) error {
	if c.updateErr != nil {
		return c.updateErr
	}
	if c.upgraded == nil {
		c.upgraded = map[string]string{}
	}
	c.upgraded[userID] = hash
	return nil
}

// sessionRepositoryStub keeps sessions in maps keyed by ID and token.
type sessionRepositoryStub struct {
	sessionsByID map[string]Session
	tokenToID    map[string]string

	createErr, getErr, revokeErr, deleteErr error

	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{
		sessionsByID: map[string]Session{},
		tokenToID:    map[string]string{},
	}
}

func (s *sessionRepositoryStub) seed(session Session) {
	s.sessionsByID[session.ID] = session
	s.tokenToID[session.Token] = session.ID
}

func (s *sessionRepositoryStub) lookup(token string) (Session, error) {
	id, ok := s.tokenToID[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.sessionsByID[id], nil
}

func (s *sessionRepositoryStub) CreateSession(_ context.Context, session Session) (Session, error) {
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.seed(session)
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(_ context.Context, token string) (Session, error) {
	if s.getErr != nil {
		return Session{}, s.getErr
	}
	return s.lookup(token)
}

func (s *sessionRepositoryStub) RevokeSession(_ context.Context, token string, revokedAt time.Time) (Session, error) {
	if s.revokeErr != nil {
		return Session{}, s.revokeErr
	}
	session, err := s.lookup(token)
	if err != nil {
		return Session{}, err
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.seed(session)
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(_ context.Context, reference time.Time) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.deleteCalls = append(s.deleteCalls, reference)
	var removed int64
	for id, session := range s.sessionsByID {
		if session.RevokedAt == nil && session.ExpiresAt.After(reference) {
			continue
		}
		delete(s.sessionsByID, id)
		delete(s.tokenToID, session.Token)
		removed++
	}
	return removed, nil
}
