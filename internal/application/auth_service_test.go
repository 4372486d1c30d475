package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/testfixtures"
)

type credentialStoreStub struct {
	credentials UserCredentials
	err         error
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	if c.err != nil {
		return UserCredentials{}, c.err
	}
	if c.credentials.User.Email != email {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return c.credentials, nil
}

func (c *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	if c.credentials.User.ID != id {
		return User{}, persistence.ErrNotFound
	}
	return c.credentials.User, nil
}

type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]Session
	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessions: make(map[string]Session)}
}

func (r *sessionRepositoryStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return session, nil
}

func (r *sessionRepositoryStub) GetSession(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, persistence.ErrNotFound
	}
	return s, nil
}

func (r *sessionRepositoryStub) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if s.RevokedAt == nil {
		at := revokedAt
		s.RevokedAt = &at
		r.sessions[id] = s
	}
	return nil
}

func (r *sessionRepositoryStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls = append(r.deleteCalls, reference)
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(reference) {
			delete(r.sessions, id)
		}
	}
	return nil
}

func plainVerifier(hashed, password string) error {
	if hashed != "hashed:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type authFixture struct {
	svc      *AuthService
	sessions *sessionRepositoryStub
	creds    *credentialStoreStub
	clock    *testfixtures.Clock
}

func newAuthFixture(admin bool) authFixture {
	f := authFixture{
		sessions: newSessionRepositoryStub(),
		creds: &credentialStoreStub{credentials: UserCredentials{
			User:         User{ID: "user-1", Email: "user@example.com", Name: "User", IsAdmin: admin},
			PasswordHash: "hashed:secret-password",
		}},
		clock: testfixtures.NewClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)),
	}
	f.svc = NewAuthService(f.creds, f.sessions, NewTokenSigner("test-secret"), plainVerifier,
		testfixtures.NewIDGenerator("session").NextFunc(), f.clock.NowFunc(), time.Hour)
	return f
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)

		result, err := f.svc.Login(context.Background(), LoginParams{Email: " User@Example.com ", Password: "secret-password"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if result.Token == "" || result.Session.ID != "session-1" || result.User.ID != "user-1" {
			t.Fatalf("unexpected login result: %+v", result)
		}
		if !result.Session.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)) {
			t.Fatalf("expected session to expire after ttl, got %v", result.Session.ExpiresAt)
		}
		if len(f.sessions.deleteCalls) != 1 || !f.sessions.deleteCalls[0].Equal(f.clock.Now()) {
			t.Fatalf("expected DeleteExpiredSessions to be called with now, got %#v", f.sessions.deleteCalls)
		}
	})

	t.Run("rejects invalid credentials with sentinel error", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)

		for _, params := range []LoginParams{
			{Email: "user@example.com", Password: "wrong"},
			{Email: "nobody@example.com", Password: "secret-password"},
			{Email: "", Password: ""},
		} {
			if _, err := f.svc.Login(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", params, err)
			}
		}
		if len(f.sessions.sessions) != 0 {
			t.Fatalf("expected no sessions, got %d", len(f.sessions.sessions))
		}
	})

	t.Run("propagates credential store failures", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)
		f.creds.err = errors.New("db down")
		if _, err := f.svc.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "secret-password"}); !errors.Is(err, f.creds.err) {
			t.Fatalf("expected store error, got %v", err)
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	t.Run("returns the principal for an active session", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(true)
		result, err := f.svc.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "secret-password"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		principal, err := f.svc.ValidateSession(context.Background(), result.Token)
		if err != nil {
			t.Fatalf("ValidateSession failed: %v", err)
		}
		if principal.UserID != "user-1" || !principal.IsAdmin {
			t.Fatalf("unexpected principal: %+v", principal)
		}
	})

	t.Run("rejects expired sessions", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)
		result, err := f.svc.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "secret-password"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		f.clock.Advance(2 * time.Hour)
		if _, err := f.svc.ValidateSession(context.Background(), result.Token); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("rejects revoked sessions", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)
		result, err := f.svc.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "secret-password"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if err := f.svc.Logout(context.Background(), result.Token); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}

		if _, err := f.svc.ValidateSession(context.Background(), result.Token); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("expected ErrSessionRevoked, got %v", err)
		}
	})

	t.Run("rejects tokens signed with another key", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)
		forged, err := NewTokenSigner("other-secret").Issue(Session{
			ID:        "session-1",
			UserID:    "user-1",
			CreatedAt: f.clock.Now(),
			ExpiresAt: f.clock.Now().Add(time.Hour),
		}, true)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}

		if _, err := f.svc.ValidateSession(context.Background(), forged); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects blank and unknown tokens", func(t *testing.T) {
		t.Parallel()
		f := newAuthFixture(false)
		if _, err := f.svc.ValidateSession(context.Background(), "  "); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for blank token, got %v", err)
		}

		orphan, err := NewTokenSigner("test-secret").Issue(Session{
			ID:        "missing",
			UserID:    "user-1",
			CreatedAt: f.clock.Now(),
			ExpiresAt: f.clock.Now().Add(time.Hour),
		}, false)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := f.svc.ValidateSession(context.Background(), orphan); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for unknown session, got %v", err)
		}
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(false)
	result, err := f.svc.Login(context.Background(), LoginParams{Email: "user@example.com", Password: "secret-password"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := f.svc.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	stored, _ := f.sessions.GetSession(context.Background(), result.Session.ID)
	if stored.RevokedAt == nil || !stored.RevokedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected session to be revoked at now, got %+v", stored.RevokedAt)
	}

	if err := f.svc.Logout(context.Background(), "garbage"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for garbage token, got %v", err)
	}
}

func TestAuthService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	svc := NewAuthService(nil, nil, nil, nil, nil, nil, 0)
	if _, err := svc.Login(context.Background(), LoginParams{Email: "a@example.com", Password: "x"}); err == nil {
		t.Fatalf("expected missing dependencies to fail")
	}
}
