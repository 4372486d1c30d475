package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, credentials UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

const minPasswordLength = 8

// UserService handles registration and the user directory.
type UserService struct {
	users       UserRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, hash, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hash: hash, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates a regular account. Anyone may register.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	return s.create(ctx, email, params.Name, params.Password, false)
}

// EnsureAdmin creates an administrator account unless one with the email
// already exists. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (created bool, err error) {
	if s == nil {
		return false, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return false, fmt.Errorf("user repository not configured")
	}

	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "EnsureAdmin", "email", email)

	if _, err = s.users.GetUserCredentialsByEmail(ctx, email); err == nil {
		logger.DebugContext(ctx, "administrator already present")
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, persistence.ErrNotFound) {
		logger.ErrorContext(ctx, "failed to look up administrator", "error", err, "error_kind", ErrorKind(err))
		return false, err
	}

	var user User
	user, err = s.create(ctx, email, "Administrator", password, true)
	if err != nil {
		logger.ErrorContext(ctx, "failed to seed administrator", "error", err, "error_kind", ErrorKind(err))
		return false, err
	}
	logger.With("user_id", user.ID).InfoContext(ctx, "administrator seeded")
	return true, nil
}

func (s *UserService) create(ctx context.Context, email, name, password string, admin bool) (User, error) {
	name = strings.TrimSpace(name)
	if vErr := validateRegistration(email, name, password); vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:        s.idGenerator(),
		Email:     email,
		Name:      name,
		IsAdmin:   admin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.users == nil {
		return user, nil
	}

	persisted, err := s.users.CreateUser(ctx, UserCredentials{User: user, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) || errors.Is(err, ErrAlreadyExists) {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}
	return persisted, nil
}

// ListUsers returns every user so callers can pick event attendees.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.loggerWith(ctx, "ListUsers").ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Name, out[j].Name) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(email, name, password string) *ValidationError {
	vErr := &ValidationError{}

	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if name == "" {
		vErr.add("name", "name is required")
	}

	if len(password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	return vErr
}
