package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool, mapper: NewErrorMapper()}
}

type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	IsAdmin      bool   `db:"is_admin"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

const userColumns = `id, email, name, password_hash, is_admin, created_at, updated_at`

func (row userRow) toModel() (persistence.User, error) {
	user := persistence.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		IsAdmin:      row.IsAdmin,
	}
	var err error
	if user.CreatedAt, err = parseTimestamp("created_at", row.CreatedAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTimestamp("updated_at", row.UpdatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// CreateUser inserts a new user into the database
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	row := userRow{
		ID:           user.ID,
		Email:        normalizeEmail(user.Email),
		Name:         strings.TrimSpace(user.Name),
		PasswordHash: user.PasswordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    formatTimestamp(user.CreatedAt),
		UpdatedAt:    formatTimestamp(user.UpdatedAt),
	}

	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :name, :password_hash, :is_admin, :created_at, :updated_at)`

	if _, err := r.pool.db.NamedExecContext(ctx, query, row); err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by case-insensitive email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (persistence.User, error) {
	var row userRow
	if err := r.pool.db.GetContext(ctx, &row, query, arg); err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return row.toModel()
}

// ListUsers returns all users ordered by name then ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var rows []userRow
	if err := r.pool.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY name COLLATE NOCASE ASC, id ASC`); err != nil {
		return nil, r.mapper.MapError(err)
	}

	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
