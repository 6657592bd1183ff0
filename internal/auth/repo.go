package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alfozan/insights/internal/platform/db"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	SessionExists(ctx context.Context, id string) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const findUserByEmail = `
SELECT id, email, name, role, department, password_hash, is_active, created_at, updated_at
FROM users
WHERE lower(email) = lower($1)`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user      User
		role      string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, findUserByEmail, email).Scan(
		&user.ID, &user.Email, &user.Name, &role, &user.Department,
		&user.PasswordHash, &user.IsActive, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	parsed, ok := rbac.ParseRole(role)
	if !ok {
		return nil, ErrInvalidIdentity
	}
	user.Role = parsed
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

// CreateSession persists a new login session for auditing and stamps the
// user's last login in the same transaction.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, userID,
			pgtype.Timestamptz{Time: now, Valid: true},
			pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
			pgtype.Text{String: ip, Valid: ip != ""},
			pgtype.Text{String: ua, Valid: ua != ""},
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, now); err != nil {
			return fmt.Errorf("stamp last login: %w", err)
		}
		return nil
	})
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// SessionExists reports whether the login session is still on record.
func (r *PGRepository) SessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// MemoryRepository keeps users and login sessions in process memory. It backs
// demo deployments without PostgreSQL.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]User
	sessions map[string]string
}

// NewMemoryRepository indexes users by lower-cased email.
func NewMemoryRepository(users ...User) *MemoryRepository {
	repo := &MemoryRepository{
		users:    make(map[string]User, len(users)),
		sessions: make(map[string]string),
	}
	for _, u := range users {
		repo.users[strings.ToLower(u.Email)] = u
	}
	return repo
}

// FindByEmail fetches a user by email.
func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

// CreateSession records the login session.
func (r *MemoryRepository) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = userID
	return nil
}

// DeleteSession forgets the login session.
func (r *MemoryRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// SessionExists reports whether the login session is still on record.
func (r *MemoryRepository) SessionExists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok, nil
}

// SessionCount reports the number of open login sessions.
func (r *MemoryRepository) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

var (
	_ Repository = (*PGRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)

const listUsers = `
SELECT id, email, name, role, department, password_hash, is_active, created_at, updated_at
FROM users
ORDER BY id`

// ListUsers returns the whole directory ordered by id. Rows with a role
// outside the table are skipped.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var (
			user      User
			role      string
			createdAt pgtype.Timestamptz
			updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &role, &user.Department,
			&user.PasswordHash, &user.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		parsed, ok := rbac.ParseRole(role)
		if !ok {
			continue
		}
		user.Role = parsed
		user.CreatedAt = createdAt.Time
		user.UpdatedAt = updatedAt.Time
		out = append(out, user)
	}
	return out, rows.Err()
}

// SetActive enables or disables a user. Disabling also ends the user's
// recorded login sessions.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if !active {
			if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
				return fmt.Errorf("drop sessions: %w", err)
			}
		}
		return nil
	})
}

// ListUsers returns the directory ordered by id.
func (r *MemoryRepository) ListUsers(ctx context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetActive enables or disables a user.
func (r *MemoryRepository) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, u := range r.users {
		if u.ID != id {
			continue
		}
		u.IsActive = active
		u.UpdatedAt = time.Now().UTC()
		r.users[key] = u
		if !active {
			for sid, uid := range r.sessions {
				if uid == id {
					delete(r.sessions, sid)
				}
			}
		}
		return nil
	}
	return shared.ErrNotFound
}
