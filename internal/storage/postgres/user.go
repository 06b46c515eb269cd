package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/storage"
)

const userColumns = `id, username::text, COALESCE(email::text, ''), display_name, password_hash,
		avatar_path, registered_at, logged_in_at`

// SaveUser создаёт пользователя, назначает ему роль и тенанты в одной транзакции.
// Пустой email сохраняется как NULL, чтобы не конфликтовать по уникальности.
func (s *Storage) SaveUser(ctx context.Context, user *models.User, role string, tenantIDs []int64) error {
	const op = "storage.postgres.SaveUser"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insUser = `
		INSERT INTO users(username, email, display_name, password_hash, avatar_path, registered_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err = tx.QueryRow(ctx, insUser,
		user.Username,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.AvatarPath,
		user.RegisteredAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	const insRole = `
		INSERT INTO user_roles(user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
	`

	tag, err := tx.Exec(ctx, insRole, id, role)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrRoleNotFound)
	}

	if len(tenantIDs) > 0 {
		const insTenants = `
			INSERT INTO user_tenants(user_id, tenant_id, joined_at)
			SELECT $1, t, $3 FROM unnest($2::bigint[]) AS t
			ON CONFLICT DO NOTHING
		`

		if _, err := tx.Exec(ctx, insTenants, id, tenantIDs, user.RegisteredAt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user.ID = id

	return nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	user, err := s.userBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByName находит пользователя по username.
func (s *Storage) UserByName(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.UserByName"

	user, err := s.userBy(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	user, err := s.userBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) userBy(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.AvatarPath,
		&user.RegisteredAt,
		&user.LoggedInAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &user, nil
}

// RolesByUserID возвращает роли пользователя в алфавитном порядке.
func (s *Storage) RolesByUserID(ctx context.Context, userID int64) ([]string, error) {
	const op = "storage.postgres.RolesByUserID"

	query := `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return roles, nil
}

// TenantsByUserID возвращает тенанты пользователя в порядке вступления.
func (s *Storage) TenantsByUserID(ctx context.Context, userID int64) ([]int64, error) {
	const op = "storage.postgres.TenantsByUserID"

	query := `
		SELECT tenant_id
		FROM user_tenants
		WHERE user_id = $1
		ORDER BY joined_at, tenant_id
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tenants, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tenants, nil
}

// TouchLogin обновляет logged_in_at.
func (s *Storage) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	const op = "storage.postgres.TouchLogin"

	tag, err := s.db.Exec(ctx, `UPDATE users SET logged_in_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
