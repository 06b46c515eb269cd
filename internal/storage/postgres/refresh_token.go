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

const insertRefreshToken = `
	INSERT INTO refresh_tokens(token_hash, user_id, tenant_id, created_at, created_by_ip, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	_, err := s.db.Exec(ctx, insertRefreshToken,
		token.TokenHash,
		token.UserID,
		token.TenantID,
		token.CreatedAt,
		token.CreatedByIP,
		token.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("%s: %w", op, mapInsertErr(err))
	}

	return nil
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
		SELECT token_hash, user_id, tenant_id, created_at, created_by_ip, expires_at,
		       revoked_at, COALESCE(revoked_by_ip, ''), COALESCE(replaced_by_token, '')
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.TenantID,
		&token.CreatedAt,
		&token.CreatedByIP,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.RevokedByIP,
		&token.ReplacedByToken,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RotateRefreshToken в одной транзакции вставляет next и условно отзывает oldHash,
// проставляя replaced_by_token = next.TokenHash.
//
// Новая строка вставляется первой: FK replaced_by_token всегда указывает на существующую запись.
// Условие revoked_at IS NULL AND expires_at > now перепроверяется после снятия блокировки
// строки, поэтому из нескольких конкурентных ротаций одного токена успешна ровно одна;
// остальные получают storage.ErrNotActive, их вставка откатывается.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, ip string, now time.Time) error {
	const op = "storage.postgres.RotateRefreshToken"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertRefreshToken,
		next.TokenHash,
		next.UserID,
		next.TenantID,
		next.CreatedAt,
		next.CreatedByIP,
		next.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapInsertErr(err))
	}

	const upd = `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
	`

	tag, err := tx.Exec(ctx, upd, oldHash, now, ip, next.TokenHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotActive)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RevokeRefreshToken пытается отозвать refresh-токен, если он ещё активен.
// Возвращает:
//
//	(true, nil): токен был активен и успешно отозван сейчас;
//	(false, nil): токен существует, но уже отозван или истёк;
//	(false, ErrNotFound): токен не найден.
func (s *Storage) RevokeRefreshToken(ctx context.Context, hash, ip string, now time.Time) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		RETURNING user_id
	`

	var userID int64
	err := s.db.QueryRow(ctx, upd, hash, now, ip).Scan(&userID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `SELECT 1 FROM refresh_tokens WHERE token_hash = $1`

	var one int
	err = s.db.QueryRow(ctx, sel, hash).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// DeleteExpiredTokens удаляет токены, истёкшие до before.
// Строки, на которые ещё ссылается replaced_by_token сохраняемой записи, не трогаются:
// цепочка ротации остаётся целой.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
		DELETE FROM refresh_tokens rt
		WHERE rt.expires_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM refresh_tokens prev
			WHERE prev.replaced_by_token = rt.token_hash
			  AND prev.expires_at > $1
		  )
	`

	tag, err := s.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return storage.ErrAlreadyExists
		case pgerrcode.ForeignKeyViolation:
			return storage.ErrNotFound
		}
	}

	return err
}
