package issuer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pribylovaa/storefront-auth/internal/cache"
	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/pkg/log"
	"github.com/pribylovaa/storefront-auth/internal/pkg/redact"
	"github.com/pribylovaa/storefront-auth/internal/storage"
)

const maxCollisionAttempts = 5

// HashToken возвращает ключ хранения refresh-токена: sha256 → base64url.
// Само значение токена на сервере не хранится.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// newRefreshValue генерирует криптостойкое значение refresh-токена.
func (i *Issuer) newRefreshValue() (string, error) {
	b := make([]byte, i.cfg.RefreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Mint выпускает пару токенов для пользователя.
//
// Роли берутся из каталога на момент вызова; tenantIDs: тенанты, в которых
// пользователь может действовать (может быть пуст). activeTenantID, если задан,
// обязан входить в tenantIDs, иначе ErrTenantNotMember.
// Побочный эффект: одна новая строка refresh_tokens.
func (i *Issuer) Mint(ctx context.Context, user *models.User, tenantIDs []int64, activeTenantID *int64, clientIP string) (*models.TokenPair, error) {
	const op = "issuer.Mint"

	lg := log.From(ctx)

	if user == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	if activeTenantID != nil && !slices.Contains(tenantIDs, *activeTenantID) {
		lg.Warn("mint_tenant_not_member",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
			slog.Int64("tenant_id", *activeTenantID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTenantNotMember)
	}

	roles, err := i.users.RolesByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapDirectoryErr(err))
	}

	now := i.clock()
	claims := i.buildClaims(subject{user: user, roles: roles, tenants: tenantIDs, activeID: activeTenantID}, now)

	access, err := i.sign(claims)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	value, row, err := i.saveRefresh(ctx, user.ID, activeTenantID, clientIP, now, func(row *models.RefreshToken) error {
		return i.tokens.SaveRefreshToken(ctx, row)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	i.cacheActive(ctx, row, now)
	i.metrics.TokenMinted()

	lg.Info("tokens_minted",
		slog.String("op", op),
		slog.Int64("user_id", user.ID),
		slog.String("refresh", redact.Hash(row.TokenHash)),
	)

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    value,
		AccessExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// saveRefresh генерирует значение refresh-токена и сохраняет строку через persist.
// Коллизия хэша (storage.ErrAlreadyExists): повтор с новым значением.
func (i *Issuer) saveRefresh(
	ctx context.Context,
	userID int64,
	tenantID *int64,
	clientIP string,
	now time.Time,
	persist func(row *models.RefreshToken) error,
) (string, *models.RefreshToken, error) {
	const op = "issuer.saveRefresh"

	lg := log.From(ctx)

	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		value, err := i.newRefreshValue()
		if err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}

		row := &models.RefreshToken{
			TokenHash:   HashToken(value),
			UserID:      userID,
			TenantID:    tenantID,
			CreatedAt:   now,
			CreatedByIP: clientIP,
			ExpiresAt:   now.Add(i.cfg.RefreshTokenTTL),
		}

		if err := persist(row); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия: пробуем сгенерировать заново.
				continue
			}

			return "", nil, fmt.Errorf("%s: %w", op, err)
		}

		return value, row, nil
	}

	lg.Error("refresh_collision_exceeded",
		slog.String("op", op),
	)

	return "", nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// RotateOption уточняет проверки при ротации.
type RotateOption func(*rotateOptions)

type rotateOptions struct {
	ownerID *int64
}

// WithExpectedOwner требует, чтобы предъявленный refresh-токен принадлежал userID.
// Несовпадение: ErrInvalidToken; исходный токен при этом не тратится.
func WithExpectedOwner(userID int64) RotateOption {
	return func(o *rotateOptions) { o.ownerID = &userID }
}

// Rotate обменивает активный refresh-токен на новую пару и отзывает предъявленный.
//
// Не найден, отозван, истёк или проигрыш конкурентной ротации: ErrInvalidToken
// (причины различаются только в логах). Тенанты и роли берутся из каталога на момент
// ротации; активный тенант переносится из строки токена и должен оставаться
// в списке тенантов пользователя.
func (i *Issuer) Rotate(ctx context.Context, value, clientIP string, opts ...RotateOption) (*models.TokenPair, error) {
	const op = "issuer.Rotate"

	lg := log.From(ctx)

	var ro rotateOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if value == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	hash := HashToken(value)
	lg = lg.With(slog.String("refresh", redact.Hash(hash)))

	if i.cachedRevoked(ctx, hash) {
		lg.Warn("refresh_reuse_detected",
			slog.String("op", op),
			slog.String("source", "cache"),
			slog.String("ip", clientIP),
		)
		i.metrics.ReuseDetected()
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	old, err := i.tokens.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_not_found",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := i.clock()

	switch {
	case old.IsRevoked():
		lg.Warn("refresh_reuse_detected",
			slog.String("op", op),
			slog.String("source", "db"),
			slog.Int64("user_id", old.UserID),
			slog.String("ip", clientIP),
			slog.Bool("rotated", old.ReplacedByToken != ""),
		)
		i.metrics.ReuseDetected()
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	case old.IsExpired(now):
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.Int64("user_id", old.UserID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	case ro.ownerID != nil && *ro.ownerID != old.UserID:
		lg.Warn("refresh_owner_mismatch",
			slog.String("op", op),
			slog.Int64("user_id", old.UserID),
			slog.Int64("expected_user_id", *ro.ownerID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := i.users.UserByID(ctx, old.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapDirectoryErr(err))
	}

	tenants, err := i.users.TenantsByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapDirectoryErr(err))
	}

	if old.TenantID != nil && !slices.Contains(tenants, *old.TenantID) {
		lg.Warn("refresh_tenant_not_member",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
			slog.Int64("tenant_id", *old.TenantID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTenantNotMember)
	}

	roles, err := i.users.RolesByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapDirectoryErr(err))
	}

	claims := i.buildClaims(subject{user: user, roles: roles, tenants: tenants, activeID: old.TenantID}, now)

	access, err := i.sign(claims)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next, row, err := i.saveRefresh(ctx, user.ID, old.TenantID, clientIP, now, func(row *models.RefreshToken) error {
		return i.tokens.RotateRefreshToken(ctx, old.TokenHash, row, clientIP, now)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotActive) {
			lg.Warn("refresh_rotation_conflict",
				slog.String("op", op),
				slog.Int64("user_id", user.ID),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_rotate_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	i.cacheRevoked(ctx, old.TokenHash, old.ExpiresAt.Sub(now))
	i.cacheActive(ctx, row, now)
	i.metrics.TokenRotated()

	lg.Info("refresh_rotated",
		slog.String("op", op),
		slog.Int64("user_id", user.ID),
		slog.String("next", redact.Hash(row.TokenHash)),
	)

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    next,
		AccessExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Revoke терминально отзывает refresh-токен (logout): replaced_by_token остаётся пустым.
// Неизвестный токен: ErrNotFound, уже неактивный: ErrAlreadyRevoked.
func (i *Issuer) Revoke(ctx context.Context, value, clientIP string) error {
	const op = "issuer.Revoke"

	lg := log.From(ctx)

	if value == "" {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	hash := HashToken(value)

	ok, err := i.tokens.RevokeRefreshToken(ctx, hash, clientIP, i.clock())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("refresh_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	if !ok {
		lg.Info("refresh_already_revoked",
			slog.String("op", op),
			slog.String("refresh", redact.Hash(hash)),
		)
		return fmt.Errorf("%s: %w", op, ErrAlreadyRevoked)
	}

	i.cacheRevoked(ctx, hash, i.cfg.RefreshTokenTTL)
	i.metrics.TokenRevoked()

	lg.Info("refresh_revoked",
		slog.String("op", op),
		slog.String("refresh", redact.Hash(hash)),
	)

	return nil
}

// Sweep удаляет refresh-токены, истёкшие более retention назад.
func (i *Issuer) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	const op = "issuer.Sweep"

	n, err := i.tokens.DeleteExpiredTokens(ctx, i.clock().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// cachedRevoked сообщает, помечен ли токен в кэше как отозванный.
// Ошибки кэша не фатальны: решение всё равно принимает БД.
func (i *Issuer) cachedRevoked(ctx context.Context, hash string) bool {
	if i.rcache == nil {
		return false
	}

	e, ok, err := i.rcache.Get(ctx, hash)
	if err != nil {
		log.From(ctx).Warn("refresh_cache_get_failed", slog.String("err", err.Error()))
		return false
	}

	return ok && e.Revoked
}

func (i *Issuer) cacheActive(ctx context.Context, row *models.RefreshToken, now time.Time) {
	if i.rcache == nil {
		return
	}

	e := &cache.RefreshEntry{UserID: row.UserID, ExpiresAt: row.ExpiresAt}
	if err := i.rcache.Set(ctx, row.TokenHash, e, row.ExpiresAt.Sub(now)); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}
}

func (i *Issuer) cacheRevoked(ctx context.Context, hash string, ttl time.Duration) {
	if i.rcache == nil {
		return
	}

	if err := i.rcache.MarkRevoked(ctx, hash, ttl); err != nil {
		log.From(ctx).Warn("refresh_cache_mark_revoked_failed", slog.String("err", err.Error()))
	}
}

func mapDirectoryErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}

	return err
}
