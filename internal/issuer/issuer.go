// Package issuer выпускает и проверяет токены auth-сервиса.
//
// Issuer отвечает за три вещи:
//   - сборку и подпись access-токена (JWT, HS256) из данных каталога пользователей;
//   - жизненный цикл refresh-токенов: выпуск, ротацию по цепочке и отзыв;
//   - чтение claims из просроченного access-токена для сценариев сверки.
//
// Issuer не хранит состояние запроса и безопасен для конкурентного использования.
// Единственная точка сериализации ротации: условное обновление в хранилище
// (storage.RefreshTokenStorage.RotateRefreshToken); блокировок на уровне приложения нет.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/storefront-auth/internal/cache"
	"github.com/pribylovaa/storefront-auth/internal/config"
	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/storage"
)

var (
	// ErrInvalidToken: refresh/access-токен не найден, истёк, отозван или подделан.
	// Причина намеренно не раскрывается вызывающему. Транспорт: 401 / codes.Unauthenticated.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired: access-токен корректно подписан, но истёк (только Validate).
	ErrTokenExpired = errors.New("token expired")

	// ErrUserNotFound: владелец токена отсутствует в каталоге пользователей.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotFound: отзыв неизвестного refresh-токена.
	ErrNotFound = errors.New("refresh token not found")

	// ErrAlreadyRevoked: отзыв токена, который уже неактивен (отозван или истёк).
	ErrAlreadyRevoked = errors.New("refresh token already revoked")

	// ErrTenantNotMember: активный тенант не входит в список тенантов пользователя.
	ErrTenantNotMember = errors.New("active tenant is not a member of tenant list")

	// ErrRefreshTokenCollision: исчерпаны попытки сгенерировать уникальный refresh-токен.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrConfiguration: некорректная конфигурация подписи; фатальна на старте.
	ErrConfiguration = errors.New("issuer configuration error")
)

// minRefreshTokenBytes: нижняя граница энтропии refresh-токена.
const minRefreshTokenBytes = 32

// UserDirectory: каталог пользователей, из которого собираются claims.
// Реализуется хранилищем (storage.UserStorage); Issuer только читает.
type UserDirectory interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByName(ctx context.Context, username string) (*models.User, error)
	RolesByUserID(ctx context.Context, userID int64) ([]string, error)
	TenantsByUserID(ctx context.Context, userID int64) ([]int64, error)
}

// Recorder получает события жизненного цикла токенов (метрики).
type Recorder interface {
	TokenMinted()
	TokenRotated()
	TokenRevoked()
	ReuseDetected()
}

type nopRecorder struct{}

func (nopRecorder) TokenMinted()   {}
func (nopRecorder) TokenRotated()  {}
func (nopRecorder) TokenRevoked()  {}
func (nopRecorder) ReuseDetected() {}

// Issuer выпускает, ротирует и отзывает токены.
type Issuer struct {
	cfg     config.AuthConfig
	secret  []byte
	users   UserDirectory
	tokens  storage.RefreshTokenStorage
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
	metrics Recorder
	now     func() time.Time
}

// Option настраивает Issuer.
type Option func(*Issuer)

// WithRefreshCache подключает Redis-кэш состояния refresh-токенов.
func WithRefreshCache(c cache.RefreshCache) Option {
	return func(i *Issuer) { i.rcache = c }
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithMetrics подключает сбор метрик.
func WithMetrics(r Recorder) Option {
	return func(i *Issuer) {
		if r != nil {
			i.metrics = r
		}
	}
}

// New создаёт Issuer. Пустой ключ подписи, неположительные TTL или
// слишком короткий refresh-токен дают ErrConfiguration.
func New(cfg config.AuthConfig, users UserDirectory, tokens storage.RefreshTokenStorage, opts ...Option) (*Issuer, error) {
	const op = "issuer.New"

	switch {
	case cfg.JWTSecret == "":
		return nil, fmt.Errorf("%s: %w: empty signing key", op, ErrConfiguration)
	case cfg.AccessTokenTTL <= 0:
		return nil, fmt.Errorf("%s: %w: access token ttl must be positive", op, ErrConfiguration)
	case cfg.RefreshTokenTTL <= 0:
		return nil, fmt.Errorf("%s: %w: refresh token ttl must be positive", op, ErrConfiguration)
	case users == nil || tokens == nil:
		return nil, fmt.Errorf("%s: %w: nil dependency", op, ErrConfiguration)
	}

	if cfg.RefreshTokenBytes == 0 {
		cfg.RefreshTokenBytes = minRefreshTokenBytes
	}
	if cfg.RefreshTokenBytes < minRefreshTokenBytes {
		return nil, fmt.Errorf("%s: %w: refresh token must carry at least %d bytes", op, ErrConfiguration, minRefreshTokenBytes)
	}

	i := &Issuer{
		cfg:     cfg,
		secret:  []byte(cfg.JWTSecret),
		users:   users,
		tokens:  tokens,
		metrics: nopRecorder{},
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

func (i *Issuer) clock() time.Time {
	return i.now().UTC()
}
