package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/storefront-auth/internal/models"
)

var (
	// ErrNotFound: запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists: нарушение уникальности (username/email/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotActive: refresh-токен уже отозван или истёк; условное обновление не затронуло строк.
	ErrNotActive = errors.New("not active")
	// ErrRoleNotFound: роль отсутствует в справочнике roles.
	ErrRoleNotFound = errors.New("role not found")
)

// UserStorage выполняет операции над пользователями, их ролями и тенантами.
type UserStorage interface {
	// SaveUser создаёт пользователя вместе с ролью и тенантами в одной транзакции
	// и проставляет user.ID.
	SaveUser(ctx context.Context, user *models.User, role string, tenantIDs []int64) error
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id int64) (*models.User, error)
	// UserByName находит пользователя по username (без учёта регистра).
	UserByName(ctx context.Context, username string) (*models.User, error)
	// UserByEmail находит пользователя по email (без учёта регистра).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// RolesByUserID возвращает имена ролей пользователя.
	RolesByUserID(ctx context.Context, userID int64) ([]string, error)
	// TenantsByUserID возвращает ID тенантов, в которых состоит пользователь.
	TenantsByUserID(ctx context.Context, userID int64) ([]int64, error)
	// TouchLogin фиксирует время последнего входа.
	TouchLogin(ctx context.Context, userID int64, at time.Time) error
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RotateRefreshToken атомарно сохраняет next и отзывает oldHash со ссылкой на next.
	// Если oldHash уже не активен на момент now: ничего не меняет и возвращает ErrNotActive.
	RotateRefreshToken(ctx context.Context, oldHash string, next *models.RefreshToken, ip string, now time.Time) error
	// RevokeRefreshToken отзывает токен, если он ещё не отозван.
	// (true, nil): отозван сейчас; (false, nil): уже был отозван; ErrNotFound: нет такого.
	RevokeRefreshToken(ctx context.Context, hash, ip string, now time.Time) (bool, error)
	// DeleteExpiredTokens удаляет токены, истёкшие до before, и возвращает их количество.
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
