// Package service содержит сценарии жизненного цикла учётных записей auth-сервиса:
// регистрацию, гостевые учётки, вход/выход, обновление пары токенов
// и получение профиля по access-токену.
//
// Выпуск и ротацию токенов выполняет issuer.Issuer; Service отвечает за
// проверку входных данных, пароли, каталог пользователей и доменные события.
//
// Экземпляр Service не хранит состояние запроса и безопасен для конкурентного
// использования при потокобезопасном хранилище.
package service

import (
	"errors"
	"time"

	"github.com/pribylovaa/storefront-auth/internal/events"
	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/storage"
)

// Роли, известные сервису.
const (
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
	RoleCustomer = "customer"
	RoleGuest    = "guest"
)

var (
	// ErrInvalidCredentials: пара логин/пароль неверна или пользователь не найден.
	// Транспорт: HTTP 401 / codes.Unauthenticated.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists: username или e-mail уже заняты. Транспорт: HTTP 409.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidUsername: username короче 3 символов или содержит пробелы.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidEmail: e-mail имеет некорректный формат.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidDisplayName: отображаемое имя пустое или длиннее 100 символов.
	ErrInvalidDisplayName = errors.New("invalid display name")

	// ErrInvalidRole: роль не существует или недоступна для регистрации.
	ErrInvalidRole = errors.New("invalid role")

	// ErrWeakPassword: пароль не удовлетворяет политикам сложности.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword: пароль пустой.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику учётных записей.
type Service struct {
	storage   storage.Storage
	issuer    *issuer.Issuer
	publisher events.Publisher
	now       func() time.Time
}

// New создаёт новый экземпляр Service. nil publisher заменяется на events.NopPublisher.
func New(st storage.Storage, iss *issuer.Issuer, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}

	return &Service{
		storage:   st,
		issuer:    iss,
		publisher: pub,
		now:       time.Now,
	}
}
