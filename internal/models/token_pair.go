package models

import "time"

// TokenPair: пара токенов, выдаваемая при входе, регистрации и ротации.
//
// Описание:
//   - AccessToken: короткоживущий JWT для доступа к API;
//   - RefreshToken: случайный секрет, который клиент хранит и предъявляет
//     для выпуска новой пары токенов; на сервере хранится только его хэш;
//   - AccessExpiresAt: момент истечения access-токена (UTC).
type TokenPair struct {
	// AccessToken: JWT для авторизации запросов.
	AccessToken string
	// RefreshToken: случайный секрет для обновления пары.
	RefreshToken string
	// AccessExpiresAt: время истечения действия access-токена (UTC).
	AccessExpiresAt time.Time
}

// Principal: данные, извлечённые из подписанного access-токена.
type Principal struct {
	UserID         int64
	Username       string
	Email          string
	DisplayName    string
	ActiveTenantID *int64
	TenantIDs      []int64
	Roles          []string
	TokenID        string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// HasRole проверяет наличие роли у субъекта токена.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}

	return false
}
