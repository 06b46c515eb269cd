package models

import "time"

// RefreshToken: одно звено цепочки ротации refresh-токенов.
//
// На сервере хранится только хэш предъявляемого значения (TokenHash);
// ReplacedByToken указывает на хэш следующего звена цепочки.
// Поля отзыва (RevokedAt/RevokedByIP/ReplacedByToken) заполняются ровно один раз.
type RefreshToken struct {
	TokenHash       string
	UserID          int64
	TenantID        *int64
	CreatedAt       time.Time
	CreatedByIP     string
	ExpiresAt       time.Time
	RevokedAt       *time.Time
	RevokedByIP     string
	ReplacedByToken string
}

// IsExpired сообщает, истёк ли срок действия токена на момент now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRevoked сообщает, был ли токен отозван (logout или ротация).
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive: токен не отозван и не истёк.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
