package models

import "time"

// User: учётная запись из каталога пользователей.
//
// Email/DisplayName/AvatarPath могут быть пустыми (гостевые учётки);
// LoggedInAt == nil, пока пользователь ни разу не входил.
type User struct {
	ID           int64
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	AvatarPath   string
	RegisteredAt time.Time
	LoggedInAt   *time.Time
}

// Profile: публичное представление пользователя вместе с ролями и тенантами.
type Profile struct {
	User           *User
	Roles          []string
	TenantIDs      []int64
	ActiveTenantID *int64
}
