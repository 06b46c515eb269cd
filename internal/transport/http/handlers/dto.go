package handlers

import (
	"time"

	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/service"
)

type registerRequest struct {
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	DisplayName    string  `json:"display_name"`
	Role           string  `json:"role"`
	TenantIDs      []int64 `json:"tenant_ids"`
	ActiveTenantID *int64  `json:"active_tenant_id"`
}

type guestRequest struct {
	TenantIDs      []int64 `json:"tenant_ids"`
	ActiveTenantID *int64  `json:"active_tenant_id"`
}

type loginRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	ActiveTenantID *int64 `json:"active_tenant_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type expiredRefreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type validateRequest struct {
	AccessToken string `json:"access_token"`
}

type userDTO struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	DisplayName  string     `json:"display_name,omitempty"`
	AvatarPath   string     `json:"avatar_path,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
	LoggedInAt   *time.Time `json:"logged_in_at,omitempty"`
}

// tokensDTO: пара токенов; AccessExpiresAt в Unix-секундах UTC.
type tokensDTO struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresAt int64  `json:"access_expires_at"`
}

type authResponse struct {
	User      userDTO  `json:"user"`
	Role      string   `json:"role"`
	Roles     []string `json:"roles"`
	TenantIDs []int64  `json:"tenant_ids"`
	tokensDTO
}

type profileResponse struct {
	User           userDTO  `json:"user"`
	Roles          []string `json:"roles"`
	TenantIDs      []int64  `json:"tenant_ids"`
	ActiveTenantID *int64   `json:"active_tenant_id,omitempty"`
}

type validateResponse struct {
	Valid          bool     `json:"valid"`
	UserID         int64    `json:"user_id,omitempty"`
	Username       string   `json:"username,omitempty"`
	Email          string   `json:"email,omitempty"`
	DisplayName    string   `json:"display_name,omitempty"`
	ActiveTenantID *int64   `json:"active_tenant_id,omitempty"`
	TenantIDs      []int64  `json:"tenant_ids,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	ExpiresAt      int64    `json:"expires_at,omitempty"`
}

func userFromModel(u *models.User) userDTO {
	return userDTO{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		AvatarPath:   u.AvatarPath,
		RegisteredAt: u.RegisteredAt,
		LoggedInAt:   u.LoggedInAt,
	}
}

func tokensFromModel(p *models.TokenPair) tokensDTO {
	return tokensDTO{
		AccessToken:     p.AccessToken,
		RefreshToken:    p.RefreshToken,
		AccessExpiresAt: p.AccessExpiresAt.Unix(),
	}
}

func authFromResult(res *service.AuthResult) authResponse {
	return authResponse{
		User:      userFromModel(res.User),
		Role:      res.Role,
		Roles:     nonNil(res.Roles),
		TenantIDs: nonNil(res.TenantIDs),
		tokensDTO: tokensFromModel(res.Tokens),
	}
}

func profileFromModel(p *models.Profile) profileResponse {
	return profileResponse{
		User:           userFromModel(p.User),
		Roles:          nonNil(p.Roles),
		TenantIDs:      nonNil(p.TenantIDs),
		ActiveTenantID: p.ActiveTenantID,
	}
}

func validateFromPrincipal(p *models.Principal) validateResponse {
	return validateResponse{
		Valid:          true,
		UserID:         p.UserID,
		Username:       p.Username,
		Email:          p.Email,
		DisplayName:    p.DisplayName,
		ActiveTenantID: p.ActiveTenantID,
		TenantIDs:      p.TenantIDs,
		Roles:          p.Roles,
		ExpiresAt:      p.ExpiresAt.Unix(),
	}
}

// nonNil отдаёт [] вместо null в JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
