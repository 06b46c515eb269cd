package authv1

// RefreshRequest: обмен refresh-токена на новую пару.
// ClientIp: адрес конечного пользователя, если вызывающий сервис его знает;
// иначе сервер берёт адрес peer.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	ClientIp     string `json:"client_ip,omitempty"`
}

func (x *RefreshRequest) GetRefreshToken() string {
	if x != nil {
		return x.RefreshToken
	}
	return ""
}

func (x *RefreshRequest) GetClientIp() string {
	if x != nil {
		return x.ClientIp
	}
	return ""
}

// TokenPairResponse: новая пара токенов; AccessExpiresAt в Unix-секундах.
type TokenPairResponse struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	AccessExpiresAt int64  `json:"access_expires_at"`
}

type RevokeRequest struct {
	RefreshToken string `json:"refresh_token"`
	ClientIp     string `json:"client_ip,omitempty"`
}

func (x *RevokeRequest) GetRefreshToken() string {
	if x != nil {
		return x.RefreshToken
	}
	return ""
}

func (x *RevokeRequest) GetClientIp() string {
	if x != nil {
		return x.ClientIp
	}
	return ""
}

type RevokeResponse struct {
	Ok bool `json:"ok"`
}

type ValidateRequest struct {
	AccessToken string `json:"access_token"`
}

func (x *ValidateRequest) GetAccessToken() string {
	if x != nil {
		return x.AccessToken
	}
	return ""
}

// ValidateResponse: результат проверки access-токена.
// При Valid=false остальные поля пусты.
type ValidateResponse struct {
	Valid          bool     `json:"valid"`
	UserId         int64    `json:"user_id,omitempty"`
	Username       string   `json:"username,omitempty"`
	Email          string   `json:"email,omitempty"`
	DisplayName    string   `json:"display_name,omitempty"`
	ActiveTenantId *int64   `json:"active_tenant_id,omitempty"`
	TenantIds      []int64  `json:"tenant_ids,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	ExpiresAt      int64    `json:"expires_at,omitempty"`
}
