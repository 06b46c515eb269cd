package issuer

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/storefront-auth/internal/models"
)

// leeway: допуск рассинхронизации часов при проверке exp/nbf/iat.
const leeway = 5 * time.Second

type accessClaims struct {
	Username    string   `json:"unique_name"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	TenantID    string   `json:"tenantId,omitempty"`
	TenantIDs   []string `json:"tenantIds"`
	Roles       []string `json:"role"`
	jwt.RegisteredClaims
}

// subject: данные, из которых собирается access-токен.
type subject struct {
	user     *models.User
	roles    []string
	tenants  []int64
	activeID *int64
}

// buildClaims собирает claims детерминированно: тенанты и роли без дублей
// в порядке первого появления.
func (i *Issuer) buildClaims(s subject, now time.Time) accessClaims {
	tenants := make([]string, 0, len(s.tenants))
	for _, id := range dedupe(s.tenants) {
		tenants = append(tenants, strconv.FormatInt(id, 10))
	}

	c := accessClaims{
		Username:    s.user.Username,
		Email:       s.user.Email,
		DisplayName: s.user.DisplayName,
		TenantIDs:   tenants,
		Roles:       dedupe(s.roles),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(s.user.ID, 10),
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings(i.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTokenTTL)),
		},
	}

	if s.activeID != nil {
		c.TenantID = strconv.FormatInt(*s.activeID, 10)
	}

	return c
}

// sign подписывает claims ключом HS256.
func (i *Issuer) sign(c accessClaims) (string, error) {
	const op = "issuer.sign"

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, ErrInvalidToken
	}

	return i.secret, nil
}

// Validate проверяет подпись, срок действия, issuer и audience access-токена
// и возвращает субъекта. Истёкший токен: ErrTokenExpired, прочее: ErrInvalidToken.
func (i *Issuer) Validate(tokenStr string) (*models.Principal, error) {
	const op = "issuer.Validate"

	var c accessClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience...),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	p, err := c.principal()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// PrincipalFromExpired читает claims из access-токена, срок действия которого мог истечь.
// Подпись, алгоритм, issuer и audience проверяются всегда; время жизни: нет.
// При любой ошибке возвращает nil.
func (i *Issuer) PrincipalFromExpired(tokenStr string) *models.Principal {
	var c accessClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return nil
	}

	if c.Issuer != i.cfg.Issuer {
		return nil
	}

	if len(i.cfg.Audience) > 0 && !slices.ContainsFunc(i.cfg.Audience, func(a string) bool {
		return slices.Contains(c.Audience, a)
	}) {
		return nil
	}

	p, err := c.principal()
	if err != nil {
		return nil
	}

	return p
}

func (c *accessClaims) principal() (*models.Principal, error) {
	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	p := &models.Principal{
		UserID:      uid,
		Username:    c.Username,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Roles:       c.Roles,
		TokenID:     c.ID,
	}

	if c.TenantID != "" {
		id, err := strconv.ParseInt(c.TenantID, 10, 64)
		if err != nil {
			return nil, ErrInvalidToken
		}
		p.ActiveTenantID = &id
	}

	for _, s := range c.TenantIDs {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, ErrInvalidToken
		}
		p.TenantIDs = append(p.TenantIDs, id)
	}

	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time.UTC()
	}

	return p, nil
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	seen := make(map[T]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
