package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/storefront-auth/internal/events"
	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/models"
	"github.com/pribylovaa/storefront-auth/internal/pkg/log"
	"github.com/pribylovaa/storefront-auth/internal/pkg/redact"
	"github.com/pribylovaa/storefront-auth/internal/storage"
)

const (
	minUsernameLen    = 3
	maxDisplayNameLen = 100
	minPasswordLen    = 8
	// maxPasswordBytes: предел bcrypt.
	maxPasswordBytes  = 72
)

// selfRegisterRoles: роли, доступные при публичной регистрации.
var selfRegisterRoles = []string{RoleCustomer, RoleOwner}

// RegisterInput: данные регистрации.
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	DisplayName    string
	Role           string
	TenantIDs      []int64
	ActiveTenantID *int64
	ClientIP       string
}

// AuthResult: итог входа или регистрации.
type AuthResult struct {
	User      *models.User
	Role      string
	Roles     []string
	TenantIDs []int64
	Tokens    *models.TokenPair
}

// RegisterUser регистрирует пользователя, публикует событие UserCreated и выпускает пару токенов.
// Пустая роль означает customer; доступны только customer и owner.
// Активный тенант проверяется до создания учётки.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	const op = "service.auth.RegisterUser"

	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" || utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidDisplayName)
	}

	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = RoleCustomer
	}
	if !slices.Contains(selfRegisterRoles, role) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	if err := checkActiveTenant(in.TenantIDs, in.ActiveTenantID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByName(ctx, username)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashed,
		RegisteredAt: s.now().UTC(),
	}

	if err := s.saveUser(ctx, user, role, in.TenantIDs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publishUserCreated(ctx, user, role, in.TenantIDs)

	res, err := s.mint(ctx, user, in.TenantIDs, in.ActiveTenantID, in.ClientIP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// CreateGuest заводит анонимную учётку guest-<uuid> с ролью guest и выпускает для неё пару токенов.
func (s *Service) CreateGuest(ctx context.Context, tenantIDs []int64, activeTenantID *int64, clientIP string) (*AuthResult, error) {
	const op = "service.auth.CreateGuest"

	if err := checkActiveTenant(tenantIDs, activeTenantID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Пароль гостя никому не выдаётся: войти по нему нельзя, только по refresh-токену.
	hashed, err := hashPassword(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		Username:     "guest-" + uuid.NewString(),
		PasswordHash: hashed,
		RegisteredAt: s.now().UTC(),
	}

	if err := s.saveUser(ctx, user, RoleGuest, tenantIDs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publishUserCreated(ctx, user, RoleGuest, tenantIDs)

	res, err := s.mint(ctx, user, tenantIDs, activeTenantID, clientIP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Login выполняет вход по username+пароль. Токены выпускаются с текущими
// тенантами пользователя; activeTenantID, если задан, обязан входить в их число.
func (s *Service) Login(ctx context.Context, username, password string, activeTenantID *int64, clientIP string) (*AuthResult, error) {
	const op = "service.auth.Login"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByName(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		log.From(ctx).Info("login_failed",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	tenants, err := s.storage.TenantsByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	if err := s.storage.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.LoggedInAt = &now

	res, err := s.mint(ctx, user, tenants, activeTenantID, clientIP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Refresh обменивает refresh-токен на новую пару.
func (s *Service) Refresh(ctx context.Context, refreshToken, clientIP string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	pair, err := s.issuer.Rotate(ctx, refreshToken, clientIP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// ResolveExpired обновляет пару по просроченному access-токену и refresh-токену.
// Субъект access-токена сверяется с каталогом и с владельцем refresh-токена;
// любое расхождение: issuer.ErrInvalidToken.
func (s *Service) ResolveExpired(ctx context.Context, accessToken, refreshToken, clientIP string) (*models.TokenPair, error) {
	const op = "service.auth.ResolveExpired"

	p := s.issuer.PrincipalFromExpired(accessToken)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, issuer.ErrInvalidToken)
	}

	user, err := s.storage.UserByName(ctx, p.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, issuer.ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.ID != p.UserID {
		log.From(ctx).Warn("expired_token_subject_mismatch",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
			slog.Int64("subject", p.UserID),
		)
		return nil, fmt.Errorf("%s: %w", op, issuer.ErrInvalidToken)
	}

	pair, err := s.issuer.Rotate(ctx, refreshToken, clientIP, issuer.WithExpectedOwner(user.ID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// Logout отзывает refresh-токен.
func (s *Service) Logout(ctx context.Context, refreshToken, clientIP string) error {
	const op = "service.auth.Logout"

	if err := s.issuer.Revoke(ctx, refreshToken, clientIP); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ValidateToken проверяет access-токен и возвращает его субъекта.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (*models.Principal, error) {
	const op = "service.auth.ValidateToken"

	p, err := s.issuer.Validate(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// CurrentUser возвращает актуальный профиль владельца access-токена.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*models.Profile, error) {
	const op = "service.auth.CurrentUser"

	p, err := s.issuer.Validate(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, issuer.ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	roles, err := s.storage.RolesByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tenants, err := s.storage.TenantsByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Profile{
		User:           user,
		Roles:          roles,
		TenantIDs:      tenants,
		ActiveTenantID: p.ActiveTenantID,
	}, nil
}

// mint выпускает пару токенов и собирает AuthResult из claims нового access-токена.
func (s *Service) mint(ctx context.Context, user *models.User, tenantIDs []int64, activeTenantID *int64, clientIP string) (*AuthResult, error) {
	const op = "service.auth.mint"

	pair, err := s.issuer.Mint(ctx, user, tenantIDs, activeTenantID, clientIP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.issuer.Validate(pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &AuthResult{
		User:      user,
		Roles:     p.Roles,
		TenantIDs: p.TenantIDs,
		Tokens:    pair,
	}
	if len(p.Roles) > 0 {
		res.Role = p.Roles[0]
	}

	return res, nil
}

// checkActiveTenant: та же проверка, что в Mint, но до записи пользователя.
func checkActiveTenant(tenantIDs []int64, active *int64) error {
	if active != nil && !slices.Contains(tenantIDs, *active) {
		return issuer.ErrTenantNotMember
	}

	return nil
}

func (s *Service) saveUser(ctx context.Context, user *models.User, role string, tenantIDs []int64) error {
	err := s.storage.SaveUser(ctx, user, role, tenantIDs)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrAlreadyExists):
		return ErrUserExists
	case errors.Is(err, storage.ErrRoleNotFound):
		return ErrInvalidRole
	default:
		return err
	}
}

// publishUserCreated публикует событие регистрации. Ошибка брокера не отменяет регистрацию.
func (s *Service) publishUserCreated(ctx context.Context, user *models.User, role string, tenantIDs []int64) {
	const op = "service.auth.publishUserCreated"

	ev := events.UserCreated{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        role,
		TenantIDs:   tenantIDs,
		OccurredAt:  user.RegisteredAt,
	}

	if err := s.publisher.Publish(ctx, events.RoutingKeyUserCreated, ev); err != nil {
		log.From(ctx).Warn("user_created_publish_failed",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
			slog.String("email", redact.Email(user.Email)),
			slog.String("err", err.Error()),
		)
	}
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validateUsername(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if utf8.RuneCountInString(u) < minUsernameLen || strings.ContainsFunc(u, unicode.IsSpace) {
		return "", ErrInvalidUsername
	}

	return u, nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика: от 8 символов и не длиннее 72 байт, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if utf8.RuneCountInString(pw) < minPasswordLen || len(pw) > maxPasswordBytes {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
