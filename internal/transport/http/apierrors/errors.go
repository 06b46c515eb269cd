// Package apierrors стандартизирует ответы об ошибках REST-слоя auth-сервиса.
// Доменная ошибка (service/issuer) превращается в HTTP-статус и конверт
// {"error":{"code","message","request_id"}} без утечки внутренних деталей.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/service"
)

// StatusClientClosedRequest: нестандартный код "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrBadRequest: тело запроса не разобрано или не хватает обязательных полей.
var ErrBadRequest = errors.New("invalid request body")

// APIError: единый формат ошибки для фронта.
// Code: короткий стабильный код; Message: безопасное описание.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse: корневой объект ответа.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type mapping struct {
	target error
	status int
	code   string
}

// Порядок важен: первое совпадение по errors.Is выигрывает.
var table = []mapping{
	{ErrBadRequest, http.StatusBadRequest, "invalid_argument"},
	{service.ErrInvalidUsername, http.StatusBadRequest, "invalid_argument"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_argument"},
	{service.ErrInvalidDisplayName, http.StatusBadRequest, "invalid_argument"},
	{service.ErrInvalidRole, http.StatusBadRequest, "invalid_argument"},
	{service.ErrEmptyPassword, http.StatusBadRequest, "invalid_argument"},
	{service.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
	{service.ErrUserExists, http.StatusConflict, "already_exists"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{issuer.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{issuer.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{issuer.ErrUserNotFound, http.StatusUnauthorized, "invalid_token"},
	{issuer.ErrNotFound, http.StatusNotFound, "not_found"},
	{issuer.ErrAlreadyRevoked, http.StatusConflict, "already_revoked"},
	{issuer.ErrTenantNotMember, http.StatusForbidden, "tenant_forbidden"},
	{context.Canceled, StatusClientClosedRequest, "canceled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
}

// ToHTTP возвращает HTTP-статус и тело ответа для err.
// nil и неизвестные ошибки дают 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	if err != nil {
		for _, m := range table {
			if errors.Is(err, m.target) {
				return m.status, ErrorResponse{Error: APIError{Code: m.code, Message: m.target.Error()}}
			}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}

// WriteError пишет статус и конверт ошибки; request_id берётся из X-Request-Id.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
