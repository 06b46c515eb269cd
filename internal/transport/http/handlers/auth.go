package handlers

import (
	"errors"
	"net/http"

	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/apierrors"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/middleware"
)

// Refresh: POST /api/auth/refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), in.RefreshToken, middleware.ClientIP(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(pair))
}

// RefreshExpired: POST /api/auth/refresh/expired: пара по просроченному
// access-токену и refresh-токену того же пользователя.
func (h *Handlers) RefreshExpired(w http.ResponseWriter, r *http.Request) {
	var in expiredRefreshRequest
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if in.AccessToken == "" || in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, err := h.svc.ResolveExpired(r.Context(), in.AccessToken, in.RefreshToken, middleware.ClientIP(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(pair))
}

// Validate: POST /api/auth/validate. Невалидный или просроченный токен
// даёт 200 {"valid":false}, а не ошибку.
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var in validateRequest
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := h.svc.ValidateToken(r.Context(), in.AccessToken)
	if err != nil {
		if errors.Is(err, issuer.ErrInvalidToken) || errors.Is(err, issuer.ErrTokenExpired) {
			writeJSON(w, http.StatusOK, validateResponse{Valid: false})
			return
		}

		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateFromPrincipal(p))
}
