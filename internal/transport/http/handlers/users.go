package handlers

import (
	"net/http"

	"github.com/pribylovaa/storefront-auth/internal/issuer"
	"github.com/pribylovaa/storefront-auth/internal/service"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/apierrors"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/middleware"
)

// RegisterUser: POST /api/users.
func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.RegisterUser(r.Context(), service.RegisterInput{
		Username:       in.Username,
		Email:          in.Email,
		Password:       in.Password,
		DisplayName:    in.DisplayName,
		Role:           in.Role,
		TenantIDs:      in.TenantIDs,
		ActiveTenantID: in.ActiveTenantID,
		ClientIP:       middleware.ClientIP(r),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authFromResult(res))
}

// CreateGuest: POST /api/users/guest. Тело необязательно.
func (h *Handlers) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var in guestRequest
	if err := decodeStrict(w, r, &in, true); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.CreateGuest(r.Context(), in.TenantIDs, in.ActiveTenantID, middleware.ClientIP(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authFromResult(res))
}

// Login: POST /api/users/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in.Username, in.Password, in.ActiveTenantID, middleware.ClientIP(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authFromResult(res))
}

// Logout: POST /api/users/logout; успех: 204.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	if in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.Logout(r.Context(), in.RefreshToken, middleware.ClientIP(r)); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me: GET /api/users/me по Bearer access-токену.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r.Context())
	if token == "" {
		apierrors.WriteError(w, r, issuer.ErrInvalidToken)
		return
	}

	prof, err := h.svc.CurrentUser(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileFromModel(prof))
}
