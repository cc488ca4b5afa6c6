package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/service"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
)

type AuthHandler struct {
	AuthService  *service.AuthService
	TokenService *service.TokenService
}

// HandleRegister creates an account.
//
//	@Summary		Register
//	@Description	Creates a user or provider account and returns its first token pair.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RegisterRequest	true	"New account"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_body"
//	@Failure		409		{object}	authsdk.ErrorResponse	"email_in_use"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		log.Debug("register: bad body", "err", err)
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	role, apiErr := validateRegister(req)
	if apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	_, pair, err := h.AuthService.Register(ctx, req.Email, req.Password, role)
	switch {
	case errors.Is(err, service.ErrEmailInUse):
		authsdk.ErrEmailInUse.WriteError(w)
		return
	case errors.Is(err, service.ErrRoleNotAllowed):
		authsdk.ErrInvalidBody.WithFields(map[string]string{"role": "must be one of: user, provider"}).WriteError(w)
		return
	case err != nil:
		log.Error("register failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokens(w, pair)
}

// HandleLogin exchanges email and password for a token pair.
//
//	@Summary		Login
//	@Description	Verifies the password and returns a new token pair.
//	@Description	An unknown email and a wrong password give the same answer.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		log.Debug("login: bad body", "err", err)
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if apiErr := validateLogin(req); apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	_, pair, err := h.AuthService.Login(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
		return
	case err != nil:
		log.Error("login failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokens(w, pair)
}

// HandleRefresh rotates a refresh token.
//
//	@Summary		Refresh
//	@Description	Exchanges a refresh token for a new pair. The presented token is retired
//	@Description	and can never be exchanged again.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_body"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_refresh, refresh_revoked or refresh_expired"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		log.Debug("refresh: bad body", "err", err)
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	if apiErr := validateRefresh(req); apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	pair, err := h.TokenService.Rotate(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, service.ErrInvalidRefresh):
		authsdk.ErrInvalidRefresh.WriteError(w)
		return
	case errors.Is(err, service.ErrRefreshRevoked):
		authsdk.ErrRefreshRevoked.WriteError(w)
		return
	case errors.Is(err, service.ErrRefreshExpired):
		authsdk.ErrRefreshExpired.WriteError(w)
		return
	case err != nil:
		log.Error("refresh failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokens(w, pair)
}

// HandleLogout revokes a refresh token.
//
//	@Summary		Logout
//	@Description	Revokes the refresh token. Succeeds whether or not the token was known.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.OKResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_body"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		log.Debug("logout: bad body", "err", err)
		authsdk.ErrInvalidBody.WriteError(w)
		return
	}
	if apiErr := validateRefresh(req); apiErr != nil {
		apiErr.WriteError(w)
		return
	}

	if err := h.TokenService.Revoke(ctx, req.RefreshToken); err != nil {
		log.Error("logout failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

func writeTokens(w http.ResponseWriter, pair domain.TokenPair) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}
