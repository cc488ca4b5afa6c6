package http

import (
	"errors"
	"net/http"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/service"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/httpx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
)

// MeHandler echoes the authenticated caller. The same handler is mounted
// behind different role gates.
type MeHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP returns the caller's account.
//
//	@Summary		Current user
//	@Description	Returns the account behind the access token. /provider/me additionally requires
//	@Description	role provider or admin, /admin/me requires role admin.
//	@Tags			Identity
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"unauthorized"
//	@Failure		403	{object}	authsdk.ErrorResponse	"forbidden"
//	@Failure		500	{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/me [get]
//	@Router			/provider/me [get]
//	@Router			/admin/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok || id.ID == "" {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	user, err := h.AuthService.GetUser(ctx, id.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Token outlived the account.
		authsdk.ErrUnauthorized.WriteError(w)
		return
	case err != nil:
		log.Warn("failed to load user", "user_id", id.ID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLoginAt,
	})
}
