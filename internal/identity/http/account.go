package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/service"
	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/identitysdk"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

// AccountHandler serves the caller's own profile.
type AccountHandler struct {
	Accounts *service.AccountService

	router *Router
}

// HandleCurrentUser godoc
//
//	@Summary		Current user
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	identitysdk.Envelope[identitysdk.UserResponse]
//	@Failure		401	{object}	httpx.Envelope	"Unauthorized request"
//	@Failure		404	{object}	httpx.Envelope	"User does not exist"
//	@Router			/api/v1/users/current-user [get].
func (h *AccountHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	u, err := h.Accounts.CurrentUser(r.Context(), id)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toUserResponse(u), "User fetched successfully")
}

// HandleChangePassword godoc
//
//	@Summary		Change password
//	@Description	Replaces the password after checking the old one. The current session is revoked,
//	@Description	so the caller has to log in again once the access token expires.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		identitysdk.ChangePasswordRequest	true	"Old and new password"
//	@Success		200		{object}	httpx.Envelope
//	@Failure		400		{object}	httpx.Envelope	"All fields are required"
//	@Failure		401		{object}	httpx.Envelope	"Invalid old password"
//	@Failure		404		{object}	httpx.Envelope	"User does not exist"
//	@Router			/api/v1/users/change-password [post].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	var req identitysdk.ChangePasswordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.router.writeError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	if err := h.Accounts.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	h.router.clearAuthCookies(w)
	httpx.WriteData(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// HandleUpdateAccount godoc
//
//	@Summary		Update account details
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		identitysdk.UpdateAccountRequest	true	"Full name and email"
//	@Success		200		{object}	identitysdk.Envelope[identitysdk.UserResponse]
//	@Failure		400		{object}	httpx.Envelope	"All fields are required"
//	@Failure		409		{object}	httpx.Envelope	"Email already in use"
//	@Router			/api/v1/users/update-account [put].
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	var req identitysdk.UpdateAccountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.router.writeError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	u, err := h.Accounts.UpdateAccount(r.Context(), id, domain.AccountUpdate{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toUserResponse(u), "Account details updated successfully")
}

// HandleUpdateAvatar godoc
//
//	@Summary		Replace avatar
//	@Tags			Users
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			avatar	formData	file	true	"Avatar image"
//	@Success		200		{object}	identitysdk.Envelope[identitysdk.UserResponse]
//	@Failure		400		{object}	httpx.Envelope	"Avatar file is missing"
//	@Router			/api/v1/users/update-avatar [put].
func (h *AccountHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.Accounts.UpdateAvatar, "Avatar image updated successfully")
}

// HandleUpdateCoverImage godoc
//
//	@Summary		Replace cover image
//	@Tags			Users
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			coverImage	formData	file	true	"Cover image"
//	@Success		200			{object}	identitysdk.Envelope[identitysdk.UserResponse]
//	@Failure		400			{object}	httpx.Envelope	"Cover image file is missing"
//	@Router			/api/v1/users/update-cover-image [put].
func (h *AccountHandler) HandleUpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.Accounts.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdater func(ctx context.Context, userID idx.ID, localPath string) (domain.User, error)

func (h *AccountHandler) updateImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdater, msg string) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	if err := parseMultipart(r); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	path, err := h.router.stageUpload(r, field)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	// The service removes the staged file.
	u, err := update(r.Context(), id, path)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toUserResponse(u), msg)
}
