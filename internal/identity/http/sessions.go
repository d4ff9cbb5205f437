package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/service"
	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/identitysdk"
)

var errMissingIdentity = domain.Validation("Username or email is required")

// SessionHandler serves signup and the login, refresh and logout cycle.
type SessionHandler struct {
	Credentials *service.CredentialService
	Sessions    *service.SessionService

	router *Router
}

// HandleRegister godoc
//
//	@Summary		Register a user
//	@Description	Creates an account from JSON or multipart form data. Multipart requests may carry
//	@Description	"avatar" and "coverImage" files; a placeholder avatar is used when none is given.
//	@Tags			Users
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			request		body		identitysdk.RegisterRequest	true	"Account details"
//	@Param			avatar		formData	file						false	"Avatar image"
//	@Param			coverImage	formData	file						false	"Cover image"
//	@Success		201			{object}	identitysdk.Envelope[identitysdk.UserResponse]
//	@Failure		400			{object}	httpx.Envelope	"Missing or invalid fields"
//	@Failure		409			{object}	httpx.Envelope	"Username or email taken"
//	@Failure		429			{object}	httpx.Envelope	"Rate limited"
//	@Router			/api/v1/users/register [post].
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.RegisterRequest

	if isMultipart(r) {
		if err := parseMultipart(r); err != nil {
			h.router.writeError(w, r, err)
			return
		}
		req = identitysdk.RegisterRequest{
			Username: r.PostFormValue("username"),
			Email:    r.PostFormValue("email"),
			FullName: r.PostFormValue("fullName"),
			Password: r.PostFormValue("password"),
		}
	} else if err := decodeJSON(r, &req, false); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if strings.TrimSpace(req.Password) == "" {
		req.Password = ""
	}
	if err := validateRequest(req); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	avatar, err := h.router.stageUpload(r, "avatar")
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	cover, err := h.router.stageUpload(r, "coverImage")
	if err != nil {
		service.RemoveUpload(r.Context(), avatar)
		h.router.writeError(w, r, err)
		return
	}

	// Register resolves and removes the staged files.
	user, err := h.Credentials.Register(r.Context(), domain.NewUser{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		Password:       req.Password,
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	httpx.WriteData(w, http.StatusCreated, toUserResponse(user), "User registered successfully")
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Verifies a username or email with its password and starts a session. The tokens are
//	@Description	returned in the body and set as the accessToken and refreshToken cookies. Any earlier
//	@Description	session of the same user is replaced.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		identitysdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	identitysdk.Envelope[identitysdk.LoginResponse]
//	@Failure		400		{object}	httpx.Envelope	"Missing identity or password"
//	@Failure		401		{object}	httpx.Envelope	"Invalid user credentials"
//	@Failure		429		{object}	httpx.Envelope	"Rate limited"
//	@Router			/api/v1/users/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req identitysdk.LoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	identity := strings.TrimSpace(req.Username)
	if identity == "" {
		identity = strings.TrimSpace(req.Email)
	}
	if identity == "" {
		h.router.writeError(w, r, errMissingIdentity)
		return
	}
	if err := validateRequest(req); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	sess, err := h.Sessions.Login(r.Context(), identity, req.Password)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	h.router.setAuthCookies(w, sess.Tokens)
	httpx.WriteData(w, http.StatusOK, identitysdk.LoginResponse{
		User:           toUserResponse(sess.User),
		TokensResponse: toTokensResponse(sess.Tokens, time.Now()),
	}, "User logged in successfully")
}

// HandleRefresh godoc
//
//	@Summary		Rotate tokens
//	@Description	Exchanges the live refresh token, from the refreshToken cookie or the body, for a new
//	@Description	pair. A refresh token works once; presenting a superseded one fails.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		identitysdk.RefreshRequest	false	"Refresh token when no cookie is sent"
//	@Success		200		{object}	identitysdk.Envelope[identitysdk.TokensResponse]
//	@Failure		401		{object}	httpx.Envelope	"Missing, invalid or reused refresh token"
//	@Router			/api/v1/users/refresh-token [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req identitysdk.RefreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			h.router.writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	sess, err := h.Sessions.Refresh(r.Context(), token)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	h.router.setAuthCookies(w, sess.Tokens)
	httpx.WriteData(w, http.StatusOK, toTokensResponse(sess.Tokens, time.Now()), "Access token refreshed")
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Ends the caller's session on every device and clears both cookies.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	httpx.Envelope
//	@Failure		401	{object}	httpx.Envelope	"Unauthorized request"
//	@Router			/api/v1/users/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	if err := h.Sessions.Logout(r.Context(), id); err != nil {
		h.router.writeError(w, r, err)
		return
	}

	h.router.clearAuthCookies(w)
	httpx.WriteData(w, http.StatusOK, struct{}{}, "User logged out")
}
