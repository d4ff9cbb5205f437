package http

import (
	"net/http"

	"github.com/aussiebroadwan/streamtab/internal/identity/domain"
	"github.com/aussiebroadwan/streamtab/internal/identity/service"
	"github.com/aussiebroadwan/streamtab/pkg/httpx"
	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

var errInvalidVideoID = domain.Validation("Invalid video id")

// ChannelHandler serves the channel profile and watch history views.
type ChannelHandler struct {
	Views   *service.ViewBuilder
	History *service.HistoryService

	router *Router
}

// HandleChannel godoc
//
//	@Summary		Channel profile
//	@Description	Public profile of a channel with subscriber counts. isSubscribed is true only when
//	@Description	the authenticated caller subscribes to the channel; anonymous callers always get false.
//	@Tags			Channels
//	@Produce		json
//	@Param			username	path		string	true	"Channel username"
//	@Success		200			{object}	identitysdk.Envelope[identitysdk.ChannelResponse]
//	@Failure		400			{object}	httpx.Envelope	"username is missing"
//	@Failure		404			{object}	httpx.Envelope	"Channel does not exist"
//	@Router			/api/v1/users/c/{username} [get].
func (h *ChannelHandler) HandleChannel(w http.ResponseWriter, r *http.Request) {
	// Invalid or missing tokens were already dropped by OptionalAuthn.
	requester, err := userID(r)
	if err != nil {
		requester = idx.Zero
	}

	view, err := h.Views.ChannelProfile(r.Context(), r.PathValue("username"), requester)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toChannelResponse(view), "User channel fetched successfully")
}

// HandleWatchHistory godoc
//
//	@Summary		Watch history
//	@Description	The caller's watched videos, oldest first, each with its owner. Videos that no
//	@Description	longer exist are left out; owner is null when the owning account is gone.
//	@Tags			Channels
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	identitysdk.Envelope[[]identitysdk.HistoryEntry]
//	@Failure		401	{object}	httpx.Envelope	"Unauthorized request"
//	@Router			/api/v1/users/watch-history [get].
func (h *ChannelHandler) HandleWatchHistory(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	entries, err := h.Views.WatchHistory(r.Context(), id)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, toHistory(entries), "Watch history fetched successfully")
}

// HandleRecordView godoc
//
//	@Summary		Record a view
//	@Description	Appends a video to the caller's watch history.
//	@Tags			Channels
//	@Produce		json
//	@Security		BearerAuth
//	@Param			videoId	path		string	true	"Video id"
//	@Success		201		{object}	httpx.Envelope
//	@Failure		400		{object}	httpx.Envelope	"Invalid video id"
//	@Failure		404		{object}	httpx.Envelope	"Video does not exist"
//	@Router			/api/v1/users/watch-history/{videoId} [post].
func (h *ChannelHandler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		h.router.writeError(w, r, err)
		return
	}

	videoID, err := idx.Parse(r.PathValue("videoId"))
	if err != nil {
		h.router.writeError(w, r, domain.WithCause(errInvalidVideoID, err))
		return
	}

	if err := h.History.RecordView(r.Context(), id, videoID); err != nil {
		h.router.writeError(w, r, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, struct{}{}, "Video added to watch history")
}
