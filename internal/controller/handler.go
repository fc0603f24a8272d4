package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/selfcinema/server/internal/domain"
	"github.com/selfcinema/server/internal/service/room"
	"github.com/selfcinema/server/pkg/rest"
)

const hostTokenHeader = "X-Host-Token"

type setPlaybackRequest struct {
	URL string `json:"url" validate:"required"`
}

type setPlaybackResponse struct {
	Version   int64  `json:"version"`
	HostToken string `json:"host_token,omitempty"`
}

func (c controller) SetPlayback(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	var req setPlaybackRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "SetPlayback", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "SetPlayback", "validate err", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.SetPlayback(r.Context(), &room.SetPlaybackParams{
		RoomID:    roomID,
		URL:       req.URL,
		HostName:  r.Header.Get("X-Display-Name"),
		HostToken: r.Header.Get(hostTokenHeader),
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrPermissionDenied):
			rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": err.Error()})
		case errors.Is(err, room.ErrEmptyURL):
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		default:
			c.logger.ErrorContext(r.Context(), "SetPlayback", "err", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		}
		return
	}

	c.notifyRoom(r.Context(), roomID, eventPlaybackChanged)

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": setPlaybackResponse{
		Version:   resp.Version,
		HostToken: resp.HostToken,
	}})
}

type getPlaybackResponse struct {
	URL        string `json:"url"`
	Version    int64  `json:"version"`
	SameSource bool   `json:"same_source"`
}

func (c controller) GetPlayback(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	knownVersion, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		knownVersion = 0
	}

	resp, err := c.roomService.GetPlayback(r.Context(), &room.GetPlaybackParams{
		RoomID:       roomID,
		KnownVersion: knownVersion,
		KnownURL:     r.URL.Query().Get("currentUrl"),
	})
	if err != nil {
		c.logger.ErrorContext(r.Context(), "GetPlayback", "err", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	if resp.NoChange {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": getPlaybackResponse{
		URL:        resp.URL,
		Version:    resp.Version,
		SameSource: resp.SameSource,
	}})
}

type postMessageRequest struct {
	ID        string `json:"id" validate:"required,max=64"`
	Sender    string `json:"sender" validate:"required,max=32"`
	Content   string `json:"content" validate:"max=1000"`
	Timestamp int64  `json:"timestamp"`
	Kind      string `json:"kind" validate:"required,oneof=chat system presence"`
}

type postMessageResponse struct {
	Timestamp int64 `json:"timestamp"`
	Duplicate bool  `json:"duplicate"`
}

func (c controller) PostMessage(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	var req postMessageRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "PostMessage", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "PostMessage", "validate err", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.PostMessage(r.Context(), &room.PostMessageParams{
		RoomID: roomID,
		Message: domain.ChatMessage{
			ID:        req.ID,
			Sender:    req.Sender,
			Content:   req.Content,
			Timestamp: req.Timestamp,
			Kind:      domain.MessageKind(req.Kind),
		},
	})
	if err != nil {
		if errors.Is(err, room.ErrInvalidMessage) {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
			return
		}

		c.logger.ErrorContext(r.Context(), "PostMessage", "err", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	if !resp.Duplicate {
		c.notifyRoom(r.Context(), roomID, eventMessagePosted)
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": postMessageResponse{
		Timestamp: resp.Timestamp,
		Duplicate: resp.Duplicate,
	}})
}

func (c controller) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		since = 0
	}

	resp, err := c.roomService.GetMessages(r.Context(), &room.GetMessagesParams{
		RoomID: roomID,
		Since:  since,
	})
	if err != nil {
		c.logger.ErrorContext(r.Context(), "GetMessages", "err", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp.Messages})
}

func (c controller) GetOnlineMembers(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	resp, err := c.roomService.OnlineMembers(r.Context(), &room.OnlineMembersParams{RoomID: roomID})
	if err != nil {
		c.logger.ErrorContext(r.Context(), "GetOnlineMembers", "err", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp.Members})
}

func (c controller) Health(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"status": "ok"})
}
